package httpapi

import (
	"net/http"

	"alquimist/internal/core"
)

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.svc.ListClients(r.Context())
	if err != nil {
		h.fail(w, r, err, "Error al obtener clientes")
		return
	}
	ok(w, http.StatusOK, clients, "", core.Result{})
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.svc.GetClient(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err, "Error al obtener clientes")
		return
	}
	ok(w, http.StatusOK, client, "", core.Result{})
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	var in core.ClientInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err, "")
		return
	}
	client, res, err := h.svc.CreateClient(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, "Error al crear cliente")
		return
	}
	ok(w, http.StatusCreated, client, "Cliente creado exitosamente", res)
}

func (h *Handler) updateClient(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
		core.ClientInput
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err, "")
		return
	}
	if body.ID == "" {
		writeError(w, http.StatusBadRequest, "ID de cliente requerido")
		return
	}
	client, res, err := h.svc.UpdateClient(r.Context(), body.ID, body.ClientInput)
	if err != nil {
		h.fail(w, r, err, "Error al actualizar cliente")
		return
	}
	ok(w, http.StatusOK, client, "Cliente actualizado exitosamente", res)
}

func (h *Handler) deleteClient(w http.ResponseWriter, r *http.Request) {
	id := query(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "ID de cliente requerido")
		return
	}
	res, err := h.svc.DeleteClient(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Error al eliminar cliente")
		return
	}
	ok(w, http.StatusOK, nil, "Cliente eliminado exitosamente", res)
}

func (h *Handler) listClientTests(w http.ResponseWriter, r *http.Request) {
	tests, err := h.svc.ListClientTests(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err, "Error al obtener pruebas del cliente")
		return
	}
	ok(w, http.StatusOK, tests, "", core.Result{})
}

func (h *Handler) createClientTest(w http.ResponseWriter, r *http.Request) {
	var in core.ClientTestInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err, "")
		return
	}
	test, res, err := h.svc.CreateClientTest(r.Context(), r.PathValue("id"), in)
	if err != nil {
		h.fail(w, r, err, "Error al agregar prueba")
		return
	}
	ok(w, http.StatusCreated, test, "Prueba agregada exitosamente", res)
}

// updateClientTest selects the test by the body's testId, which therefore
// cannot be used to change the catalog test id.
func (h *Handler) updateClientTest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TestID string `json:"testId"`
		core.ClientTestInput
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err, "")
		return
	}
	if body.TestID == "" {
		writeError(w, http.StatusBadRequest, "ID de prueba requerido")
		return
	}
	test, res, err := h.svc.UpdateClientTest(r.Context(), r.PathValue("id"), body.TestID, body.ClientTestInput)
	if err != nil {
		h.fail(w, r, err, "Error al actualizar prueba")
		return
	}
	ok(w, http.StatusOK, test, "Prueba actualizada exitosamente", res)
}

func (h *Handler) deleteClientTest(w http.ResponseWriter, r *http.Request) {
	testID := query(r, "testId")
	if testID == "" {
		writeError(w, http.StatusBadRequest, "ID de prueba requerido")
		return
	}
	res, err := h.svc.DeleteClientTest(r.Context(), r.PathValue("id"), testID)
	if err != nil {
		h.fail(w, r, err, "Error al eliminar prueba")
		return
	}
	ok(w, http.StatusOK, nil, "Prueba eliminada exitosamente", res)
}
