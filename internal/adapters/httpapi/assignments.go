package httpapi

import (
	"net/http"

	"alquimist/internal/core"
	"alquimist/pkg/domain"
)

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.svc.ListAssignments(r.Context(), core.AssignmentFilter{
		TechnicianID: query(r, "technicianId"),
		Status:       domain.AssignmentStatus(query(r, "status")),
		TestID:       query(r, "testId"),
	})
	if err != nil {
		h.fail(w, r, err, "Error al obtener asignaciones")
		return
	}
	ok(w, http.StatusOK, assignments, "", core.Result{})
}

func (h *Handler) createAssignment(w http.ResponseWriter, r *http.Request) {
	var in core.AssignmentInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err, "")
		return
	}
	a, res, err := h.svc.CreateAssignment(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, "Error al crear asignación")
		return
	}
	ok(w, http.StatusCreated, a, "Asignación creada exitosamente", res)
}

func (h *Handler) updateAssignment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
		core.AssignmentInput
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err, "")
		return
	}
	if body.ID == "" {
		writeError(w, http.StatusBadRequest, "ID de asignación requerido")
		return
	}
	a, res, err := h.svc.UpdateAssignment(r.Context(), body.ID, body.AssignmentInput)
	if err != nil {
		h.fail(w, r, err, "Error al actualizar asignación")
		return
	}
	ok(w, http.StatusOK, a, "Asignación actualizada exitosamente", res)
}

func (h *Handler) deleteAssignment(w http.ResponseWriter, r *http.Request) {
	id := query(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "ID de asignación requerido")
		return
	}
	res, err := h.svc.DeleteAssignment(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Error al eliminar asignación")
		return
	}
	ok(w, http.StatusOK, nil, "Asignación eliminada exitosamente", res)
}
