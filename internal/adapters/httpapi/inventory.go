package httpapi

import (
	"net/http"

	"alquimist/internal/core"
)

// listInventory returns one lab's items when labId is given, otherwise every
// lab's inventory grouped with the lab name.
func (h *Handler) listInventory(w http.ResponseWriter, r *http.Request) {
	if labID := query(r, "labId"); labID != "" {
		items, err := h.svc.ListInventory(r.Context(), labID)
		if err != nil {
			h.fail(w, r, err, "Error al obtener inventario")
			return
		}
		ok(w, http.StatusOK, items, "", core.Result{})
		return
	}
	groups, err := h.svc.InventoryByLab(r.Context())
	if err != nil {
		h.fail(w, r, err, "Error al obtener inventario")
		return
	}
	ok(w, http.StatusOK, groups, "", core.Result{})
}

func (h *Handler) createInventoryItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		LabID string `json:"labId"`
		core.InventoryInput
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err, "")
		return
	}
	if body.LabID == "" {
		writeError(w, http.StatusBadRequest, "ID de laboratorio requerido")
		return
	}
	item, res, err := h.svc.CreateInventoryItem(r.Context(), body.LabID, body.InventoryInput)
	if err != nil {
		h.fail(w, r, err, "Error al agregar item al inventario")
		return
	}
	ok(w, http.StatusCreated, item, "Item agregado al inventario exitosamente", res)
}

func (h *Handler) updateInventoryItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		LabID  string `json:"labId"`
		ItemID string `json:"itemId"`
		core.InventoryInput
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err, "")
		return
	}
	if body.LabID == "" || body.ItemID == "" {
		writeError(w, http.StatusBadRequest, "ID de laboratorio e item requeridos")
		return
	}
	item, res, err := h.svc.UpdateInventoryItem(r.Context(), body.LabID, body.ItemID, body.InventoryInput)
	if err != nil {
		h.fail(w, r, err, "Error al actualizar item")
		return
	}
	ok(w, http.StatusOK, item, "Item actualizado exitosamente", res)
}

func (h *Handler) deleteInventoryItem(w http.ResponseWriter, r *http.Request) {
	labID, itemID := query(r, "labId"), query(r, "itemId")
	if labID == "" || itemID == "" {
		writeError(w, http.StatusBadRequest, "ID de laboratorio e item requeridos")
		return
	}
	res, err := h.svc.DeleteInventoryItem(r.Context(), labID, itemID)
	if err != nil {
		h.fail(w, r, err, "Error al eliminar item")
		return
	}
	ok(w, http.StatusOK, nil, "Item eliminado exitosamente", res)
}
