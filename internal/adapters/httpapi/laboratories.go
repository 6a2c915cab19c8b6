package httpapi

import (
	"net/http"

	"alquimist/internal/core"
)

func (h *Handler) listLaboratories(w http.ResponseWriter, r *http.Request) {
	labs, err := h.svc.ListLaboratories(r.Context())
	if err != nil {
		h.fail(w, r, err, "Error al obtener laboratorios")
		return
	}
	ok(w, http.StatusOK, labs, "", core.Result{})
}

func (h *Handler) getLaboratory(w http.ResponseWriter, r *http.Request) {
	lab, err := h.svc.GetLaboratory(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err, "Error al obtener laboratorios")
		return
	}
	ok(w, http.StatusOK, lab, "", core.Result{})
}

func (h *Handler) createLaboratory(w http.ResponseWriter, r *http.Request) {
	var in core.LaboratoryInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err, "")
		return
	}
	lab, res, err := h.svc.CreateLaboratory(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, "Error al crear laboratorio")
		return
	}
	ok(w, http.StatusCreated, lab, "Laboratorio creado exitosamente", res)
}

func (h *Handler) updateLaboratory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
		core.LaboratoryInput
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err, "")
		return
	}
	if body.ID == "" {
		writeError(w, http.StatusBadRequest, "ID de laboratorio requerido")
		return
	}
	lab, res, err := h.svc.UpdateLaboratory(r.Context(), body.ID, body.LaboratoryInput)
	if err != nil {
		h.fail(w, r, err, "Error al actualizar laboratorio")
		return
	}
	ok(w, http.StatusOK, lab, "Laboratorio actualizado exitosamente", res)
}

func (h *Handler) deleteLaboratory(w http.ResponseWriter, r *http.Request) {
	id := query(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "ID de laboratorio requerido")
		return
	}
	res, err := h.svc.DeleteLaboratory(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Error al eliminar laboratorio")
		return
	}
	ok(w, http.StatusOK, nil, "Laboratorio eliminado exitosamente", res)
}

func (h *Handler) listMachines(w http.ResponseWriter, r *http.Request) {
	machines, err := h.svc.ListMachines(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err, "Error al obtener máquinas")
		return
	}
	ok(w, http.StatusOK, machines, "", core.Result{})
}

func (h *Handler) createMachine(w http.ResponseWriter, r *http.Request) {
	var in core.MachineInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err, "")
		return
	}
	m, res, err := h.svc.CreateMachine(r.Context(), r.PathValue("id"), in)
	if err != nil {
		h.fail(w, r, err, "Error al agregar máquina")
		return
	}
	ok(w, http.StatusCreated, m, "Máquina agregada exitosamente", res)
}

func (h *Handler) updateMachine(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MachineID string `json:"machineId"`
		core.MachineInput
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err, "")
		return
	}
	if body.MachineID == "" {
		writeError(w, http.StatusBadRequest, "ID de máquina requerido")
		return
	}
	m, res, err := h.svc.UpdateMachine(r.Context(), r.PathValue("id"), body.MachineID, body.MachineInput)
	if err != nil {
		h.fail(w, r, err, "Error al actualizar máquina")
		return
	}
	ok(w, http.StatusOK, m, "Máquina actualizada exitosamente", res)
}

func (h *Handler) deleteMachine(w http.ResponseWriter, r *http.Request) {
	machineID := query(r, "machineId")
	if machineID == "" {
		writeError(w, http.StatusBadRequest, "ID de máquina requerido")
		return
	}
	res, err := h.svc.DeleteMachine(r.Context(), r.PathValue("id"), machineID)
	if err != nil {
		h.fail(w, r, err, "Error al eliminar máquina")
		return
	}
	ok(w, http.StatusOK, nil, "Máquina eliminada exitosamente", res)
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.ListTestRecords(r.Context(), r.PathValue("id"), r.PathValue("machineId"))
	if err != nil {
		h.fail(w, r, err, "Error al obtener registros")
		return
	}
	ok(w, http.StatusOK, records, "", core.Result{})
}

func (h *Handler) createRecord(w http.ResponseWriter, r *http.Request) {
	var in core.TestRecordInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err, "")
		return
	}
	rec, res, err := h.svc.CreateTestRecord(r.Context(), r.PathValue("id"), r.PathValue("machineId"), in)
	if err != nil {
		h.fail(w, r, err, "Error al agregar registro")
		return
	}
	ok(w, http.StatusCreated, rec, "Registro agregado exitosamente", res)
}

func (h *Handler) updateRecord(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RecordID string `json:"recordId"`
		core.TestRecordInput
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err, "")
		return
	}
	if body.RecordID == "" {
		writeError(w, http.StatusBadRequest, "ID de registro requerido")
		return
	}
	rec, res, err := h.svc.UpdateTestRecord(r.Context(), r.PathValue("id"), r.PathValue("machineId"), body.RecordID, body.TestRecordInput)
	if err != nil {
		h.fail(w, r, err, "Error al actualizar registro")
		return
	}
	ok(w, http.StatusOK, rec, "Registro actualizado exitosamente", res)
}

func (h *Handler) deleteRecord(w http.ResponseWriter, r *http.Request) {
	recordID := query(r, "recordId")
	if recordID == "" {
		writeError(w, http.StatusBadRequest, "ID de registro requerido")
		return
	}
	res, err := h.svc.DeleteTestRecord(r.Context(), r.PathValue("id"), r.PathValue("machineId"), recordID)
	if err != nil {
		h.fail(w, r, err, "Error al eliminar registro")
		return
	}
	ok(w, http.StatusOK, nil, "Registro eliminado exitosamente", res)
}
