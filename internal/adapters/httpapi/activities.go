package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"alquimist/internal/core"
	"alquimist/internal/validation"
	"alquimist/pkg/domain"
)

// intParam parses key as an integer, falling back to def when absent.
func intParam(r *http.Request, c *validation.Collector, key string, def int) int {
	raw := query(r, key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.Add(key, "Debe ser un número entero")
		return def
	}
	return n
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	c := validation.New()
	filter := core.ActivityFilter{
		UserID:   query(r, "userId"),
		Category: domain.ActivityCategory(query(r, "category")),
		Limit:    intParam(r, c, "limit", core.DefaultActivityLimit),
		Offset:   intParam(r, c, "offset", 0),
	}
	if err := c.Err(); err != nil {
		h.fail(w, r, err, "")
		return
	}
	page, err := h.svc.ListActivities(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err, "Error al obtener actividades")
		return
	}
	writeJSON(w, http.StatusOK, Envelope{
		Success: true,
		Data:    page.Items,
		Pagination: &Pagination{
			Total:   page.Total,
			Limit:   page.Limit,
			Offset:  page.Offset,
			HasMore: page.HasMore,
		},
	})
}

func (h *Handler) recordActivity(w http.ResponseWriter, r *http.Request) {
	var in core.ActivityInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err, "")
		return
	}
	activity, res, err := h.svc.RecordActivity(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, "Error al registrar actividad")
		return
	}
	ok(w, http.StatusCreated, activity, "Actividad registrada exitosamente", res)
}

func (h *Handler) purgeActivities(w http.ResponseWriter, r *http.Request) {
	c := validation.New()
	days := intParam(r, c, "days", core.DefaultPurgeDays)
	if err := c.Err(); err != nil {
		h.fail(w, r, err, "")
		return
	}
	removed, res, err := h.svc.PurgeActivities(r.Context(), days)
	if err != nil {
		h.fail(w, r, err, "Error al limpiar actividades")
		return
	}
	if days < 0 {
		days = core.DefaultPurgeDays
	}
	deleted(w, removed, fmt.Sprintf("Se eliminaron %d actividades anteriores a %d días", removed, days), res)
}
