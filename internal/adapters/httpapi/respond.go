package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"alquimist/internal/core"
	"alquimist/internal/validation"
	"alquimist/pkg/domain"
)

// Response messages shared by several resources.
const (
	msgInvalidData   = "Datos inválidos"
	msgInvalidJSON   = "JSON inválido"
	msgInvalidAction = "Acción inválida"
	msgInternal      = "Error interno del servidor"
	msgCredentials   = "Credenciales inválidas"
	msgProtected     = "No se puede eliminar un canal del sistema"
	msgEmailTaken    = "El email ya está registrado"
)

var notFoundMessages = map[domain.EntityType]string{
	domain.EntityLaboratory:    "Laboratorio no encontrado",
	domain.EntityMachine:       "Máquina no encontrada",
	domain.EntityTestRecord:    "Registro no encontrado",
	domain.EntityInventoryItem: "Item no encontrado",
	domain.EntityClient:        "Cliente no encontrado",
	domain.EntityClientTest:    "Prueba no encontrada",
	domain.EntityAssignment:    "Asignación no encontrada",
	domain.EntityUser:          "Usuario no encontrado",
	domain.EntityChannel:       "Canal no encontrado",
	domain.EntityChatUser:      "Usuario no encontrado",
}

// Pagination accompanies paged list responses.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// Envelope wraps every successful response.
type Envelope struct {
	Success    bool               `json:"success"`
	Data       any                `json:"data,omitempty"`
	User       any                `json:"user,omitempty"`
	Message    string             `json:"message,omitempty"`
	Pagination *Pagination        `json:"pagination,omitempty"`
	Deleted    *int               `json:"deletedCount,omitempty"`
	Warnings   []domain.Violation `json:"warnings,omitempty"`
}

// ErrorBody is the failure payload.
type ErrorBody struct {
	Error   string                  `json:"error"`
	Details []validation.FieldError `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorBody{Error: message})
}

func ok(w http.ResponseWriter, status int, data any, message string, res core.Result) {
	writeJSON(w, status, Envelope{Success: true, Data: data, Message: message, Warnings: res.Violations})
}

// deleted reports a bulk removal count both under data and at the top level.
func deleted(w http.ResponseWriter, count int, message string, res core.Result) {
	writeJSON(w, http.StatusOK, Envelope{
		Success:  true,
		Data:     map[string]int{"deletedCount": count},
		Message:  message,
		Deleted:  &count,
		Warnings: res.Violations,
	})
}

// errBadJSON marks a body that is not a JSON object.
var errBadJSON = errors.New("malformed request body")

// decode reads a JSON body into dst. Type mismatches come back as a
// *validation.Error naming the offending field; an empty body is accepted.
func decode(r *http.Request, dst any) error {
	return decodeFrom(r.Body, dst)
}

func decodeFrom(body io.Reader, dst any) error {
	err := json.NewDecoder(body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return &validation.Error{Fields: []validation.FieldError{{Field: field, Message: validation.MsgInvalidType}}}
	}
	return errBadJSON
}

// fail maps err onto the response taxonomy. Anything unclassified is logged
// and reported with fallback, never with the error text.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var (
		invalid  *validation.Error
		notFound domain.ErrNotFound
		conflict domain.ErrConflict
		rules    domain.RuleViolationError
	)
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: msgInvalidData, Details: invalid.Fields})
	case errors.Is(err, errBadJSON):
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: msgInvalidData, Details: []validation.FieldError{{Field: "body", Message: msgInvalidJSON}}})
	case errors.As(err, &notFound):
		msg, known := notFoundMessages[notFound.Entity]
		if !known {
			msg = "Registro no encontrado"
		}
		writeError(w, http.StatusNotFound, msg)
	case errors.As(err, &conflict):
		msg := msgInvalidData
		if conflict.Field == "email" {
			msg = msgEmailTaken
		}
		writeError(w, http.StatusBadRequest, msg)
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, msgCredentials)
	case errors.Is(err, domain.ErrProtected):
		writeError(w, http.StatusForbidden, msgProtected)
	case errors.As(err, &rules):
		details := make([]validation.FieldError, 0, len(rules.Result.Violations))
		for _, v := range rules.Result.Violations {
			details = append(details, validation.FieldError{Field: v.Rule, Message: v.Message})
		}
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: msgInvalidData, Details: details})
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// query returns the trimmed query parameter.
func query(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}
