package httpapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"alquimist/internal/chat"
	"alquimist/internal/core"
)

// Chat PUT actions.
const (
	actionCreateChannel    = "create_channel"
	actionUpdateUserStatus = "update_user_status"
	actionBackup           = "backup"
	actionCleanupMessages  = "cleanup_messages"
)

func (h *Handler) getChat(w http.ResponseWriter, r *http.Request) {
	switch query(r, "type") {
	case "channels":
		ok(w, http.StatusOK, h.chat.Channels(), "", core.Result{})
		return
	case "users":
		ok(w, http.StatusOK, h.chat.Users(), "", core.Result{})
		return
	case "stats":
		ok(w, http.StatusOK, h.chat.Stats(), "", core.Result{})
		return
	}
	if channelID := query(r, "channelId"); channelID != "" {
		ok(w, http.StatusOK, h.chat.Messages(channelID), "", core.Result{})
		return
	}
	ok(w, http.StatusOK, h.chat.Snapshot(), "", core.Result{})
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var in chat.MessageInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err, "")
		return
	}
	msg, err := h.chat.AddMessage(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, "Error al enviar mensaje")
		return
	}
	ok(w, http.StatusCreated, msg, "Mensaje enviado exitosamente", core.Result{})
}

// chatAction dispatches on the body's action field; an absent action
// creates a channel.
func (h *Handler) chatAction(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		h.fail(w, r, errBadJSON, "")
		return
	}
	var head struct {
		Action string `json:"action"`
	}
	if err := decodeFrom(bytes.NewReader(raw), &head); err != nil {
		h.fail(w, r, err, "")
		return
	}

	switch head.Action {
	case "", actionCreateChannel:
		var in chat.ChannelInput
		if err := decodeFrom(bytes.NewReader(raw), &in); err != nil {
			h.fail(w, r, err, "")
			return
		}
		actor, _ := core.ActorFromContext(r.Context())
		ch, err := h.chat.AddChannel(r.Context(), in, actor.ID)
		if err != nil {
			h.fail(w, r, err, "Error al crear canal")
			return
		}
		h.auditChat(r, "create_channel", fmt.Sprintf("creó el canal %s", ch.Name), ch.ID, ch.Name)
		ok(w, http.StatusCreated, ch, "Canal creado exitosamente", core.Result{})
	case actionUpdateUserStatus:
		var in chat.UserStatusInput
		if err := decodeFrom(bytes.NewReader(raw), &in); err != nil {
			h.fail(w, r, err, "")
			return
		}
		if err := in.Validate(false); err != nil {
			h.fail(w, r, err, "")
			return
		}
		user, err := h.chat.UpdateUserStatus(r.Context(), *in.UserID, *in.IsOnline)
		if err != nil {
			h.fail(w, r, err, "Error al actualizar estado")
			return
		}
		ok(w, http.StatusOK, user, "Estado actualizado exitosamente", core.Result{})
	case actionBackup:
		info, err := h.chat.Backup(r.Context())
		if err != nil {
			h.fail(w, r, err, "Error al crear respaldo")
			return
		}
		ok(w, http.StatusCreated, info, "Respaldo creado exitosamente", core.Result{})
	default:
		writeError(w, http.StatusBadRequest, msgInvalidAction)
	}
}

func (h *Handler) deleteChat(w http.ResponseWriter, r *http.Request) {
	if query(r, "action") == actionCleanupMessages {
		removed := h.chat.CleanupOldMessages(r.Context(), chat.DefaultRetention)
		deleted(w, removed, fmt.Sprintf("Se eliminaron %d mensajes anteriores a 30 días", removed), core.Result{})
		return
	}
	channelID := query(r, "channelId")
	if channelID == "" {
		writeError(w, http.StatusBadRequest, "ID de canal requerido")
		return
	}
	if err := h.chat.DeleteChannel(r.Context(), channelID); err != nil {
		h.fail(w, r, err, "Error al eliminar canal")
		return
	}
	h.auditChat(r, "delete_channel", fmt.Sprintf("eliminó el canal %s", channelID), channelID, "")
	ok(w, http.StatusOK, nil, "Canal eliminado exitosamente", core.Result{})
}

// auditChat records a communication activity for the acting user. A failure
// here is logged only.
func (h *Handler) auditChat(r *http.Request, action, what, relatedID, relatedName string) {
	if _, err := h.svc.RecordCommunication(r.Context(), action, what, relatedID, relatedName); err != nil {
		h.logger.Warn("chat activity not recorded", zap.String("action", action), zap.Error(err))
	}
}
