package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"alquimist/internal/core"
	"alquimist/pkg/domain"
)

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context(), core.UserFilter{
		Role:       query(r, "role"),
		LabID:      query(r, "labId"),
		OnlineOnly: query(r, "onlineOnly") == "true",
	})
	if err != nil {
		h.fail(w, r, err, "Error al obtener usuarios")
		return
	}
	ok(w, http.StatusOK, users, "", core.Result{})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err, "Error al obtener usuarios")
		return
	}
	ok(w, http.StatusOK, user, "", core.Result{})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in core.UserInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err, "")
		return
	}
	user, res, err := h.svc.CreateUser(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, "Error al crear usuario")
		return
	}
	h.syncRoster(r, user)
	ok(w, http.StatusCreated, user, "Usuario creado exitosamente", res)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
		core.UserInput
	}
	if err := decode(r, &body); err != nil {
		h.fail(w, r, err, "")
		return
	}
	if body.ID == "" {
		writeError(w, http.StatusBadRequest, "ID de usuario requerido")
		return
	}
	user, res, err := h.svc.UpdateUser(r.Context(), body.ID, body.UserInput)
	if err != nil {
		h.fail(w, r, err, "Error al actualizar usuario")
		return
	}
	h.syncRoster(r, user)
	ok(w, http.StatusOK, user, "Usuario actualizado exitosamente", res)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := query(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "ID de usuario requerido")
		return
	}
	res, err := h.svc.DeleteUser(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Error al eliminar usuario")
		return
	}
	if h.chat != nil {
		h.chat.RemoveUser(r.Context(), id)
	}
	ok(w, http.StatusOK, nil, "Usuario eliminado exitosamente", res)
}

// login answers with the profile under both data and user.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in core.LoginInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err, "")
		return
	}
	profile, res, err := h.svc.Authenticate(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, msgInternal)
		return
	}
	h.syncRoster(r, profile)
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: profile, User: profile, Message: "Login exitoso", Warnings: res.Violations})
}

// logout marks the user named by userId, or the acting user, offline. It
// always acknowledges.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	userID := query(r, "userId")
	if actor, found := core.ActorFromContext(r.Context()); found && userID == "" {
		userID = actor.ID
	}
	if userID != "" {
		if _, err := h.svc.Logout(r.Context(), userID); err != nil {
			h.fail(w, r, err, msgInternal)
			return
		}
		h.markOffline(r, userID)
	}
	ok(w, http.StatusOK, nil, "Logout exitoso", core.Result{})
}

// markOffline mirrors a logout onto the chat roster.
func (h *Handler) markOffline(r *http.Request, userID string) {
	if h.chat == nil {
		return
	}
	if _, err := h.chat.UpdateUserStatus(r.Context(), userID, false); err != nil && !domain.IsNotFound(err) {
		h.logger.Warn("chat presence not updated", zap.String("user", userID), zap.Error(err))
	}
}

// syncRoster copies a user profile, presence included, onto the chat roster.
func (h *Handler) syncRoster(r *http.Request, user domain.UserProfile) {
	if h.chat == nil {
		return
	}
	h.chat.UpsertUser(r.Context(), domain.ChatUser{
		ID:       user.ID,
		Name:     user.Name,
		Role:     user.Role,
		Email:    user.Email,
		IsOnline: user.IsOnline,
		LabID:    user.LabID,
	})
}
