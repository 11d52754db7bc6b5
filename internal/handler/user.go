package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/foodgram/internal/service"
)

// UserHandler serves /api/users/: registration, profiles, password and
// avatar changes, and subscriptions.
type UserHandler struct {
	users   *service.UserService
	follows *service.FollowService
	logger  *slog.Logger
}

func NewUserHandler(users *service.UserService, follows *service.FollowService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, follows: follows, logger: logger}
}

// HandleList returns one page of users.
//
// HTTP: GET /api/users/?page=N&limit=M
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.users.List(r.Context(), viewerID(r), page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPagedResponse(r, result))
}

// HandleRegister creates an account.
//
// HTTP: POST /api/users/
// REQUEST BODY: {"email","username","first_name","last_name","password"}
//
// The response is the new user without the password (201 Created).
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.users.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         user.ID,
		"email":      user.Email,
		"username":   user.Username,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
	})
}

// HandleGet returns a public profile.
//
// HTTP: GET /api/users/{id}/
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "user")
	if err != nil {
		writeError(w, err)
		return
	}
	profile, err := h.users.Profile(r.Context(), viewerID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleMe returns the caller's own profile.
//
// HTTP: GET /api/users/me/
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	profile, err := h.users.Me(r.Context(), viewerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleSetPassword changes the caller's password.
//
// HTTP: POST /api/users/set_password/
// REQUEST BODY: {"current_password": "...", "new_password": "..."}
func (h *UserHandler) HandleSetPassword(w http.ResponseWriter, r *http.Request) {
	var in service.SetPasswordInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	if err := h.users.SetPassword(r.Context(), viewerID(r), in); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetAvatar stores a new avatar.
//
// HTTP: PUT /api/users/me/avatar/
// REQUEST BODY: {"avatar": "data:image/png;base64,..."}
// RESPONSE:     {"avatar": "<url>"}
func (h *UserHandler) HandleSetAvatar(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Avatar string `json:"avatar"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	url, err := h.users.SetAvatar(r.Context(), viewerID(r), body.Avatar)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"avatar": url})
}

// HandleDeleteAvatar clears the avatar.
//
// HTTP: DELETE /api/users/me/avatar/
func (h *UserHandler) HandleDeleteAvatar(w http.ResponseWriter, r *http.Request) {
	if err := h.users.DeleteAvatar(r.Context(), viewerID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSubscribe follows a user.
//
// HTTP: POST /api/users/{id}/subscribe/?recipes_limit=N
//
// The response is the author as listed on the subscriptions page (201).
func (h *UserHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	authorID, err := pathID(r, "id", "user")
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "recipes_limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	sub, err := h.follows.Subscribe(r.Context(), viewerID(r), authorID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// HandleUnsubscribe stops following a user.
//
// HTTP: DELETE /api/users/{id}/subscribe/
func (h *UserHandler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	authorID, err := pathID(r, "id", "user")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.follows.Unsubscribe(r.Context(), viewerID(r), authorID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSubscriptions lists the authors the caller follows.
//
// HTTP: GET /api/users/subscriptions/?page=N&limit=M&recipes_limit=K
func (h *UserHandler) HandleSubscriptions(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "recipes_limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.follows.Subscriptions(r.Context(), viewerID(r), page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPagedResponse(r, result))
}
