package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/social-backend/internal/model"
	"github.com/sakif/social-backend/internal/service"
)

// UserHandler serves profiles, first-login sync and the follow graph.
type UserHandler struct {
	service *service.UserService
	logger  *slog.Logger
}

func NewUserHandler(svc *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{service: svc, logger: logger}
}

// HandleProfile returns a public profile.
//
// HTTP: GET /api/users/profile/{username}
func (h *UserHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Profile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// HandleSync creates the local user for the signed-in provider account.
// The frontend calls it after every sign-in; only the first call creates.
//
// HTTP: POST /api/users/sync
func (h *UserHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	user, created, err := h.service.Sync(r.Context(), subject(r))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	if !created {
		writeJSON(w, http.StatusOK, map[string]any{"user": user, "message": "User already exists"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user, "message": "User created successfully"})
}

// HandleMe returns the caller's own record.
//
// HTTP: GET or POST /api/users/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Current(r.Context(), subject(r))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// HandleUpdateProfile applies a partial profile update.
//
// HTTP: PUT /api/users/profile
// REQUEST BODY: any of {"firstName","lastName","bio","location"}
func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch model.ProfilePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		fail(h.logger, w, r, err)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), subject(r), patch)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// HandleToggleFollow follows or unfollows another user.
//
// HTTP: POST /api/users/follow/{targetUserId}
func (h *UserHandler) HandleToggleFollow(w http.ResponseWriter, r *http.Request) {
	following, err := h.service.ToggleFollow(r.Context(), subject(r), chi.URLParam(r, "targetUserId"))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	message := "User unfollowed successfully"
	if following {
		message = "User followed successfully"
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": message, "following": following})
}
