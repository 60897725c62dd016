package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/social-backend/internal/service"
)

type NotificationHandler struct {
	service *service.NotificationService
	logger  *slog.Logger
}

func NewNotificationHandler(svc *service.NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{service: svc, logger: logger}
}

// HandleList is GET /api/notifications.
func (h *NotificationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.List(r.Context(), subject(r))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notes})
}

// HandleDelete is DELETE /api/notifications/{notificationId}.
func (h *NotificationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	err := h.service.Delete(r.Context(), subject(r), chi.URLParam(r, "notificationId"))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Notification deleted successfully"})
}
