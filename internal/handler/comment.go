package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/social-backend/internal/service"
)

type CommentHandler struct {
	service *service.CommentService
	logger  *slog.Logger
}

func NewCommentHandler(svc *service.CommentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{service: svc, logger: logger}
}

// HandleList is GET /api/comments/post/{postId}.
func (h *CommentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	comments, err := h.service.ListByPost(r.Context(), chi.URLParam(r, "postId"))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

// HandleCreate is POST /api/comments/post/{postId} with body {"content": "..."}.
func (h *CommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		fail(h.logger, w, r, err)
		return
	}

	comment, err := h.service.Create(r.Context(), subject(r), chi.URLParam(r, "postId"), body.Content)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"comment": comment})
}

// HandleDelete is DELETE /api/comments/{commentId}.
func (h *CommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), subject(r), chi.URLParam(r, "commentId")); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Comment deleted successfully"})
}
