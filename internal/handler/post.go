package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/social-backend/internal/apperror"
	"github.com/sakif/social-backend/internal/media"
	"github.com/sakif/social-backend/internal/service"
)

// multipartOverhead is the allowance for form fields and part headers on top
// of the image itself.
const multipartOverhead = 1 << 20

// PostHandler serves the feed and the post lifecycle.
type PostHandler struct {
	service *service.PostService
	logger  *slog.Logger
}

func NewPostHandler(svc *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{service: svc, logger: logger}
}

// HandleList returns every post, newest first.
//
// HTTP: GET /api/posts
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.List(r.Context())
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// HandleGet returns one post.
//
// HTTP: GET /api/posts/{postId}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.Get(r.Context(), chi.URLParam(r, "postId"))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post": post})
}

// HandleListByUser returns a user's posts. A user without posts is a 404.
//
// HTTP: GET /api/posts/user/{username}
func (h *PostHandler) HandleListByUser(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

// HandleCreate publishes a post.
//
// HTTP: POST /api/posts
//
// REQUEST BODY:
// multipart/form-data with a "content" field and an optional "image" file,
// or a JSON body {"content": "..."} for text-only posts.
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	content, image, err := readPostForm(w, r)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	post, err := h.service.Create(r.Context(), subject(r), content, image)
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"post":    post,
		"message": "Post created successfully",
	})
}

// HandleToggleLike likes or unlikes a post.
//
// HTTP: POST /api/posts/{postId}/like
func (h *PostHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	liked, err := h.service.ToggleLike(r.Context(), subject(r), chi.URLParam(r, "postId"))
	if err != nil {
		fail(h.logger, w, r, err)
		return
	}

	message := "Post unliked successfully"
	if liked {
		message = "Post liked successfully"
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": message, "liked": liked})
}

// HandleDelete removes the caller's own post with its comments.
//
// HTTP: DELETE /api/posts/{postId}
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), subject(r), chi.URLParam(r, "postId")); err != nil {
		fail(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Post deleted successfully"})
}

// readPostForm extracts content and image bytes from either body encoding.
// The image is read at most one byte past MaxImageSize so oversize uploads
// are rejected without buffering them whole.
func readPostForm(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var body struct {
			Content string `json:"content"`
		}
		if err := decodeJSON(w, r, &body); err != nil {
			return "", nil, err
		}
		return body.Content, nil, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, media.MaxImageSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, apperror.ValidationFailed("image", "image must be 5MB or smaller")
		}
		return "", nil, apperror.ValidationFailed("body", "Invalid multipart body")
	}
	content := r.FormValue("content")

	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return content, nil, nil
	}
	if err != nil {
		return "", nil, apperror.ValidationFailed("image", "Invalid image upload")
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, media.MaxImageSize+1))
	if err != nil {
		return "", nil, apperror.ValidationFailed("image", "Invalid image upload")
	}
	return content, image, nil
}
