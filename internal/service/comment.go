package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/social-backend/internal/apperror"
	"github.com/sakif/social-backend/internal/metrics"
	"github.com/sakif/social-backend/internal/model"
	"github.com/sakif/social-backend/internal/repository"
)

type CommentService struct {
	users    repository.UserRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	notifier *Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewCommentService(store repository.Store, notifier *Notifier, m *metrics.Metrics, logger *slog.Logger) *CommentService {
	return &CommentService{
		users:    store.Users(),
		posts:    store.Posts(),
		comments: store.Comments(),
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// ListByPost returns a post's comments newest first with authors resolved.
func (s *CommentService) ListByPost(ctx context.Context, postID string) ([]model.CommentView, error) {
	if _, err := s.getPost(ctx, postID); err != nil {
		return nil, err
	}

	comments, err := s.comments.ListByPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}

	ids := make([]string, 0, len(comments))
	for i := range comments {
		ids = append(ids, comments[i].UserID)
	}
	users, err := usersByID(ctx, s.users, ids)
	if err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}

	views := make([]model.CommentView, 0, len(comments))
	for i := range comments {
		views = append(views, commentView(&comments[i], users))
	}
	return views, nil
}

// Create adds a comment by the caller and notifies the post owner.
func (s *CommentService) Create(ctx context.Context, subject, postID, content string) (*model.CommentView, error) {
	content, err := checkLength("content", content, MaxContentLength)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, apperror.ValidationFailed("content", "Comment content is required")
	}

	user, err := resolveActor(ctx, s.users, subject)
	if err != nil {
		return nil, err
	}
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{UserID: user.ID, PostID: post.ID, Content: content}
	if err := s.comments.Create(ctx, comment); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("Post not found")
		}
		return nil, fmt.Errorf("creating comment: %w", err)
	}

	s.metrics.CommentCreated()
	s.notifier.Notify(ctx, user.ID, post.UserID, model.NotificationComment, post.ID, comment.ID)

	view := commentView(comment, map[string]*model.User{user.ID: user})
	return &view, nil
}

// Delete removes the caller's own comment.
func (s *CommentService) Delete(ctx context.Context, subject, commentID string) error {
	user, err := resolveActor(ctx, s.users, subject)
	if err != nil {
		return err
	}

	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFoundMessage("Comment not found")
		}
		return fmt.Errorf("getting comment: %w", err)
	}
	if comment.UserID != user.ID {
		return apperror.Forbidden("You can only delete your own comments")
	}

	if err := s.comments.Delete(ctx, comment); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFoundMessage("Comment not found")
		}
		return fmt.Errorf("deleting comment: %w", err)
	}

	s.logger.Info("comment deleted",
		slog.String("comment_id", comment.ID),
		slog.String("post_id", comment.PostID),
	)
	return nil
}

func (s *CommentService) getPost(ctx context.Context, postID string) (*model.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("Post not found")
		}
		return nil, fmt.Errorf("getting post: %w", err)
	}
	return post, nil
}
