package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/social-backend/internal/apperror"
	"github.com/sakif/social-backend/internal/model"
	"github.com/sakif/social-backend/internal/repository"
)

type NotificationService struct {
	users         repository.UserRepository
	posts         repository.PostRepository
	comments      repository.CommentRepository
	notifications repository.NotificationRepository
	logger        *slog.Logger
}

func NewNotificationService(store repository.Store, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		users:         store.Users(),
		posts:         store.Posts(),
		comments:      store.Comments(),
		notifications: store.Notifications(),
		logger:        logger,
	}
}

// List returns the caller's notifications newest first, with the sender,
// post and comment resolved. References to deleted posts or comments
// resolve to nil.
func (s *NotificationService) List(ctx context.Context, subject string) ([]model.NotificationView, error) {
	user, err := resolveActor(ctx, s.users, subject)
	if err != nil {
		return nil, err
	}

	notes, err := s.notifications.ListByRecipient(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}

	var senders, commentIDs []string
	postIDs := make(map[string]struct{})
	for i := range notes {
		senders = append(senders, notes[i].From)
		if notes[i].PostID != "" {
			postIDs[notes[i].PostID] = struct{}{}
		}
		if notes[i].CommentID != "" {
			commentIDs = append(commentIDs, notes[i].CommentID)
		}
	}

	users, err := usersByID(ctx, s.users, senders)
	if err != nil {
		return nil, fmt.Errorf("loading senders: %w", err)
	}
	posts, err := s.postsByID(ctx, postIDs)
	if err != nil {
		return nil, err
	}
	comments := make(map[string]*model.Comment)
	if len(commentIDs) > 0 {
		list, err := s.comments.ListByIDs(ctx, dedupe(commentIDs))
		if err != nil {
			return nil, fmt.Errorf("loading comments: %w", err)
		}
		for i := range list {
			comments[list[i].ID] = &list[i]
		}
	}

	views := make([]model.NotificationView, 0, len(notes))
	for i := range notes {
		n := &notes[i]
		v := model.NotificationView{
			ID:        n.ID,
			From:      summaryOf(users, n.From),
			To:        n.To,
			Type:      n.Type,
			CreatedAt: n.CreatedAt,
		}
		if p, ok := posts[n.PostID]; ok {
			v.Post = &model.PostSummary{ID: p.ID, Content: p.Content, Image: p.Image}
		}
		if c, ok := comments[n.CommentID]; ok {
			v.Comment = &model.CommentSummary{ID: c.ID, Content: c.Content}
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *NotificationService) postsByID(ctx context.Context, ids map[string]struct{}) (map[string]*model.Post, error) {
	if len(ids) == 0 {
		return map[string]*model.Post{}, nil
	}
	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	posts, err := s.posts.ListByIDs(ctx, list)
	if err != nil {
		return nil, fmt.Errorf("loading posts: %w", err)
	}
	out := make(map[string]*model.Post, len(posts))
	for i := range posts {
		out[posts[i].ID] = &posts[i]
	}
	return out, nil
}

// Delete removes one of the caller's notifications. Notifications addressed
// to someone else are reported as not found.
func (s *NotificationService) Delete(ctx context.Context, subject, notificationID string) error {
	user, err := resolveActor(ctx, s.users, subject)
	if err != nil {
		return err
	}

	n, err := s.notifications.GetByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFoundMessage("Notification not found")
		}
		return fmt.Errorf("getting notification: %w", err)
	}
	if n.To != user.ID {
		return apperror.NotFoundMessage("Notification not found")
	}

	if err := s.notifications.Delete(ctx, n.ID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFoundMessage("Notification not found")
		}
		return fmt.Errorf("deleting notification: %w", err)
	}

	s.logger.Debug("notification deleted", slog.String("notification_id", n.ID))
	return nil
}
