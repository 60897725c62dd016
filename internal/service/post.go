package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/social-backend/internal/apperror"
	"github.com/sakif/social-backend/internal/media"
	"github.com/sakif/social-backend/internal/metrics"
	"github.com/sakif/social-backend/internal/model"
	"github.com/sakif/social-backend/internal/repository"
)

// PostService owns the feed and the post lifecycle.
type PostService struct {
	users    repository.UserRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	media    media.Uploader
	notifier *Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewPostService builds a PostService. uploader may be nil, in which case
// posts with images are rejected as an upstream failure.
func NewPostService(store repository.Store, uploader media.Uploader, notifier *Notifier, m *metrics.Metrics, logger *slog.Logger) *PostService {
	return &PostService{
		users:    store.Users(),
		posts:    store.Posts(),
		comments: store.Comments(),
		media:    uploader,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// List returns every post, newest first, with owners and comments resolved.
func (s *PostService) List(ctx context.Context) ([]model.PostView, error) {
	posts, err := s.posts.List(ctx, repository.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return s.assemble(ctx, posts)
}

func (s *PostService) Get(ctx context.Context, id string) (*model.PostView, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("Post not found")
		}
		return nil, fmt.Errorf("getting post: %w", err)
	}

	views, err := s.assemble(ctx, []model.Post{*post})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// ListByUsername returns a user's posts newest first. A user with no posts
// is reported as not found, the same as an unknown user but with its own
// message.
func (s *PostService) ListByUsername(ctx context.Context, username string) ([]model.PostView, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("User not found")
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}

	posts, err := s.posts.List(ctx, repository.ListOptions{UserID: user.ID})
	if err != nil {
		return nil, fmt.Errorf("listing user posts: %w", err)
	}
	if len(posts) == 0 {
		return nil, apperror.NotFoundMessage("No posts found for this user")
	}
	return s.assemble(ctx, posts)
}

// Create publishes a post for the caller. At least one of content and image
// is required. An uploaded image is removed again if the post cannot be
// stored.
func (s *PostService) Create(ctx context.Context, subject, content string, image []byte) (*model.Post, error) {
	content, err := checkLength("content", content, MaxContentLength)
	if err != nil {
		return nil, err
	}
	if content == "" && len(image) == 0 {
		return nil, apperror.ValidationFailed("content", "Post content or image is required")
	}

	var contentType string
	if len(image) > 0 {
		if contentType, err = media.DetectImage(image); err != nil {
			return nil, err
		}
	}

	user, err := resolveActor(ctx, s.users, subject)
	if err != nil {
		return nil, err
	}

	post := &model.Post{UserID: user.ID, Content: content}
	if len(image) > 0 {
		if s.media == nil {
			return nil, apperror.Upstream("Could not upload image", errors.New("media uploads are not configured"))
		}
		asset, err := s.media.Upload(ctx, image, contentType)
		if err != nil {
			s.logger.Error("image upload failed", slog.String("error", err.Error()))
			return nil, apperror.Upstream("Could not upload image", err)
		}
		post.Image = asset.URL
		post.ImageID = asset.ID
	}

	if err := s.posts.Create(ctx, post); err != nil {
		if post.ImageID != "" {
			s.discardImage(ctx, post.ImageID)
		}
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.metrics.PostCreated()
	s.logger.Info("post created",
		slog.String("post_id", post.ID),
		slog.String("user_id", user.ID),
		slog.Bool("has_image", post.Image != ""),
	)
	return post, nil
}

// ToggleLike flips the caller's like on a post and reports whether the post
// is now liked. Liking notifies the owner; unliking leaves the earlier
// notification in place.
func (s *PostService) ToggleLike(ctx context.Context, subject, postID string) (bool, error) {
	if postID == "" {
		return false, apperror.ValidationFailed("postId", "Post Id is required")
	}

	user, err := resolveActor(ctx, s.users, subject)
	if err != nil {
		return false, err
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, apperror.NotFoundMessage("Post not found")
		}
		return false, fmt.Errorf("getting post: %w", err)
	}

	liked, err := s.posts.ToggleLike(ctx, post.ID, user.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, apperror.NotFoundMessage("Post not found")
		}
		return false, fmt.Errorf("toggling like: %w", err)
	}

	s.metrics.LikeToggled(liked)
	if liked {
		s.notifier.Notify(ctx, user.ID, post.UserID, model.NotificationLike, post.ID, "")
	}
	return liked, nil
}

// Delete removes the caller's own post together with its comments and the
// notifications that point at it.
func (s *PostService) Delete(ctx context.Context, subject, postID string) error {
	if postID == "" {
		return apperror.ValidationFailed("postId", "Post Id is required")
	}

	user, err := resolveActor(ctx, s.users, subject)
	if err != nil {
		return err
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFoundMessage("Post not found")
		}
		return fmt.Errorf("getting post: %w", err)
	}
	if post.UserID != user.ID {
		return apperror.Forbidden("You can only delete your own posts")
	}

	if err := s.posts.DeleteCascade(ctx, post.ID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFoundMessage("Post not found")
		}
		return fmt.Errorf("deleting post: %w", err)
	}
	if post.ImageID != "" {
		s.discardImage(ctx, post.ImageID)
	}

	s.logger.Info("post deleted",
		slog.String("post_id", post.ID),
		slog.Int("comments", len(post.Comments)),
	)
	return nil
}

// discardImage removes an asset on a best-effort basis.
func (s *PostService) discardImage(ctx context.Context, id string) {
	if s.media == nil {
		return
	}
	if err := s.media.Delete(ctx, id); err != nil {
		s.logger.Warn("failed to remove image asset",
			slog.String("image_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// assemble resolves owners, comments and comment authors for posts with one
// query per collection. Comments keep the post's order (oldest first);
// comment ids whose comment no longer exists are skipped.
func (s *PostService) assemble(ctx context.Context, posts []model.Post) ([]model.PostView, error) {
	var commentIDs, userIDs []string
	for i := range posts {
		userIDs = append(userIDs, posts[i].UserID)
		commentIDs = append(commentIDs, posts[i].Comments...)
	}

	var comments []model.Comment
	if len(commentIDs) > 0 {
		var err error
		comments, err = s.comments.ListByIDs(ctx, dedupe(commentIDs))
		if err != nil {
			return nil, fmt.Errorf("loading comments: %w", err)
		}
	}
	commentByID := make(map[string]*model.Comment, len(comments))
	for i := range comments {
		commentByID[comments[i].ID] = &comments[i]
		userIDs = append(userIDs, comments[i].UserID)
	}

	users, err := usersByID(ctx, s.users, userIDs)
	if err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}

	views := make([]model.PostView, 0, len(posts))
	for i := range posts {
		p := &posts[i]
		cv := make([]model.CommentView, 0, len(p.Comments))
		for _, id := range p.Comments {
			c, ok := commentByID[id]
			if !ok || c.PostID != p.ID {
				continue
			}
			cv = append(cv, commentView(c, users))
		}
		views = append(views, model.PostView{
			ID:        p.ID,
			User:      summaryOf(users, p.UserID),
			Content:   p.Content,
			Image:     p.Image,
			Likes:     nonNil(p.Likes),
			Comments:  cv,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		})
	}
	return views, nil
}

func commentView(c *model.Comment, users map[string]*model.User) model.CommentView {
	return model.CommentView{
		ID:        c.ID,
		User:      summaryOf(users, c.UserID),
		PostID:    c.PostID,
		Content:   c.Content,
		Likes:     nonNil(c.Likes),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
