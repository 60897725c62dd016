// Package repository declares the persistence contracts used by the service
// layer. Implementations live in subpackages (mongo, memory).
//
// All methods translate "no such document" into apperror.NotFound, including
// malformed IDs, so callers never see driver-specific errors for a lookup.
package repository

import (
	"context"

	"github.com/sakif/social-backend/internal/model"
)

// ListOptions filters post listings. Results are always newest first.
type ListOptions struct {
	UserID string // only posts owned by this user when set
}

type UserRepository interface {
	// Create inserts a new user. Returns apperror.ErrConflict when the
	// clerkId or username is already taken.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByClerkID(ctx context.Context, clerkID string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// ListByIDs returns the users that exist among ids, in no particular order.
	ListByIDs(ctx context.Context, ids []string) ([]model.User, error)
	UpdateProfile(ctx context.Context, id string, patch model.ProfilePatch) (*model.User, error)
	// ToggleFollow flips followerID's membership in followeeID's followers
	// (and followeeID in followerID's following). It reports whether the
	// follower now follows the followee.
	ToggleFollow(ctx context.Context, followerID, followeeID string) (bool, error)
}

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	List(ctx context.Context, opts ListOptions) ([]model.Post, error)
	// ListByIDs returns the posts that exist among ids, in no particular order.
	ListByIDs(ctx context.Context, ids []string) ([]model.Post, error)
	// ToggleLike flips userID's membership in the post's like set without a
	// read-then-write window and reports whether the user now likes the post.
	ToggleLike(ctx context.Context, postID, userID string) (bool, error)
	// DeleteCascade removes the post's comments, the notifications that
	// reference it, and then the post itself.
	DeleteCascade(ctx context.Context, postID string) error
}

type CommentRepository interface {
	// Create inserts the comment and appends its ID to the parent post's
	// comment list. Returns apperror.ErrNotFound when the post is gone.
	Create(ctx context.Context, comment *model.Comment) error
	GetByID(ctx context.Context, id string) (*model.Comment, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Comment, error)
	// ListByPost returns a post's comments, newest first.
	ListByPost(ctx context.Context, postID string) ([]model.Comment, error)
	// Delete removes the comment from its post's list and deletes it.
	Delete(ctx context.Context, comment *model.Comment) error
}

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	GetByID(ctx context.Context, id string) (*model.Notification, error)
	// ListByRecipient returns the notifications addressed to userID, newest first.
	ListByRecipient(ctx context.Context, userID string) ([]model.Notification, error)
	Delete(ctx context.Context, id string) error
}

// Store bundles the four repositories of one backend so the composition
// root can swap backends in one place.
type Store interface {
	Users() UserRepository
	Posts() PostRepository
	Comments() CommentRepository
	Notifications() NotificationRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
