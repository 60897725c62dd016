package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/social-backend/internal/apperror"
	"github.com/sakif/social-backend/internal/model"
)

func TestCommentCreate_NotifiesPostOwner(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	p := e.post(t, alice, "hello")

	c, err := e.comments.Create(ctx, bob.ClerkID, p.ID, "  nice post  ")
	require.NoError(t, err)
	assert.Equal(t, "nice post", c.Content)
	require.NotNil(t, c.User)
	assert.Equal(t, "bob", c.User.Username)

	got, err := e.posts.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, c.ID, got.Comments[0].ID)

	notes := e.notificationsFor(t, alice)
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotificationComment, notes[0].Type)
	assert.Equal(t, p.ID, notes[0].PostID)
	assert.Equal(t, c.ID, notes[0].CommentID)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.CommentsCreated))
}

func TestCommentCreate_OnOwnPostDoesNotNotify(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")
	p := e.post(t, alice, "hello")

	_, err := e.comments.Create(context.Background(), alice.ClerkID, p.ID, "replying to myself")
	require.NoError(t, err)
	assert.Empty(t, e.notificationsFor(t, alice))
	assert.Empty(t, e.publisher.events)
}

func TestCommentCreate_Errors(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")
	p := e.post(t, alice, "hello")

	tests := []struct {
		name    string
		subject string
		postID  string
		content string
		want    error
	}{
		{"empty content", alice.ClerkID, p.ID, "   ", apperror.ErrValidation},
		{"unknown post", alice.ClerkID, "nope", "hi", apperror.ErrNotFound},
		{"unknown user", "clerk_ghost", p.ID, "hi", apperror.ErrNotFound},
		{"anonymous", "", p.ID, "hi", apperror.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.comments.Create(context.Background(), tt.subject, tt.postID, tt.content)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestCommentListByPost(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	p := e.post(t, alice, "hello")

	first, err := e.comments.Create(ctx, bob.ClerkID, p.ID, "first")
	require.NoError(t, err)
	second, err := e.comments.Create(ctx, alice.ClerkID, p.ID, "second")
	require.NoError(t, err)

	list, err := e.comments.ListByPost(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")
	assert.Equal(t, "alice", list[0].User.Username)
	assert.Equal(t, first.ID, list[1].ID)

	_, err = e.comments.ListByPost(ctx, "nope")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestCommentDelete(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	p := e.post(t, alice, "hello")
	c, err := e.comments.Create(ctx, bob.ClerkID, p.ID, "nice")
	require.NoError(t, err)

	t.Run("non-owner is forbidden", func(t *testing.T) {
		err := e.comments.Delete(ctx, alice.ClerkID, c.ID)
		assert.True(t, errors.Is(err, apperror.ErrForbidden))

		_, err = e.store.Comments().GetByID(ctx, c.ID)
		assert.NoError(t, err)
	})

	t.Run("owner removes comment and detaches it", func(t *testing.T) {
		require.NoError(t, e.comments.Delete(ctx, bob.ClerkID, c.ID))

		got, err := e.posts.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Comments)
		assert.Empty(t, e.notificationsFor(t, alice), "comment notification goes with the comment")
	})

	t.Run("already deleted", func(t *testing.T) {
		err := e.comments.Delete(ctx, bob.ClerkID, c.ID)
		assert.True(t, errors.Is(err, apperror.ErrNotFound))
	})
}
