package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/social-backend/internal/apperror"
	"github.com/sakif/social-backend/internal/model"
)

func TestNotificationList_ResolvesReferences(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	p := e.post(t, alice, "hello")

	_, err := e.posts.ToggleLike(ctx, bob.ClerkID, p.ID)
	require.NoError(t, err)
	c, err := e.comments.Create(ctx, bob.ClerkID, p.ID, "nice")
	require.NoError(t, err)
	_, err = e.users.ToggleFollow(ctx, bob.ClerkID, alice.ID)
	require.NoError(t, err)

	views, err := e.notifications.List(ctx, alice.ClerkID)
	require.NoError(t, err)
	require.Len(t, views, 3)

	follow, comment, like := views[0], views[1], views[2]

	assert.Equal(t, model.NotificationFollow, follow.Type)
	assert.Nil(t, follow.Post)
	assert.Nil(t, follow.Comment)

	assert.Equal(t, model.NotificationComment, comment.Type)
	require.NotNil(t, comment.Comment)
	assert.Equal(t, c.ID, comment.Comment.ID)
	assert.Equal(t, "nice", comment.Comment.Content)

	assert.Equal(t, model.NotificationLike, like.Type)
	require.NotNil(t, like.Post)
	assert.Equal(t, p.ID, like.Post.ID)
	assert.Equal(t, "hello", like.Post.Content)

	for _, v := range views {
		require.NotNil(t, v.From)
		assert.Equal(t, "bob", v.From.Username)
		assert.Equal(t, alice.ID, v.To)
	}
}

func TestNotificationList_Empty(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")

	views, err := e.notifications.List(context.Background(), alice.ClerkID)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestNotificationDelete(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	_, err := e.users.ToggleFollow(ctx, bob.ClerkID, alice.ID)
	require.NoError(t, err)

	notes := e.notificationsFor(t, alice)
	require.Len(t, notes, 1)
	id := notes[0].ID

	t.Run("someone else's is not found", func(t *testing.T) {
		err := e.notifications.Delete(ctx, bob.ClerkID, id)
		assert.True(t, errors.Is(err, apperror.ErrNotFound))
		assert.Len(t, e.notificationsFor(t, alice), 1)
	})

	t.Run("recipient deletes", func(t *testing.T) {
		require.NoError(t, e.notifications.Delete(ctx, alice.ClerkID, id))
		assert.Empty(t, e.notificationsFor(t, alice))
	})

	t.Run("unknown id", func(t *testing.T) {
		err := e.notifications.Delete(ctx, alice.ClerkID, id)
		assert.True(t, errors.Is(err, apperror.ErrNotFound))
	})
}
