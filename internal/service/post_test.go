package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/social-backend/internal/apperror"
	"github.com/sakif/social-backend/internal/model"
)

// =========================================================================
// CREATE
// =========================================================================

func TestPostCreate_RoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		image     []byte
		wantImage bool
	}{
		{"content only", "hello", nil, false},
		{"image only", "", pngBytes, true},
		{"content and image", "look at this", pngBytes, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			alice := e.user(t, "alice")

			created, err := e.posts.Create(context.Background(), alice.ClerkID, tt.content, tt.image)
			require.NoError(t, err)
			assert.NotEmpty(t, created.ID)
			assert.Equal(t, alice.ID, created.UserID)

			got, err := e.posts.Get(context.Background(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.content, got.Content)
			assert.Equal(t, created.Image, got.Image)
			assert.Equal(t, tt.wantImage, got.Image != "")
			require.NotNil(t, got.User)
			assert.Equal(t, "alice", got.User.Username)
			assert.Empty(t, got.Likes)
			assert.Empty(t, got.Comments)
		})
	}
}

func TestPostCreate_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		image   []byte
	}{
		{"nothing", "", nil},
		{"whitespace only", "   \n\t", nil},
		{"content too long", strings.Repeat("a", MaxContentLength+1), nil},
		{"not an image", "caption", []byte("this is plain text")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			alice := e.user(t, "alice")

			_, err := e.posts.Create(context.Background(), alice.ClerkID, tt.content, tt.image)
			assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
			assert.Empty(t, e.uploader.uploaded)
		})
	}
}

func TestPostCreate_ContentAtLimit(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")

	// Multi-byte characters count once each.
	_, err := e.posts.Create(context.Background(), alice.ClerkID, strings.Repeat("é", MaxContentLength), nil)
	assert.NoError(t, err)
}

func TestPostCreate_UnknownUser(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.posts.Create(context.Background(), "clerk_ghost", "hello", nil)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestPostCreate_UploadFailure(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")
	e.uploader.err = errors.New("cloudinary down")

	_, err := e.posts.Create(context.Background(), alice.ClerkID, "", pngBytes)
	assert.True(t, errors.Is(err, apperror.ErrUpstream))

	posts, _ := e.posts.List(context.Background())
	assert.Empty(t, posts)
}

func TestPostCreate_NoUploaderConfigured(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")
	e.posts.media = nil

	_, err := e.posts.Create(context.Background(), alice.ClerkID, "", pngBytes)
	assert.True(t, errors.Is(err, apperror.ErrUpstream))
}

func TestPostCreate_StoreFailureDiscardsImage(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")
	e.build(postsOverride{Store: e.store, posts: failingCreatePosts{e.store.Posts()}})

	_, err := e.posts.Create(context.Background(), alice.ClerkID, "hi", pngBytes)
	require.Error(t, err)
	require.Len(t, e.uploader.uploaded, 1)
	assert.Equal(t, []string{e.uploader.uploaded[0].ID}, e.uploader.deleted)
}

func TestPostCreate_CountsMetric(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")

	e.post(t, alice, "one")
	e.post(t, alice, "two")

	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.PostsCreated))
}

// =========================================================================
// READ
// =========================================================================

func TestPostList_AssemblesFeed(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")

	first := e.post(t, alice, "first")
	second := e.post(t, bob, "second")
	c1, err := e.comments.Create(ctx, bob.ClerkID, first.ID, "nice")
	require.NoError(t, err)
	c2, err := e.comments.Create(ctx, alice.ClerkID, first.ID, "thanks")
	require.NoError(t, err)

	feed, err := e.posts.List(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 2)

	assert.Equal(t, second.ID, feed[0].ID, "newest first")
	assert.Equal(t, "bob", feed[0].User.Username)
	assert.Empty(t, feed[0].Comments)

	assert.Equal(t, first.ID, feed[1].ID)
	require.Len(t, feed[1].Comments, 2)
	assert.Equal(t, c1.ID, feed[1].Comments[0].ID, "comments keep attachment order")
	assert.Equal(t, "bob", feed[1].Comments[0].User.Username)
	assert.Equal(t, c2.ID, feed[1].Comments[1].ID)
	assert.Equal(t, "alice", feed[1].Comments[1].User.Username)
}

func TestPostGet_NotFound(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.posts.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestPostListByUsername(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	e.user(t, "quiet")

	older := e.post(t, alice, "older")
	e.post(t, bob, "not alice's")
	newer := e.post(t, alice, "newer")

	t.Run("newest first, owner only", func(t *testing.T) {
		posts, err := e.posts.ListByUsername(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, newer.ID, posts[0].ID)
		assert.Equal(t, older.ID, posts[1].ID)
	})

	t.Run("zero posts is not found", func(t *testing.T) {
		posts, err := e.posts.ListByUsername(ctx, "quiet")
		assert.Nil(t, posts)
		require.True(t, errors.Is(err, apperror.ErrNotFound))

		var appErr *apperror.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "No posts found for this user", appErr.Message)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := e.posts.ListByUsername(ctx, "nobody")
		require.True(t, errors.Is(err, apperror.ErrNotFound))

		var appErr *apperror.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "User not found", appErr.Message)
	})
}

// =========================================================================
// LIKES
// =========================================================================

func TestToggleLike_TwiceRestoresLikeSet(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	p := e.post(t, alice, "hello")

	liked, err := e.posts.ToggleLike(ctx, bob.ClerkID, p.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	got, _ := e.posts.Get(ctx, p.ID)
	assert.Equal(t, []string{bob.ID}, got.Likes)

	liked, err = e.posts.ToggleLike(ctx, bob.ClerkID, p.ID)
	require.NoError(t, err)
	assert.False(t, liked)

	got, _ = e.posts.Get(ctx, p.ID)
	assert.Empty(t, got.Likes)
}

// A creates P "hello"; B likes P: A gets one "like" notification referencing
// P. B unlikes: the like set is empty and the notification stays.
func TestToggleLike_NotificationScenario(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	a := e.user(t, "a")
	b := e.user(t, "b")
	p := e.post(t, a, "hello")

	_, err := e.posts.ToggleLike(ctx, b.ClerkID, p.ID)
	require.NoError(t, err)

	notes := e.notificationsFor(t, a)
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotificationLike, notes[0].Type)
	assert.Equal(t, p.ID, notes[0].PostID)
	assert.Equal(t, b.ID, notes[0].From)
	require.Len(t, e.publisher.events, 1)
	assert.Equal(t, notes[0].ID, e.publisher.events[0].NotificationID)

	_, err = e.posts.ToggleLike(ctx, b.ClerkID, p.ID)
	require.NoError(t, err)

	got, _ := e.posts.Get(ctx, p.ID)
	assert.Empty(t, got.Likes)
	assert.Len(t, e.notificationsFor(t, a), 1, "unlike does not retract the notification")
}

func TestToggleLike_SelfLikeDoesNotNotify(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")
	p := e.post(t, alice, "mine")

	liked, err := e.posts.ToggleLike(context.Background(), alice.ClerkID, p.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Empty(t, e.notificationsFor(t, alice))
}

func TestToggleLike_ConcurrentNeverDuplicates(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	p := e.post(t, alice, "hello")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.posts.ToggleLike(context.Background(), bob.ClerkID, p.ID)
		}()
	}
	wg.Wait()

	got, err := e.posts.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Likes, "an even number of toggles leaves no like")
}

func TestToggleLike_Errors(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")
	p := e.post(t, alice, "hello")

	tests := []struct {
		name    string
		subject string
		postID  string
		want    error
	}{
		{"missing post id", alice.ClerkID, "", apperror.ErrValidation},
		{"unknown post", alice.ClerkID, "nope", apperror.ErrNotFound},
		{"unknown user", "clerk_ghost", p.ID, apperror.ErrNotFound},
		{"anonymous", "", p.ID, apperror.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.posts.ToggleLike(context.Background(), tt.subject, tt.postID)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestToggleLike_PublishFailureIsNotFatal(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	p := e.post(t, alice, "hello")
	e.publisher.err = errors.New("broker down")

	liked, err := e.posts.ToggleLike(context.Background(), bob.ClerkID, p.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Len(t, e.notificationsFor(t, alice), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.EventPublishErrors))
}

func TestToggleLike_UnresponsiveEventBus(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	p := e.post(t, alice, "hello")
	e.publisher.hang = true
	e.notifier.publishTimeout = 20 * time.Millisecond

	start := time.Now()
	liked, err := e.posts.ToggleLike(context.Background(), bob.ClerkID, p.ID)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, liked)
	assert.Len(t, e.notificationsFor(t, alice), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.EventPublishErrors))
}

// =========================================================================
// DELETE
// =========================================================================

func TestPostDelete_NonOwnerForbidden(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	p := e.post(t, alice, "mine")

	err := e.posts.Delete(context.Background(), bob.ClerkID, p.ID)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	_, err = e.posts.Get(context.Background(), p.ID)
	assert.NoError(t, err, "post must survive a forbidden delete")
}

func TestPostDelete_OwnerCascades(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")

	p, err := e.posts.Create(ctx, alice.ClerkID, "bye", pngBytes)
	require.NoError(t, err)
	c1, err := e.comments.Create(ctx, bob.ClerkID, p.ID, "one")
	require.NoError(t, err)
	c2, err := e.comments.Create(ctx, alice.ClerkID, p.ID, "two")
	require.NoError(t, err)
	_, err = e.posts.ToggleLike(ctx, bob.ClerkID, p.ID)
	require.NoError(t, err)
	require.Len(t, e.notificationsFor(t, alice), 2)

	require.NoError(t, e.posts.Delete(ctx, alice.ClerkID, p.ID))

	_, err = e.posts.Get(ctx, p.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	for _, id := range []string{c1.ID, c2.ID} {
		_, err = e.store.Comments().GetByID(ctx, id)
		assert.True(t, errors.Is(err, apperror.ErrNotFound), "comment %s should be gone", id)
	}
	assert.Empty(t, e.notificationsFor(t, alice))
	assert.Equal(t, []string{p.ImageID}, e.uploader.deleted)
}

func TestPostDelete_Errors(t *testing.T) {
	e := newTestEnv(t)
	alice := e.user(t, "alice")

	err := e.posts.Delete(context.Background(), alice.ClerkID, "")
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	err = e.posts.Delete(context.Background(), alice.ClerkID, "nope")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}
