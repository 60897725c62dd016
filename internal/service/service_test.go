package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sakif/social-backend/internal/auth"
	"github.com/sakif/social-backend/internal/events"
	"github.com/sakif/social-backend/internal/media"
	"github.com/sakif/social-backend/internal/metrics"
	"github.com/sakif/social-backend/internal/model"
	"github.com/sakif/social-backend/internal/repository"
	"github.com/sakif/social-backend/internal/repository/memory"
)

// =========================================================================
// FAKES
// =========================================================================
//
// The repositories are the real in-memory store; only the adapters that
// leave the process (media, event bus, identity provider) are faked.

type fakeUploader struct {
	mu       sync.Mutex
	uploaded []media.Asset
	deleted  []string
	err      error
}

func (f *fakeUploader) Upload(_ context.Context, _ []byte, contentType string) (media.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return media.Asset{}, f.err
	}
	n := strconv.Itoa(len(f.uploaded) + 1)
	a := media.Asset{URL: "https://media.example.com/img" + n, ID: "img" + n}
	f.uploaded = append(f.uploaded, a)
	return a, nil
}

func (f *fakeUploader) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.NotificationCreated
	err    error

	// hang makes every publish wait for its context, like a broker that
	// never answers.
	hang bool
}

func (f *fakePublisher) PublishNotification(ctx context.Context, e events.NotificationCreated) error {
	if f.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeProvider struct {
	profiles map[string]*auth.Profile
	err      error
}

func (f *fakeProvider) FetchUser(_ context.Context, subject string) (*auth.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[subject]
	if !ok {
		return nil, errors.New("provider: user not found")
	}
	return p, nil
}

// postsOverride swaps the post repository of a store, to inject failures.
type postsOverride struct {
	repository.Store
	posts repository.PostRepository
}

func (s postsOverride) Posts() repository.PostRepository { return s.posts }

type failingCreatePosts struct {
	repository.PostRepository
}

func (failingCreatePosts) Create(context.Context, *model.Post) error {
	return errors.New("disk full")
}

// =========================================================================
// FIXTURE
// =========================================================================

type testEnv struct {
	store         *memory.Store
	metrics       *metrics.Metrics
	uploader      *fakeUploader
	publisher     *fakePublisher
	provider      *fakeProvider
	notifier      *Notifier
	posts         *PostService
	comments      *CommentService
	users         *UserService
	notifications *NotificationService
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	var tick int
	store.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})

	e := &testEnv{
		store:     store,
		metrics:   metrics.New(prometheus.NewRegistry()),
		uploader:  &fakeUploader{},
		publisher: &fakePublisher{},
		provider:  &fakeProvider{profiles: map[string]*auth.Profile{}},
	}
	e.build(store)
	return e
}

// build wires the services over store, which may wrap e.store.
func (e *testEnv) build(store repository.Store) {
	logger := testLogger()
	e.notifier = NewNotifier(store.Notifications(), e.publisher, e.metrics, logger)
	e.posts = NewPostService(store, e.uploader, e.notifier, e.metrics, logger)
	e.comments = NewCommentService(store, e.notifier, e.metrics, logger)
	e.users = NewUserService(store, e.provider, e.notifier, e.metrics, logger)
	e.notifications = NewNotificationService(store, logger)
}

// user creates a local user whose provider subject is "clerk_<username>".
func (e *testEnv) user(t *testing.T, username string) *model.User {
	t.Helper()
	u := &model.User{
		ClerkID:   subjectOf(username),
		Username:  username,
		Email:     username + "@example.com",
		FirstName: username,
	}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	return u
}

func (e *testEnv) post(t *testing.T, author *model.User, content string) *model.Post {
	t.Helper()
	p, err := e.posts.Create(context.Background(), author.ClerkID, content, nil)
	require.NoError(t, err)
	return p
}

func (e *testEnv) notificationsFor(t *testing.T, u *model.User) []model.Notification {
	t.Helper()
	notes, err := e.store.Notifications().ListByRecipient(context.Background(), u.ID)
	require.NoError(t, err)
	return notes
}

func subjectOf(username string) string {
	return "clerk_" + username
}

// pngBytes is enough of a PNG for content sniffing.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")
