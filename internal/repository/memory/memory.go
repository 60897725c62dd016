// Package memory implements the repository interfaces in process memory.
//
// It backs STORE=memory (local development without MongoDB) and is the
// fixture used by the service and handler tests. A single mutex guards all
// four collections, which makes every method, including the cascades and
// toggles, atomic with respect to the others.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/social-backend/internal/apperror"
	"github.com/sakif/social-backend/internal/model"
	"github.com/sakif/social-backend/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// Store holds every collection. The zero value is not usable; call New.
type Store struct {
	mu            sync.Mutex
	now           func() time.Time
	seq           int64
	users         map[string]*model.User
	posts         map[string]*model.Post
	comments      map[string]*model.Comment
	notifications map[string]*model.Notification
	order         map[string]int64 // insertion sequence, breaks CreatedAt ties
}

func New() *Store {
	return &Store{
		now:           time.Now,
		users:         make(map[string]*model.User),
		posts:         make(map[string]*model.Post),
		comments:      make(map[string]*model.Comment),
		notifications: make(map[string]*model.Notification),
		order:         make(map[string]int64),
	}
}

// SetClock replaces the time source. Tests use it to get distinct,
// deterministic timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Users() repository.UserRepository                 { return (*userRepo)(s) }
func (s *Store) Posts() repository.PostRepository                 { return (*postRepo)(s) }
func (s *Store) Comments() repository.CommentRepository           { return (*commentRepo)(s) }
func (s *Store) Notifications() repository.NotificationRepository { return (*notificationRepo)(s) }

func (s *Store) Ping(context.Context) error  { return nil }
func (s *Store) Close(context.Context) error { return nil }

// newID must be called with mu held.
func (s *Store) newID() string {
	id := xid.New().String()
	s.seq++
	s.order[id] = s.seq
	return id
}

// newestFirst orders by CreatedAt descending, then by insertion descending.
// Must be called with mu held.
func (s *Store) newestFirst(ids []string, created func(string) time.Time) {
	sort.SliceStable(ids, func(i, j int) bool {
		ci, cj := created(ids[i]), created(ids[j])
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return s.order[ids[i]] > s.order[ids[j]]
	})
}

// ---- users ----

type userRepo Store

func copyUser(u *model.User) *model.User {
	c := *u
	c.Followers = slices.Clone(u.Followers)
	c.Following = slices.Clone(u.Following)
	return &c
}

func (r *userRepo) Create(_ context.Context, user *model.User) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ClerkID == user.ClerkID {
			return apperror.Conflict("user", user.ClerkID)
		}
		if u.Username == user.Username {
			return apperror.Conflict("user", user.Username)
		}
	}

	user.ID = s.newID()
	now := s.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Followers == nil {
		user.Followers = []string{}
	}
	if user.Following == nil {
		user.Following = []string{}
	}
	s.users[user.ID] = copyUser(user)
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return copyUser(u), nil
}

func (r *userRepo) GetByClerkID(_ context.Context, clerkID string) (*model.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ClerkID == clerkID {
			return copyUser(u), nil
		}
	}
	return nil, apperror.NotFoundMessage("user not found")
}

func (r *userRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, apperror.NotFoundMessage("user not found")
}

func (r *userRepo) ListByIDs(_ context.Context, ids []string) ([]model.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.User, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if u, ok := s.users[id]; ok {
			out = append(out, *copyUser(u))
		}
	}
	return out, nil
}

func (r *userRepo) UpdateProfile(_ context.Context, id string, patch model.ProfilePatch) (*model.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		u.LastName = *patch.LastName
	}
	if patch.Bio != nil {
		u.Bio = *patch.Bio
	}
	if patch.Location != nil {
		u.Location = *patch.Location
	}
	u.UpdatedAt = s.now()
	return copyUser(u), nil
}

func (r *userRepo) ToggleFollow(_ context.Context, followerID, followeeID string) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	follower, ok := s.users[followerID]
	if !ok {
		return false, apperror.NotFound("user", followerID)
	}
	followee, ok := s.users[followeeID]
	if !ok {
		return false, apperror.NotFound("user", followeeID)
	}

	now := s.now()
	follower.UpdatedAt = now
	followee.UpdatedAt = now
	if slices.Contains(follower.Following, followeeID) {
		follower.Following = remove(follower.Following, followeeID)
		followee.Followers = remove(followee.Followers, followerID)
		return false, nil
	}
	follower.Following = append(follower.Following, followeeID)
	if !slices.Contains(followee.Followers, followerID) {
		followee.Followers = append(followee.Followers, followerID)
	}
	return true, nil
}

// ---- posts ----

type postRepo Store

func copyPost(p *model.Post) *model.Post {
	c := *p
	c.Likes = slices.Clone(p.Likes)
	c.Comments = slices.Clone(p.Comments)
	return &c
}

func (r *postRepo) Create(_ context.Context, post *model.Post) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[post.UserID]; !ok {
		return apperror.NotFound("user", post.UserID)
	}
	post.ID = s.newID()
	now := s.now()
	post.CreatedAt = now
	post.UpdatedAt = now
	if post.Likes == nil {
		post.Likes = []string{}
	}
	if post.Comments == nil {
		post.Comments = []string{}
	}
	s.posts[post.ID] = copyPost(post)
	return nil
}

func (r *postRepo) GetByID(_ context.Context, id string) (*model.Post, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	return copyPost(p), nil
}

func (r *postRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Post, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.posts))
	for id, p := range s.posts {
		if opts.UserID != "" && p.UserID != opts.UserID {
			continue
		}
		ids = append(ids, id)
	}
	s.newestFirst(ids, func(id string) time.Time { return s.posts[id].CreatedAt })

	out := make([]model.Post, 0, len(ids))
	for _, id := range ids {
		out = append(out, *copyPost(s.posts[id]))
	}
	return out, nil
}

func (r *postRepo) ListByIDs(_ context.Context, ids []string) ([]model.Post, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.posts[id]; ok {
			out = append(out, *copyPost(p))
		}
	}
	return out, nil
}

func (r *postRepo) ToggleLike(_ context.Context, postID, userID string) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return false, apperror.NotFound("post", postID)
	}
	p.UpdatedAt = s.now()
	if p.HasLike(userID) {
		p.Likes = remove(p.Likes, userID)
		return false, nil
	}
	p.Likes = append(p.Likes, userID)
	return true, nil
}

func (r *postRepo) DeleteCascade(_ context.Context, postID string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[postID]; !ok {
		return apperror.NotFound("post", postID)
	}
	for id, c := range s.comments {
		if c.PostID == postID {
			delete(s.comments, id)
		}
	}
	for id, n := range s.notifications {
		if n.PostID == postID {
			delete(s.notifications, id)
		}
	}
	delete(s.posts, postID)
	return nil
}

// ---- comments ----

type commentRepo Store

func copyComment(c *model.Comment) *model.Comment {
	cc := *c
	cc.Likes = slices.Clone(c.Likes)
	return &cc
}

func (r *commentRepo) Create(_ context.Context, comment *model.Comment) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[comment.PostID]
	if !ok {
		return apperror.NotFound("post", comment.PostID)
	}
	comment.ID = s.newID()
	now := s.now()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	if comment.Likes == nil {
		comment.Likes = []string{}
	}
	s.comments[comment.ID] = copyComment(comment)
	p.Comments = append(p.Comments, comment.ID)
	return nil
}

func (r *commentRepo) GetByID(_ context.Context, id string) (*model.Comment, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, apperror.NotFound("comment", id)
	}
	return copyComment(c), nil
}

func (r *commentRepo) ListByIDs(_ context.Context, ids []string) ([]model.Comment, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Comment, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.comments[id]; ok {
			out = append(out, *copyComment(c))
		}
	}
	return out, nil
}

func (r *commentRepo) ListByPost(_ context.Context, postID string) ([]model.Comment, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, c := range s.comments {
		if c.PostID == postID {
			ids = append(ids, id)
		}
	}
	s.newestFirst(ids, func(id string) time.Time { return s.comments[id].CreatedAt })

	out := make([]model.Comment, 0, len(ids))
	for _, id := range ids {
		out = append(out, *copyComment(s.comments[id]))
	}
	return out, nil
}

func (r *commentRepo) Delete(_ context.Context, comment *model.Comment) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[comment.ID]; !ok {
		return apperror.NotFound("comment", comment.ID)
	}
	if p, ok := s.posts[comment.PostID]; ok {
		p.Comments = remove(p.Comments, comment.ID)
	}
	for id, n := range s.notifications {
		if n.CommentID == comment.ID {
			delete(s.notifications, id)
		}
	}
	delete(s.comments, comment.ID)
	return nil
}

// ---- notifications ----

type notificationRepo Store

func (r *notificationRepo) Create(_ context.Context, n *model.Notification) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[n.From]; !ok {
		return apperror.NotFound("user", n.From)
	}
	if _, ok := s.users[n.To]; !ok {
		return apperror.NotFound("user", n.To)
	}
	n.ID = s.newID()
	n.CreatedAt = s.now()
	c := *n
	s.notifications[n.ID] = &c
	return nil
}

func (r *notificationRepo) GetByID(_ context.Context, id string) (*model.Notification, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return nil, apperror.NotFound("notification", id)
	}
	c := *n
	return &c, nil
}

func (r *notificationRepo) ListByRecipient(_ context.Context, userID string) ([]model.Notification, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, n := range s.notifications {
		if n.To == userID {
			ids = append(ids, id)
		}
	}
	s.newestFirst(ids, func(id string) time.Time { return s.notifications[id].CreatedAt })

	out := make([]model.Notification, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.notifications[id])
	}
	return out, nil
}

func (r *notificationRepo) Delete(_ context.Context, id string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[id]; !ok {
		return apperror.NotFound("notification", id)
	}
	delete(s.notifications, id)
	return nil
}

func remove(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(v string) bool { return v == id })
}
