package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/social-backend/internal/apperror"
	"github.com/sakif/social-backend/internal/auth"
	"github.com/sakif/social-backend/internal/metrics"
	"github.com/sakif/social-backend/internal/model"
	"github.com/sakif/social-backend/internal/repository"
)

// ProfileFetcher reads a user's profile from the identity provider.
// *auth.ProviderClient satisfies it.
type ProfileFetcher interface {
	FetchUser(ctx context.Context, subject string) (*auth.Profile, error)
}

type UserService struct {
	users    repository.UserRepository
	provider ProfileFetcher
	notifier *Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewUserService(store repository.Store, provider ProfileFetcher, notifier *Notifier, m *metrics.Metrics, logger *slog.Logger) *UserService {
	return &UserService{
		users:    store.Users(),
		provider: provider,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// Profile returns the public profile for username.
func (s *UserService) Profile(ctx context.Context, username string) (*model.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("User not found")
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// Current returns the caller's own record.
func (s *UserService) Current(ctx context.Context, subject string) (*model.User, error) {
	return resolveActor(ctx, s.users, subject)
}

// Sync creates the local record for a provider account on first login. It
// reports whether a user was created; an existing user is returned as is.
func (s *UserService) Sync(ctx context.Context, subject string) (*model.User, bool, error) {
	if subject == "" {
		return nil, false, apperror.Unauthorized("Unauthorized - you must be logged in")
	}

	existing, err := s.users.GetByClerkID(ctx, subject)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, fmt.Errorf("looking up user: %w", err)
	}

	profile, err := s.provider.FetchUser(ctx, subject)
	if err != nil {
		return nil, false, apperror.Upstream("Could not fetch user from identity provider", err)
	}

	user := &model.User{
		ClerkID:        subject,
		Email:          profile.Email,
		Username:       defaultUsername(profile),
		FirstName:      profile.FirstName,
		LastName:       profile.LastName,
		ProfilePicture: profile.ImageURL,
	}

	err = s.users.Create(ctx, user)
	if errors.Is(err, apperror.ErrConflict) {
		// Either a concurrent sync for the same account won, or another
		// account already has this username.
		if existing, lookupErr := s.users.GetByClerkID(ctx, subject); lookupErr == nil {
			return existing, false, nil
		}
		user.Username = user.Username + "_" + suffix(subject)
		err = s.users.Create(ctx, user)
	}
	if err != nil {
		return nil, false, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user synced",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, true, nil
}

// UpdateProfile applies the caller's profile edits.
func (s *UserService) UpdateProfile(ctx context.Context, subject string, patch model.ProfilePatch) (*model.User, error) {
	if patch.Empty() {
		return nil, apperror.ValidationFailed("profile", "At least one profile field is required")
	}
	if patch.Bio != nil {
		bio, err := checkLength("bio", *patch.Bio, MaxBioLength)
		if err != nil {
			return nil, err
		}
		patch.Bio = &bio
	}
	for _, f := range []*string{patch.FirstName, patch.LastName, patch.Location} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}

	user, err := resolveActor(ctx, s.users, subject)
	if err != nil {
		return nil, err
	}

	updated, err := s.users.UpdateProfile(ctx, user.ID, patch)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("User not found")
		}
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	return updated, nil
}

// ToggleFollow flips whether the caller follows targetID and reports the new
// state. Following notifies the target.
func (s *UserService) ToggleFollow(ctx context.Context, subject, targetID string) (bool, error) {
	user, err := resolveActor(ctx, s.users, subject)
	if err != nil {
		return false, err
	}
	if targetID == user.ID {
		return false, apperror.ValidationFailed("targetUserId", "You cannot follow yourself")
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, apperror.NotFoundMessage("User not found")
		}
		return false, fmt.Errorf("getting target user: %w", err)
	}

	following, err := s.users.ToggleFollow(ctx, user.ID, target.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, apperror.NotFoundMessage("User not found")
		}
		return false, fmt.Errorf("toggling follow: %w", err)
	}

	s.metrics.FollowToggled(following)
	if following {
		s.notifier.Notify(ctx, user.ID, target.ID, model.NotificationFollow, "", "")
	}
	return following, nil
}

// defaultUsername prefers the provider username and falls back to the
// local part of the e-mail address.
func defaultUsername(p *auth.Profile) string {
	if p.Username != "" {
		return p.Username
	}
	if local, _, ok := strings.Cut(p.Email, "@"); ok && local != "" {
		return local
	}
	return "user_" + suffix(p.ID)
}

func suffix(subject string) string {
	const n = 6
	if len(subject) <= n {
		return subject
	}
	return subject[len(subject)-n:]
}
