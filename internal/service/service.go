// Package service contains the business rules of the social backend.
//
// Handlers pass in the caller's identity-provider subject (never a local
// user id); every mutating operation first resolves it to the local User.
// Services return apperror values and never know about HTTP.
//
//	Handler → Service → Repository (mongo | memory)
//	                  ↘ media.Uploader, events.Publisher
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sakif/social-backend/internal/apperror"
	"github.com/sakif/social-backend/internal/model"
	"github.com/sakif/social-backend/internal/repository"
)

// Validation limits.
const (
	MaxContentLength = 280 // posts and comments, in characters
	MaxBioLength     = 160
)

// resolveActor maps an identity-provider subject to the local user.
func resolveActor(ctx context.Context, users repository.UserRepository, subject string) (*model.User, error) {
	if subject == "" {
		return nil, apperror.Unauthorized("Unauthorized - you must be logged in")
	}
	u, err := users.GetByClerkID(ctx, subject)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("User not found")
		}
		return nil, err
	}
	return u, nil
}

// checkLength trims s and rejects it when longer than limit characters.
func checkLength(field, s string, limit int) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > limit {
		return "", apperror.ValidationFailed(field, fmt.Sprintf("%s must be at most %d characters", field, limit))
	}
	return s, nil
}

// usersByID loads ids in one query and indexes them.
func usersByID(ctx context.Context, users repository.UserRepository, ids []string) (map[string]*model.User, error) {
	if len(ids) == 0 {
		return map[string]*model.User{}, nil
	}
	list, err := users.ListByIDs(ctx, dedupe(ids))
	if err != nil {
		return nil, err
	}
	out := make(map[string]*model.User, len(list))
	for i := range list {
		out[list[i].ID] = &list[i]
	}
	return out, nil
}

func summaryOf(users map[string]*model.User, id string) *model.UserSummary {
	if u, ok := users[id]; ok {
		return u.Summary()
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
