// Package model defines the data structures used throughout the application.
package model

import "time"

// User is the local record for an identity-provider account.
//
// ClerkID holds the provider's subject ("sub" claim of the session token);
// every authenticated request is resolved to a User through it. Followers and
// Following are sets of user IDs: each ID appears at most once.
type User struct {
	ID             string    `json:"_id"`
	ClerkID        string    `json:"clerkId"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	ProfilePicture string    `json:"profilePicture"`
	BannerImage    string    `json:"bannerImage"`
	Bio            string    `json:"bio"`
	Location       string    `json:"location"`
	Followers      []string  `json:"followers"`
	Following      []string  `json:"following"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// UserSummary is the subset of a User embedded in posts, comments and
// notifications.
type UserSummary struct {
	ID             string `json:"_id"`
	Username       string `json:"username"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	ProfilePicture string `json:"profilePicture"`
}

// Summary projects the public author fields of u.
func (u *User) Summary() *UserSummary {
	return &UserSummary{
		ID:             u.ID,
		Username:       u.Username,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		ProfilePicture: u.ProfilePicture,
	}
}

// ProfilePatch lists the user-editable profile fields. Nil means "leave as is".
type ProfilePatch struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Bio       *string `json:"bio"`
	Location  *string `json:"location"`
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Bio == nil && p.Location == nil
}
