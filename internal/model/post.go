package model

import "time"

// Post is a stored post. UserID references the owner; Comments holds comment
// IDs in creation order and only ever contains comments whose PostID is this
// post's ID. Likes is a set of user IDs.
type Post struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"user"`
	Content   string    `json:"content"`
	Image     string    `json:"image"`
	ImageID   string    `json:"-"` // media-store handle, used to remove the asset with the post
	Likes     []string  `json:"likes"`
	Comments  []string  `json:"comments"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PostView is a Post with its owner and comments resolved, as served by the
// feed endpoints.
type PostView struct {
	ID        string        `json:"_id"`
	User      *UserSummary  `json:"user"`
	Content   string        `json:"content"`
	Image     string        `json:"image"`
	Likes     []string      `json:"likes"`
	Comments  []CommentView `json:"comments"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// PostSummary is embedded in notifications.
type PostSummary struct {
	ID      string `json:"_id"`
	Content string `json:"content"`
	Image   string `json:"image"`
}

// HasLike reports whether userID is in the post's like set.
func (p *Post) HasLike(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}
