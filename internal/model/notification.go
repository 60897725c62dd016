package model

import "time"

type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
)

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationComment, NotificationFollow:
		return true
	}
	return false
}

// Notification records that From did something that concerns To.
// PostID is set for like and comment notifications, CommentID for comment
// notifications only.
type Notification struct {
	ID        string           `json:"_id"`
	From      string           `json:"from"`
	To        string           `json:"to"`
	Type      NotificationType `json:"type"`
	PostID    string           `json:"post,omitempty"`
	CommentID string           `json:"comment,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// NotificationView is a Notification with the sender, post and comment
// resolved. Post and Comment are nil when absent or already deleted.
type NotificationView struct {
	ID        string           `json:"_id"`
	From      *UserSummary     `json:"from"`
	To        string           `json:"to"`
	Type      NotificationType `json:"type"`
	Post      *PostSummary     `json:"post,omitempty"`
	Comment   *CommentSummary  `json:"comment,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}
