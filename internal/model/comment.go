package model

import "time"

type Comment struct {
	ID        string    `json:"_id"`
	UserID    string    `json:"user"`
	PostID    string    `json:"post"`
	Content   string    `json:"content"`
	Likes     []string  `json:"likes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CommentView is a Comment with its author resolved.
type CommentView struct {
	ID        string       `json:"_id"`
	User      *UserSummary `json:"user"`
	PostID    string       `json:"post"`
	Content   string       `json:"content"`
	Likes     []string     `json:"likes"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type CommentSummary struct {
	ID      string `json:"_id"`
	Content string `json:"content"`
}
