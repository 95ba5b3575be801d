package models

import "time"

type Comment struct {
	ID         string     `json:"id"`
	ArticleID  string     `json:"articleId"`
	AuthorID   string     `json:"authorId"`
	AuthorName string     `json:"authorName"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
	IsEdited   bool       `json:"isEdited"`
}
