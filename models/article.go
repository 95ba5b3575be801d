package models

import (
	"time"
)

type ArticleStatus string

const (
	StatusDraft     ArticleStatus = "draft"
	StatusPublished ArticleStatus = "published"
	StatusArchived  ArticleStatus = "archived"
	StatusDeleted   ArticleStatus = "deleted"
)

func (s ArticleStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived, StatusDeleted:
		return true
	}
	return false
}

// CountsTowardCategory reports whether an article in this status contributes
// to its category's articleCount.
func (s ArticleStatus) CountsTowardCategory() bool {
	return s != StatusDeleted
}

type Article struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Body            string        `json:"body"`
	Category        string        `json:"category"`
	Tags            []string      `json:"tags"`
	RelatedArticles []string      `json:"relatedArticles"`
	Status          ArticleStatus `json:"status"`
	AuthorID        string        `json:"authorId"`
	AuthorName      string        `json:"authorName"`
	Version         int           `json:"version"`
	ViewCount       int64         `json:"viewCount"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
	PublishedAt     *time.Time    `json:"publishedAt,omitempty"`
	ArchivedAt      *time.Time    `json:"archivedAt,omitempty"`
	DeletedAt       *time.Time    `json:"deletedAt,omitempty"`

	// Mirror of the live lock, filled on read and never persisted.
	LockedBy     string     `json:"lockedBy,omitempty"`
	LockedByName string     `json:"lockedByName,omitempty"`
	LockedAt     *time.Time `json:"lockedAt,omitempty"`
}

// Clone returns a deep copy so callers can mutate without aliasing slices.
func (a Article) Clone() Article {
	a.Tags = cloneStrings(a.Tags)
	a.RelatedArticles = cloneStrings(a.RelatedArticles)
	if a.PublishedAt != nil {
		t := *a.PublishedAt
		a.PublishedAt = &t
	}
	if a.ArchivedAt != nil {
		t := *a.ArchivedAt
		a.ArchivedAt = &t
	}
	if a.DeletedAt != nil {
		t := *a.DeletedAt
		a.DeletedAt = &t
	}
	if a.LockedAt != nil {
		t := *a.LockedAt
		a.LockedAt = &t
	}
	return a
}

// WithoutLock strips the lock mirror before persisting.
func (a Article) WithoutLock() Article {
	a.LockedBy = ""
	a.LockedByName = ""
	a.LockedAt = nil
	return a
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
