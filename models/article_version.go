package models

import (
	"fmt"
	"time"
)

type ArticleVersion struct {
	ID              string        `json:"id"`
	ArticleID       string        `json:"articleId"`
	VersionNumber   int           `json:"version"`
	Title           string        `json:"title"`
	Body            string        `json:"body"`
	Category        string        `json:"category"`
	Tags            []string      `json:"tags"`
	RelatedArticles []string      `json:"relatedArticles"`
	Status          ArticleStatus `json:"status"`
	ChangedBy       string        `json:"changedBy"`
	ChangedByName   string        `json:"changedByName"`
	ChangedAt       time.Time     `json:"changedAt"`
	ChangeReason    string        `json:"changeReason,omitempty"`
	ChangeSummary   string        `json:"changeSummary"`
}

// VersionKey is the storage key of a snapshot. The number is zero padded so
// lexical key order matches numeric order.
func VersionKey(articleID string, version int) string {
	return fmt.Sprintf("%s:%010d", articleID, version)
}

// VersionKeyPrefix selects every snapshot of one article.
func VersionKeyPrefix(articleID string) string {
	return articleID + ":"
}

// SnapshotOf captures the content fields and status of an article at its
// current version number.
func SnapshotOf(a Article) ArticleVersion {
	return ArticleVersion{
		ID:              VersionKey(a.ID, a.Version),
		ArticleID:       a.ID,
		VersionNumber:   a.Version,
		Title:           a.Title,
		Body:            a.Body,
		Category:        a.Category,
		Tags:            cloneStrings(a.Tags),
		RelatedArticles: cloneStrings(a.RelatedArticles),
		Status:          a.Status,
	}
}

type VersionList struct {
	ArticleID      string           `json:"articleId"`
	CurrentVersion int              `json:"currentVersion"`
	Versions       []ArticleVersion `json:"versions"`
}

type FieldChange struct {
	Field    string      `json:"field"`
	OldValue interface{} `json:"oldValue"`
	NewValue interface{} `json:"newValue"`
}

type VersionComparison struct {
	ArticleID string         `json:"articleId"`
	Older     ArticleVersion `json:"older"`
	Newer     ArticleVersion `json:"newer"`
	Changes   []FieldChange  `json:"changes"`
}
