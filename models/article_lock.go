package models

import "time"

type ArticleLock struct {
	ArticleID    string    `json:"articleId"`
	LockedBy     string    `json:"lockedBy"`
	LockedByName string    `json:"lockedByName"`
	LockedAt     time.Time `json:"lockedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// IsExpired reports whether the lock has lapsed at the given instant.
func (l ArticleLock) IsExpired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

type LockResult struct {
	Success      bool       `json:"success"`
	ArticleID    string     `json:"articleId"`
	LockedBy     string     `json:"lockedBy,omitempty"`
	LockedByName string     `json:"lockedByName,omitempty"`
	LockedAt     *time.Time `json:"lockedAt,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	Message      string     `json:"message,omitempty"`
}

type LockStatus struct {
	ArticleID    string     `json:"articleId"`
	IsLocked     bool       `json:"isLocked"`
	CanEdit      bool       `json:"canEdit"`
	LockedBy     string     `json:"lockedBy,omitempty"`
	LockedByName string     `json:"lockedByName,omitempty"`
	LockedAt     *time.Time `json:"lockedAt,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}
