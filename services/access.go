package services

import (
	"context"
	"errors"

	"itsm-knowledge-base/models"
	"itsm-knowledge-base/storage"
)

// canView applies draft and trash hiding on top of article:view.
func canView(p models.Principal, a models.Article) bool {
	if !models.HasPermission(p, models.PermArticleView) {
		return false
	}
	switch a.Status {
	case models.StatusDraft, models.StatusDeleted:
		return a.AuthorID == p.ID || models.HasPermission(p, models.PermArticleViewDrafts)
	}
	return true
}

func canEdit(p models.Principal, a models.Article) bool {
	return models.CanActOn(p, a.AuthorID, models.PermArticleEditOwn, models.PermArticleEditAll)
}

// storageError turns a repository failure into an AppError. what names the
// missing resource for ErrNotFound.
func storageError(err error, what string) error {
	var appErr *models.AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, storage.ErrNotFound):
		return models.NewNotFound(what + " not found")
	case errors.Is(err, storage.ErrUnavailable):
		return &models.AppError{Code: models.CodeServiceUnavailable, Message: "storage temporarily unavailable", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &models.AppError{Code: models.CodeTimeout, Message: "request timed out", Err: err}
	}
	return models.NewInternal("storage failure", err)
}
