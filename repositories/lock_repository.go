package repositories

import (
	"context"

	"itsm-knowledge-base/models"
	"itsm-knowledge-base/storage"
)

const locksCollection = "article_locks"

type LockRepository interface {
	Get(ctx context.Context, articleID string) (*models.ArticleLock, error)
	Put(ctx context.Context, lock *models.ArticleLock) error
	Delete(ctx context.Context, articleID string) error
	GetAll(ctx context.Context) ([]models.ArticleLock, error)
}

type lockRepository struct {
	locks *storage.Collection[models.ArticleLock]
}

func NewLockRepository(backend storage.Backend) LockRepository {
	return &lockRepository{locks: storage.NewCollection[models.ArticleLock](backend, locksCollection)}
}

func (r *lockRepository) Get(ctx context.Context, articleID string) (*models.ArticleLock, error) {
	lock, err := r.locks.Get(ctx, articleID)
	if err != nil {
		return nil, err
	}
	return &lock, nil
}

func (r *lockRepository) Put(ctx context.Context, lock *models.ArticleLock) error {
	return r.locks.Put(ctx, lock.ArticleID, *lock)
}

func (r *lockRepository) Delete(ctx context.Context, articleID string) error {
	return r.locks.Delete(ctx, articleID)
}

func (r *lockRepository) GetAll(ctx context.Context) ([]models.ArticleLock, error) {
	return r.locks.List(ctx)
}
