package repositories

import (
	"context"
	"strings"

	"itsm-knowledge-base/models"
	"itsm-knowledge-base/storage"
)

const categoriesCollection = "categories"

type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	GetByName(ctx context.Context, name string) (*models.Category, error)
	GetByID(ctx context.Context, id string) (*models.Category, error)
	GetAll(ctx context.Context) ([]models.Category, error)
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id string) error
}

type categoryRepository struct {
	categories *storage.Collection[models.Category]
}

func NewCategoryRepository(backend storage.Backend) CategoryRepository {
	return &categoryRepository{categories: storage.NewCollection[models.Category](backend, categoriesCollection)}
}

func (r *categoryRepository) Create(ctx context.Context, category *models.Category) error {
	return r.categories.Insert(ctx, category.ID, *category)
}

// GetByName matches case-insensitively.
func (r *categoryRepository) GetByName(ctx context.Context, name string) (*models.Category, error) {
	all, err := r.categories.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if strings.EqualFold(all[i].Name, name) {
			return &all[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *categoryRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	category, err := r.categories.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) GetAll(ctx context.Context) ([]models.Category, error) {
	return r.categories.List(ctx)
}

func (r *categoryRepository) Update(ctx context.Context, category *models.Category) error {
	return r.categories.Put(ctx, category.ID, *category)
}

func (r *categoryRepository) Delete(ctx context.Context, id string) error {
	return r.categories.Delete(ctx, id)
}
