package repositories

import (
	"context"
	"errors"
	"sort"

	"itsm-knowledge-base/models"
	"itsm-knowledge-base/storage"
)

const commentsCollection = "comments"

type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	GetByArticleID(ctx context.Context, articleID string) ([]models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	Delete(ctx context.Context, id string) error
	DeleteByArticleID(ctx context.Context, articleID string) (int, error)
}

type commentRepository struct {
	comments *storage.Collection[models.Comment]
}

func NewCommentRepository(backend storage.Backend) CommentRepository {
	return &commentRepository{comments: storage.NewCollection[models.Comment](backend, commentsCollection)}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.comments.Insert(ctx, comment.ID, *comment)
}

func (r *commentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	comment, err := r.comments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// GetByArticleID returns an article's comments, oldest first.
func (r *commentRepository) GetByArticleID(ctx context.Context, articleID string) ([]models.Comment, error) {
	all, err := r.comments.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Comment, 0)
	for _, c := range all {
		if c.ArticleID == articleID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	return r.comments.Put(ctx, comment.ID, *comment)
}

func (r *commentRepository) Delete(ctx context.Context, id string) error {
	return r.comments.Delete(ctx, id)
}

func (r *commentRepository) DeleteByArticleID(ctx context.Context, articleID string) (int, error) {
	comments, err := r.GetByArticleID(ctx, articleID)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, c := range comments {
		if err := r.comments.Delete(ctx, c.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
