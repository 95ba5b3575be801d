package repositories

import (
	"context"
	"sort"
	"strings"
	"time"

	"itsm-knowledge-base/models"
	"itsm-knowledge-base/storage"
)

const articlesCollection = "articles"

// ArticleFilter is a resolved search request. Zero values mean "no filter".
type ArticleFilter struct {
	Query       string
	Status      models.ArticleStatus
	Category    string
	Tags        []string
	AuthorID    string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	UpdatedFrom *time.Time
	UpdatedTo   *time.Time
	SortBy      string
	SortOrder   string
	Page        int
	Limit       int
	// Visible hides articles the caller may not see. Nil shows everything.
	Visible func(models.Article) bool
}

type ArticleRepository interface {
	Create(ctx context.Context, article *models.Article) error
	GetByID(ctx context.Context, id string) (*models.Article, error)
	GetAll(ctx context.Context) ([]models.Article, error)
	GetList(ctx context.Context, filter ArticleFilter) ([]models.Article, int, error)
	Update(ctx context.Context, article *models.Article) error
	Delete(ctx context.Context, id string) error
}

type articleRepository struct {
	articles *storage.Collection[models.Article]
}

func NewArticleRepository(backend storage.Backend) ArticleRepository {
	return &articleRepository{articles: storage.NewCollection[models.Article](backend, articlesCollection)}
}

func (r *articleRepository) Create(ctx context.Context, article *models.Article) error {
	return r.articles.Insert(ctx, article.ID, article.WithoutLock())
}

func (r *articleRepository) GetByID(ctx context.Context, id string) (*models.Article, error) {
	article, err := r.articles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &article, nil
}

func (r *articleRepository) GetAll(ctx context.Context) ([]models.Article, error) {
	return r.articles.List(ctx)
}

func (r *articleRepository) GetList(ctx context.Context, filter ArticleFilter) ([]models.Article, int, error) {
	all, err := r.articles.List(ctx)
	if err != nil {
		return nil, 0, err
	}

	matched := make([]models.Article, 0, len(all))
	for _, a := range all {
		if filter.matches(a) {
			matched = append(matched, a)
		}
	}

	sortArticles(matched, filter.SortBy, filter.SortOrder)

	total := len(matched)
	if filter.Limit <= 0 {
		return matched, total, nil
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * filter.Limit
	if offset >= total {
		return []models.Article{}, total, nil
	}
	end := offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *articleRepository) Update(ctx context.Context, article *models.Article) error {
	return r.articles.Put(ctx, article.ID, article.WithoutLock())
}

func (r *articleRepository) Delete(ctx context.Context, id string) error {
	return r.articles.Delete(ctx, id)
}

func (f ArticleFilter) matches(a models.Article) bool {
	if f.Status != "" {
		if a.Status != f.Status {
			return false
		}
	} else if a.Status == models.StatusDeleted {
		return false
	}
	if f.Category != "" && !strings.EqualFold(a.Category, f.Category) {
		return false
	}
	if f.AuthorID != "" && a.AuthorID != f.AuthorID {
		return false
	}
	for _, want := range f.Tags {
		if !containsFold(a.Tags, want) {
			return false
		}
	}
	if !inRange(a.CreatedAt, f.CreatedFrom, f.CreatedTo) || !inRange(a.UpdatedAt, f.UpdatedFrom, f.UpdatedTo) {
		return false
	}
	if f.Query != "" && !matchesQuery(a, f.Query) {
		return false
	}
	if f.Visible != nil && !f.Visible(a) {
		return false
	}
	return true
}

func matchesQuery(a models.Article, query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(a.Title), q) || strings.Contains(strings.ToLower(a.Body), q) {
		return true
	}
	for _, tag := range a.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

func sortArticles(articles []models.Article, sortBy, sortOrder string) {
	desc := sortOrder != "asc"
	less := func(i, j int) bool {
		a, b := articles[i], articles[j]
		switch sortBy {
		case "updatedAt":
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
		case "title":
			ta, tb := strings.ToLower(a.Title), strings.ToLower(b.Title)
			if ta != tb {
				return ta < tb
			}
		case "viewCount":
			if a.ViewCount != b.ViewCount {
				return a.ViewCount < b.ViewCount
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	}
	sort.SliceStable(articles, func(i, j int) bool {
		if desc {
			return less(j, i)
		}
		return less(i, j)
	})
}
