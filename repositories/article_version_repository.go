package repositories

import (
	"context"
	"errors"
	"sort"

	"itsm-knowledge-base/models"
	"itsm-knowledge-base/storage"
)

const versionsCollection = "article_versions"

type ArticleVersionRepository interface {
	// Create never overwrites; an existing (article, version) pair yields storage.ErrExists.
	Create(ctx context.Context, version *models.ArticleVersion) error
	GetVersions(ctx context.Context, articleID string) ([]models.ArticleVersion, error)
	GetVersion(ctx context.Context, articleID string, number int) (*models.ArticleVersion, error)
	DeleteVersionsByArticleID(ctx context.Context, articleID string) error
}

type articleVersionRepository struct {
	versions *storage.Collection[models.ArticleVersion]
}

func NewArticleVersionRepository(backend storage.Backend) ArticleVersionRepository {
	return &articleVersionRepository{versions: storage.NewCollection[models.ArticleVersion](backend, versionsCollection)}
}

func (r *articleVersionRepository) Create(ctx context.Context, version *models.ArticleVersion) error {
	version.ID = models.VersionKey(version.ArticleID, version.VersionNumber)
	return r.versions.Insert(ctx, version.ID, *version)
}

// GetVersions returns every snapshot of an article, newest first.
func (r *articleVersionRepository) GetVersions(ctx context.Context, articleID string) ([]models.ArticleVersion, error) {
	versions, err := r.versions.ListPrefix(ctx, models.VersionKeyPrefix(articleID))
	if err != nil {
		return nil, err
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].VersionNumber > versions[j].VersionNumber
	})
	return versions, nil
}

func (r *articleVersionRepository) GetVersion(ctx context.Context, articleID string, number int) (*models.ArticleVersion, error) {
	version, err := r.versions.Get(ctx, models.VersionKey(articleID, number))
	if err != nil {
		return nil, err
	}
	return &version, nil
}

func (r *articleVersionRepository) DeleteVersionsByArticleID(ctx context.Context, articleID string) error {
	versions, err := r.versions.ListPrefix(ctx, models.VersionKeyPrefix(articleID))
	if err != nil {
		return err
	}
	for _, v := range versions {
		if err := r.versions.Delete(ctx, v.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	return nil
}
