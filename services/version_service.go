package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"itsm-knowledge-base/models"
	"itsm-knowledge-base/repositories"
	"itsm-knowledge-base/storage"
)

type VersionService interface {
	// CreateVersion snapshots a at its current version number.
	CreateVersion(ctx context.Context, a models.Article, changedBy models.Principal, reason, summary string) (*models.ArticleVersion, error)
	List(ctx context.Context, articleID string, p models.Principal) (*models.VersionList, error)
	Get(ctx context.Context, articleID string, number int, p models.Principal) (*models.ArticleVersion, error)
	Compare(ctx context.Context, articleID string, v1, v2 int, p models.Principal) (*models.VersionComparison, error)
	// Purge removes every snapshot of an article and returns what was removed.
	Purge(ctx context.Context, articleID string) ([]models.ArticleVersion, error)
	// Reinstate puts back snapshots removed by Purge.
	Reinstate(ctx context.Context, versions []models.ArticleVersion) error
}

type versionService struct {
	versionRepo repositories.ArticleVersionRepository
	articleRepo repositories.ArticleRepository
	now         Clock
}

func NewVersionService(versionRepo repositories.ArticleVersionRepository, articleRepo repositories.ArticleRepository, clock Clock) VersionService {
	if clock == nil {
		clock = SystemClock
	}
	return &versionService{versionRepo: versionRepo, articleRepo: articleRepo, now: clock}
}

func (s *versionService) CreateVersion(ctx context.Context, a models.Article, changedBy models.Principal, reason, summary string) (*models.ArticleVersion, error) {
	version := models.SnapshotOf(a)
	version.ChangedBy = changedBy.ID
	version.ChangedByName = changedBy.Name
	version.ChangedAt = s.now()
	version.ChangeReason = reason
	version.ChangeSummary = summary

	err := s.versionRepo.Create(ctx, &version)
	if errors.Is(err, storage.ErrExists) {
		return nil, models.NewInternal(
			fmt.Sprintf("version %d of article %s already exists", version.VersionNumber, a.ID), err)
	}
	if err != nil {
		return nil, storageError(err, "version")
	}
	return &version, nil
}

func (s *versionService) visibleArticle(ctx context.Context, articleID string, p models.Principal) (*models.Article, error) {
	if !models.HasPermission(p, models.PermVersionView) {
		return nil, models.NewForbidden("you are not allowed to view version history")
	}
	article, err := s.articleRepo.GetByID(ctx, articleID)
	if err != nil {
		return nil, storageError(err, "article")
	}
	if !canView(p, *article) {
		return nil, models.NewNotFound("article not found")
	}
	return article, nil
}

func (s *versionService) List(ctx context.Context, articleID string, p models.Principal) (*models.VersionList, error) {
	article, err := s.visibleArticle(ctx, articleID, p)
	if err != nil {
		return nil, err
	}
	versions, err := s.versionRepo.GetVersions(ctx, articleID)
	if err != nil {
		return nil, storageError(err, "versions")
	}
	return &models.VersionList{
		ArticleID:      articleID,
		CurrentVersion: article.Version,
		Versions:       versions,
	}, nil
}

func (s *versionService) Get(ctx context.Context, articleID string, number int, p models.Principal) (*models.ArticleVersion, error) {
	if _, err := s.visibleArticle(ctx, articleID, p); err != nil {
		return nil, err
	}
	return s.get(ctx, articleID, number)
}

func (s *versionService) get(ctx context.Context, articleID string, number int) (*models.ArticleVersion, error) {
	if number < 1 {
		return nil, models.NewBadInput("version must be a positive number")
	}
	version, err := s.versionRepo.GetVersion(ctx, articleID, number)
	if err != nil {
		return nil, storageError(err, fmt.Sprintf("version %d", number))
	}
	return version, nil
}

func (s *versionService) Compare(ctx context.Context, articleID string, v1, v2 int, p models.Principal) (*models.VersionComparison, error) {
	if _, err := s.visibleArticle(ctx, articleID, p); err != nil {
		return nil, err
	}
	if v1 > v2 {
		v1, v2 = v2, v1
	}
	older, err := s.get(ctx, articleID, v1)
	if err != nil {
		return nil, err
	}
	newer, err := s.get(ctx, articleID, v2)
	if err != nil {
		return nil, err
	}
	return &models.VersionComparison{
		ArticleID: articleID,
		Older:     *older,
		Newer:     *newer,
		Changes:   DiffVersions(*older, *newer),
	}, nil
}

func (s *versionService) Purge(ctx context.Context, articleID string) ([]models.ArticleVersion, error) {
	versions, err := s.versionRepo.GetVersions(ctx, articleID)
	if err != nil {
		return nil, storageError(err, "versions")
	}
	if err := s.versionRepo.DeleteVersionsByArticleID(ctx, articleID); err != nil {
		return nil, storageError(err, "versions")
	}
	return versions, nil
}

func (s *versionService) Reinstate(ctx context.Context, versions []models.ArticleVersion) error {
	for i := range versions {
		err := s.versionRepo.Create(ctx, &versions[i])
		if err != nil && !errors.Is(err, storage.ErrExists) {
			return storageError(err, "version")
		}
	}
	return nil
}

// DiffVersions lists the content fields that differ between two snapshots.
func DiffVersions(older, newer models.ArticleVersion) []models.FieldChange {
	changes := make([]models.FieldChange, 0)
	add := func(field string, oldValue, newValue interface{}) {
		if !reflect.DeepEqual(oldValue, newValue) {
			changes = append(changes, models.FieldChange{Field: field, OldValue: oldValue, NewValue: newValue})
		}
	}
	add("title", older.Title, newer.Title)
	add("body", older.Body, newer.Body)
	add("category", older.Category, newer.Category)
	add("status", older.Status, newer.Status)
	add("tags", nonNil(older.Tags), nonNil(newer.Tags))
	add("relatedArticles", nonNil(older.RelatedArticles), nonNil(newer.RelatedArticles))
	return changes
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
