package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"itsm-knowledge-base/helper"
	"itsm-knowledge-base/models"
	"itsm-knowledge-base/repositories"
	"itsm-knowledge-base/storage"

	"github.com/stretchr/testify/require"
)

var (
	alice = models.Principal{ID: "u-alice", Name: "alice", Role: models.RoleAuthor}
	bob   = models.Principal{ID: "u-bob", Name: "bob", Role: models.RoleAuthor}
	eve   = models.Principal{ID: "u-eve", Name: "eve", Role: models.RoleEditor}
	carl  = models.Principal{ID: "u-carl", Name: "carl", Role: models.RoleActor}
	rita  = models.Principal{ID: "u-rita", Name: "rita", Role: models.RoleReader}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// flakyVersions fails snapshot writes while failing is set.
type flakyVersions struct {
	repositories.ArticleVersionRepository
	mu      sync.Mutex
	failing bool
}

func (f *flakyVersions) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func (f *flakyVersions) Create(ctx context.Context, v *models.ArticleVersion) error {
	f.mu.Lock()
	failing := f.failing
	f.mu.Unlock()
	if failing {
		return storage.ErrUnavailable
	}
	return f.ArticleVersionRepository.Create(ctx, v)
}

type fixture struct {
	ctx        context.Context
	clock      *fakeClock
	articles   ArticleService
	locks      LockService
	versions   VersionService
	comments   CommentService
	categories CategoryService

	articleRepo  repositories.ArticleRepository
	lockRepo     repositories.LockRepository
	versionRepo  *flakyVersions
	commentRepo  repositories.CommentRepository
	categoryRepo repositories.CategoryRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := storage.NewMemoryBackend()
	t.Cleanup(func() { backend.Close() })

	f := &fixture{
		ctx:          context.Background(),
		clock:        newFakeClock(),
		articleRepo:  repositories.NewArticleRepository(backend),
		lockRepo:     repositories.NewLockRepository(backend),
		versionRepo:  &flakyVersions{ArticleVersionRepository: repositories.NewArticleVersionRepository(backend)},
		commentRepo:  repositories.NewCommentRepository(backend),
		categoryRepo: repositories.NewCategoryRepository(backend),
	}

	validator := helper.NewValidator()
	sanitizer := helper.NewSanitizer()
	sections := NewKeyedMutex()

	f.locks = NewLockService(f.lockRepo, f.articleRepo, sections, f.clock.Now, DefaultLockTimeout)
	f.versions = NewVersionService(f.versionRepo, f.articleRepo, f.clock.Now)
	f.categories = NewCategoryService(f.categoryRepo, f.articleRepo, sanitizer, f.clock.Now)
	f.comments = NewCommentService(f.commentRepo, f.articleRepo, validator, sanitizer, f.clock.Now)
	f.articles = NewArticleService(ArticleDeps{
		Articles:   f.articleRepo,
		Locks:      f.lockRepo,
		Comments:   f.commentRepo,
		Versions:   f.versions,
		Categories: f.categories,
		Sections:   sections,
		Validator:  validator,
		Sanitizer:  sanitizer,
		Clock:      f.clock.Now,
	})
	return f
}

func (f *fixture) category(t *testing.T, name string) *models.Category {
	t.Helper()
	c, err := f.categories.CreateCategory(f.ctx, models.CreateCategoryRequest{Name: name}, eve)
	require.NoError(t, err)
	return c
}

func (f *fixture) categoryCount(t *testing.T, name string) int {
	t.Helper()
	c, err := f.categoryRepo.GetByName(f.ctx, name)
	require.NoError(t, err)
	return c.ArticleCount
}

func (f *fixture) create(t *testing.T, p models.Principal, title, category string) *models.Article {
	t.Helper()
	a, err := f.articles.CreateArticle(f.ctx, models.CreateArticleRequest{
		Title:    title,
		Body:     "Steps to resolve the issue on a managed laptop.",
		Category: category,
		Tags:     []string{"how-to"},
	}, p, "")
	require.NoError(t, err)
	return a
}

func (f *fixture) published(t *testing.T, p models.Principal, title, category string) *models.Article {
	t.Helper()
	a := f.create(t, p, title, category)
	a, err := f.articles.PublishArticle(f.ctx, a.ID, p, "")
	require.NoError(t, err)
	return a
}

// versionCount reads storage directly so tests can check version/log parity.
func (f *fixture) versionCount(t *testing.T, articleID string) int {
	t.Helper()
	versions, err := f.versionRepo.GetVersions(f.ctx, articleID)
	require.NoError(t, err)
	return len(versions)
}

func requireCode(t *testing.T, err error, code models.ErrorCode) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code, appErr.Message)
	return appErr
}

func strPtr(s string) *string { return &s }
