package services

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"itsm-knowledge-base/models"
	"itsm-knowledge-base/repositories"
	"itsm-knowledge-base/storage"

	"github.com/google/uuid"
)

type CategoryService interface {
	CreateCategory(ctx context.Context, req models.CreateCategoryRequest, p models.Principal) (*models.Category, error)
	GetCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	UpdateCategory(ctx context.Context, id string, req models.UpdateCategoryRequest, p models.Principal) (*models.Category, error)
	DeleteCategory(ctx context.Context, id string, p models.Principal) error
	// Resolve returns the stored spelling of a category name.
	Resolve(ctx context.Context, name string) (string, error)
	// Adjust adds delta to a category's article count.
	Adjust(ctx context.Context, name string, delta int) error
	Reconcile(ctx context.Context) (*models.ReconcileReport, error)
	Seed(ctx context.Context, seeds []models.Category) (int, error)
}

type categoryService struct {
	categoryRepo repositories.CategoryRepository
	articleRepo  repositories.ArticleRepository
	sections     *KeyedMutex
	sanitizer    sanitizer
	now          Clock
}

// sanitizer is the subset of helper.Sanitizer the services need.
type sanitizer interface {
	RichText(string) string
	PlainText(string) string
	PlainList([]string) []string
}

func NewCategoryService(categoryRepo repositories.CategoryRepository, articleRepo repositories.ArticleRepository, sanitizer sanitizer, clock Clock) CategoryService {
	if clock == nil {
		clock = SystemClock
	}
	return &categoryService{
		categoryRepo: categoryRepo,
		articleRepo:  articleRepo,
		sections:     NewKeyedMutex(),
		sanitizer:    sanitizer,
		now:          clock,
	}
}

func categoryKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *categoryService) CreateCategory(ctx context.Context, req models.CreateCategoryRequest, p models.Principal) (*models.Category, error) {
	if !models.HasPermission(p, models.PermCategoryManage) {
		return nil, models.NewForbidden("only editors can manage categories")
	}
	name := s.sanitizer.PlainText(req.Name)
	if name == "" {
		return nil, models.NewValidationFailed([]models.FieldError{{Field: "name", Message: "name is a required field"}})
	}

	release := s.sections.Lock(categoryKey(name))
	defer release()

	// Check if category already exists
	_, err := s.categoryRepo.GetByName(ctx, name)
	if err == nil {
		return nil, models.NewConflict("category already exists")
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, storageError(err, "category")
	}

	now := s.now()
	category := &models.Category{
		ID:          uuid.NewString(),
		Name:        name,
		Description: s.sanitizer.PlainText(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, storageError(err, "category")
	}
	return category, nil
}

func (s *categoryService) GetCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.categoryRepo.GetAll(ctx)
	if err != nil {
		return nil, storageError(err, "categories")
	}
	sort.Slice(categories, func(i, j int) bool {
		return strings.ToLower(categories[i].Name) < strings.ToLower(categories[j].Name)
	})
	return categories, nil
}

func (s *categoryService) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "category")
	}
	return category, nil
}

func (s *categoryService) UpdateCategory(ctx context.Context, id string, req models.UpdateCategoryRequest, p models.Principal) (*models.Category, error) {
	if !models.HasPermission(p, models.PermCategoryManage) {
		return nil, models.NewForbidden("only editors can manage categories")
	}
	current, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "category")
	}

	var name string
	if req.Name != nil {
		name = s.sanitizer.PlainText(*req.Name)
		if name == "" {
			return nil, models.NewValidationFailed([]models.FieldError{{Field: "name", Message: "name is a required field"}})
		}
	}

	// a rename also holds the new name's key so a concurrent create of that
	// name cannot slip past the uniqueness check
	release := s.lockNames(current.Name, name)
	defer release()

	// re-read inside the section so a concurrent Adjust is not overwritten
	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "category")
	}
	if categoryKey(category.Name) != categoryKey(current.Name) {
		return nil, models.NewConflict("category was renamed concurrently, retry")
	}

	if name != "" && name != category.Name {
		if categoryKey(name) != categoryKey(category.Name) {
			if err := s.ensureUnused(ctx, category); err != nil {
				return nil, err
			}
		}
		if other, err := s.categoryRepo.GetByName(ctx, name); err == nil && other.ID != category.ID {
			return nil, models.NewConflict("category already exists")
		} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, storageError(err, "category")
		}
		category.Name = name
	}
	if req.Description != nil {
		category.Description = s.sanitizer.PlainText(*req.Description)
	}
	category.UpdatedAt = s.now()

	if err := s.categoryRepo.Update(ctx, category); err != nil {
		return nil, storageError(err, "category")
	}
	return category, nil
}

// lockNames takes the sections of every distinct non-empty name in sorted
// order.
func (s *categoryService) lockNames(names ...string) func() {
	keys := make([]string, 0, len(names))
	for _, name := range names {
		if key := categoryKey(name); key != "" && !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	releases := make([]func(), 0, len(keys))
	for _, key := range keys {
		releases = append(releases, s.sections.Lock(key))
	}
	return func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
}

// ensureUnused refuses to remove or rename a category that any article still
// names, trashed ones included.
func (s *categoryService) ensureUnused(ctx context.Context, category *models.Category) error {
	if category.ArticleCount > 0 {
		return models.NewConflict("category still has articles assigned").
			WithDetail("articleCount", category.ArticleCount)
	}
	articles, err := s.articleRepo.GetAll(ctx)
	if err != nil {
		return storageError(err, "articles")
	}
	referenced := 0
	for _, a := range articles {
		if categoryKey(a.Category) == categoryKey(category.Name) {
			referenced++
		}
	}
	if referenced > 0 {
		return models.NewConflict("category is still referenced by articles").
			WithDetail("articleCount", category.ArticleCount).
			WithDetail("referencedBy", referenced)
	}
	return nil
}

func (s *categoryService) DeleteCategory(ctx context.Context, id string, p models.Principal) error {
	if !models.HasPermission(p, models.PermCategoryManage) {
		return models.NewForbidden("only editors can manage categories")
	}
	current, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return storageError(err, "category")
	}

	release := s.sections.Lock(categoryKey(current.Name))
	defer release()

	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return storageError(err, "category")
	}
	if err := s.ensureUnused(ctx, category); err != nil {
		return err
	}
	if err := s.categoryRepo.Delete(ctx, id); err != nil {
		return storageError(err, "category")
	}
	return nil
}

func (s *categoryService) Resolve(ctx context.Context, name string) (string, error) {
	category, err := s.categoryRepo.GetByName(ctx, name)
	if err != nil {
		return "", err
	}
	return category.Name, nil
}

func (s *categoryService) Adjust(ctx context.Context, name string, delta int) error {
	if strings.TrimSpace(name) == "" || delta == 0 {
		return nil
	}
	release := s.sections.Lock(categoryKey(name))
	defer release()

	category, err := s.categoryRepo.GetByName(ctx, name)
	if err != nil {
		return storageError(err, "category")
	}
	category.ArticleCount += delta
	if category.ArticleCount < 0 {
		slog.Warn("Category count went negative, clamping", "category", category.Name, "delta", delta)
		category.ArticleCount = 0
	}
	category.UpdatedAt = s.now()
	if err := s.categoryRepo.Update(ctx, category); err != nil {
		return storageError(err, "category")
	}
	return nil
}

func (s *categoryService) Reconcile(ctx context.Context) (*models.ReconcileReport, error) {
	articles, err := s.articleRepo.GetAll(ctx)
	if err != nil {
		return nil, storageError(err, "articles")
	}
	actual := make(map[string]int)
	for _, a := range articles {
		if a.Category != "" && a.Status.CountsTowardCategory() {
			actual[categoryKey(a.Category)]++
		}
	}

	categories, err := s.categoryRepo.GetAll(ctx)
	if err != nil {
		return nil, storageError(err, "categories")
	}
	report := &models.ReconcileReport{Checked: len(categories), Corrected: map[string]int{}}
	for _, c := range categories {
		corrected, err := s.reconcileOne(ctx, c.ID, actual[categoryKey(c.Name)])
		if err != nil {
			return report, err
		}
		if corrected != nil {
			report.Corrected[corrected.Name] = corrected.ArticleCount
		}
	}
	if len(report.Corrected) > 0 {
		slog.Warn("Category counts corrected", "corrected", report.Corrected)
	}
	return report, nil
}

func (s *categoryService) reconcileOne(ctx context.Context, id string, want int) (*models.Category, error) {
	current, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "category")
	}
	release := s.sections.Lock(categoryKey(current.Name))
	defer release()

	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "category")
	}
	if category.ArticleCount == want {
		return nil, nil
	}
	category.ArticleCount = want
	category.UpdatedAt = s.now()
	if err := s.categoryRepo.Update(ctx, category); err != nil {
		return nil, storageError(err, "category")
	}
	return category, nil
}

// Seed creates the categories that do not exist yet and returns how many
// were added. Existing ones keep their counts and descriptions.
func (s *categoryService) Seed(ctx context.Context, seeds []models.Category) (int, error) {
	added := 0
	for _, seed := range seeds {
		name := s.sanitizer.PlainText(seed.Name)
		if name == "" {
			continue
		}
		_, err := s.categoryRepo.GetByName(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return added, storageError(err, "category")
		}
		now := s.now()
		category := &models.Category{
			ID:          uuid.NewString(),
			Name:        name,
			Description: s.sanitizer.PlainText(seed.Description),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.categoryRepo.Create(ctx, category); err != nil {
			return added, storageError(err, "category")
		}
		added++
	}
	return added, nil
}
