package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"itsm-knowledge-base/metrics"
	"itsm-knowledge-base/models"
	"itsm-knowledge-base/repositories"
	"itsm-knowledge-base/storage"

	"github.com/google/uuid"
)

type ArticleService interface {
	CreateArticle(ctx context.Context, req models.CreateArticleRequest, p models.Principal, reason string) (*models.Article, error)
	GetArticle(ctx context.Context, id string, p models.Principal) (*models.Article, error)
	GetArticles(ctx context.Context, params models.ArticleListParams, p models.Principal) (*models.ArticlePage, error)
	UpdateArticle(ctx context.Context, id string, req models.UpdateArticleRequest, p models.Principal, reason string) (*models.Article, error)
	PublishArticle(ctx context.Context, id string, p models.Principal, reason string) (*models.Article, error)
	ArchiveArticle(ctx context.Context, id string, p models.Principal, reason string) (*models.Article, error)
	DeleteArticle(ctx context.Context, id string, p models.Principal, reason string) (*models.Article, error)
	RestoreArticle(ctx context.Context, id string, p models.Principal, reason string) (*models.Article, error)
	RestoreToVersion(ctx context.Context, id string, version int, p models.Principal, reason string) (*models.Article, error)
	PermanentDeleteArticle(ctx context.Context, id string, p models.Principal) error
}

// ArticleDeps wires the article service. Sections must be the same instance
// the lock service uses.
type ArticleDeps struct {
	Articles   repositories.ArticleRepository
	Locks      repositories.LockRepository
	Comments   repositories.CommentRepository
	Versions   VersionService
	Categories CategoryService
	Sections   *KeyedMutex
	Validator  fieldValidator
	Sanitizer  sanitizer
	Clock      Clock
}

type articleService struct {
	articleRepo repositories.ArticleRepository
	commentRepo repositories.CommentRepository
	locks       lockTable
	versions    VersionService
	categories  CategoryService
	sections    *KeyedMutex
	validator   fieldValidator
	sanitizer   sanitizer
	now         Clock
}

func NewArticleService(deps ArticleDeps) ArticleService {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock
	}
	return &articleService{
		articleRepo: deps.Articles,
		commentRepo: deps.Comments,
		locks:       lockTable{repo: deps.Locks, now: clock},
		versions:    deps.Versions,
		categories:  deps.Categories,
		sections:    deps.Sections,
		validator:   deps.Validator,
		sanitizer:   deps.Sanitizer,
		now:         clock,
	}
}

// mutation carries one article write through persist, snapshot and undo.
type mutation struct {
	op      string
	before  models.Article
	article models.Article
	undo    *undoStack
}

func (s *articleService) CreateArticle(ctx context.Context, req models.CreateArticleRequest, p models.Principal, reason string) (*models.Article, error) {
	if !models.HasPermission(p, models.PermArticleCreate) {
		return nil, models.NewForbidden("you are not allowed to create articles")
	}

	in := s.cleanInput(models.ArticleInput{
		Title:           req.Title,
		Body:            req.Body,
		Category:        req.Category,
		Tags:            req.Tags,
		RelatedArticles: req.RelatedArticles,
	})
	if err := s.validateInput(ctx, "", &in); err != nil {
		return nil, err
	}

	now := s.now()
	article := models.Article{
		ID:         uuid.NewString(),
		Status:     models.StatusDraft,
		AuthorID:   p.ID,
		AuthorName: p.Name,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	applyInput(&article, in)

	release := s.sections.Lock(article.ID)
	defer release()

	undo := newUndoStack("create", article.ID)

	// Persist article
	if err := s.articleRepo.Create(ctx, &article); err != nil {
		return nil, s.fail("create", storageError(err, "article"))
	}
	undo.push("erase article", func(ctx context.Context) error {
		return s.articleRepo.Delete(ctx, article.ID)
	})

	// Snapshot v1
	if _, err := s.versions.CreateVersion(ctx, article, p, s.cleanReason(reason), "Initial creation"); err != nil {
		undo.unwind(ctx, err)
		return nil, s.fail("create", err)
	}

	s.adjustCategory(ctx, article.ID, article.Category, 1)

	metrics.ArticleMutations.WithLabelValues("create", "ok").Inc()
	slog.Info("Article created", "article_id", article.ID, "author_id", p.ID)
	return &article, nil
}

func (s *articleService) UpdateArticle(ctx context.Context, id string, req models.UpdateArticleRequest, p models.Principal, reason string) (*models.Article, error) {
	release := s.sections.Lock(id)
	defer release()

	current, err := s.load(ctx, id, p)
	if err != nil {
		return nil, err
	}
	if !canEdit(p, *current) {
		return nil, models.NewForbidden("you are not allowed to edit this article")
	}
	if current.Status == models.StatusDeleted {
		return nil, models.NewBadInput("deleted articles cannot be edited, restore it first")
	}

	// Lock check
	if err := s.locks.heldByOther(ctx, id, p); err != nil {
		return nil, err
	}

	// Validate merged content
	before := inputOf(*current)
	in := s.mergeUpdate(*current, req)
	if err := s.validateInput(ctx, id, &in); err != nil {
		return nil, err
	}
	changed := changedFields(before, in)
	if len(changed) == 0 {
		return nil, models.NewBadInput("no changes")
	}

	m := s.begin("update", *current)
	applyInput(&m.article, in)
	if err := s.commit(ctx, m, p, reason, "Updated "+strings.Join(changed, ", ")); err != nil {
		return nil, err
	}

	s.moveCategory(ctx, id, before.Category, m.article.Category, m.article.Status)
	return s.withLock(ctx, m.article)
}

func (s *articleService) PublishArticle(ctx context.Context, id string, p models.Principal, reason string) (*models.Article, error) {
	release := s.sections.Lock(id)
	defer release()

	current, err := s.load(ctx, id, p)
	if err != nil {
		return nil, err
	}
	if !models.CanActOn(p, current.AuthorID, models.PermArticlePublishOwn, models.PermArticlePublishAll) {
		return nil, models.NewForbidden("you are not allowed to publish this article")
	}
	if current.Status != models.StatusDraft {
		return nil, models.NewBadInput("only draft articles can be published").
			WithDetail("status", current.Status)
	}

	m := s.begin("publish", *current)
	m.article.Status = models.StatusPublished
	if m.article.PublishedAt == nil {
		now := m.article.UpdatedAt
		m.article.PublishedAt = &now
	}
	if err := s.commit(ctx, m, p, reason, "Published"); err != nil {
		return nil, err
	}
	return s.withLock(ctx, m.article)
}

func (s *articleService) ArchiveArticle(ctx context.Context, id string, p models.Principal, reason string) (*models.Article, error) {
	release := s.sections.Lock(id)
	defer release()

	current, err := s.load(ctx, id, p)
	if err != nil {
		return nil, err
	}
	if !models.HasPermission(p, models.PermArticleArchive) {
		return nil, models.NewForbidden("only editors can archive articles")
	}
	if current.Status != models.StatusPublished {
		return nil, models.NewBadInput("only published articles can be archived").
			WithDetail("status", current.Status)
	}

	m := s.begin("archive", *current)
	m.article.Status = models.StatusArchived
	now := m.article.UpdatedAt
	m.article.ArchivedAt = &now
	if err := s.commit(ctx, m, p, reason, "Archived"); err != nil {
		return nil, err
	}
	return s.withLock(ctx, m.article)
}

func (s *articleService) DeleteArticle(ctx context.Context, id string, p models.Principal, reason string) (*models.Article, error) {
	release := s.sections.Lock(id)
	defer release()

	current, err := s.load(ctx, id, p)
	if err != nil {
		return nil, err
	}
	if !models.CanActOn(p, current.AuthorID, models.PermArticleDeleteOwn, models.PermArticleDeleteAll) {
		return nil, models.NewForbidden("you are not allowed to delete this article")
	}
	if current.Status == models.StatusDeleted {
		return nil, models.NewBadInput("article is already in the trash")
	}

	m := s.begin("delete", *current)

	// Release any lock first
	held, err := s.locks.live(ctx, id)
	if err != nil {
		return nil, s.fail("delete", err)
	}
	if held != nil {
		if err := s.locks.repo.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, s.fail("delete", storageError(err, "lock"))
		}
		lock := *held
		m.undo.push("restore lock", func(ctx context.Context) error {
			return s.locks.repo.Put(ctx, &lock)
		})
		slog.Info("Lock released by delete", "article_id", id, "holder", held.LockedBy)
	}

	m.article.Status = models.StatusDeleted
	now := m.article.UpdatedAt
	m.article.DeletedAt = &now
	if err := s.persist(ctx, m); err != nil {
		return nil, err
	}
	if current.Status.CountsTowardCategory() && s.adjustCategory(ctx, id, current.Category, -1) {
		m.undo.push("restore category count", func(ctx context.Context) error {
			return s.categories.Adjust(ctx, current.Category, 1)
		})
	}
	if err := s.snapshot(ctx, m, p, reason, "Moved to trash"); err != nil {
		return nil, err
	}
	return s.withLock(ctx, m.article)
}

func (s *articleService) RestoreArticle(ctx context.Context, id string, p models.Principal, reason string) (*models.Article, error) {
	release := s.sections.Lock(id)
	defer release()

	current, err := s.load(ctx, id, p)
	if err != nil {
		return nil, err
	}
	if !models.CanActOn(p, current.AuthorID, models.PermArticleRestoreOwn, models.PermArticleRestoreAll) {
		return nil, models.NewForbidden("you are not allowed to restore this article")
	}
	if current.Status != models.StatusDeleted {
		return nil, models.NewBadInput("only deleted articles can be restored from the trash").
			WithDetail("status", current.Status)
	}

	m := s.begin("restore", *current)
	m.article.Status = models.StatusDraft
	m.article.DeletedAt = nil
	if err := s.restoreCategory(ctx, m); err != nil {
		return nil, s.fail("restore", err)
	}
	if err := s.persist(ctx, m); err != nil {
		return nil, err
	}
	if s.adjustCategory(ctx, id, m.article.Category, 1) {
		m.undo.push("restore category count", func(ctx context.Context) error {
			return s.categories.Adjust(ctx, m.article.Category, -1)
		})
	}
	if err := s.snapshot(ctx, m, p, reason, "Restored from trash"); err != nil {
		return nil, err
	}
	return s.withLock(ctx, m.article)
}

func (s *articleService) RestoreToVersion(ctx context.Context, id string, version int, p models.Principal, reason string) (*models.Article, error) {
	release := s.sections.Lock(id)
	defer release()

	current, err := s.load(ctx, id, p)
	if err != nil {
		return nil, err
	}
	if !models.CanActOn(p, current.AuthorID, models.PermArticleRestoreOwn, models.PermArticleRestoreAll) {
		return nil, models.NewForbidden("you are not allowed to restore this article")
	}
	if current.Status == models.StatusDeleted {
		return nil, models.NewBadInput("restore the article from the trash first")
	}
	if version == current.Version {
		return nil, models.NewBadInput(fmt.Sprintf("version %d is already the current version", version))
	}

	target, err := s.versions.Get(ctx, id, version, p)
	if err != nil {
		return nil, err
	}

	in := models.ArticleInput{
		Title:           target.Title,
		Body:            target.Body,
		Category:        target.Category,
		Tags:            target.Tags,
		RelatedArticles: target.RelatedArticles,
	}
	if err := s.validateInput(ctx, id, &in); err != nil {
		return nil, err
	}

	summary := fmt.Sprintf("Restored from version %d", version)
	if strings.TrimSpace(reason) == "" {
		reason = summary
	}

	m := s.begin("restore_version", *current)
	applyInput(&m.article, in)
	if err := s.commit(ctx, m, p, reason, summary); err != nil {
		return nil, err
	}

	s.moveCategory(ctx, id, current.Category, m.article.Category, m.article.Status)
	return s.withLock(ctx, m.article)
}

func (s *articleService) PermanentDeleteArticle(ctx context.Context, id string, p models.Principal) error {
	if !models.HasPermission(p, models.PermArticleDeleteAll) {
		return models.NewForbidden("only editors can permanently delete articles")
	}

	release := s.sections.Lock(id)
	defer release()

	current, err := s.load(ctx, id, p)
	if err != nil {
		return err
	}
	if current.Status != models.StatusDeleted {
		return models.NewBadInput("only articles in the trash can be permanently deleted").
			WithDetail("status", current.Status)
	}

	undo := newUndoStack("permanent_delete", id)

	// Purge versions
	purged, err := s.versions.Purge(ctx, id)
	if err != nil {
		return s.fail("permanent_delete", err)
	}
	undo.push("reinstate versions", func(ctx context.Context) error {
		return s.versions.Reinstate(ctx, purged)
	})

	// Erase article
	if err := s.articleRepo.Delete(ctx, id); err != nil {
		err = storageError(err, "article")
		undo.unwind(ctx, err)
		return s.fail("permanent_delete", err)
	}

	// Leftovers that no longer belong to anything
	if err := s.locks.repo.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		slog.Warn("Orphaned lock left behind", "article_id", id, "error", err)
	}
	removed := 0
	if s.commentRepo != nil {
		removed, err = s.commentRepo.DeleteByArticleID(ctx, id)
		if err != nil {
			slog.Warn("Orphaned comments left behind", "article_id", id, "error", err)
		}
	}
	slog.Info("Article permanently deleted", "article_id", id, "versions", len(purged), "comments", removed, "by", p.ID)

	metrics.ArticleMutations.WithLabelValues("permanent_delete", "ok").Inc()
	return nil
}

// load reads an article and hides it when the caller may not see it.
func (s *articleService) load(ctx context.Context, id string, p models.Principal) (*models.Article, error) {
	article, err := s.articleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "article")
	}
	if !canView(p, *article) {
		return nil, models.NewNotFound("article not found")
	}
	return article, nil
}

func (s *articleService) begin(op string, current models.Article) *mutation {
	next := current.Clone().WithoutLock()
	next.Version = current.Version + 1
	next.UpdatedAt = s.now()
	return &mutation{
		op:      op,
		before:  current.Clone().WithoutLock(),
		article: next,
		undo:    newUndoStack(op, current.ID),
	}
}

// commit persists the mutation and snapshots it.
func (s *articleService) commit(ctx context.Context, m *mutation, p models.Principal, reason, summary string) error {
	if err := s.persist(ctx, m); err != nil {
		return err
	}
	return s.snapshot(ctx, m, p, reason, summary)
}

func (s *articleService) persist(ctx context.Context, m *mutation) error {
	if err := s.articleRepo.Update(ctx, &m.article); err != nil {
		err = storageError(err, "article")
		m.undo.unwind(ctx, err)
		return s.fail(m.op, err)
	}
	before := m.before
	m.undo.push("restore article", func(ctx context.Context) error {
		return s.articleRepo.Update(ctx, &before)
	})
	return nil
}

func (s *articleService) snapshot(ctx context.Context, m *mutation, p models.Principal, reason, summary string) error {
	if _, err := s.versions.CreateVersion(ctx, m.article, p, s.cleanReason(reason), summary); err != nil {
		m.undo.unwind(ctx, err)
		return s.fail(m.op, err)
	}
	metrics.ArticleMutations.WithLabelValues(m.op, "ok").Inc()
	slog.Info("Article mutated",
		"operation", m.op,
		"article_id", m.article.ID,
		"version", m.article.Version,
		"status", m.article.Status,
		"by", p.ID,
	)
	return nil
}

func (s *articleService) fail(op string, err error) error {
	metrics.ArticleMutations.WithLabelValues(op, "error").Inc()
	return err
}

// restoreCategory drops a category that was removed while the article sat in
// the trash, so the restored draft stays editable.
func (s *articleService) restoreCategory(ctx context.Context, m *mutation) error {
	if m.article.Category == "" {
		return nil
	}
	name, err := s.categories.Resolve(ctx, m.article.Category)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		slog.Warn("Category gone, restoring article uncategorized",
			"article_id", m.article.ID,
			"category", m.article.Category,
		)
		m.article.Category = ""
	case err != nil:
		return storageError(err, "category")
	default:
		m.article.Category = name
	}
	return nil
}

// adjustCategory never fails the request. A failed adjustment is logged as
// drift for the reconcile job. It reports whether the count was changed.
func (s *articleService) adjustCategory(ctx context.Context, articleID, category string, delta int) bool {
	if category == "" {
		return false
	}
	if err := s.categories.Adjust(ctx, category, delta); err != nil {
		metrics.CategoryDrift.Inc()
		slog.Error("Category count drift",
			"article_id", articleID,
			"category", category,
			"delta", delta,
			"error", err,
		)
		return false
	}
	return true
}

func (s *articleService) moveCategory(ctx context.Context, articleID, from, to string, status models.ArticleStatus) {
	if from == to || !status.CountsTowardCategory() {
		return
	}
	s.adjustCategory(ctx, articleID, from, -1)
	s.adjustCategory(ctx, articleID, to, 1)
}

func (s *articleService) withLock(ctx context.Context, a models.Article) (*models.Article, error) {
	if err := s.locks.mirror(ctx, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

const maxReasonLength = 500

func (s *articleService) cleanReason(reason string) string {
	reason = s.sanitizer.PlainText(reason)
	if r := []rune(reason); len(r) > maxReasonLength {
		reason = string(r[:maxReasonLength])
	}
	return reason
}
