package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"itsm-knowledge-base/metrics"
	"itsm-knowledge-base/models"
	"itsm-knowledge-base/repositories"
	"itsm-knowledge-base/storage"
)

const DefaultLockTimeout = 30 * time.Minute

type LockService interface {
	Acquire(ctx context.Context, articleID string, p models.Principal) (*models.LockResult, error)
	// Renew extends the caller's lock. A free lock is acquired.
	Renew(ctx context.Context, articleID string, p models.Principal) (*models.LockResult, error)
	Release(ctx context.Context, articleID string, p models.Principal) (*models.LockResult, error)
	Status(ctx context.Context, articleID string, p models.Principal) (*models.LockStatus, error)
	// ExpireSweep deletes every lapsed lock and reports how many went.
	ExpireSweep(ctx context.Context) (int, error)
	RunSweeper(ctx context.Context, interval time.Duration) error
}

// lockTable is the lock bookkeeping shared with the article service. Methods
// that write expect the caller to hold the article's section.
type lockTable struct {
	repo repositories.LockRepository
	now  Clock
}

// live returns the current unexpired lock, reaping an expired one, or nil.
func (t lockTable) live(ctx context.Context, articleID string) (*models.ArticleLock, error) {
	lock, err := t.repo.Get(ctx, articleID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError(err, "lock")
	}
	if lock.IsExpired(t.now()) {
		if err := t.repo.Delete(ctx, articleID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, storageError(err, "lock")
		}
		metrics.LocksExpired.Inc()
		slog.Info("Expired lock reaped", "article_id", articleID, "locked_by", lock.LockedBy)
		return nil, nil
	}
	return lock, nil
}

// peek returns the current unexpired lock without reaping, for read paths
// that do not hold the section.
func (t lockTable) peek(ctx context.Context, articleID string) (*models.ArticleLock, error) {
	lock, err := t.repo.Get(ctx, articleID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError(err, "lock")
	}
	if lock.IsExpired(t.now()) {
		return nil, nil
	}
	return lock, nil
}

// heldByOther reports a ResourceLocked error when someone else holds the lock.
func (t lockTable) heldByOther(ctx context.Context, articleID string, p models.Principal) error {
	lock, err := t.live(ctx, articleID)
	if err != nil {
		return err
	}
	if lock != nil && lock.LockedBy != p.ID {
		return lockedError(models.NewResourceLocked(fmt.Sprintf("article is being edited by %s", lock.LockedByName)), lock)
	}
	return nil
}

// mirror copies the live lock onto the article's transient fields. It does not
// need the section.
func (t lockTable) mirror(ctx context.Context, a *models.Article) error {
	lock, err := t.peek(ctx, a.ID)
	if err != nil {
		return err
	}
	*a = a.WithoutLock()
	if lock != nil {
		lockedAt := lock.LockedAt
		a.LockedBy = lock.LockedBy
		a.LockedByName = lock.LockedByName
		a.LockedAt = &lockedAt
	}
	return nil
}

func lockedError(err *models.AppError, lock *models.ArticleLock) *models.AppError {
	return err.
		WithDetail("lockedBy", lock.LockedBy).
		WithDetail("lockedByName", lock.LockedByName).
		WithDetail("expiresAt", lock.ExpiresAt)
}

type lockService struct {
	locks       lockTable
	articleRepo repositories.ArticleRepository
	sections    *KeyedMutex
	timeout     time.Duration
}

func NewLockService(lockRepo repositories.LockRepository, articleRepo repositories.ArticleRepository, sections *KeyedMutex, clock Clock, timeout time.Duration) LockService {
	if clock == nil {
		clock = SystemClock
	}
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &lockService{
		locks:       lockTable{repo: lockRepo, now: clock},
		articleRepo: articleRepo,
		sections:    sections,
		timeout:     timeout,
	}
}

func (s *lockService) visibleArticle(ctx context.Context, articleID string, p models.Principal) (*models.Article, error) {
	article, err := s.articleRepo.GetByID(ctx, articleID)
	if err != nil {
		return nil, storageError(err, "article")
	}
	if !canView(p, *article) {
		return nil, models.NewNotFound("article not found")
	}
	return article, nil
}

func editable(p models.Principal, article *models.Article) error {
	if !canEdit(p, *article) {
		return models.NewForbidden("you are not allowed to edit this article")
	}
	if article.Status == models.StatusDeleted {
		return models.NewBadInput("deleted articles cannot be edited")
	}
	return nil
}

func (s *lockService) Acquire(ctx context.Context, articleID string, p models.Principal) (*models.LockResult, error) {
	return s.acquire(ctx, "acquire", articleID, p)
}

func (s *lockService) Renew(ctx context.Context, articleID string, p models.Principal) (*models.LockResult, error) {
	return s.acquire(ctx, "renew", articleID, p)
}

func (s *lockService) acquire(ctx context.Context, op, articleID string, p models.Principal) (*models.LockResult, error) {
	release := s.sections.Lock(articleID)
	defer release()

	article, err := s.visibleArticle(ctx, articleID, p)
	if err != nil {
		metrics.LockOperations.WithLabelValues(op, "denied").Inc()
		return nil, err
	}

	// A held lock is reported to anyone who can see the article, whether or
	// not they could edit it themselves.
	current, err := s.locks.live(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if current != nil && current.LockedBy != p.ID {
		metrics.LockOperations.WithLabelValues(op, "conflict").Inc()
		expiresAt := current.ExpiresAt
		result := &models.LockResult{
			Success:      false,
			ArticleID:    articleID,
			LockedBy:     current.LockedBy,
			LockedByName: current.LockedByName,
			ExpiresAt:    &expiresAt,
			Message:      fmt.Sprintf("Article is locked by %s", current.LockedByName),
		}
		return result, lockedError(models.NewConflict(result.Message), current)
	}
	if err := editable(p, article); err != nil {
		metrics.LockOperations.WithLabelValues(op, "denied").Inc()
		return nil, err
	}

	now := s.locks.now()
	lock := &models.ArticleLock{
		ArticleID:    articleID,
		LockedBy:     p.ID,
		LockedByName: p.Name,
		LockedAt:     now,
		ExpiresAt:    now.Add(s.timeout),
	}
	message := "Lock acquired"
	if current != nil {
		lock.LockedAt = current.LockedAt
		message = "Lock renewed"
	} else if op == "renew" {
		slog.Debug("Renew found no lock, acquiring", "article_id", articleID, "user_id", p.ID)
	}
	if err := s.locks.repo.Put(ctx, lock); err != nil {
		metrics.LockOperations.WithLabelValues(op, "error").Inc()
		return nil, storageError(err, "lock")
	}
	metrics.LockOperations.WithLabelValues(op, "ok").Inc()

	return &models.LockResult{
		Success:      true,
		ArticleID:    articleID,
		LockedBy:     lock.LockedBy,
		LockedByName: lock.LockedByName,
		LockedAt:     &lock.LockedAt,
		ExpiresAt:    &lock.ExpiresAt,
		Message:      message,
	}, nil
}

func (s *lockService) Release(ctx context.Context, articleID string, p models.Principal) (*models.LockResult, error) {
	release := s.sections.Lock(articleID)
	defer release()

	current, err := s.locks.live(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		metrics.LockOperations.WithLabelValues("release", "noop").Inc()
		return &models.LockResult{Success: true, ArticleID: articleID, Message: "No active lock"}, nil
	}

	forced := current.LockedBy != p.ID
	if forced && !models.HasPermission(p, models.PermLockForceRelease) {
		metrics.LockOperations.WithLabelValues("release", "denied").Inc()
		return nil, lockedError(models.NewForbidden(fmt.Sprintf("lock is held by %s", current.LockedByName)), current)
	}

	if err := s.locks.repo.Delete(ctx, articleID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		metrics.LockOperations.WithLabelValues("release", "error").Inc()
		return nil, storageError(err, "lock")
	}

	message := "Lock released"
	if forced {
		metrics.LocksForceReleased.Inc()
		slog.Warn("Lock released by forced override",
			"article_id", articleID,
			"released_by", p.ID,
			"released_by_name", p.Name,
			"holder", current.LockedBy,
			"holder_name", current.LockedByName,
		)
		message = fmt.Sprintf("Lock held by %s released by forced override", current.LockedByName)
	}
	metrics.LockOperations.WithLabelValues("release", "ok").Inc()

	return &models.LockResult{
		Success:      true,
		ArticleID:    articleID,
		LockedBy:     current.LockedBy,
		LockedByName: current.LockedByName,
		Message:      message,
	}, nil
}

func (s *lockService) Status(ctx context.Context, articleID string, p models.Principal) (*models.LockStatus, error) {
	article, err := s.visibleArticle(ctx, articleID, p)
	if err != nil {
		return nil, err
	}

	release := s.sections.Lock(articleID)
	defer release()

	current, err := s.locks.live(ctx, articleID)
	if err != nil {
		return nil, err
	}

	status := &models.LockStatus{
		ArticleID: articleID,
		CanEdit:   canEdit(p, *article) && article.Status != models.StatusDeleted,
	}
	if current != nil {
		status.IsLocked = true
		status.CanEdit = status.CanEdit && current.LockedBy == p.ID
		status.LockedBy = current.LockedBy
		status.LockedByName = current.LockedByName
		status.LockedAt = &current.LockedAt
		status.ExpiresAt = &current.ExpiresAt
	}
	return status, nil
}

func (s *lockService) ExpireSweep(ctx context.Context) (int, error) {
	all, err := s.locks.repo.GetAll(ctx)
	if err != nil {
		return 0, storageError(err, "lock")
	}

	removed := 0
	now := s.locks.now()
	for _, lock := range all {
		if !lock.IsExpired(now) {
			continue
		}
		// re-read under the section: the holder may have renewed meanwhile
		gone, err := s.sweepOne(ctx, lock.ArticleID)
		if err != nil {
			return removed, err
		}
		if gone {
			removed++
		}
	}
	if removed > 0 {
		slog.Info("Lock sweep finished", "removed", removed)
	}
	return removed, nil
}

func (s *lockService) sweepOne(ctx context.Context, articleID string) (bool, error) {
	release := s.sections.Lock(articleID)
	defer release()

	lock, err := s.locks.repo.Get(ctx, articleID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storageError(err, "lock")
	}
	if !lock.IsExpired(s.locks.now()) {
		return false, nil
	}
	if err := s.locks.repo.Delete(ctx, articleID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, storageError(err, "lock")
	}
	metrics.LocksExpired.Inc()
	return true, nil
}

// RunSweeper calls ExpireSweep on every tick until ctx is done.
func (s *lockService) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("Lock sweeper started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			slog.Info("Lock sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := s.ExpireSweep(ctx); err != nil {
				slog.Error("Lock sweep failed", "error", err)
			}
		}
	}
}
