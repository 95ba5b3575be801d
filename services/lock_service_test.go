package services

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"itsm-knowledge-base/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockAcquireConflictNamesHolder(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "VPN drops every hour", "")

	res, err := f.locks.Acquire(f.ctx, a.ID, alice)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Lock acquired", res.Message)
	assert.Equal(t, f.clock.Now().Add(DefaultLockTimeout), *res.ExpiresAt)

	res, err = f.locks.Acquire(f.ctx, a.ID, eve)
	appErr := requireCode(t, err, models.CodeConflict)
	assert.Equal(t, "alice", appErr.Details["lockedByName"])
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, "alice", res.LockedByName)
}

func TestLockConflictBetweenAuthorsNamesHolder(t *testing.T) {
	f := newFixture(t)
	a := f.published(t, alice, "Shared mailbox permissions", "")

	_, err := f.locks.Acquire(f.ctx, a.ID, alice)
	require.NoError(t, err)

	// bob cannot edit alice's article, but still learns who holds it
	res, err := f.locks.Acquire(f.ctx, a.ID, bob)
	appErr := requireCode(t, err, models.CodeConflict)
	assert.Equal(t, "alice", appErr.Details["lockedByName"])
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, "alice", res.LockedByName)

	_, err = f.locks.Renew(f.ctx, a.ID, bob)
	requireCode(t, err, models.CodeConflict)

	_, err = f.locks.Release(f.ctx, a.ID, alice)
	require.NoError(t, err)
	_, err = f.locks.Acquire(f.ctx, a.ID, bob)
	requireCode(t, err, models.CodeForbidden)
}

func TestLockOwnerRenewExtendsExpiry(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "Printer offline", "")

	first, err := f.locks.Acquire(f.ctx, a.ID, alice)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	renewed, err := f.locks.Renew(f.ctx, a.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "Lock renewed", renewed.Message)
	assert.True(t, renewed.ExpiresAt.After(*first.ExpiresAt))
	assert.True(t, first.LockedAt.Equal(*renewed.LockedAt))

	// re-acquire by the owner is a renewal too
	again, err := f.locks.Acquire(f.ctx, a.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "Lock renewed", again.Message)

	_, err = f.locks.Renew(f.ctx, a.ID, eve)
	requireCode(t, err, models.CodeConflict)
}

func TestLockRenewOnFreeLockAcquires(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "Reset MFA token", "")

	res, err := f.locks.Renew(f.ctx, a.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "Lock acquired", res.Message)

	status, err := f.locks.Status(f.ctx, a.ID, alice)
	require.NoError(t, err)
	assert.True(t, status.IsLocked)
	assert.True(t, status.CanEdit)
}

func TestLockExpiryIsObservedAndReaped(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "Outlook keeps asking for password", "")

	_, err := f.locks.Acquire(f.ctx, a.ID, alice)
	require.NoError(t, err)

	status, err := f.locks.Status(f.ctx, a.ID, eve)
	require.NoError(t, err)
	assert.True(t, status.IsLocked)
	assert.False(t, status.CanEdit)
	assert.Equal(t, "alice", status.LockedByName)

	f.clock.Advance(DefaultLockTimeout)

	status, err = f.locks.Status(f.ctx, a.ID, eve)
	require.NoError(t, err)
	assert.False(t, status.IsLocked)
	assert.True(t, status.CanEdit)

	_, err = f.lockRepo.Get(f.ctx, a.ID)
	assert.Error(t, err, "expired lock should be removed on read")

	res, err := f.locks.Acquire(f.ctx, a.ID, eve)
	require.NoError(t, err)
	assert.Equal(t, eve.ID, res.LockedBy)
}

func TestLockReleaseRules(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "Wi-Fi certificate expired", "")

	res, err := f.locks.Release(f.ctx, a.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "No active lock", res.Message)

	_, err = f.locks.Acquire(f.ctx, a.ID, alice)
	require.NoError(t, err)

	_, err = f.locks.Release(f.ctx, a.ID, bob)
	requireCode(t, err, models.CodeForbidden)

	res, err = f.locks.Release(f.ctx, a.ID, eve)
	require.NoError(t, err)
	assert.Contains(t, res.Message, "forced override")
	assert.Equal(t, "alice", res.LockedByName)

	// after the forced release another editor can take it
	other := models.Principal{ID: "u-ed2", Name: "ed", Role: models.RoleEditor}
	got, err := f.locks.Acquire(f.ctx, a.ID, other)
	require.NoError(t, err)
	assert.Equal(t, "ed", got.LockedByName)

	res, err = f.locks.Release(f.ctx, a.ID, other)
	require.NoError(t, err)
	assert.Equal(t, "Lock released", res.Message)
}

func TestLockAcquireChecksArticle(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "Laptop battery swelling", "")

	_, err := f.locks.Acquire(f.ctx, "missing", alice)
	requireCode(t, err, models.CodeNotFound)

	// a foreign draft is hidden from other authors
	_, err = f.locks.Acquire(f.ctx, a.ID, bob)
	requireCode(t, err, models.CodeNotFound)

	_, err = f.articles.PublishArticle(f.ctx, a.ID, alice, "")
	require.NoError(t, err)
	_, err = f.locks.Acquire(f.ctx, a.ID, bob)
	requireCode(t, err, models.CodeForbidden)

	_, err = f.articles.DeleteArticle(f.ctx, a.ID, alice, "")
	require.NoError(t, err)
	_, err = f.locks.Acquire(f.ctx, a.ID, alice)
	requireCode(t, err, models.CodeBadInput)
}

func TestExpireSweep(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "Shared drive mapping", "")
	b := f.create(t, alice, "Teams audio issues", "")

	_, err := f.locks.Acquire(f.ctx, a.ID, alice)
	require.NoError(t, err)
	f.clock.Advance(20 * time.Minute)
	_, err = f.locks.Acquire(f.ctx, b.ID, alice)
	require.NoError(t, err)

	f.clock.Advance(15 * time.Minute)
	removed, err := f.locks.ExpireSweep(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	all, err := f.lockRepo.GetAll(f.ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, b.ID, all[0].ArticleID)
}

func TestConcurrentAcquireHasOneWinner(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "Citrix receiver crash", "")

	editors := make([]models.Principal, 16)
	for i := range editors {
		editors[i] = models.Principal{ID: "ed-" + string(rune('a'+i)), Name: "editor", Role: models.RoleEditor}
	}

	var wins int32
	var wg sync.WaitGroup
	for _, p := range editors {
		wg.Add(1)
		go func(p models.Principal) {
			defer wg.Done()
			if _, err := f.locks.Acquire(f.ctx, a.ID, p); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

func TestConcurrentSweepAndAcquire(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "Badge reader not working", "")
	_, err := f.locks.Acquire(f.ctx, a.ID, alice)
	require.NoError(t, err)
	f.clock.Advance(DefaultLockTimeout + time.Second)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = f.locks.ExpireSweep(f.ctx)
	}()
	go func() {
		defer wg.Done()
		_, err := f.locks.Acquire(f.ctx, a.ID, eve)
		assert.NoError(t, err)
	}()
	wg.Wait()

	// whatever the interleaving, eve's fresh lock survives the sweep
	status, err := f.locks.Status(f.ctx, a.ID, eve)
	require.NoError(t, err)
	assert.True(t, status.IsLocked)
	assert.Equal(t, eve.ID, status.LockedBy)
}

func TestAcquireRacingDeleteLeavesNoLock(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture(t)
		a := f.create(t, alice, "Rotate service account keys", "")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.locks.Acquire(f.ctx, a.ID, alice)
		}()
		go func() {
			defer wg.Done()
			_, err := f.articles.DeleteArticle(f.ctx, a.ID, alice, "")
			assert.NoError(t, err)
		}()
		wg.Wait()

		status, err := f.locks.Status(f.ctx, a.ID, alice)
		require.NoError(t, err)
		assert.False(t, status.IsLocked)
	}
}
