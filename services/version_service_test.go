package services

import (
	"testing"

	"itsm-knowledge-base/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffVersions(t *testing.T) {
	older := models.ArticleVersion{
		VersionNumber: 1,
		Title:         "Old",
		Body:          "Same body text",
		Status:        models.StatusDraft,
		Tags:          nil,
	}
	newer := models.ArticleVersion{
		VersionNumber: 2,
		Title:         "New",
		Body:          "Same body text",
		Status:        models.StatusPublished,
		Tags:          []string{},
	}

	changes := DiffVersions(older, newer)
	require.Len(t, changes, 2)
	assert.Equal(t, "title", changes[0].Field)
	assert.Equal(t, "Old", changes[0].OldValue)
	assert.Equal(t, "New", changes[0].NewValue)
	assert.Equal(t, "status", changes[1].Field)

	assert.Empty(t, DiffVersions(older, older))
}

func TestCompareNormalizesOrder(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "Enable disk encryption", "")
	_, err := f.articles.UpdateArticle(f.ctx, a.ID, models.UpdateArticleRequest{
		Tags: &[]string{"security", "how-to"},
	}, alice, "")
	require.NoError(t, err)

	cmp, err := f.versions.Compare(f.ctx, a.ID, 2, 1, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, cmp.Older.VersionNumber)
	assert.Equal(t, 2, cmp.Newer.VersionNumber)
	require.Len(t, cmp.Changes, 1)
	assert.Equal(t, "tags", cmp.Changes[0].Field)

	_, err = f.versions.Compare(f.ctx, a.ID, 1, 7, alice)
	requireCode(t, err, models.CodeNotFound)

	_, err = f.versions.Get(f.ctx, a.ID, 0, alice)
	requireCode(t, err, models.CodeBadInput)
}

func TestVersionsAreNeverOverwritten(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "Rotate service account keys", "")

	_, err := f.versions.CreateVersion(f.ctx, *a, alice, "", "duplicate")
	requireCode(t, err, models.CodeInternal)

	v1, err := f.versions.Get(f.ctx, a.ID, 1, alice)
	require.NoError(t, err)
	assert.Equal(t, "Initial creation", v1.ChangeSummary)
}

func TestPurgeAndReinstate(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, alice, "Decommission a server", "")
	_, err := f.articles.PublishArticle(f.ctx, a.ID, alice, "")
	require.NoError(t, err)

	purged, err := f.versions.Purge(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, purged, 2)
	assert.Equal(t, 0, f.versionCount(t, a.ID))

	require.NoError(t, f.versions.Reinstate(f.ctx, purged))
	assert.Equal(t, 2, f.versionCount(t, a.ID))
}

func TestReaderCanViewPublishedHistory(t *testing.T) {
	f := newFixture(t)
	a := f.published(t, alice, "Book a meeting room", "")

	list, err := f.versions.List(f.ctx, a.ID, rita)
	require.NoError(t, err)
	assert.Len(t, list.Versions, 2)
	assert.Equal(t, "Published", list.Versions[0].ChangeSummary)
}
