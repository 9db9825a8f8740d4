package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorlens/creatorlens/internal/catalog"
	"github.com/creatorlens/creatorlens/internal/testutil"
	"github.com/creatorlens/creatorlens/internal/vectorstore"
)

type stubCatalog struct {
	items []catalog.ContentItem
	err   error
}

func (s *stubCatalog) ItemsByCreator(ctx context.Context, creatorID int64) ([]catalog.ContentItem, error) {
	return s.items, s.err
}

func newTestIndexer(t *testing.T, cat Catalog, mock *testutil.MockEmbedder) (*Indexer, *vectorstore.Manager) {
	t.Helper()
	store, err := vectorstore.NewManager(t.TempDir(), "test-model", nil)
	require.NoError(t, err)
	provider, err := NewProvider(mock, nil, nil)
	require.NoError(t, err)
	ix, err := NewIndexer(cat, provider, store, nil)
	require.NoError(t, err)
	return ix, store
}

func TestIndexCreatorEmbedsNewItems(t *testing.T) {
	cat := &stubCatalog{items: []catalog.ContentItem{
		{ID: 1, Title: "Morning routine", Transcript: "alpha beta"},
		{ID: 2, Title: "Desk setup", Transcript: "gamma delta"},
	}}
	ix, store := newTestIndexer(t, cat, &testutil.MockEmbedder{Dimension: 4})
	ctx := context.Background()

	report, err := ix.IndexCreator(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Embedded)
	assert.Equal(t, 0, report.Skipped)

	n, err := store.Count(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIndexCreatorSkipsUnchangedItems(t *testing.T) {
	cat := &stubCatalog{items: []catalog.ContentItem{
		{ID: 1, Title: "Morning routine", Transcript: "alpha beta"},
	}}
	mock := &testutil.MockEmbedder{Dimension: 4}
	ix, _ := newTestIndexer(t, cat, mock)
	ctx := context.Background()

	_, err := ix.IndexCreator(ctx, 1)
	require.NoError(t, err)
	callsAfterFirst := mock.Calls

	report, err := ix.IndexCreator(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Embedded)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, callsAfterFirst, mock.Calls, "unchanged items must not hit the provider")
}

func TestIndexCreatorReembedsChangedItems(t *testing.T) {
	item := catalog.ContentItem{ID: 1, Title: "Morning routine", Transcript: "alpha"}
	cat := &stubCatalog{items: []catalog.ContentItem{item}}
	ix, store := newTestIndexer(t, cat, &testutil.MockEmbedder{Dimension: 4})
	ctx := context.Background()

	_, err := ix.IndexCreator(ctx, 1)
	require.NoError(t, err)
	before, err := store.SourceHashes(ctx, 1)
	require.NoError(t, err)

	// Transcript backfill changes the source text.
	item.Transcript = "alpha beta gamma"
	cat.items = []catalog.ContentItem{item}

	report, err := ix.IndexCreator(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Embedded)

	after, err := store.SourceHashes(ctx, 1)
	require.NoError(t, err)
	assert.NotEqual(t, before[1], after[1])

	n, err := store.Count(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "re-embedding must replace, not duplicate")
}

func TestIndexCreatorSkipsTextlessItems(t *testing.T) {
	cat := &stubCatalog{items: []catalog.ContentItem{
		{ID: 1}, // no title, caption or transcript
		{ID: 2, Title: "Has a title"},
	}}
	ix, store := newTestIndexer(t, cat, &testutil.MockEmbedder{Dimension: 4})
	ctx := context.Background()

	report, err := ix.IndexCreator(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Embedded)
	assert.Equal(t, 1, report.Skipped)

	n, err := store.Count(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIndexCreatorProviderFailureWritesNothing(t *testing.T) {
	cat := &stubCatalog{items: []catalog.ContentItem{
		{ID: 1, Title: "Morning routine"},
	}}
	mock := &testutil.MockEmbedder{Err: errors.New("provider down")}
	ix, store := newTestIndexer(t, cat, mock)
	ctx := context.Background()

	_, err := ix.IndexCreator(ctx, 1)
	require.ErrorIs(t, err, ErrProvider)

	n, err := store.Count(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIndexCreatorEmptyCatalog(t *testing.T) {
	ix, _ := newTestIndexer(t, &stubCatalog{}, &testutil.MockEmbedder{})

	report, err := ix.IndexCreator(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Zero(t, report.Embedded)
}

func TestDocumentText(t *testing.T) {
	it := &catalog.ContentItem{
		ID:              1,
		PlatformType:    "youtube",
		PlatformHandle:  "somecreator",
		Title:           "How I plan videos",
		Caption:         "planning process",
		Transcript:      "first I brainstorm topics",
		Views:           1200,
		Likes:           80,
		Comments:        14,
		DurationSeconds: 600,
		PublishedAt:     time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	}

	text := DocumentText(it)
	assert.Contains(t, text, "[youtube:somecreator]")
	assert.Contains(t, text, "Title: How I plan videos")
	assert.Contains(t, text, "Caption: planning process")
	assert.Contains(t, text, "Transcript: first I brainstorm topics")
	assert.Contains(t, text, "Stats: 1200 views, 80 likes, 14 comments, 600s")
	assert.Contains(t, text, "Date: 2025-03-10")
}

func TestDocumentTextOmitsTranscriptEqualToCaption(t *testing.T) {
	it := &catalog.ContentItem{Caption: "same text", Transcript: "same text"}
	text := DocumentText(it)
	assert.Contains(t, text, "Caption: same text")
	assert.NotContains(t, text, "Transcript:")
}

func TestDocumentTextEmptyItem(t *testing.T) {
	assert.Empty(t, DocumentText(&catalog.ContentItem{ID: 1, Views: 100}))
}

func TestSourceHashStability(t *testing.T) {
	h1 := SourceHash("some document")
	h2 := SourceHash("some document")
	h3 := SourceHash("other document")
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}
