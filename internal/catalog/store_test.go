package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorlens/creatorlens/internal/catalog"
	"github.com/creatorlens/creatorlens/internal/testutil"
)

type fixture struct {
	db        *testutil.TestDBContainer
	store     *catalog.Store
	creatorID int64
}

func setup(t *testing.T) (*fixture, func()) {
	t.Helper()
	db, cleanup := testutil.SetupTestDB(t)

	ctx := context.Background()
	var creatorID int64
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO creators (name, summary) VALUES ('somecreator', 'posts daily vlogs') RETURNING id`,
	).Scan(&creatorID)
	require.NoError(t, err)

	return &fixture{
		db:        db,
		store:     catalog.New(db.Pool, nil),
		creatorID: creatorID,
	}, cleanup
}

func (f *fixture) seedPlatform(t *testing.T, typ, handle string) int64 {
	t.Helper()
	var id int64
	err := f.db.Pool.QueryRow(context.Background(),
		`INSERT INTO platforms (creator_id, type, handle) VALUES ($1, $2, $3) RETURNING id`,
		f.creatorID, typ, handle,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func (f *fixture) seedItem(t *testing.T, platformID int64, externalID, title string, publishedAt *time.Time) int64 {
	t.Helper()
	var id int64
	err := f.db.Pool.QueryRow(context.Background(), `
		INSERT INTO content_items (platform_id, external_id, title, transcript, views, likes, published_at)
		VALUES ($1, $2, $3, 'a transcript', 100, 10, $4)
		RETURNING id`,
		platformID, externalID, title, publishedAt,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestCreator(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()

	c, err := f.store.Creator(context.Background(), f.creatorID)
	require.NoError(t, err)
	assert.Equal(t, "somecreator", c.Name)
	assert.Equal(t, "posts daily vlogs", c.Summary)
}

func TestCreatorNotFound(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()

	_, err := f.store.Creator(context.Background(), 99999)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestItemsByCreatorNewestFirst(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()

	platformID := f.seedPlatform(t, "youtube", "somecreator")
	day := func(d int) *time.Time {
		ts := time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
		return &ts
	}
	oldID := f.seedItem(t, platformID, "v1", "old video", day(1))
	newID := f.seedItem(t, platformID, "v2", "new video", day(20))
	undatedID := f.seedItem(t, platformID, "v3", "undated video", nil)

	items, err := f.store.ItemsByCreator(context.Background(), f.creatorID)
	require.NoError(t, err)
	require.Len(t, items, 3)

	// Newest first; items without a publish date sort last.
	assert.Equal(t, newID, items[0].ID)
	assert.Equal(t, oldID, items[1].ID)
	assert.Equal(t, undatedID, items[2].ID)

	assert.Equal(t, "youtube", items[0].PlatformType)
	assert.Equal(t, "somecreator", items[0].PlatformHandle)
	assert.True(t, items[2].PublishedAt.IsZero())
}

func TestItemsByCreatorScopedToCreator(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()

	ctx := context.Background()
	platformID := f.seedPlatform(t, "youtube", "somecreator")
	f.seedItem(t, platformID, "v1", "mine", nil)

	// Another creator's content must not leak in.
	var otherCreator int64
	require.NoError(t, f.db.Pool.QueryRow(ctx,
		`INSERT INTO creators (name) VALUES ('other') RETURNING id`).Scan(&otherCreator))
	var otherPlatform int64
	require.NoError(t, f.db.Pool.QueryRow(ctx,
		`INSERT INTO platforms (creator_id, type, handle) VALUES ($1, 'youtube', 'other') RETURNING id`,
		otherCreator).Scan(&otherPlatform))
	var otherItem int64
	require.NoError(t, f.db.Pool.QueryRow(ctx,
		`INSERT INTO content_items (platform_id, external_id) VALUES ($1, 'x1') RETURNING id`,
		otherPlatform).Scan(&otherItem))

	items, err := f.store.ItemsByCreator(ctx, f.creatorID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "mine", items[0].Title)
}

func TestItemsByCreatorEmptyCatalog(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()

	items, err := f.store.ItemsByCreator(context.Background(), f.creatorID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLatestKnowledgePicksHighestVersion(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()

	ctx := context.Background()
	seed := func(typ string, version int, content string) {
		_, err := f.db.Pool.Exec(ctx, `
			INSERT INTO creator_knowledge (creator_id, type, version, content)
			VALUES ($1, $2, $3, $4)`,
			f.creatorID, typ, version, content)
		require.NoError(t, err)
	}
	seed(catalog.KnowledgeProfile, 1, "profile v1")
	seed(catalog.KnowledgeProfile, 2, "profile v2")
	seed(catalog.KnowledgeTopics, 1, "topics v1")

	entries, err := f.store.LatestKnowledge(ctx, f.creatorID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "profile v2", entries[catalog.KnowledgeProfile].Content)
	assert.Equal(t, "topics v1", entries[catalog.KnowledgeTopics].Content)

	_, hasStyle := entries[catalog.KnowledgeStyle]
	assert.False(t, hasStyle, "missing knowledge types are simply absent")
}
