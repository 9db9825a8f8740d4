package vectorstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModel = "gemini-embedding-001"

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), testModel, nil)
	require.NoError(t, err)
	return m
}

func TestNewManagerRequiresModel(t *testing.T) {
	_, err := NewManager(t.TempDir(), "", nil)
	assert.Error(t, err)
}

func TestUpsertAndQuery(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.UpsertBatch(ctx, 1, []Record{
		{ItemID: 10, Vector: []float32{1, 0}, SourceHash: "h10"},
		{ItemID: 20, Vector: []float32{0, 1}, SourceHash: "h20"},
		{ItemID: 30, Vector: []float32{0.7, 0.7}, SourceHash: "h30"},
	}))

	results, err := m.Query(ctx, 1, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(10), results[0].ItemID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
	assert.Equal(t, int64(30), results[1].ItemID)
}

func TestUpsertIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	rec := Record{ItemID: 10, Vector: []float32{1, 0}, SourceHash: "v1"}
	require.NoError(t, m.Upsert(ctx, 1, rec))
	require.NoError(t, m.Upsert(ctx, 1, rec))

	n, err := m.Count(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Re-upserting with a new vector replaces, never duplicates.
	rec.Vector = []float32{0, 1}
	rec.SourceHash = "v2"
	require.NoError(t, m.Upsert(ctx, 1, rec))

	n, err = m.Count(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	hashes, err := m.SourceHashes(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{10: "v2"}, hashes)
}

func TestQueryTiesBreakOnLowerItemID(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	// Identical vectors tie exactly on similarity.
	require.NoError(t, m.UpsertBatch(ctx, 1, []Record{
		{ItemID: 30, Vector: []float32{1, 0}},
		{ItemID: 10, Vector: []float32{1, 0}},
		{ItemID: 20, Vector: []float32{1, 0}},
	}))

	results, err := m.Query(ctx, 1, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int64(10), results[0].ItemID)
	assert.Equal(t, int64(20), results[1].ItemID)
	assert.Equal(t, int64(30), results[2].ItemID)
}

func TestQueryEmptyStoreReturnsNoResults(t *testing.T) {
	m := newTestManager(t)

	results, err := m.Query(context.Background(), 99, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryKLargerThanStore(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Upsert(ctx, 1, Record{ItemID: 10, Vector: []float32{1, 0}}))

	results, err := m.Query(ctx, 1, []float32{1, 0}, 100)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestUpsertDimensionMismatch(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Upsert(ctx, 1, Record{ItemID: 10, Vector: []float32{1, 0, 0}}))

	err := m.Upsert(ctx, 1, Record{ItemID: 20, Vector: []float32{1, 0}})
	require.ErrorIs(t, err, ErrDimensionMismatch)

	// The rejected upsert must not have touched the artifact.
	n, err := m.Count(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestQueryDimensionMismatch(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Upsert(ctx, 1, Record{ItemID: 10, Vector: []float32{1, 0, 0}}))

	_, err := m.Query(ctx, 1, []float32{1, 0}, 5)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestModelMismatch(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	m1, err := NewManager(dir, "model-a", nil)
	require.NoError(t, err)
	require.NoError(t, m1.Upsert(ctx, 1, Record{ItemID: 10, Vector: []float32{1}}))

	m2, err := NewManager(dir, "model-b", nil)
	require.NoError(t, err)

	_, err = m2.Query(ctx, 1, []float32{1}, 5)
	assert.ErrorIs(t, err, ErrModelMismatch)

	err = m2.Upsert(ctx, 1, Record{ItemID: 20, Vector: []float32{1}})
	assert.ErrorIs(t, err, ErrModelMismatch)
}

func TestCorruptArtifact(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, testModel, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "creator_1.json"), []byte("{not json"), 0o600))

	_, err = m.Query(context.Background(), 1, []float32{1}, 5)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestSourceHashesEmptyStore(t *testing.T) {
	m := newTestManager(t)

	_, err := m.SourceHashes(context.Background(), 42)
	assert.ErrorIs(t, err, ErrEmptyStore)
}

func TestDeleteIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Upsert(ctx, 1, Record{ItemID: 10, Vector: []float32{1}}))
	require.NoError(t, m.Delete(ctx, 1))
	require.NoError(t, m.Delete(ctx, 1))

	n, err := m.Count(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestArtifactSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	m1, err := NewManager(dir, testModel, nil)
	require.NoError(t, err)
	require.NoError(t, m1.UpsertBatch(ctx, 7, []Record{
		{ItemID: 1, Vector: []float32{1, 0}, SourceHash: "a"},
		{ItemID: 2, Vector: []float32{0, 1}, SourceHash: "b"},
	}))

	// A fresh manager over the same directory sees the persisted records.
	m2, err := NewManager(dir, testModel, nil)
	require.NoError(t, err)

	results, err := m2.Query(ctx, 7, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].ItemID)

	// And the artifact is valid JSON with the model stamped in.
	data, err := os.ReadFile(filepath.Join(dir, "creator_7.json"))
	require.NoError(t, err)
	var a artifact
	require.NoError(t, json.Unmarshal(data, &a))
	assert.Equal(t, testModel, a.Model)
	assert.Equal(t, 2, a.Dimension)
}

func TestConcurrentUpserts(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			err := m.Upsert(ctx, 1, Record{ItemID: id, Vector: []float32{1, float32(id)}})
			assert.NoError(t, err)
		}(int64(i + 1))
	}
	wg.Wait()

	n, err := m.Count(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero norm left", []float32{0, 0}, []float32{1, 0}, 0},
		{"zero norm right", []float32{1, 0}, []float32{0, 0}, 0},
		{"scaled", []float32{2, 0}, []float32{5, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-9)
		})
	}
}
