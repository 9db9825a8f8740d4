// Package vectorstore implements the per-creator embedding index.
//
// Each creator's embeddings live in one flat JSON artifact on disk holding
// the embedding-model identifier, the vector dimensionality, and one record
// per content item. Writes replace the artifact atomically (write a temp
// file, fsync, rename), so concurrent readers observe either the pre- or
// post-write snapshot, never a mix. Writers are serialized per creator with
// an in-process mutex plus a gofrs/flock OS lock for cross-process safety.
//
// Similarity search is brute-force cosine over all records, which is
// adequate at per-creator catalog sizes (hundreds to low thousands of
// items).
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"
)

var (
	// ErrDimensionMismatch indicates a vector's length differs from the
	// store's established dimensionality. The offending upsert is rejected
	// and the persisted artifact is left untouched.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrModelMismatch indicates the artifact was built with a different
	// embedding model than the manager is configured for. Mixing models in
	// one store is a data-integrity error; re-index to migrate.
	ErrModelMismatch = errors.New("embedding model mismatch")

	// ErrCorrupt indicates the persisted artifact could not be decoded.
	ErrCorrupt = errors.New("vector store corrupt")

	// ErrEmptyStore indicates no artifact exists for the creator yet.
	ErrEmptyStore = errors.New("vector store empty")
)

// Record is one embedded content item.
type Record struct {
	ItemID     int64     `json:"item_id"`
	Vector     []float32 `json:"vector"`
	SourceHash string    `json:"source_hash"` // hash of the embedded text, for change detection
}

// Result is one similarity-search hit.
type Result struct {
	ItemID     int64
	Similarity float64
}

// artifact is the on-disk layout of one creator's store.
type artifact struct {
	Model     string   `json:"model"`
	Dimension int      `json:"dimension"`
	Records   []Record `json:"records"`
}

// Manager owns the vector store directory and serializes access per
// creator.
//
// Manager is safe for concurrent use by multiple goroutines.
type Manager struct {
	baseDir string
	model   string // embedding-model identifier all artifacts must share
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex // per-creator writer lock
}

// NewManager creates a Manager rooted at baseDir, creating the directory
// if needed. model identifies the embedding model; artifacts recorded with
// a different model are rejected with ErrModelMismatch.
func NewManager(baseDir, model string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if model == "" {
		return nil, errors.New("embedding model identifier is required")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating vector store directory: %w", err)
	}
	return &Manager{
		baseDir: baseDir,
		model:   model,
		logger:  logger,
		locks:   make(map[int64]*sync.Mutex),
	}, nil
}

// Model returns the embedding-model identifier this manager enforces.
func (m *Manager) Model() string { return m.model }

func (m *Manager) storePath(creatorID int64) string {
	return filepath.Join(m.baseDir, fmt.Sprintf("creator_%d.json", creatorID))
}

func (m *Manager) lockPath(creatorID int64) string {
	return filepath.Join(m.baseDir, fmt.Sprintf("creator_%d.lock", creatorID))
}

// creatorLock returns the in-process writer mutex for one creator.
func (m *Manager) creatorLock(creatorID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[creatorID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[creatorID] = l
	}
	return l
}

// load reads the creator's artifact. A missing file yields an empty
// artifact carrying the manager's model; an unreadable or differently
// modeled file is an error.
func (m *Manager) load(creatorID int64) (*artifact, error) {
	data, err := os.ReadFile(m.storePath(creatorID))
	if errors.Is(err, os.ErrNotExist) {
		return &artifact{Model: m.model}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading vector store for creator %d: %w", creatorID, err)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: creator %d: %v", ErrCorrupt, creatorID, err)
	}
	if a.Model != m.model {
		return nil, fmt.Errorf("%w: artifact built with %q, manager configured for %q",
			ErrModelMismatch, a.Model, m.model)
	}
	return &a, nil
}

// persist atomically replaces the creator's artifact: write to a temp file
// in the same directory, sync, then rename over the old file.
func (m *Manager) persist(creatorID int64, a *artifact) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding vector store: %w", err)
	}

	tmp, err := os.CreateTemp(m.baseDir, fmt.Sprintf("creator_%d_*.tmp", creatorID))
	if err != nil {
		return fmt.Errorf("creating temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp artifact: %w", err)
	}

	if err := os.Rename(tmpName, m.storePath(creatorID)); err != nil {
		return fmt.Errorf("replacing artifact: %w", err)
	}
	return nil
}

// Upsert inserts or replaces the record for rec.ItemID in the creator's
// store and persists the result. The first record establishes the store's
// dimensionality; later vectors of a different length are rejected with
// ErrDimensionMismatch without touching the persisted artifact.
func (m *Manager) Upsert(ctx context.Context, creatorID int64, rec Record) error {
	return m.UpsertBatch(ctx, creatorID, []Record{rec})
}

// UpsertBatch applies several upserts in one load/persist cycle.
// The whole batch is validated before anything is written, so a bad vector
// rejects the batch and leaves the artifact unchanged.
func (m *Manager) UpsertBatch(ctx context.Context, creatorID int64, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := m.creatorLock(creatorID)
	lock.Lock()
	defer lock.Unlock()

	fileLock := flock.New(m.lockPath(creatorID))
	if err := fileLock.Lock(); err != nil {
		return fmt.Errorf("locking vector store for creator %d: %w", creatorID, err)
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			m.logger.Warn("unlocking vector store", "creator_id", creatorID, "error", err)
		}
	}()

	a, err := m.load(creatorID)
	if err != nil {
		return err
	}

	dim := a.Dimension
	for i := range recs {
		if len(recs[i].Vector) == 0 {
			return fmt.Errorf("%w: item %d has an empty vector", ErrDimensionMismatch, recs[i].ItemID)
		}
		if dim == 0 {
			dim = len(recs[i].Vector)
		}
		if len(recs[i].Vector) != dim {
			return fmt.Errorf("%w: item %d has %d dimensions, store has %d",
				ErrDimensionMismatch, recs[i].ItemID, len(recs[i].Vector), dim)
		}
	}
	a.Dimension = dim

	index := make(map[int64]int, len(a.Records))
	for i := range a.Records {
		index[a.Records[i].ItemID] = i
	}
	for _, rec := range recs {
		if i, ok := index[rec.ItemID]; ok {
			a.Records[i] = rec // regenerate, never duplicate
		} else {
			index[rec.ItemID] = len(a.Records)
			a.Records = append(a.Records, rec)
		}
	}

	if err := m.persist(creatorID, a); err != nil {
		return err
	}

	m.logger.Debug("upserted embeddings",
		"creator_id", creatorID, "batch", len(recs), "total", len(a.Records))
	return nil
}

// Query returns the top-k records by cosine similarity to vector,
// descending, ties broken by lower item id. It returns fewer than k
// results when the store holds fewer records, and an empty slice (not an
// error) when the store is empty.
func (m *Manager) Query(ctx context.Context, creatorID int64, vector []float32, k int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	a, err := m.load(creatorID)
	if err != nil {
		return nil, err
	}
	if len(a.Records) == 0 {
		return nil, nil
	}
	if len(vector) != a.Dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, store has %d",
			ErrDimensionMismatch, len(vector), a.Dimension)
	}

	results := make([]Result, 0, len(a.Records))
	for i := range a.Records {
		results = append(results, Result{
			ItemID:     a.Records[i].ItemID,
			Similarity: Cosine(vector, a.Records[i].Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ItemID < results[j].ItemID
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// SourceHashes returns item id -> source hash for every record in the
// creator's store. Used by the indexer to skip unchanged items.
// Returns ErrEmptyStore if no artifact exists yet.
func (m *Manager) SourceHashes(ctx context.Context, creatorID int64) (map[int64]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(m.storePath(creatorID)); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: creator %d", ErrEmptyStore, creatorID)
	}
	a, err := m.load(creatorID)
	if err != nil {
		return nil, err
	}
	hashes := make(map[int64]string, len(a.Records))
	for i := range a.Records {
		hashes[a.Records[i].ItemID] = a.Records[i].SourceHash
	}
	return hashes, nil
}

// Count returns the number of records in the creator's store
// (zero for a missing artifact).
func (m *Manager) Count(ctx context.Context, creatorID int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	a, err := m.load(creatorID)
	if err != nil {
		return 0, err
	}
	return len(a.Records), nil
}

// Delete removes the creator's artifact. Missing artifacts are not an
// error (idempotent).
func (m *Manager) Delete(ctx context.Context, creatorID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock := m.creatorLock(creatorID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(m.storePath(creatorID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting vector store for creator %d: %w", creatorID, err)
	}
	return nil
}

// Cosine returns the cosine similarity between a and b:
// dot(a,b) / (||a|| * ||b||). A zero-norm vector has similarity 0 to
// anything, never NaN.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
