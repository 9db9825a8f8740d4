package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/creatorlens/creatorlens/internal/catalog"
	"github.com/creatorlens/creatorlens/internal/vectorstore"
)

// captionEmbedChars and transcriptEmbedChars bound each field's share of
// the embedded document so one huge transcript cannot crowd out the rest.
const (
	captionEmbedChars    = 2000
	transcriptEmbedChars = 4000
)

// Catalog is the subset of the catalog store the indexer reads.
type Catalog interface {
	ItemsByCreator(ctx context.Context, creatorID int64) ([]catalog.ContentItem, error)
}

// Report summarizes one indexing run.
type Report struct {
	Total    int // items in the catalog
	Embedded int // items newly embedded or re-embedded this run
	Skipped  int // items unchanged since the last run, or with no text
}

// Indexer embeds catalog items into the per-creator vector store.
// Items whose source text is unchanged since the last run are skipped, so
// repeated runs are cheap and idempotent.
type Indexer struct {
	catalog  Catalog
	provider *Provider
	store    *vectorstore.Manager
	logger   *slog.Logger
}

// NewIndexer creates an Indexer over the given catalog, provider and store.
func NewIndexer(cat Catalog, provider *Provider, store *vectorstore.Manager, logger *slog.Logger) (*Indexer, error) {
	if cat == nil || provider == nil || store == nil {
		return nil, errors.New("catalog, provider and store are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{catalog: cat, provider: provider, store: store, logger: logger}, nil
}

// IndexCreator embeds every new or changed item in the creator's catalog.
// Items with no embeddable text are skipped. A provider failure aborts the
// run before anything is written, so the store never holds a partial batch.
func (ix *Indexer) IndexCreator(ctx context.Context, creatorID int64) (*Report, error) {
	items, err := ix.catalog.ItemsByCreator(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("loading catalog for creator %d: %w", creatorID, err)
	}

	report := &Report{Total: len(items)}
	if len(items) == 0 {
		return report, nil
	}

	existing, err := ix.store.SourceHashes(ctx, creatorID)
	if errors.Is(err, vectorstore.ErrEmptyStore) {
		existing = nil
	} else if err != nil {
		return nil, err
	}

	var (
		texts   []string
		pending []vectorstore.Record
	)
	for i := range items {
		text := DocumentText(&items[i])
		if strings.TrimSpace(text) == "" {
			report.Skipped++
			continue
		}
		hash := SourceHash(text)
		if existing[items[i].ID] == hash {
			report.Skipped++
			continue
		}
		texts = append(texts, text)
		pending = append(pending, vectorstore.Record{ItemID: items[i].ID, SourceHash: hash})
	}

	if len(pending) == 0 {
		return report, nil
	}

	vectors, err := ix.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i := range pending {
		pending[i].Vector = vectors[i]
	}

	if err := ix.store.UpsertBatch(ctx, creatorID, pending); err != nil {
		return nil, err
	}

	report.Embedded = len(pending)
	ix.logger.Info("indexed creator catalog",
		"creator_id", creatorID,
		"total", report.Total,
		"embedded", report.Embedded,
		"skipped", report.Skipped)
	return report, nil
}

// DocumentText builds the text embedded for one item: platform label,
// title, bounded caption and transcript, engagement stats and publish
// date. Returns the empty string when the item has no title, caption or
// transcript to embed.
func DocumentText(it *catalog.ContentItem) string {
	if it.Title == "" && it.Caption == "" && it.Transcript == "" {
		return ""
	}

	parts := []string{fmt.Sprintf("[%s]", it.PlatformLabel())}
	if it.Title != "" {
		parts = append(parts, "Title: "+it.Title)
	}
	if it.Caption != "" {
		parts = append(parts, "Caption: "+Truncate(it.Caption, captionEmbedChars))
	}
	if it.Transcript != "" && it.Transcript != it.Caption {
		parts = append(parts, "Transcript: "+Truncate(it.Transcript, transcriptEmbedChars))
	}
	parts = append(parts, fmt.Sprintf("Stats: %d views, %d likes, %d comments, %ds",
		it.Views, it.Likes, it.Comments, it.DurationSeconds))
	if !it.PublishedAt.IsZero() {
		parts = append(parts, "Date: "+it.PublishedAt.Format("2006-01-02"))
	}
	return strings.Join(parts, "\n")
}

// SourceHash returns the hex SHA-256 of the document text, used to detect
// when an item needs re-embedding.
func SourceHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
