// Package assembler builds the bounded, deduplicated prompt context for
// one chat turn.
//
// Construction is tiered, each tier writing into a shared character
// budget: Tier 1 is the creator's precomputed knowledge plus a compact
// catalog of every item; Tier 2 is hybrid retrieval (keyword and semantic,
// run in parallel) with full transcripts for the winners; Tier 3 is
// catalog-wide aggregate stats. The result is deterministic for identical
// input: same catalog, same query, same context text.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/creatorlens/creatorlens/internal/catalog"
	"github.com/creatorlens/creatorlens/internal/embedding"
	"github.com/creatorlens/creatorlens/internal/keyword"
	"github.com/creatorlens/creatorlens/internal/vectorstore"
)

const (
	// TotalBudget is the hard cap on the assembled context, in characters.
	TotalBudget = 120_000

	// CatalogBudget caps the Tier 1 catalog section.
	CatalogBudget = 40_000

	// TranscriptBudget caps the Tier 2 transcript section.
	TranscriptBudget = 60_000

	// QueryCap bounds how much of the user message drives retrieval.
	// Long pasted messages would otherwise blow up keyword extraction
	// and embed costs without adding signal.
	QueryCap = 500

	// DefaultTopN is how many items each retrieval tier contributes.
	DefaultTopN = 5

	// captionCap bounds the caption line inside a transcript block.
	captionCap = 1000
)

// Catalog is the subset of the catalog store the assembler reads.
type Catalog interface {
	Creator(ctx context.Context, creatorID int64) (*catalog.Creator, error)
	ItemsByCreator(ctx context.Context, creatorID int64) ([]catalog.ContentItem, error)
	LatestKnowledge(ctx context.Context, creatorID int64) (map[string]catalog.KnowledgeEntry, error)
}

// Embedder embeds retrieval queries.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher runs similarity search over a creator's embedded items.
type VectorSearcher interface {
	Query(ctx context.Context, creatorID int64, vector []float32, k int) ([]vectorstore.Result, error)
}

// Context is one assembled prompt context.
type Context struct {
	// Text is the full system prompt, hard-capped at TotalBudget.
	Text string

	// ItemIDs are the items whose full transcripts made it into Tier 2,
	// in inclusion order.
	ItemIDs []int64

	// CatalogChars and TranscriptChars report each bounded section's
	// size for diagnostics.
	CatalogChars    int
	TranscriptChars int

	// SemanticDegraded is set when the embedding provider failed and
	// retrieval fell back to the keyword tier alone.
	SemanticDegraded bool

	// Truncated is set when the final hard cap fired.
	Truncated bool
}

// Assembler builds prompt contexts. Safe for concurrent use; turns for
// different sessions share no mutable state here.
type Assembler struct {
	catalog  Catalog
	embedder Embedder
	vectors  VectorSearcher
	topN     int
	logger   *slog.Logger
}

// New creates an Assembler. topN <= 0 selects DefaultTopN.
func New(cat Catalog, embedder Embedder, vectors VectorSearcher, topN int, logger *slog.Logger) (*Assembler, error) {
	if cat == nil || embedder == nil || vectors == nil {
		return nil, errors.New("catalog, embedder and vector searcher are required")
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{catalog: cat, embedder: embedder, vectors: vectors, topN: topN, logger: logger}, nil
}

// Build assembles the context for one turn. A creator with zero items
// yields a minimal context (zero stats, no catalog, no retrieval) rather
// than an error. An embedding provider failure degrades to keyword-only
// retrieval; a catalog read failure propagates.
func (a *Assembler) Build(ctx context.Context, creatorID int64, query string) (*Context, error) {
	creator, err := a.catalog.Creator(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	items, err := a.catalog.ItemsByCreator(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	knowledge, err := a.catalog.LatestKnowledge(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	query = embedding.Truncate(query, QueryCap)

	result := &Context{}
	var sections []string

	sections = append(sections, a.preamble(creator))

	if s := knowledgeSection(knowledge); s != "" {
		sections = append(sections, s)
	}

	if len(items) > 0 {
		catalogText, catalogTruncated := catalogSection(items)
		if catalogTruncated {
			a.logger.Debug("catalog section truncated to budget", "creator_id", creatorID)
		}
		result.CatalogChars = len(catalogText)
		sections = append(sections, catalogText)

		transcriptText, ids, degraded := a.retrieve(ctx, creatorID, query, items)
		result.SemanticDegraded = degraded
		if transcriptText != "" {
			result.TranscriptChars = len(transcriptText)
			result.ItemIDs = ids
			sections = append(sections, transcriptText)
		}
	}

	sections = append(sections, statsSection(catalog.ComputeStats(items)))
	sections = append(sections, instructions())

	text := strings.Join(sections, "\n\n")
	if len(text) > TotalBudget {
		text = truncateAtLine(text, TotalBudget)
		result.Truncated = true
		a.logger.Warn("assembled context exceeded total budget, truncated",
			"creator_id", creatorID, "final_chars", len(text))
	}
	result.Text = text

	a.logger.Debug("assembled context",
		"creator_id", creatorID,
		"chars", len(result.Text),
		"catalog_chars", result.CatalogChars,
		"transcript_chars", result.TranscriptChars,
		"transcript_items", len(result.ItemIDs),
		"semantic_degraded", result.SemanticDegraded)
	return result, nil
}

func (a *Assembler) preamble(creator *catalog.Creator) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an assistant that answers questions about the content creator %q.\n", creator.Name)
	b.WriteString("Ground every answer in the creator knowledge, catalog and transcripts below.")
	if creator.Summary != "" {
		b.WriteString("\n\nCreator summary: ")
		b.WriteString(creator.Summary)
	}
	return b.String()
}

// knowledgeSection renders the latest knowledge entries in a fixed order.
// Missing types are omitted silently.
func knowledgeSection(knowledge map[string]catalog.KnowledgeEntry) string {
	headers := []struct{ typ, title string }{
		{catalog.KnowledgeProfile, "Creator Profile"},
		{catalog.KnowledgeTopics, "Content Topics"},
		{catalog.KnowledgeStyle, "Style Analysis"},
	}

	var parts []string
	for _, h := range headers {
		entry, ok := knowledge[h.typ]
		if !ok || entry.Content == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("### %s\n%s", h.title, entry.Content))
	}
	if len(parts) == 0 {
		return ""
	}
	return "## Creator Knowledge\n\n" + strings.Join(parts, "\n\n")
}

// catalogSection renders one compact line per item, newest first, stopping
// at a line boundary once CatalogBudget is reached. Items arrive newest
// first, so truncation drops the oldest items.
func catalogSection(items []catalog.ContentItem) (text string, truncated bool) {
	var b strings.Builder
	b.WriteString("## Content Catalog\n")

	for i := range items {
		line := catalogLine(&items[i])
		if b.Len()+len(line)+1 > CatalogBudget {
			truncated = true
			break
		}
		b.WriteByte('\n')
		b.WriteString(line)
	}
	if truncated {
		b.WriteString("\n[catalog truncated, oldest items omitted]")
	}
	return b.String(), truncated
}

func catalogLine(it *catalog.ContentItem) string {
	date := "no date"
	if !it.PublishedAt.IsZero() {
		date = it.PublishedAt.Format("2006-01-02")
	}
	return fmt.Sprintf("- [%s] [%s] %s (%d views, %d likes)",
		it.PlatformLabel(), date, it.DisplayTitle(), it.Views, it.Likes)
}

// retrieve runs the keyword and semantic tiers in parallel, merges their
// results (deduplicated by item id, keyword wins), and renders full
// transcript blocks under TranscriptBudget. Transcripts are included whole
// or not at all; the first block that would exceed the budget stops the
// section.
func (a *Assembler) retrieve(ctx context.Context, creatorID int64, query string, items []catalog.ContentItem) (text string, ids []int64, degraded bool) {
	if strings.TrimSpace(query) == "" {
		return "", nil, false
	}

	byID := make(map[int64]*catalog.ContentItem, len(items))
	docs := make([]keyword.Document, 0, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
		docs = append(docs, keyword.Document{
			ItemID:      items[i].ID,
			Text:        items[i].SearchableText(),
			PublishedAt: items[i].PublishedAt,
		})
	}

	keywordCh := make(chan []keyword.Match, 1)
	semanticCh := make(chan semanticResult, 1)

	go func() {
		keywordCh <- keyword.Search(query, docs, a.topN)
	}()
	go func() {
		semanticCh <- a.semanticSearch(ctx, creatorID, query)
	}()

	// Join point: both tiers must finish before assembly proceeds.
	keywordMatches := <-keywordCh
	semantic := <-semanticCh

	if semantic.err != nil {
		degraded = true
		a.logger.Warn("semantic retrieval degraded to keyword-only",
			"creator_id", creatorID, "error", semantic.err)
	}

	type hit struct {
		itemID  int64
		keyword bool
	}
	seen := make(map[int64]struct{})
	var merged []hit
	for _, m := range keywordMatches {
		if _, dup := seen[m.ItemID]; dup {
			continue
		}
		seen[m.ItemID] = struct{}{}
		merged = append(merged, hit{itemID: m.ItemID, keyword: true})
	}
	for _, r := range semantic.results {
		if _, dup := seen[r.ItemID]; dup {
			continue // keyword tier already matched this item
		}
		seen[r.ItemID] = struct{}{}
		merged = append(merged, hit{itemID: r.ItemID})
	}
	if len(merged) == 0 {
		return "", nil, degraded
	}

	const (
		sectionHeader  = "## Relevant Transcripts\n"
		keywordHeader  = "\n### Keyword-Matched\n"
		semanticHeader = "\n### Semantically Related\n"
		separator      = "\n---\n"
	)

	var (
		keywordBlocks  []string
		semanticBlocks []string
	)
	// total tracks the exact rendered size of the section, sub-headers and
	// separators included, so the budget holds for the final text.
	total := len(sectionHeader)
	for _, h := range merged {
		it, ok := byID[h.itemID]
		if !ok {
			continue
		}
		block := transcriptBlock(it)
		cost := len(block)
		if h.keyword {
			if len(keywordBlocks) == 0 {
				cost += len(keywordHeader)
			} else {
				cost += len(separator)
			}
		} else {
			if len(semanticBlocks) == 0 {
				cost += len(semanticHeader)
			} else {
				cost += len(separator)
			}
		}
		if total+cost > TranscriptBudget {
			break // whole transcripts only, stop here
		}
		total += cost
		ids = append(ids, h.itemID)
		if h.keyword {
			keywordBlocks = append(keywordBlocks, block)
		} else {
			semanticBlocks = append(semanticBlocks, block)
		}
	}
	if len(ids) == 0 {
		return "", nil, degraded
	}

	var b strings.Builder
	b.WriteString(sectionHeader)
	if len(keywordBlocks) > 0 {
		b.WriteString(keywordHeader)
		b.WriteString(strings.Join(keywordBlocks, separator))
	}
	if len(semanticBlocks) > 0 {
		b.WriteString(semanticHeader)
		b.WriteString(strings.Join(semanticBlocks, separator))
	}
	return b.String(), ids, degraded
}

type semanticResult struct {
	results []vectorstore.Result
	err     error
}

func (a *Assembler) semanticSearch(ctx context.Context, creatorID int64, query string) semanticResult {
	vector, err := a.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return semanticResult{err: err}
	}
	results, err := a.vectors.Query(ctx, creatorID, vector, a.topN)
	if err != nil {
		return semanticResult{err: err}
	}
	return semanticResult{results: results}
}

// transcriptBlock renders one retrieved item with its full transcript.
func transcriptBlock(it *catalog.ContentItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", it.PlatformLabel(), it.DisplayTitle())
	if it.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", it.URL)
	}
	fmt.Fprintf(&b, "Stats: %d views, %d likes, %d comments\n", it.Views, it.Likes, it.Comments)
	if !it.PublishedAt.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", it.PublishedAt.Format("2006-01-02"))
	}
	if it.Caption != "" {
		fmt.Fprintf(&b, "Caption: %s\n", embedding.Truncate(it.Caption, captionCap))
	}
	if it.Transcript != "" && it.Transcript != it.Caption {
		fmt.Fprintf(&b, "Full Transcript: %s\n", it.Transcript)
	}
	return b.String()
}

func statsSection(stats catalog.Stats) string {
	return fmt.Sprintf(
		"## Catalog Stats\nTotal items: %d\nMean views: %.1f\nMean likes: %.1f\nMean comments: %.1f",
		stats.TotalItems, stats.MeanViews, stats.MeanLikes, stats.MeanComments)
}

func instructions() string {
	return strings.TrimSpace(`
## Instructions
- Answer using only the creator knowledge, catalog and transcripts above.
- Cite which video or post an answer comes from when possible.
- If the transcripts lack detail for a question, say what the catalog shows and suggest which items might cover it.`)
}

// truncateAtLine hard-caps s at limit, cutting back to the last newline so
// the result never ends mid-line.
func truncateAtLine(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := s[:limit]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	return cut
}
