// Package embedding wraps the Genkit embedder behind a provider that rate
// limits calls and normalizes failures, and implements the indexer that
// keeps each creator's vector store in sync with their catalog.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"
)

const (
	// maxEmbedChars caps the text sent per document. Longer inputs are
	// truncated rather than rejected; the head of a transcript carries
	// most of the topical signal.
	maxEmbedChars = 8000

	// batchSize is how many documents go in one embed request.
	batchSize = 100
)

// ErrProvider indicates the embedding provider failed or is unreachable.
// Callers treat this as a degradation signal, not a fatal error: retrieval
// falls back to the keyword tier.
var ErrProvider = errors.New("embedding provider unavailable")

// Provider generates embeddings through a Genkit embedder.
//
// Provider is safe for concurrent use by multiple goroutines.
type Provider struct {
	embedder ai.Embedder
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewProvider wraps embedder. limiter may be nil to disable rate limiting.
func NewProvider(embedder ai.Embedder, limiter *rate.Limiter, logger *slog.Logger) (*Provider, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{embedder: embedder, limiter: limiter, logger: logger}, nil
}

// EmbedQuery embeds a single query string, truncated to maxEmbedChars.
// Failures are wrapped in ErrProvider.
func (p *Provider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds several documents, preserving input order. Inputs are
// truncated to maxEmbedChars and sent in batches of batchSize.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("%w: rate limiter: %v", ErrProvider, err)
			}
		}

		docs := make([]*ai.Document, 0, end-start)
		for _, text := range texts[start:end] {
			docs = append(docs, ai.DocumentFromText(Truncate(text, maxEmbedChars), nil))
		}

		resp, err := p.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProvider, err)
		}
		if len(resp.Embeddings) != len(docs) {
			return nil, fmt.Errorf("%w: requested %d embeddings, got %d",
				ErrProvider, len(docs), len(resp.Embeddings))
		}
		for _, e := range resp.Embeddings {
			if len(e.Embedding) == 0 {
				return nil, fmt.Errorf("%w: empty embedding returned", ErrProvider)
			}
			vectors = append(vectors, e.Embedding)
		}
	}
	return vectors, nil
}

// Truncate cuts s to at most n bytes. Inputs are ASCII-heavy transcript
// text, so a byte cut is acceptable.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
