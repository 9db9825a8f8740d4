// Package testutil provides shared test doubles and helpers: a
// deterministic embedder, a scripted model, and a disposable Postgres
// container for integration tests.
package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// MockEmbedder implements ai.Embedder with deterministic output so tests
// can assert exact retrieval results without a live provider.
//
// By default each input text maps to a stable unit vector derived from its
// hash. Set EmbedFunc to script specific vectors, or Err to simulate a
// provider outage.
type MockEmbedder struct {
	// EmbedFunc, when set, produces the vector for one input text.
	EmbedFunc func(text string) []float32

	// Err, when set, is returned from every Embed call.
	Err error

	// Dimension of the default hash-derived vectors.
	Dimension int

	// Calls counts Embed invocations (not documents).
	Calls int
}

func (m *MockEmbedder) Name() string { return "mock-embedder" }

func (m *MockEmbedder) Register(r api.Registry) {}

func (m *MockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		text := ""
		for _, part := range doc.Content {
			text += part.Text
		}
		var vec []float32
		if m.EmbedFunc != nil {
			vec = m.EmbedFunc(text)
		} else {
			vec = hashVector(text, m.dimension())
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: vec})
	}
	return resp, nil
}

func (m *MockEmbedder) dimension() int {
	if m.Dimension > 0 {
		return m.Dimension
	}
	return 8
}

// hashVector derives a stable unit vector from the text's SHA-256.
func hashVector(text string, dim int) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, dim)
	var norm float64
	for i := 0; i < dim; i++ {
		bits := binary.BigEndian.Uint32(sum[(i*4)%len(sum):])
		v := float64(bits%1000)/500.0 - 1.0 // [-1, 1)
		vec[i] = float32(v)
		norm += v * v
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
