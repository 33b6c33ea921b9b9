// Package embedder provides query embedding for the dense retrieval
// channel. The engine only depends on the Embedder interface; index-side
// embedding of chunks belongs to the ingestion collaborator.
package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// HashingEmbedder is a deterministic, dependency-free embedder: terms and
// character trigrams are hashed into a fixed number of buckets and the
// resulting vector is L2-normalized. It is no substitute for a learned
// model but gives stable, offline-reproducible dense retrieval, which is
// what the determinism contract needs in tests and local setups.
type HashingEmbedder struct {
	dimension int
}

// NewHashingEmbedder creates a hashing embedder with the given dimension.
func NewHashingEmbedder(dimension int) (*HashingEmbedder, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("embedder dimension must be positive, got %d", dimension)
	}
	return &HashingEmbedder{dimension: dimension}, nil
}

// Embed hashes terms and trigrams of text into the vector buckets.
func (h *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dimension)
	norm := strings.ToLower(text)

	for _, term := range strings.Fields(norm) {
		vec[h.bucket(term)] += 1.0
		for i := 0; i+3 <= len(term); i++ {
			vec[h.bucket(term[i:i+3])] += 0.5
		}
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum > 0 {
		inv := float32(1.0 / math.Sqrt(sum))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// Dimension returns the vector length.
func (h *HashingEmbedder) Dimension() int { return h.dimension }

func (h *HashingEmbedder) bucket(s string) int {
	f := fnv.New32a()
	_, _ = f.Write([]byte(s))
	return int(f.Sum32() % uint32(h.dimension))
}
