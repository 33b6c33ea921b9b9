// Package storage implements the chunk index consumed by the retrieval
// engine. The index is read-only from the engine's perspective; writes
// happen through the seed tooling owned by the ingestion side.
package storage

import (
	"context"

	"github.com/mnemohq/rehydrate/pkg/types"
)

// TextResult is a single BM25 match from the lexical index.
type TextResult struct {
	ChunkID   int64
	BM25Score float64 // higher is better
}

// VectorResult is a single nearest-neighbor match from the dense index.
type VectorResult struct {
	ChunkID         int64
	SimilarityScore float64 // cosine similarity, higher is better
}

// Store is the persistence interface backing both retrievers. Search
// results are sorted descending by score with ties broken by ascending
// chunk id, and are never silently capped below the requested limit when
// more matches exist.
type Store interface {
	// Write path (ingestion/seed tooling only).
	UpsertChunk(ctx context.Context, chunk *types.Chunk) error

	// Read path.
	GetChunk(ctx context.Context, chunkID int64) (*types.Chunk, error)
	SearchText(ctx context.Context, query string, limit int) ([]TextResult, error)
	SearchVector(ctx context.Context, vector []float32, limit int) ([]VectorResult, error)
	RecentChunks(ctx context.Context, limit int) ([]*types.Chunk, error)
	CountChunks(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
