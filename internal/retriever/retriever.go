// Package retriever adapts the chunk index into the two ranked retrieval
// channels the fusion engine consumes: lexical (BM25) and dense
// (embedding nearest-neighbor).
package retriever

import (
	"context"
	"fmt"

	"github.com/mnemohq/rehydrate/internal/embedder"
	"github.com/mnemohq/rehydrate/internal/storage"
	"github.com/mnemohq/rehydrate/pkg/types"
)

// Retriever returns the topK best hits for a query, sorted descending by
// raw score with ties broken by ascending chunk id. A retriever returns
// fewer than topK hits only when the index holds fewer matches.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]types.RetrievalHit, error)
}

// Lexical is the BM25 channel over the FTS index.
type Lexical struct {
	store storage.Store
}

// NewLexical creates the lexical retriever.
func NewLexical(store storage.Store) *Lexical {
	return &Lexical{store: store}
}

// Search runs a BM25 query and assigns 1-based ranks.
func (l *Lexical) Search(ctx context.Context, query string, topK int) ([]types.RetrievalHit, error) {
	results, err := l.store.SearchText(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	hits := make([]types.RetrievalHit, len(results))
	for i, r := range results {
		hits[i] = types.RetrievalHit{
			ChunkID:  r.ChunkID,
			Channel:  types.ChannelLexical,
			Rank:     i + 1,
			RawScore: r.BM25Score,
		}
	}
	return hits, nil
}

// Dense is the embedding nearest-neighbor channel.
type Dense struct {
	store    storage.Store
	embedder embedder.Embedder
}

// NewDense creates the dense retriever.
func NewDense(store storage.Store, emb embedder.Embedder) *Dense {
	return &Dense{store: store, embedder: emb}
}

// Search embeds the query and ranks chunks by cosine similarity.
func (d *Dense) Search(ctx context.Context, query string, topK int) ([]types.RetrievalHit, error) {
	vector, err := d.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := d.store.SearchVector(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}
	hits := make([]types.RetrievalHit, len(results))
	for i, r := range results {
		hits[i] = types.RetrievalHit{
			ChunkID:  r.ChunkID,
			Channel:  types.ChannelDense,
			Rank:     i + 1,
			RawScore: r.SimilarityScore,
		}
	}
	return hits, nil
}
