// Package expander widens retrieval around entities extracted from the
// query. Each entity triggers one dense retrieval whose results join the
// global fusion as an additional ranked list, so entity evidence is
// rank-weighted rather than naively appended.
package expander

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mnemohq/rehydrate/internal/fusion"
	"github.com/mnemohq/rehydrate/internal/retriever"
	"github.com/mnemohq/rehydrate/pkg/types"
)

// Config sizes entity-adjacent expansion.
type Config struct {
	// MaxRelated caps per-entity retrieval width.
	MaxRelated int
	// BaseK and PerEntityBonus drive the adaptive width:
	// kRelated = min(MaxRelated, BaseK + entityCount*PerEntityBonus).
	BaseK          int
	PerEntityBonus int
	// StabilityThreshold drops entity hits whose raw similarity falls
	// below it. Low-confidence matches are logged and discarded, never
	// errored.
	StabilityThreshold float64
}

// DefaultConfig matches the documented expansion defaults.
func DefaultConfig() Config {
	return Config{
		MaxRelated:         8,
		BaseK:              2,
		PerEntityBonus:     2,
		StabilityThreshold: 0.7,
	}
}

// KRelated computes the adaptive per-entity retrieval width.
func (c Config) KRelated(entityCount int) int {
	k := c.BaseK + entityCount*c.PerEntityBonus
	if k > c.MaxRelated {
		k = c.MaxRelated
	}
	return k
}

// Expander issues entity-adjacent retrievals.
type Expander struct {
	dense  retriever.Retriever
	cfg    Config
	logger *zap.Logger
}

// New creates an Expander over the dense channel.
func New(dense retriever.Retriever, cfg Config, logger *zap.Logger) *Expander {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expander{dense: dense, cfg: cfg, logger: logger}
}

// Expand runs one dense retrieval per entity in parallel and returns one
// ranked list per entity, in entity order. When entities is empty the
// stage is a no-op: no retrieval calls are issued and the returned slice
// is empty.
func (e *Expander) Expand(ctx context.Context, entities []types.Entity) ([]fusion.List, error) {
	if len(entities) == 0 {
		return nil, nil
	}

	kRelated := e.cfg.KRelated(len(entities))
	lists := make([]fusion.List, len(entities))

	g, gctx := errgroup.WithContext(ctx)
	for i, entity := range entities {
		g.Go(func() error {
			hits, err := e.dense.Search(gctx, entity.Text, kRelated)
			if err != nil {
				return err
			}
			lists[i] = fusion.List{
				Channel: types.ChannelEntity,
				Hits:    e.filterStable(entity, hits),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lists, nil
}

// filterStable drops hits below the stability threshold and re-ranks the
// survivors so downstream fusion sees a dense 1..n list.
func (e *Expander) filterStable(entity types.Entity, hits []types.RetrievalHit) []types.RetrievalHit {
	kept := make([]types.RetrievalHit, 0, len(hits))
	for _, hit := range hits {
		if hit.RawScore < e.cfg.StabilityThreshold {
			e.logger.Debug("dropping low-confidence entity hit",
				zap.String("entity", entity.Text),
				zap.Int64("chunk_id", hit.ChunkID),
				zap.Float64("similarity", hit.RawScore),
				zap.Float64("threshold", e.cfg.StabilityThreshold))
			continue
		}
		hit.Channel = types.ChannelEntity
		hit.Rank = len(kept) + 1
		kept = append(kept, hit)
	}
	return kept
}
