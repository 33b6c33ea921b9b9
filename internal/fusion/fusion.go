// Package fusion merges ranked retrieval lists with Reciprocal Rank
// Fusion. Fusion is a pure function of its inputs: given identical lists
// it produces identical output, which the rest of the pipeline relies on
// for request-level determinism.
package fusion

import (
	"sort"

	"go.uber.org/zap"

	"github.com/mnemohq/rehydrate/pkg/types"
)

// DefaultK is the standard RRF rank-discount constant.
const DefaultK = 60

// List is one ranked input list tagged with its channel. Hits must be in
// rank order (index 0 is rank 1).
type List struct {
	Channel types.Channel
	Hits    []types.RetrievalHit
}

// Fuser computes RRF scores across lists.
type Fuser struct {
	k      float64
	logger *zap.Logger
}

// New creates a Fuser with the given RRF constant; k <= 0 selects
// DefaultK.
func New(k float64, logger *zap.Logger) *Fuser {
	if k <= 0 {
		k = DefaultK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fuser{k: k, logger: logger}
}

// Fuse merges the lists: score(chunk) = sum over lists of 1/(k + rank),
// with absent chunks contributing 0 per list. Output is sorted descending
// by fused score; exact score ties are broken by lexical rank ascending,
// then dense rank ascending, then chunk id ascending. A chunk appearing
// twice within one list is a duplicate-chunk bug in the index: the repeat
// is flagged and ignored, never re-scored.
//
// Empty input produces an empty (non-nil) result, not an error.
func (f *Fuser) Fuse(lists ...List) []types.FusedResult {
	acc := make(map[int64]*types.FusedResult)

	for _, list := range lists {
		seen := make(map[int64]bool, len(list.Hits))
		for i, hit := range list.Hits {
			rank := i + 1
			if seen[hit.ChunkID] {
				f.logger.Warn("index invariant violation: duplicate chunk in ranked list",
					zap.Int64("chunk_id", hit.ChunkID),
					zap.String("channel", string(list.Channel)))
				continue
			}
			seen[hit.ChunkID] = true

			fr, ok := acc[hit.ChunkID]
			if !ok {
				fr = &types.FusedResult{ChunkID: hit.ChunkID}
				acc[hit.ChunkID] = fr
			}
			fr.RRFScore += 1.0 / (f.k + float64(rank))
			fr.ListCount++
			switch list.Channel {
			case types.ChannelLexical:
				if fr.LexicalRank == 0 {
					fr.LexicalRank = rank
				}
			case types.ChannelDense:
				if fr.DenseRank == 0 {
					fr.DenseRank = rank
				}
			}
		}
	}

	results := make([]types.FusedResult, 0, len(acc))
	for _, fr := range acc {
		results = append(results, *fr)
	}
	sortFused(results)
	return results
}

// sortFused orders by descending RRF score with the documented three-level
// tie-break. Ranks of 0 mean "absent from that channel" and sort last.
func sortFused(results []types.FusedResult) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.RRFScore != b.RRFScore {
			return a.RRFScore > b.RRFScore
		}
		if ra, rb := tieRank(a.LexicalRank), tieRank(b.LexicalRank); ra != rb {
			return ra < rb
		}
		if ra, rb := tieRank(a.DenseRank), tieRank(b.DenseRank); ra != rb {
			return ra < rb
		}
		return a.ChunkID < b.ChunkID
	})
}

func tieRank(rank int) int {
	if rank == 0 {
		return int(^uint(0) >> 1) // absent sorts after any real rank
	}
	return rank
}
