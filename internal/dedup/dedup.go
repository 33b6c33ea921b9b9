// Package dedup collapses fused results that repeat the same source
// material, first per file and then by overlapping text spans.
package dedup

import (
	"github.com/mnemohq/rehydrate/pkg/types"
)

// Ranked pairs a fused result with its resolved chunk. Input to Apply is
// expected in fused rank order.
type Ranked struct {
	Result types.FusedResult
	Chunk  *types.Chunk
}

// Config controls the two dedup passes.
type Config struct {
	// KeepPerFile is the number of results retained per source file.
	// Values below 1 mean top-1.
	KeepPerFile int
	// OverlapFraction is the span-overlap threshold: among surviving
	// results, if two chunks' [start, end) ranges overlap by more than
	// this fraction the lower-ranked chunk is dropped.
	OverlapFraction float64
}

// DefaultConfig keeps the top result per file and drops chunks that
// overlap a higher-ranked chunk by more than half.
func DefaultConfig() Config {
	return Config{KeepPerFile: 1, OverlapFraction: 0.5}
}

// Apply runs both passes in order and returns the surviving results,
// still in rank order. With KeepPerFile = 1 the output is guaranteed to
// contain no two entries from the same source file.
func Apply(cfg Config, ranked []Ranked) []Ranked {
	keepPerFile := cfg.KeepPerFile
	if keepPerFile < 1 {
		keepPerFile = 1
	}

	// Pass 1: file-level. Ranked order means the first keepPerFile
	// entries seen for a file are its highest-ranked ones.
	perFile := make(map[string]int)
	fileKept := make([]Ranked, 0, len(ranked))
	for _, r := range ranked {
		if perFile[r.Chunk.SourceFile] >= keepPerFile {
			continue
		}
		perFile[r.Chunk.SourceFile]++
		fileKept = append(fileKept, r)
	}

	// Pass 2: span overlap against every higher-ranked survivor.
	kept := make([]Ranked, 0, len(fileKept))
	for _, candidate := range fileKept {
		overlapped := false
		for _, winner := range kept {
			if candidate.Chunk.SourceFile != winner.Chunk.SourceFile {
				continue
			}
			if candidate.Chunk.Overlap(winner.Chunk) > cfg.OverlapFraction {
				overlapped = true
				break
			}
		}
		if !overlapped {
			kept = append(kept, candidate)
		}
	}
	return kept
}
