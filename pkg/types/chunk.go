package types

import (
	"errors"
	"time"
)

// Chunk is an immutable unit of indexed content. It is owned by the index
// and never mutated after ingestion; the engine only reads chunks.
type Chunk struct {
	ID         int64     `json:"id"`
	SourceFile string    `json:"source_file"`
	SpanStart  int       `json:"span_start"`
	SpanEnd    int       `json:"span_end"` // exclusive
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks structural invariants of an indexed chunk.
func (c *Chunk) Validate() error {
	if c.Text == "" {
		return errors.New("chunk text cannot be empty")
	}
	if c.SourceFile == "" {
		return errors.New("chunk source file is required")
	}
	if c.SpanStart < 0 || c.SpanEnd <= c.SpanStart {
		return errors.New("chunk span must be a non-empty [start, end) range")
	}
	return nil
}

// TokenCount estimates the number of tokens in the chunk text.
func (c *Chunk) TokenCount() int {
	return EstimateTokens(c.Text)
}

// Overlap returns the fraction of the smaller chunk's span covered by the
// intersection of the two spans. Returns 0 when the spans are disjoint.
func (c *Chunk) Overlap(other *Chunk) float64 {
	lo := max(c.SpanStart, other.SpanStart)
	hi := min(c.SpanEnd, other.SpanEnd)
	if hi <= lo {
		return 0
	}
	shorter := min(c.SpanEnd-c.SpanStart, other.SpanEnd-other.SpanStart)
	if shorter <= 0 {
		return 0
	}
	return float64(hi-lo) / float64(shorter)
}

// EstimateTokens estimates token count using a characters/4 heuristic.
// The average English word and code token are both roughly 4 characters;
// exact tokenizer parity is not required, only a stable, deterministic count.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}
