package types

import "fmt"

// AnchorPrior is query-expansion-only text attached to a role. Anchor
// priors participate in query construction before retrieval but are a
// distinct type from bundle content precisely so they cannot leak verbatim
// into an assembled Bundle: nothing in the assembly step accepts this type.
type AnchorPrior string

// SlotWeights controls how a role's token budget is split across slots.
// PinnedCap is an absolute token cap; the three fractions apply to the
// budget remaining after pinned content is placed.
type SlotWeights struct {
	PinnedCap int     `json:"pinned_cap" mapstructure:"pinned_cap"`
	Anchor    float64 `json:"anchor" mapstructure:"anchor"`
	Semantic  float64 `json:"semantic" mapstructure:"semantic"`
	Recency   float64 `json:"recency" mapstructure:"recency"`
}

// RoleConfig is the static per-role retrieval and assembly policy. It is
// loaded once at startup and read-only during request processing.
type RoleConfig struct {
	Role        string        `json:"role" mapstructure:"role"`
	TokenBudget int           `json:"token_budget" mapstructure:"token_budget"`
	SlotWeights SlotWeights   `json:"slot_weights" mapstructure:"slot_weights"`
	Pinned      string        `json:"pinned" mapstructure:"pinned"`
	Anchors     []AnchorPrior `json:"anchors" mapstructure:"anchors"`

	// Dedup policy. KeepPerFile is the number of results retained per
	// source file (top-1 unless configured otherwise); OverlapFraction is
	// the span-overlap threshold above which the lower-ranked chunk is
	// dropped.
	KeepPerFile     int     `json:"keep_per_file" mapstructure:"keep_per_file"`
	OverlapFraction float64 `json:"overlap_fraction" mapstructure:"overlap_fraction"`
}

// Validate checks a role configuration at load time. Violations here are
// configuration errors: fatal, surfaced immediately, never degraded.
func (rc *RoleConfig) Validate() error {
	if rc.Role == "" {
		return fmt.Errorf("role name is required")
	}
	if rc.TokenBudget <= 0 {
		return fmt.Errorf("role %q: token budget must be positive", rc.Role)
	}
	w := rc.SlotWeights
	if w.PinnedCap < 0 {
		return fmt.Errorf("role %q: pinned cap cannot be negative", rc.Role)
	}
	if w.Anchor < 0 || w.Anchor > 0.2 {
		return fmt.Errorf("role %q: anchor weight %.2f outside [0, 0.2]", rc.Role, w.Anchor)
	}
	if w.Semantic < 0.5 || w.Semantic > 0.8 {
		return fmt.Errorf("role %q: semantic weight %.2f outside [0.5, 0.8]", rc.Role, w.Semantic)
	}
	if w.Recency < 0 || w.Recency > 0.1 {
		return fmt.Errorf("role %q: recency weight %.2f outside [0, 0.1]", rc.Role, w.Recency)
	}
	if sum := w.Anchor + w.Semantic + w.Recency; sum > 1.0 {
		return fmt.Errorf("role %q: slot weights sum to %.2f, must not exceed 1.0", rc.Role, sum)
	}
	if EstimateTokens(rc.Pinned) > rc.TokenBudget {
		return fmt.Errorf("role %q: pinned invariants (%d tokens) exceed token budget (%d)",
			rc.Role, EstimateTokens(rc.Pinned), rc.TokenBudget)
	}
	if rc.OverlapFraction < 0 || rc.OverlapFraction > 1 {
		return fmt.Errorf("role %q: overlap fraction %.2f outside [0, 1]", rc.Role, rc.OverlapFraction)
	}
	return nil
}
