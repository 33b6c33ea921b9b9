package types

// SlotKind names one of the four ordered bundle slots.
type SlotKind string

const (
	SlotPinnedInvariants SlotKind = "pinned_invariants"
	SlotAnchorPriors     SlotKind = "anchor_priors"
	SlotSemanticEvidence SlotKind = "semantic_evidence"
	SlotRecencyShots     SlotKind = "recency_shots"
)

// SlotOrder is the fixed slot ordering of every bundle. Emitting slots in
// any other order is a contract bug.
var SlotOrder = []SlotKind{
	SlotPinnedInvariants,
	SlotAnchorPriors,
	SlotSemanticEvidence,
	SlotRecencyShots,
}

// Slot is one section of an assembled bundle.
type Slot struct {
	Kind       SlotKind `json:"kind"`
	Content    string   `json:"content"`
	TokenCount int      `json:"token_count"`
}

// Bundle is the final artifact returned to the caller: the four slots in
// fixed order, with the sum of slot token counts never exceeding the role's
// token budget. A bundle is immutable once returned; the engine retains it
// only as a cache value (deep-copied on every read).
//
// Bundles carry no wall-clock fields: identical inputs must produce
// byte-identical bundles. Creation and expiry times live on the cache
// entry, not here.
type Bundle struct {
	Role        string   `json:"role"`
	Slots       []Slot   `json:"slots"`
	TotalTokens int      `json:"total_tokens"`
	TokenBudget int      `json:"token_budget"`
	Flags       []string `json:"flags,omitempty"` // degradation notes, e.g. omitted pinned content
}

// FlagPinnedOmitted marks a bundle whose pinned invariants did not fit
// their hard cap and were dropped whole rather than truncated.
const FlagPinnedOmitted = "pinned_invariants_omitted"

// Clone returns a deep copy of the bundle. Cached bundles are cloned on
// both write and read so callers can never mutate shared state.
func (b *Bundle) Clone() *Bundle {
	if b == nil {
		return nil
	}
	dst := &Bundle{
		Role:        b.Role,
		TotalTokens: b.TotalTokens,
		TokenBudget: b.TokenBudget,
		Slots:       make([]Slot, len(b.Slots)),
	}
	copy(dst.Slots, b.Slots)
	if len(b.Flags) > 0 {
		dst.Flags = make([]string, len(b.Flags))
		copy(dst.Flags, b.Flags)
	}
	return dst
}

// SlotByKind returns the slot with the given kind, or nil.
func (b *Bundle) SlotByKind(kind SlotKind) *Slot {
	for i := range b.Slots {
		if b.Slots[i].Kind == kind {
			return &b.Slots[i]
		}
	}
	return nil
}

// FeatureFlags are per-request pipeline switches.
type FeatureFlags struct {
	// EntityExpansion enables the entity-adjacent expansion stage. When
	// false the stage is skipped entirely and no extra retrieval calls
	// are issued.
	EntityExpansion bool `json:"entity_expansion"`
}
