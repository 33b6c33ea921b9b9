// Package assembler packs deduplicated evidence into the four-slot bundle
// under a fixed token budget.
//
// Slot order is a contract: Pinned Invariants, Anchor Priors, Semantic
// Evidence, Recency Shots. Allocation is sequential and greedy: the
// pinned cap is absolute, the remaining budget is split by the role's
// slot weights, and unused allotment rolls forward to the next slot,
// never backward.
package assembler

import (
	"strings"

	"github.com/mnemohq/rehydrate/pkg/types"
)

// chunkSeparator joins chunk texts inside a slot. Separators are not
// charged against the budget; only chunk token estimates are.
const chunkSeparator = "\n\n"

// Input is everything assembly needs. Evidence is the deduplicated fused
// result set in rank order; Recent is the most-recently-changed content,
// newest first. Anchor priors are deliberately absent: they shape the
// retrieval query upstream and have no path into the bundle.
type Input struct {
	Role        *types.RoleConfig
	TokenBudget int
	Evidence    []*types.Chunk
	Recent      []*types.Chunk
}

// Assemble builds the bundle. The single fatal path is pinned invariants
// exceeding the whole token budget, which is a configuration error; every
// other shortfall degrades by omitting lower-priority content.
func Assemble(in Input) (*types.Bundle, error) {
	budget := in.TokenBudget
	if budget <= 0 {
		budget = in.Role.TokenBudget
	}
	weights := in.Role.SlotWeights

	bundle := &types.Bundle{
		Role:        in.Role.Role,
		TokenBudget: budget,
	}

	// Slot 1: pinned invariants. All or nothing; pinned content is
	// pre-compressed and must never be cut mid-sentence.
	pinnedTokens := types.EstimateTokens(in.Role.Pinned)
	if pinnedTokens > budget {
		return nil, types.NewError(types.ErrKindConfig,
			"pinned invariants exceed token budget", nil)
	}
	pinnedSlot := types.Slot{Kind: types.SlotPinnedInvariants}
	if in.Role.Pinned != "" {
		if pinnedTokens <= weights.PinnedCap {
			pinnedSlot.Content = in.Role.Pinned
			pinnedSlot.TokenCount = pinnedTokens
		} else {
			bundle.Flags = append(bundle.Flags, types.FlagPinnedOmitted)
		}
	}
	bundle.Slots = append(bundle.Slots, pinnedSlot)

	remaining := budget - pinnedSlot.TokenCount

	// Slot 2: anchor priors. Their allotment exists only so it can roll
	// forward; anchors expand the query upstream and never appear here.
	anchorAllot := int(float64(remaining) * weights.Anchor)
	bundle.Slots = append(bundle.Slots, types.Slot{Kind: types.SlotAnchorPriors})
	carry := anchorAllot

	// Slot 3: semantic evidence, in fused rank order. A chunk that would
	// exceed the slot's remaining allotment is skipped whole, never
	// truncated.
	// The deduplicator already enforced the per-file policy on evidence,
	// so this pass only records which files the bundle now holds.
	semanticAllot := int(float64(remaining)*weights.Semantic) + carry
	usedFiles := make(map[string]bool)
	semanticSlot, semanticLeft := fillSlot(types.SlotSemanticEvidence, semanticAllot, in.Evidence, usedFiles, false)
	bundle.Slots = append(bundle.Slots, semanticSlot)

	// Slot 4: recency shots, lowest priority. Degrades to empty when no
	// budget remains. Files already present in semantic evidence are
	// skipped so the bundle-wide dedup contract holds across slots.
	recencyAllot := int(float64(remaining)*weights.Recency) + semanticLeft
	recencySlot, _ := fillSlot(types.SlotRecencyShots, recencyAllot, in.Recent, usedFiles, true)
	bundle.Slots = append(bundle.Slots, recencySlot)

	for _, slot := range bundle.Slots {
		bundle.TotalTokens += slot.TokenCount
	}
	return bundle, nil
}

// fillSlot packs chunks into a slot under allotment, skipping chunks that
// do not fit whole. With skipUsed set it also skips chunks from files the
// bundle already holds. Files placed here are recorded in usedFiles either
// way. Returns the slot and the unused allotment for roll-forward.
func fillSlot(kind types.SlotKind, allotment int, chunks []*types.Chunk, usedFiles map[string]bool, skipUsed bool) (types.Slot, int) {
	slot := types.Slot{Kind: kind}
	if allotment <= 0 {
		return slot, 0
	}

	var parts []string
	left := allotment
	for _, chunk := range chunks {
		if skipUsed && usedFiles[chunk.SourceFile] {
			continue
		}
		tokens := chunk.TokenCount()
		if tokens > left {
			continue // skip, never truncate
		}
		parts = append(parts, chunk.Text)
		usedFiles[chunk.SourceFile] = true
		slot.TokenCount += tokens
		left -= tokens
	}
	slot.Content = strings.Join(parts, chunkSeparator)
	return slot, left
}
