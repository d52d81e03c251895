// Package model maps abstract debate roles to concrete backing models,
// honoring a per-run availability snapshot.
package model

// Tier is a backing-model capability class.
type Tier string

const (
	TierReasoning Tier = "reasoning"
	TierBalanced  Tier = "balanced"
	TierFast      Tier = "fast"
)

// ModelStatus is one tier's entry in an availability snapshot.
type ModelStatus struct {
	ID        string `json:"id"`
	Available bool   `json:"available"`
}

// ResolvedModels is an availability snapshot: tier → concrete model.
type ResolvedModels struct {
	Models map[Tier]ModelStatus `json:"models"`
	Source string               `json:"source"` // "manifest" or "builtin"
}

// Assignment is a resolved (stage, role-index) mapping.
type Assignment struct {
	Tier  Tier
	Model string
}

// Resolver translates (stage, role-index) pairs into concrete models.
// A Resolver is immutable once built; build a new one when availability
// changes.
type Resolver struct {
	models ResolvedModels
}

// NewResolver creates a Resolver over an availability snapshot.
func NewResolver(models ResolvedModels) *Resolver {
	return &Resolver{models: models}
}

// Source reports where the snapshot came from.
func (r *Resolver) Source() string {
	return r.models.Source
}

// IdealTier returns the static ideal tier for a (stage, role-index) pair.
// The lead role and the synthesizer get the reasoning tier; remaining
// roles alternate balanced and fast. The table is currently the same for
// every stage; the stage is part of the key so per-stage overrides slot
// in without a signature change.
func IdealTier(stage string, roleIndex int) Tier {
	switch {
	case roleIndex == 0 || roleIndex == SynthesizerRole:
		return TierReasoning
	case roleIndex%2 == 1:
		return TierBalanced
	default:
		return TierFast
	}
}

// SynthesizerRole is the pseudo role-index used for synthesis and
// contention-evaluation invocations.
const SynthesizerRole = -1

// SequentialRole is the role-index used for sequential step invocations;
// it maps to the balanced tier.
const SequentialRole = 1

// Resolve maps a (stage, role-index) pair to a concrete model. If the
// ideal tier is unavailable it falls back to the balanced tier; the
// balanced tier is the unconditional last resort. The fallback is
// two-level only.
func (r *Resolver) Resolve(stage string, roleIndex int) Assignment {
	ideal := IdealTier(stage, roleIndex)
	if m, ok := r.models.Models[ideal]; ok && m.Available {
		return Assignment{Tier: ideal, Model: m.ID}
	}
	mid := r.models.Models[TierBalanced]
	return Assignment{Tier: TierBalanced, Model: mid.ID}
}
