package result

import (
	"maps"
	"slices"

	"github.com/kailas-cloud/roadsafe/internal/domain/intervention"
)

// StrategyScore is one strategy's view of a candidate.
type StrategyScore struct {
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
}

// ScoredCandidate is a fused search hit.
type ScoredCandidate struct {
	id             string
	strategyScores map[string]StrategyScore
	fusedScore     float64
	confidence     float64
	fusedRank      int
	intervention   intervention.Intervention
	explanation    string
}

// NewScoredCandidate creates a fused search hit.
func NewScoredCandidate(
	id string, scores map[string]StrategyScore,
	fusedScore, confidence float64, fusedRank int,
) ScoredCandidate {
	return ScoredCandidate{
		id:             id,
		strategyScores: scores,
		fusedScore:     fusedScore,
		confidence:     confidence,
		fusedRank:      fusedRank,
	}
}

// ID returns the intervention id.
func (c ScoredCandidate) ID() string { return c.id }

// StrategyScores returns a copy of the per-strategy rank and raw score.
func (c ScoredCandidate) StrategyScores() map[string]StrategyScore { return maps.Clone(c.strategyScores) }

// WithDetail returns a copy carrying the intervention the hit was ranked
// from and a human-readable reason for the match.
func (c ScoredCandidate) WithDetail(iv intervention.Intervention, explanation string) ScoredCandidate {
	c.intervention = iv
	c.explanation = explanation
	return c
}

// Intervention returns the catalog entry from the snapshot the hit was
// computed against; ok is false when none was attached.
func (c ScoredCandidate) Intervention() (iv intervention.Intervention, ok bool) {
	return c.intervention, c.intervention.ID() != ""
}

// Explanation says why the candidate matched, empty when not attached.
func (c ScoredCandidate) Explanation() string { return c.explanation }

// FusedScore returns the raw RRF sum.
func (c ScoredCandidate) FusedScore() float64 { return c.fusedScore }

// Confidence returns the fused score normalized to 0..1.
func (c ScoredCandidate) Confidence() float64 { return c.confidence }

// FusedRank returns the 1-based position in the fused list.
func (c ScoredCandidate) FusedRank() int { return c.fusedRank }

// MinRank returns the best rank across strategies, 0 when none.
func (c ScoredCandidate) MinRank() int {
	best := 0
	for _, s := range c.strategyScores {
		if best == 0 || s.Rank < best {
			best = s.Rank
		}
	}
	return best
}

// Set is the outcome of a search.
type Set struct {
	candidates     []ScoredCandidate
	strategies     []string
	degraded       bool
	fromCache      bool
	fingerprint    string
	catalogVersion uint64
}

// NewSet creates a result set. strategies lists those that contributed a
// non-empty ranking; degraded marks that at least one strategy failed.
func NewSet(
	candidates []ScoredCandidate, strategies []string,
	degraded bool, fingerprint string, catalogVersion uint64,
) Set {
	return Set{
		candidates:     candidates,
		strategies:     strategies,
		degraded:       degraded,
		fingerprint:    fingerprint,
		catalogVersion: catalogVersion,
	}
}

// Candidates returns a copy of the ranked hits. Cached sets are shared, so
// callers never see the backing slice.
func (s Set) Candidates() []ScoredCandidate { return slices.Clone(s.candidates) }

// Strategies returns a copy of the names of the contributing strategies.
func (s Set) Strategies() []string { return slices.Clone(s.strategies) }

// Contributed reports whether the named strategy contributed.
func (s Set) Contributed(name string) bool { return slices.Contains(s.strategies, name) }

// Degraded reports whether a strategy failed during computation.
func (s Set) Degraded() bool { return s.degraded }

// FromCache reports whether the set was served from the result cache.
func (s Set) FromCache() bool { return s.fromCache }

// Fingerprint returns the query fingerprint the set was computed for.
func (s Set) Fingerprint() string { return s.fingerprint }

// CatalogVersion returns the snapshot version the set was computed against.
func (s Set) CatalogVersion() uint64 { return s.catalogVersion }

// Len returns the number of candidates.
func (s Set) Len() int { return len(s.candidates) }

// Cached returns a copy flagged as served from cache.
func (s Set) Cached() Set {
	s.fromCache = true
	return s
}

// Truncate returns a copy holding at most n candidates.
func (s Set) Truncate(n int) Set {
	if n >= 0 && len(s.candidates) > n {
		s.candidates = s.candidates[:n]
	}
	return s
}
