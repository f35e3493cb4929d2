package search

import (
	"cmp"
	"slices"

	"github.com/kailas-cloud/roadsafe/internal/domain/search/result"
)

// DefaultRRFK is the Reciprocal Rank Fusion constant (Cormack et al. 2009).
const DefaultRRFK = 60

// ranking is one strategy's ordered output.
type ranking struct {
	strategy string
	hits     []Hit
}

// fuseRRF merges rankings via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) over every ranking containing d, ranks 1-based.
// Ties break on the lower best rank, then id. Confidence normalizes the score
// against a candidate ranked first by every contributing ranking; empty
// rankings do not contribute.
func fuseRRF(k int, rankings []ranking) []result.ScoredCandidate {
	if k <= 0 {
		k = DefaultRRFK
	}

	type fused struct {
		id      string
		score   float64
		minRank int
		scores  map[string]result.StrategyScore
	}

	merged := make(map[string]*fused)
	contributing := 0

	for _, r := range rankings {
		if len(r.hits) == 0 {
			continue
		}
		contributing++
		for i, h := range r.hits {
			rank := i + 1
			f, ok := merged[h.ID]
			if !ok {
				f = &fused{id: h.ID, minRank: rank, scores: make(map[string]result.StrategyScore, len(rankings))}
				merged[h.ID] = f
			}
			if _, dup := f.scores[r.strategy]; dup {
				continue
			}
			f.score += 1.0 / float64(k+rank)
			f.minRank = min(f.minRank, rank)
			f.scores[r.strategy] = result.StrategyScore{Rank: rank, Score: h.Score}
		}
	}
	if contributing == 0 {
		return nil
	}

	all := make([]*fused, 0, len(merged))
	for _, f := range merged {
		all = append(all, f)
	}
	slices.SortFunc(all, func(a, b *fused) int {
		if a.score != b.score {
			return cmp.Compare(b.score, a.score)
		}
		if a.minRank != b.minRank {
			return cmp.Compare(a.minRank, b.minRank)
		}
		return cmp.Compare(a.id, b.id)
	})

	ceiling := float64(contributing) / float64(k+1)
	out := make([]result.ScoredCandidate, len(all))
	for i, f := range all {
		conf := min(max(f.score/ceiling, 0), 1)
		out[i] = result.NewScoredCandidate(f.id, f.scores, f.score, conf, i+1)
	}
	return out
}
