package search

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/roadsafe/internal/domain/intervention"
	"github.com/kailas-cloud/roadsafe/internal/domain/search/filter"
	"github.com/kailas-cloud/roadsafe/internal/domain/search/result"
)

const fallbackExplanation = "matched on query relevance"

// explain says why c matched: its semantic similarity when the vector
// strategy ranked it, and the filters it passed when the structured one did.
func explain(c result.ScoredCandidate, iv intervention.Intervention, f filter.Filters) string {
	var reasons []string
	scores := c.StrategyScores()

	if s, ok := scores[StrategyVector]; ok {
		reasons = append(reasons, fmt.Sprintf("semantic similarity %.2f (rank %d)", s.Score, s.Rank))
	}
	if _, ok := scores[StrategyStructured]; ok {
		if f.Category() != "" {
			reasons = append(reasons, "category "+iv.Category())
		}
		if f.HasSpeed() {
			reasons = append(reasons, "speed "+describeSpeed(iv.SpeedRange()))
		}
		if tags := matchedTags(iv, f.Tags()); len(tags) > 0 {
			reasons = append(reasons, "problem "+strings.Join(tags, ", "))
		}
	}

	if len(reasons) == 0 {
		return fallbackExplanation
	}
	return strings.Join(reasons, "; ")
}

func matchedTags(iv intervention.Intervention, want []string) []string {
	var out []string
	for _, t := range want {
		if iv.HasTag([]string{t}) {
			out = append(out, t)
		}
	}
	return out
}

func describeSpeed(r intervention.SpeedRange) string {
	switch {
	case r.Min != nil && r.Max != nil:
		return fmt.Sprintf("%g-%g km/h", *r.Min, *r.Max)
	case r.Min != nil:
		return fmt.Sprintf("%g+ km/h", *r.Min)
	case r.Max != nil:
		return fmt.Sprintf("up to %g km/h", *r.Max)
	default:
		return "any"
	}
}
