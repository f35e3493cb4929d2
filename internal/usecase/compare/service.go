package compare

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/roadsafe/internal/domain"
	"github.com/kailas-cloud/roadsafe/internal/domain/decision"
	"github.com/kailas-cloud/roadsafe/internal/logger"
)

// MinCandidates is the smallest comparable set.
const MinCandidates = 2

// highConfidence marks candidates worth calling out in notes.
const highConfidence = 0.8

// Service ranks candidates on confidence, cost, time and priority.
type Service struct {
	newID func() string
}

// New creates a comparison service.
func New() *Service {
	return &Service{newID: uuid.NewString}
}

// Compare scores every candidate and picks a winner. Efficiencies are
// relative to the cheapest and quickest candidate; a zero cost or time
// counts as fully efficient and leaves every positive one at 0. Ties on the overall score go to the higher
// confidence, then the lower id.
func (s *Service) Compare(ctx context.Context, cands []decision.Candidate) (decision.Comparison, error) {
	if len(cands) < MinCandidates {
		return decision.Comparison{}, domain.InvalidQueryf("comparison needs at least %d candidates, got %d",
			MinCandidates, len(cands))
	}

	minCost, minTime := minimums(cands)

	entries := make([]decision.ComparisonEntry, len(cands))
	for i, c := range cands {
		iv := c.Intervention()
		priority := c.PriorityScore()
		costEff := efficiency(minCost, iv.CostEstimate())
		timeEff := efficiency(minTime, iv.ImplementationTime())
		entries[i] = decision.ComparisonEntry{
			ID:             iv.ID(),
			Name:           iv.Name(),
			Category:       iv.Category(),
			Cost:           iv.CostEstimate(),
			Days:           iv.ImplementationTime(),
			Confidence:     c.Confidence(),
			PriorityScore:  priority,
			CostEfficiency: costEff,
			TimeEfficiency: timeEff,
			Overall: decision.WeightConfidence*c.Confidence() +
				decision.WeightCost*costEff +
				decision.WeightTime*timeEff +
				decision.WeightPriority*priority/100,
		}
	}

	winner := slices.MaxFunc(entries, func(a, b decision.ComparisonEntry) int {
		switch {
		case a.Overall != b.Overall:
			return cmp.Compare(a.Overall, b.Overall)
		case a.Confidence != b.Confidence:
			return cmp.Compare(a.Confidence, b.Confidence)
		default:
			return strings.Compare(b.ID, a.ID)
		}
	})

	res := decision.Comparison{
		ID:        s.newID(),
		Entries:   entries,
		Winner:    winner.ID,
		TradeOffs: tradeOffs(entries),
		Matrix:    matrix(cands, entries),
		Notes:     notes(cands),
	}

	logger.FromContext(ctx).Debug("comparison built",
		zap.String("comparison_id", res.ID),
		zap.Int("candidates", len(cands)),
		zap.String("winner", res.Winner),
		zap.Int("trade_offs", len(res.TradeOffs)),
	)
	return res, nil
}

// minimums returns the smallest cost and time across candidates.
func minimums(cands []decision.Candidate) (float64, float64) {
	minCost, minTime := math.Inf(1), math.Inf(1)
	for _, c := range cands {
		iv := c.Intervention()
		minCost = min(minCost, iv.CostEstimate())
		minTime = min(minTime, iv.ImplementationTime())
	}
	return minCost, minTime
}

// efficiency is best/value in [0, 1]. A zero value is fully efficient; next
// to a zero best any positive value scores 0, the limit of best/value.
func efficiency(best, value float64) float64 {
	switch {
	case value <= 0:
		return 1
	case best <= 0:
		return 0
	default:
		return best / value
	}
}

// tradeOffs lists every ordered pair where one entry is strictly cheaper
// but strictly slower than the other.
func tradeOffs(entries []decision.ComparisonEntry) []decision.TradeOff {
	var out []decision.TradeOff
	for _, a := range entries {
		for _, b := range entries {
			if a.Cost < b.Cost && a.Days > b.Days {
				out = append(out, decision.TradeOff{
					Cheaper:     a.ID,
					Faster:      b.ID,
					CostSaving:  b.Cost - a.Cost,
					TimePenalty: a.Days - b.Days,
				})
			}
		}
	}
	return out
}

func matrix(cands []decision.Candidate, entries []decision.ComparisonEntry) []decision.MatrixRow {
	rows := []struct {
		attr  string
		value func(i int) string
	}{
		{"Name", func(i int) string { return entries[i].Name }},
		{"Category", func(i int) string { return entries[i].Category }},
		{"Problem", func(i int) string { return orNA(cands[i].Intervention().Problem()) }},
		{"Confidence", func(i int) string { return fmt.Sprintf("%.0f%%", entries[i].Confidence*100) }},
		{"Cost", func(i int) string { return strconv.FormatFloat(entries[i].Cost, 'f', -1, 64) }},
		{"Days", func(i int) string { return strconv.FormatFloat(entries[i].Days, 'f', -1, 64) }},
		{"IRC Reference", func(i int) string {
			return orNA(strings.Join(cands[i].Intervention().IRCReferences(), "; "))
		}},
		{"Priority", func(i int) string { return fmt.Sprintf("%.1f", entries[i].PriorityScore) }},
	}

	out := make([]decision.MatrixRow, len(rows))
	for r, row := range rows {
		values := make([]string, len(entries))
		for i := range entries {
			values[i] = row.value(i)
		}
		out[r] = decision.MatrixRow{Attribute: row.attr, Values: values}
	}
	return out
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func notes(cands []decision.Candidate) []string {
	var out []string

	var problems []string
	byProblem := make(map[string]int)
	categories := make(map[string]struct{})
	high := 0
	for _, c := range cands {
		iv := c.Intervention()
		p := iv.Problem()
		if p == "" {
			p = "Unknown"
		}
		if byProblem[p] == 0 {
			problems = append(problems, p)
		}
		byProblem[p]++
		categories[iv.Category()] = struct{}{}
		if c.Confidence() > highConfidence {
			high++
		}
	}

	for _, p := range problems {
		if byProblem[p] > 1 {
			out = append(out, fmt.Sprintf("%d candidates address the %q problem; compare cost and complexity.",
				byProblem[p], p))
		}
	}
	if len(categories) > 1 {
		out = append(out, "Candidates span several categories; bundle similar work where possible.")
	}
	if high > 0 {
		out = append(out, fmt.Sprintf("%d candidate(s) have confidence above 80%%.", high))
	}
	return out
}
