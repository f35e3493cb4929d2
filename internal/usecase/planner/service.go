package planner

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/roadsafe/internal/domain"
	"github.com/kailas-cloud/roadsafe/internal/domain/decision"
	"github.com/kailas-cloud/roadsafe/internal/domain/intervention"
	"github.com/kailas-cloud/roadsafe/internal/logger"
)

// longPlanDays triggers the parallel-execution note.
const longPlanDays = 30

// Service selects interventions under a budget.
type Service struct {
	newID func() string
}

// New creates a planner service.
func New() *Service {
	return &Service{newID: uuid.NewString}
}

type scored struct {
	cand     decision.Candidate
	priority float64
	ratio    float64
}

// Optimize greedily packs candidates into budget. With optimize set the
// candidates are visited by descending value ratio (priority per unit cost),
// otherwise in the given order. A candidate that does not fit is skipped and
// packing continues, so this is a heuristic rather than an optimal knapsack.
// Candidates with a non-positive cost are excluded up front.
func (s *Service) Optimize(
	ctx context.Context, cands []decision.Candidate, budget float64, optimize bool,
) (decision.Plan, error) {
	if math.IsNaN(budget) || math.IsInf(budget, 0) || budget <= 0 {
		return decision.Plan{}, domain.InvalidQueryf("budget must be a positive number")
	}

	plan := decision.Plan{
		ID:        s.newID(),
		Budget:    budget,
		Optimized: optimize,
	}

	pool := make([]scored, 0, len(cands))
	for _, c := range cands {
		cost := c.Intervention().CostEstimate()
		if cost <= 0 {
			plan.Excluded = append(plan.Excluded, decision.Exclusion{ID: c.ID(), Reason: decision.ReasonInvalidCost})
			continue
		}
		p := c.PriorityScore()
		pool = append(pool, scored{cand: c, priority: p, ratio: p / cost})
	}

	if optimize {
		slices.SortStableFunc(pool, func(a, b scored) int {
			return cmp.Compare(b.ratio, a.ratio)
		})
	}

	for _, sc := range pool {
		iv := sc.cand.Intervention()
		if plan.TotalCost+iv.CostEstimate() > budget {
			plan.Excluded = append(plan.Excluded, decision.Exclusion{ID: iv.ID(), Reason: decision.ReasonOverBudget})
			continue
		}
		plan.TotalCost += iv.CostEstimate()
		plan.TotalPriority += sc.priority
		plan.Items = append(plan.Items, decision.PlanItem{
			ID:             iv.ID(),
			Name:           iv.Name(),
			Category:       iv.Category(),
			Cost:           iv.CostEstimate(),
			Days:           iv.ImplementationTime(),
			Confidence:     sc.cand.Confidence(),
			PriorityScore:  sc.priority,
			PriorityLevel:  intervention.PriorityLevel(sc.priority),
			ValueRatio:     sc.ratio,
			Parallelizable: iv.Parallelizable(),
		})
	}

	plan.Feasible = len(plan.Items) > 0
	plan.UtilizationPercent = plan.TotalCost / budget * 100
	plan.Timeline, plan.TotalDays = schedule(plan.Items)
	plan.Notes = notes(plan)

	logger.FromContext(ctx).Debug("budget plan built",
		zap.String("plan_id", plan.ID),
		zap.Float64("budget", budget),
		zap.Bool("optimize", optimize),
		zap.Int("candidates", len(cands)),
		zap.Int("selected", len(plan.Items)),
		zap.Float64("total_cost", plan.TotalCost),
	)
	return plan, nil
}

// schedule lays items out back to back; parallelizable items start on day 0.
// Total days is the sequential sum, or the longest item when every item can
// run in parallel.
func schedule(items []decision.PlanItem) ([]decision.TimelineEntry, float64) {
	if len(items) == 0 {
		return nil, 0
	}
	timeline := make([]decision.TimelineEntry, len(items))
	var cursor, longest float64
	allParallel := true
	for i, it := range items {
		start := cursor
		if it.Parallelizable {
			start = 0
		} else {
			allParallel = false
			cursor += it.Days
		}
		longest = max(longest, it.Days)
		timeline[i] = decision.TimelineEntry{
			Sequence: i + 1,
			ID:       it.ID,
			Name:     it.Name,
			StartDay: start,
			EndDay:   start + it.Days,
		}
	}
	if allParallel {
		return timeline, longest
	}
	var total float64
	for _, it := range items {
		total += it.Days
	}
	return timeline, total
}

func notes(p decision.Plan) []string {
	var out []string
	if !p.Feasible {
		out = append(out, fmt.Sprintf("No candidate fits within the budget of %.2f.", p.Budget))
		return out
	}

	var critical, high, signs, markings int
	for _, it := range p.Items {
		switch it.PriorityLevel {
		case intervention.LevelCritical:
			critical++
		case intervention.LevelHigh:
			high++
		}
		cat := strings.ToLower(it.Category)
		if strings.Contains(cat, "road sign") {
			signs++
		}
		if strings.Contains(cat, "road marking") {
			markings++
		}
	}

	if critical > 0 {
		out = append(out, fmt.Sprintf("%d critical intervention(s) selected; implement these first.", critical))
	}
	if high > 0 {
		out = append(out, fmt.Sprintf("%d high-priority intervention(s) should follow soon after.", high))
	}
	if p.TotalDays > longPlanDays {
		out = append(out, "Implementation exceeds 30 days; consider running independent items in parallel.")
	}
	if signs > 2 {
		out = append(out, "Several road signs selected; bulk procurement may reduce cost.")
	}
	if markings > 2 {
		out = append(out, "Several road markings selected; schedule them together to limit closures.")
	}
	return out
}
