package analytics

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/kailas-cloud/roadsafe/internal/domain"
	"github.com/kailas-cloud/roadsafe/internal/domain/intervention"
	"github.com/kailas-cloud/roadsafe/internal/logger"
)

// MaxProblems bounds the problem distribution.
const MaxProblems = 10

// Count is one bucket of a breakdown. Percentage is of the whole catalog,
// rounded to one decimal.
type Count struct {
	Name       string
	Count      int
	Percentage float64
}

// CostBand summarizes cost and effort for one category.
type CostBand struct {
	Category      string
	Interventions int
	MinCost       float64
	MaxCost       float64
	AvgCost       float64
	TotalCost     float64
	AvgDays       float64
}

// Report is a breakdown of the loaded catalog.
type Report struct {
	CatalogVersion uint64
	Interventions  int
	Categories     []Count // by count desc, then name
	Problems       []Count // top MaxProblems
	PriorityLevels []Count // baseline priority at full confidence
	Costs          []CostBand
	Standards      []Count // IRC references
	SpeedSpecific  int
	Insights       []string
}

// Service computes catalog analytics.
type Service struct {
	catalog CatalogReader
}

// New creates an analytics service.
func New(c CatalogReader) *Service {
	return &Service{catalog: c}
}

// Stats breaks the current snapshot down by category, problem, priority,
// cost and referenced standard.
func (s *Service) Stats(ctx context.Context) (Report, error) {
	snap := s.catalog.Snapshot()
	if snap == nil {
		return Report{}, fmt.Errorf("no catalog loaded: %w", domain.ErrCatalogLoad)
	}
	items := snap.All()

	var (
		categories = map[string]int{}
		problems   = map[string]int{}
		levels     = map[string]int{}
		standards  = map[string]int{}
		bands      = map[string]*CostBand{}
		speed      int
	)
	for _, iv := range items {
		cat := labelOr(iv.Category())
		categories[cat]++
		problems[labelOr(iv.Problem())]++
		levels[intervention.PriorityLevel(iv.PriorityScore(1))]++
		for _, ref := range iv.IRCReferences() {
			standards[ref]++
		}
		if r := iv.SpeedRange(); r.Min != nil || r.Max != nil {
			speed++
		}

		b, ok := bands[cat]
		if !ok {
			b = &CostBand{Category: cat, MinCost: iv.CostEstimate(), MaxCost: iv.CostEstimate()}
			bands[cat] = b
		}
		b.Interventions++
		b.MinCost = min(b.MinCost, iv.CostEstimate())
		b.MaxCost = max(b.MaxCost, iv.CostEstimate())
		b.TotalCost += iv.CostEstimate()
		b.AvgDays += iv.ImplementationTime()
	}

	total := len(items)
	rep := Report{
		CatalogVersion: snap.Version(),
		Interventions:  total,
		Categories:     counts(categories, total),
		Problems:       counts(problems, total),
		PriorityLevels: counts(levels, total),
		Standards:      counts(standards, total),
		SpeedSpecific:  speed,
	}
	if len(rep.Problems) > MaxProblems {
		rep.Problems = rep.Problems[:MaxProblems]
	}
	for _, b := range bands {
		b.AvgCost = b.TotalCost / float64(b.Interventions)
		b.AvgDays /= float64(b.Interventions)
		rep.Costs = append(rep.Costs, *b)
	}
	slices.SortFunc(rep.Costs, func(a, b CostBand) int { return cmp.Compare(a.Category, b.Category) })
	rep.Insights = insights(rep)

	logger.FromContext(ctx).Debug("catalog stats computed",
		zap.Uint64("catalog_version", rep.CatalogVersion),
		zap.Int("interventions", total),
		zap.Int("categories", len(rep.Categories)),
	)
	return rep, nil
}

func labelOr(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func counts(m map[string]int, total int) []Count {
	out := make([]Count, 0, len(m))
	for name, n := range m {
		out = append(out, Count{Name: name, Count: n, Percentage: percent(n, total)})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}

func insights(rep Report) []string {
	var out []string
	if len(rep.Categories) > 0 {
		top := rep.Categories[0]
		out = append(out, fmt.Sprintf("%s represents %.0f%% of interventions in the catalog", top.Name, top.Percentage))
	}

	var critical int
	for _, l := range rep.PriorityLevels {
		if l.Name == intervention.LevelCritical {
			critical = l.Count
		}
	}
	if rep.Interventions > 0 && critical*2 > rep.Interventions {
		out = append(out, "Over half of the interventions address critical defects; regular maintenance could prevent these")
	}
	if len(rep.Standards) > 1 {
		out = append(out, fmt.Sprintf("Catalog references %d different IRC standards", len(rep.Standards)))
	}
	if rep.SpeedSpecific > 0 {
		out = append(out, fmt.Sprintf("%d interventions carry speed-specific requirements", rep.SpeedSpecific))
	}
	return out
}
