package roadsafe

import (
	"time"

	"github.com/kailas-cloud/roadsafe/internal/domain/decision"
	"github.com/kailas-cloud/roadsafe/internal/domain/intervention"
	"github.com/kailas-cloud/roadsafe/internal/repository/catalog"
	analyticsuc "github.com/kailas-cloud/roadsafe/internal/usecase/analytics"
)

// Record is a raw catalog row, as read from a catalog file.
type Record = catalog.Record

// Intervention is a validated catalog entry.
type Intervention = intervention.Intervention

// Plan is a budget-constrained selection with its schedule.
type Plan = decision.Plan

// Comparison ranks two or more interventions.
type Comparison = decision.Comparison

// CatalogStats breaks the loaded catalog down by category, problem,
// priority, cost and referenced standard.
type CatalogStats = analyticsuc.Report

// StrategyScore is one strategy's rank and raw score for a hit.
type StrategyScore struct {
	Rank  int
	Score float64
}

// Hit is a single fused search hit.
type Hit struct {
	ID         string
	Name       string
	Category   string
	Rank       int
	Score      float64
	Confidence float64
	// Explanation says which strategies matched and on what.
	Explanation string
	Strategies  map[string]StrategyScore
}

// SearchResult is the fused ranking for one query.
type SearchResult struct {
	Hits           []Hit
	Mode           string   // "hybrid", "vector" or "structured"
	Strategies     []string // strategies that contributed a ranking
	Degraded       bool     // a strategy failed and the rest carried the result
	FromCache      bool
	Fingerprint    string
	CatalogVersion uint64
	Took           time.Duration
}

// Refs turns hits into decision-engine candidates, keeping hit order and
// carrying each hit's fused confidence.
func (r SearchResult) Refs() []CandidateRef {
	refs := make([]CandidateRef, len(r.Hits))
	for i, h := range r.Hits {
		refs[i] = CandidateRef{ID: h.ID, Confidence: h.Confidence}
	}
	return refs
}

// CandidateRef names an intervention handed to PlanBudget or Compare.
type CandidateRef struct {
	ID         string
	Confidence float64 // 0..1
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status         string            // "ok", "degraded", "error"
	Checks         map[string]string // component → "ok"/"error"
	CatalogVersion uint64
	Interventions  int
	Categories     []string
}
