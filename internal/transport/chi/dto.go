package chi

import (
	"github.com/kailas-cloud/roadsafe/internal/domain/decision"
	"github.com/kailas-cloud/roadsafe/internal/domain/intervention"
	"github.com/kailas-cloud/roadsafe/internal/domain/search/result"
	"github.com/kailas-cloud/roadsafe/internal/repository/catalog"
	analyticsuc "github.com/kailas-cloud/roadsafe/internal/usecase/analytics"
	healthuc "github.com/kailas-cloud/roadsafe/internal/usecase/health"
)

// ErrorResponseCode is a machine-readable error code.
type ErrorResponseCode string

// Error codes.
const (
	ErrorResponseCodeBadRequest           ErrorResponseCode = "bad_request"
	ErrorResponseCodeValidationFailed     ErrorResponseCode = "validation_failed"
	ErrorResponseCodeUnauthorized         ErrorResponseCode = "unauthorized"
	ErrorResponseCodeNotFound             ErrorResponseCode = "not_found"
	ErrorResponseCodeEmbeddingUnavailable ErrorResponseCode = "embedding_unavailable"
	ErrorResponseCodeCatalogLoadFailed    ErrorResponseCode = "catalog_load_failed"
	ErrorResponseCodeInternalError        ErrorResponseCode = "internal_error"
	ErrorResponseCodeRequestCanceled      ErrorResponseCode = "request_canceled"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// SearchParams are the query parameters of GET /v1/search.
type SearchParams struct {
	Q          *string   `json:"q,omitempty"`
	Category   *string   `json:"category,omitempty"`
	SpeedMin   *float64  `json:"speed_min,omitempty"`
	SpeedMax   *float64  `json:"speed_max,omitempty"`
	Tags       *[]string `json:"tags,omitempty"`
	MaxResults *int      `json:"max_results,omitempty"`
	Strategy   *string   `json:"strategy,omitempty"`
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query      string   `json:"query" validate:"max=4096"`
	Category   string   `json:"category,omitempty" validate:"max=128"`
	SpeedMin   *float64 `json:"speed_min,omitempty" validate:"omitempty,gte=0"`
	SpeedMax   *float64 `json:"speed_max,omitempty" validate:"omitempty,gte=0"`
	Tags       []string `json:"tags,omitempty" validate:"max=32,dive,max=64"`
	MaxResults int      `json:"max_results,omitempty" validate:"gte=0"`
	Strategy   string   `json:"strategy,omitempty" validate:"max=32"`
}

// SearchResultItem is one fused hit.
type SearchResultItem struct {
	ID             string                          `json:"id"`
	Name           string                          `json:"name,omitempty"`
	Category       string                          `json:"category,omitempty"`
	Rank           int                             `json:"rank"`
	Score          float64                         `json:"score"`
	Confidence     float64                         `json:"confidence"`
	Explanation    string                          `json:"explanation,omitempty"`
	StrategyScores map[string]result.StrategyScore `json:"strategy_scores"`
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Items          []SearchResultItem `json:"items"`
	Total          int                `json:"total"`
	Mode           string             `json:"mode"`
	Strategies     []string           `json:"strategies"`
	Degraded       bool               `json:"degraded"`
	FromCache      bool               `json:"from_cache"`
	Fingerprint    string             `json:"fingerprint"`
	CatalogVersion uint64             `json:"catalog_version"`
	QueryTimeMS    int64              `json:"query_time_ms"`
}

// SpeedRange is an open-ended km/h band.
type SpeedRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// InterventionResponse is a catalog record.
type InterventionResponse struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Category           string     `json:"category"`
	Problem            string     `json:"problem,omitempty"`
	Type               string     `json:"type,omitempty"`
	Description        string     `json:"description,omitempty"`
	ProblemTags        []string   `json:"problem_tags,omitempty"`
	SpeedRange         SpeedRange `json:"speed_range"`
	Dimensions         []string   `json:"dimensions,omitempty"`
	Colors             []string   `json:"colors,omitempty"`
	CostEstimate       float64    `json:"cost_estimate"`
	ImplementationTime float64    `json:"implementation_time"`
	IRCReferences      []string   `json:"irc_references,omitempty"`
	Priority           string     `json:"priority,omitempty"`
	Parallelizable     bool       `json:"parallelizable"`
}

// CandidateRef names a search hit handed to a decision engine.
type CandidateRef struct {
	ID         string  `json:"id" validate:"required,max=128"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// BudgetPlanRequest is the body of POST /v1/plans/budget.
type BudgetPlanRequest struct {
	Candidates []CandidateRef `json:"candidates" validate:"max=200,dive"`
	Budget     float64        `json:"budget" validate:"gt=0"`
	Optimize   *bool          `json:"optimize,omitempty"`
}

// ComparisonRequest is the body of POST /v1/comparisons.
type ComparisonRequest struct {
	Candidates []CandidateRef `json:"candidates" validate:"required,min=2,max=20,dive"`
}

// PlanItem is a selected intervention.
type PlanItem struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Cost           float64 `json:"cost"`
	Days           float64 `json:"days"`
	Confidence     float64 `json:"confidence"`
	PriorityScore  float64 `json:"priority_score"`
	PriorityLevel  string  `json:"priority_level"`
	ValueRatio     float64 `json:"value_ratio"`
	Parallelizable bool    `json:"parallelizable"`
}

// TimelineEntry is a scheduled plan item.
type TimelineEntry struct {
	Sequence int     `json:"sequence"`
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	StartDay float64 `json:"start_day"`
	EndDay   float64 `json:"end_day"`
}

// Exclusion is a candidate left out of a plan.
type Exclusion struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// PlanResponse is the body of a budget plan.
type PlanResponse struct {
	ID                 string          `json:"id"`
	Budget             float64         `json:"budget"`
	Optimized          bool            `json:"optimized"`
	Feasible           bool            `json:"feasible"`
	Items              []PlanItem      `json:"items"`
	Excluded           []Exclusion     `json:"excluded"`
	TotalCost          float64         `json:"total_cost"`
	RemainingBudget    float64         `json:"remaining_budget"`
	TotalDays          float64         `json:"total_days"`
	UtilizationPercent float64         `json:"utilization_percent"`
	TotalPriority      float64         `json:"total_priority"`
	Timeline           []TimelineEntry `json:"timeline"`
	Notes              []string        `json:"notes"`
}

// ComparisonEntry is one compared candidate.
type ComparisonEntry struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Cost           float64 `json:"cost"`
	Days           float64 `json:"days"`
	Confidence     float64 `json:"confidence"`
	PriorityScore  float64 `json:"priority_score"`
	CostEfficiency float64 `json:"cost_efficiency"`
	TimeEfficiency float64 `json:"time_efficiency"`
	Overall        float64 `json:"overall_score"`
}

// TradeOff is a cheaper-but-slower pair.
type TradeOff struct {
	Cheaper     string  `json:"cheaper"`
	Faster      string  `json:"faster"`
	CostSaving  float64 `json:"cost_saving"`
	TimePenalty float64 `json:"time_penalty_days"`
}

// MatrixRow is one attribute across compared candidates.
type MatrixRow struct {
	Attribute string   `json:"attribute"`
	Values    []string `json:"values"`
}

// ComparisonResponse is the body of a comparison.
type ComparisonResponse struct {
	ID        string            `json:"id"`
	Winner    string            `json:"winner"`
	Entries   []ComparisonEntry `json:"entries"`
	TradeOffs []TradeOff        `json:"trade_offs"`
	Matrix    []MatrixRow       `json:"matrix"`
	Notes     []string          `json:"notes"`
}

// ReloadResponse reports the installed catalog.
type ReloadResponse struct {
	Version       uint64 `json:"version"`
	Interventions int    `json:"interventions"`
}

// StatCount is one bucket of a catalog breakdown.
type StatCount struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// CostBand summarizes cost and effort for one category.
type CostBand struct {
	Category      string  `json:"category"`
	Interventions int     `json:"interventions"`
	MinCost       float64 `json:"min_cost"`
	MaxCost       float64 `json:"max_cost"`
	AvgCost       float64 `json:"avg_cost"`
	TotalCost     float64 `json:"total_cost"`
	AvgDays       float64 `json:"avg_days"`
}

// CatalogStatsResponse is the body of GET /v1/catalog/stats.
type CatalogStatsResponse struct {
	CatalogVersion uint64      `json:"catalog_version"`
	Interventions  int         `json:"interventions"`
	Categories     []StatCount `json:"categories"`
	Problems       []StatCount `json:"problems"`
	PriorityLevels []StatCount `json:"priority_levels"`
	Costs          []CostBand  `json:"costs"`
	Standards      []StatCount `json:"irc_standards"`
	SpeedSpecific  int         `json:"speed_specific"`
	Insights       []string    `json:"insights"`
}

// CatalogHealth describes the loaded catalog.
type CatalogHealth struct {
	Version       uint64   `json:"version"`
	Interventions int      `json:"interventions"`
	Categories    []string `json:"categories"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Catalog CatalogHealth     `json:"catalog"`
}

func searchResultToDTO(c result.ScoredCandidate) SearchResultItem {
	item := SearchResultItem{
		ID:             c.ID(),
		Rank:           c.FusedRank(),
		Score:          c.FusedScore(),
		Confidence:     c.Confidence(),
		Explanation:    c.Explanation(),
		StrategyScores: c.StrategyScores(),
	}
	if iv, ok := c.Intervention(); ok {
		item.Name = iv.Name()
		item.Category = iv.Category()
	}
	return item
}

func interventionToDTO(iv intervention.Intervention) InterventionResponse {
	return InterventionResponse{
		ID:                 iv.ID(),
		Name:               iv.Name(),
		Category:           iv.Category(),
		Problem:            iv.Problem(),
		Type:               iv.Type(),
		Description:        iv.Description(),
		ProblemTags:        iv.ProblemTags(),
		SpeedRange:         SpeedRange{Min: iv.SpeedRange().Min, Max: iv.SpeedRange().Max},
		Dimensions:         iv.Dimensions(),
		Colors:             iv.Colors(),
		CostEstimate:       iv.CostEstimate(),
		ImplementationTime: iv.ImplementationTime(),
		IRCReferences:      iv.IRCReferences(),
		Priority:           iv.Priority(),
		Parallelizable:     iv.Parallelizable(),
	}
}

func planToDTO(p decision.Plan) PlanResponse {
	items := make([]PlanItem, len(p.Items))
	for i, it := range p.Items {
		items[i] = PlanItem(it)
	}
	excluded := make([]Exclusion, len(p.Excluded))
	for i, e := range p.Excluded {
		excluded[i] = Exclusion(e)
	}
	timeline := make([]TimelineEntry, len(p.Timeline))
	for i, t := range p.Timeline {
		timeline[i] = TimelineEntry(t)
	}
	notes := p.Notes
	if notes == nil {
		notes = []string{}
	}
	return PlanResponse{
		ID:                 p.ID,
		Budget:             p.Budget,
		Optimized:          p.Optimized,
		Feasible:           p.Feasible,
		Items:              items,
		Excluded:           excluded,
		TotalCost:          p.TotalCost,
		RemainingBudget:    p.Remaining(),
		TotalDays:          p.TotalDays,
		UtilizationPercent: p.UtilizationPercent,
		TotalPriority:      p.TotalPriority,
		Timeline:           timeline,
		Notes:              notes,
	}
}

func comparisonToDTO(c decision.Comparison) ComparisonResponse {
	entries := make([]ComparisonEntry, len(c.Entries))
	for i, e := range c.Entries {
		entries[i] = ComparisonEntry(e)
	}
	tradeOffs := make([]TradeOff, len(c.TradeOffs))
	for i, t := range c.TradeOffs {
		tradeOffs[i] = TradeOff(t)
	}
	matrix := make([]MatrixRow, len(c.Matrix))
	for i, m := range c.Matrix {
		matrix[i] = MatrixRow(m)
	}
	notes := c.Notes
	if notes == nil {
		notes = []string{}
	}
	return ComparisonResponse{
		ID:        c.ID,
		Winner:    c.Winner,
		Entries:   entries,
		TradeOffs: tradeOffs,
		Matrix:    matrix,
		Notes:     notes,
	}
}

func reloadToDTO(snap *catalog.Snapshot) ReloadResponse {
	return ReloadResponse{Version: snap.Version(), Interventions: snap.Len()}
}

func healthToDTO(r healthuc.Report) HealthResponse {
	checks := make(map[string]string, len(r.Checks))
	for k, v := range r.Checks {
		checks[k] = string(v)
	}
	categories := r.Catalog.Categories
	if categories == nil {
		categories = []string{}
	}
	return HealthResponse{
		Status: string(r.Status),
		Checks: checks,
		Catalog: CatalogHealth{
			Version:       r.Catalog.Version,
			Interventions: r.Catalog.Interventions,
			Categories:    categories,
		},
	}
}

func statsToDTO(r analyticsuc.Report) CatalogStatsResponse {
	costs := make([]CostBand, len(r.Costs))
	for i, c := range r.Costs {
		costs[i] = CostBand(c)
	}
	insights := r.Insights
	if insights == nil {
		insights = []string{}
	}
	return CatalogStatsResponse{
		CatalogVersion: r.CatalogVersion,
		Interventions:  r.Interventions,
		Categories:     statCounts(r.Categories),
		Problems:       statCounts(r.Problems),
		PriorityLevels: statCounts(r.PriorityLevels),
		Costs:          costs,
		Standards:      statCounts(r.Standards),
		SpeedSpecific:  r.SpeedSpecific,
		Insights:       insights,
	}
}

func statCounts(in []analyticsuc.Count) []StatCount {
	out := make([]StatCount, len(in))
	for i, c := range in {
		out[i] = StatCount(c)
	}
	return out
}
