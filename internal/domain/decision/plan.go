package decision

// PlanItem is a selected intervention with its scoring.
type PlanItem struct {
	ID             string
	Name           string
	Category       string
	Cost           float64
	Days           float64
	Confidence     float64
	PriorityScore  float64
	PriorityLevel  string
	ValueRatio     float64
	Parallelizable bool
}

// TimelineEntry places a selected item on the implementation schedule.
// Offsets are in days from plan start.
type TimelineEntry struct {
	Sequence int
	ID       string
	Name     string
	StartDay float64
	EndDay   float64
}

// Exclusion explains why a candidate did not enter the plan.
type Exclusion struct {
	ID     string
	Reason string
}

// Exclusion reasons.
const (
	ReasonInvalidCost = "invalid_cost"
	ReasonOverBudget  = "over_budget"
)

// Plan is a budget-constrained selection.
// Feasible is false when nothing fits; an empty plan is valid output.
type Plan struct {
	ID                 string
	Budget             float64
	Optimized          bool
	Items              []PlanItem
	Excluded           []Exclusion
	TotalCost          float64
	TotalDays          float64
	UtilizationPercent float64
	TotalPriority      float64
	Feasible           bool
	Timeline           []TimelineEntry
	Notes              []string
}

// SelectedIDs returns the ids of the selected items in plan order.
func (p Plan) SelectedIDs() []string {
	ids := make([]string, len(p.Items))
	for i, it := range p.Items {
		ids[i] = it.ID
	}
	return ids
}

// Remaining returns the unspent budget.
func (p Plan) Remaining() float64 { return p.Budget - p.TotalCost }
