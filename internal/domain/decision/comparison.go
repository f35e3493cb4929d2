package decision

// Overall score weights. They sum to 1.
const (
	WeightConfidence = 0.30
	WeightCost       = 0.20
	WeightTime       = 0.20
	WeightPriority   = 0.30
)

// ComparisonEntry is one candidate's normalized factors and overall score.
type ComparisonEntry struct {
	ID             string
	Name           string
	Category       string
	Cost           float64
	Days           float64
	Confidence     float64
	PriorityScore  float64
	CostEfficiency float64
	TimeEfficiency float64
	Overall        float64
}

// TradeOff records a pair where Cheaper costs strictly less but takes
// strictly longer than Faster.
type TradeOff struct {
	Cheaper     string
	Faster      string
	CostSaving  float64
	TimePenalty float64
}

// MatrixRow is one attribute across all compared candidates, in input order.
type MatrixRow struct {
	Attribute string
	Values    []string
}

// Comparison ranks two or more candidates.
type Comparison struct {
	ID        string
	Entries   []ComparisonEntry
	Winner    string
	TradeOffs []TradeOff
	Matrix    []MatrixRow
	Notes     []string
}

// Entry returns the entry for id.
func (c Comparison) Entry(id string) (ComparisonEntry, bool) {
	for _, e := range c.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return ComparisonEntry{}, false
}
