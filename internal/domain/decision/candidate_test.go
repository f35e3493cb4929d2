package decision

import (
	"math"
	"testing"

	"github.com/kailas-cloud/roadsafe/internal/domain/intervention"
)

func TestNewCandidate(t *testing.T) {
	iv, err := intervention.New(intervention.Attributes{
		ID: "RS_001", Name: "STOP Sign", Category: "Road Sign", Problem: "Damaged",
	})
	if err != nil {
		t.Fatalf("intervention.New: %v", err)
	}

	c, err := NewCandidate(iv, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID() != "RS_001" || c.Confidence() != 0.5 {
		t.Errorf("unexpected candidate %q/%v", c.ID(), c.Confidence())
	}
	if got := c.PriorityScore(); math.Abs(got-55) > 1e-9 {
		t.Errorf("PriorityScore() = %v, want 55", got)
	}

	for _, bad := range []float64{-0.1, 1.01, math.NaN()} {
		if _, err := NewCandidate(iv, bad); err == nil {
			t.Errorf("expected error for confidence %v", bad)
		}
	}
}

func TestPlanHelpers(t *testing.T) {
	p := Plan{
		Budget:    1500,
		TotalCost: 1000,
		Items:     []PlanItem{{ID: "A"}, {ID: "C"}},
	}
	if p.Remaining() != 500 {
		t.Errorf("Remaining() = %v", p.Remaining())
	}
	ids := p.SelectedIDs()
	if len(ids) != 2 || ids[0] != "A" || ids[1] != "C" {
		t.Errorf("SelectedIDs() = %v", ids)
	}
}

func TestComparisonEntry(t *testing.T) {
	c := Comparison{Entries: []ComparisonEntry{{ID: "A", Overall: 0.9}}}
	if e, ok := c.Entry("A"); !ok || e.Overall != 0.9 {
		t.Errorf("Entry(A) = %v, %v", e, ok)
	}
	if _, ok := c.Entry("B"); ok {
		t.Error("Entry(B) should be missing")
	}
	if sum := WeightConfidence + WeightCost + WeightTime + WeightPriority; math.Abs(sum-1) > 1e-12 {
		t.Errorf("weights sum to %v", sum)
	}
}
