package decision

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/roadsafe/internal/domain/intervention"
)

// Candidate is an intervention paired with its fused match confidence.
type Candidate struct {
	intervention intervention.Intervention
	confidence   float64
}

// NewCandidate validates confidence lies in [0, 1].
func NewCandidate(iv intervention.Intervention, confidence float64) (Candidate, error) {
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return Candidate{}, fmt.Errorf("confidence %v for %q must be between 0 and 1", confidence, iv.ID())
	}
	return Candidate{intervention: iv, confidence: confidence}, nil
}

// Intervention returns the catalog record.
func (c Candidate) Intervention() intervention.Intervention { return c.intervention }

// Confidence returns the match confidence.
func (c Candidate) Confidence() float64 { return c.confidence }

// ID is shorthand for Intervention().ID().
func (c Candidate) ID() string { return c.intervention.ID() }

// PriorityScore is the candidate's priority score on 0..100.
func (c Candidate) PriorityScore() float64 {
	return c.intervention.PriorityScore(c.confidence)
}
