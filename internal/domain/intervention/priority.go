package intervention

import "strings"

// Priority levels derived from a priority score.
const (
	LevelCritical = "Critical"
	LevelHigh     = "High"
	LevelMedium   = "Medium"
	LevelLow      = "Low"
)

// MaxPriorityScore caps PriorityScore.
const MaxPriorityScore = 100.0

// Problem keyword tiers, checked in order against the problem label and tags.
var problemTiers = []struct {
	keywords []string
	weight   float64
}{
	{[]string{"damaged", "missing", "critical"}, 100},
	{[]string{"faded", "visibility", "obstruction"}, 75},
	{[]string{"spacing", "placement", "height"}, 50},
}

const defaultProblemWeight = 30

// ProblemWeight returns the criticality weight of the problem addressed.
func (i Intervention) ProblemWeight() float64 {
	haystack := strings.ToLower(i.problem + " " + strings.Join(i.problemTags, " "))
	for _, tier := range problemTiers {
		for _, kw := range tier.keywords {
			if strings.Contains(haystack, kw) {
				return tier.weight
			}
		}
	}
	return defaultProblemWeight
}

// CategoryMultiplier scales the problem weight by category.
func (i Intervention) CategoryMultiplier() float64 {
	c := strings.ToLower(i.category)
	switch {
	case strings.Contains(c, "traffic calming"):
		return 1.2
	case strings.Contains(c, "road sign"):
		return 1.1
	default:
		return 1.0
	}
}

// PriorityScore combines criticality with match confidence (0..1), capped at 100.
func (i Intervention) PriorityScore(confidence float64) float64 {
	if confidence < 0 {
		confidence = 0
	}
	score := i.ProblemWeight() * i.CategoryMultiplier() * confidence
	if score > MaxPriorityScore {
		return MaxPriorityScore
	}
	return score
}

// PriorityLevel maps a priority score to a level label.
func PriorityLevel(score float64) string {
	switch {
	case score >= 80:
		return LevelCritical
	case score >= 60:
		return LevelHigh
	case score >= 40:
		return LevelMedium
	default:
		return LevelLow
	}
}
