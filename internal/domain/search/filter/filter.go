package filter

import (
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/roadsafe/internal/domain/intervention"
)

// MaxTags is the maximum number of problem tags per filter set.
const MaxTags = 32

// Filters restrict the catalog by category, speed band and problem tags.
// All present filters must pass for a candidate to match.
type Filters struct {
	category string
	speedMin *float64
	speedMax *float64
	tags     []string
}

// New validates and canonicalizes structured filters.
// Category is lowercased and trimmed; tags become a sorted lowercase set.
func New(category string, speedMin, speedMax *float64, tags []string) (Filters, error) {
	if speedMin != nil && (math.IsNaN(*speedMin) || *speedMin < 0) {
		return Filters{}, fmt.Errorf("speed_min must be a non-negative number")
	}
	if speedMax != nil && (math.IsNaN(*speedMax) || *speedMax < 0) {
		return Filters{}, fmt.Errorf("speed_max must be a non-negative number")
	}
	if speedMin != nil && speedMax != nil && *speedMin > *speedMax {
		return Filters{}, fmt.Errorf("speed_min %.0f exceeds speed_max %.0f", *speedMin, *speedMax)
	}
	canon := intervention.CanonicalSet(tags)
	if len(canon) > MaxTags {
		return Filters{}, fmt.Errorf("too many problem tags (max %d)", MaxTags)
	}
	return Filters{
		category: strings.ToLower(strings.TrimSpace(category)),
		speedMin: copyFloat(speedMin),
		speedMax: copyFloat(speedMax),
		tags:     canon,
	}, nil
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Category returns the canonical category, empty when unset.
func (f Filters) Category() string { return f.category }

// SpeedMin returns the lower speed bound, nil when open.
func (f Filters) SpeedMin() *float64 { return f.speedMin }

// SpeedMax returns the upper speed bound, nil when open.
func (f Filters) SpeedMax() *float64 { return f.speedMax }

// Tags returns the canonical problem tag set.
func (f Filters) Tags() []string { return f.tags }

// HasSpeed reports whether either speed bound is set.
func (f Filters) HasSpeed() bool { return f.speedMin != nil || f.speedMax != nil }

// IsEmpty reports whether no filter is present.
func (f Filters) IsEmpty() bool {
	return f.category == "" && !f.HasSpeed() && len(f.tags) == 0
}

// Count returns the number of present filters.
func (f Filters) Count() int {
	n := 0
	if f.category != "" {
		n++
	}
	if f.HasSpeed() {
		n++
	}
	if len(f.tags) > 0 {
		n++
	}
	return n
}

// Match reports how many present filters the intervention satisfies and
// whether it satisfies all of them.
func (f Filters) Match(iv intervention.Intervention) (matched int, ok bool) {
	if f.category != "" {
		if !strings.EqualFold(iv.Category(), f.category) {
			return matched, false
		}
		matched++
	}
	if f.HasSpeed() {
		if !iv.SpeedRange().Overlaps(f.speedMin, f.speedMax) {
			return matched, false
		}
		matched++
	}
	if len(f.tags) > 0 {
		if !iv.HasTag(f.tags) {
			return matched, false
		}
		matched++
	}
	return matched, true
}

// Canonical renders the filters in a stable textual form for fingerprinting.
func (f Filters) Canonical() string {
	var b strings.Builder
	b.WriteString("category=")
	b.WriteString(f.category)
	b.WriteString(";speed=")
	b.WriteString(formatBound(f.speedMin))
	b.WriteByte(',')
	b.WriteString(formatBound(f.speedMax))
	b.WriteString(";tags=")
	b.WriteString(strings.Join(f.tags, ","))
	return b.String()
}

func formatBound(v *float64) string {
	if v == nil {
		return "*"
	}
	return fmt.Sprintf("%g", *v)
}
