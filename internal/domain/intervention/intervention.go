package intervention

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// MaxIDLength is the maximum intervention id length.
const MaxIDLength = 128

// SpeedRange is an inclusive km/h band. A nil bound is open-ended.
type SpeedRange struct {
	Min *float64
	Max *float64
}

// NewSpeedRange validates and creates a SpeedRange.
func NewSpeedRange(lo, hi *float64) (SpeedRange, error) {
	if lo != nil && math.IsNaN(*lo) || hi != nil && math.IsNaN(*hi) {
		return SpeedRange{}, fmt.Errorf("speed bound is NaN")
	}
	if lo != nil && hi != nil && *lo > *hi {
		return SpeedRange{}, fmt.Errorf("speed range min %.0f exceeds max %.0f", *lo, *hi)
	}
	return SpeedRange{Min: lo, Max: hi}, nil
}

// IsUnbounded reports whether neither bound is set.
func (r SpeedRange) IsUnbounded() bool { return r.Min == nil && r.Max == nil }

// Overlaps reports whether [lo, hi] intersects the range. Nil bounds on either
// side are treated as -inf/+inf.
func (r SpeedRange) Overlaps(lo, hi *float64) bool {
	if lo != nil && r.Max != nil && *lo > *r.Max {
		return false
	}
	if hi != nil && r.Min != nil && *hi < *r.Min {
		return false
	}
	return true
}

// Attributes carries the raw fields used to build an Intervention.
type Attributes struct {
	ID                 string
	Name               string
	Category           string
	Problem            string
	Type               string
	Description        string
	ProblemTags        []string
	SpeedRange         SpeedRange
	Dimensions         []string
	Colors             []string
	CostEstimate       float64
	ImplementationTime float64
	IRCReferences      []string
	Priority           string
	Parallelizable     bool
	Embedding          []float32
}

// Intervention is an immutable catalog record.
type Intervention struct {
	id                 string
	name               string
	category           string
	problem            string
	kind               string
	description        string
	problemTags        []string
	speedRange         SpeedRange
	dimensions         []string
	colors             []string
	costEstimate       float64
	implementationTime float64
	ircReferences      []string
	priority           string
	parallelizable     bool
	embedding          []float32
}

// New validates attributes and creates an Intervention.
// Problem tags and colors are canonicalized to a sorted lowercase set.
// Embedding dimension checks belong to the catalog loader, which knows the
// expected catalog-wide length.
func New(a Attributes) (Intervention, error) {
	id := strings.TrimSpace(a.ID)
	if id == "" {
		return Intervention{}, fmt.Errorf("intervention ID is required")
	}
	if len(id) > MaxIDLength {
		return Intervention{}, fmt.Errorf("intervention ID too long (max %d)", MaxIDLength)
	}
	if !idRegex.MatchString(id) {
		return Intervention{}, fmt.Errorf("intervention ID %q must be alphanumeric with _ . -", id)
	}
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return Intervention{}, fmt.Errorf("intervention name is required")
	}
	if _, err := NewSpeedRange(a.SpeedRange.Min, a.SpeedRange.Max); err != nil {
		return Intervention{}, err
	}
	if a.CostEstimate < 0 || math.IsNaN(a.CostEstimate) {
		return Intervention{}, fmt.Errorf("cost estimate must be non-negative")
	}
	if a.ImplementationTime < 0 || math.IsNaN(a.ImplementationTime) {
		return Intervention{}, fmt.Errorf("implementation time must be non-negative")
	}

	return Intervention{
		id:                 id,
		name:               name,
		category:           strings.TrimSpace(a.Category),
		problem:            strings.TrimSpace(a.Problem),
		kind:               strings.TrimSpace(a.Type),
		description:        a.Description,
		problemTags:        CanonicalSet(a.ProblemTags),
		speedRange:         a.SpeedRange,
		dimensions:         slices.Clone(a.Dimensions),
		colors:             CanonicalSet(a.Colors),
		costEstimate:       a.CostEstimate,
		implementationTime: a.ImplementationTime,
		ircReferences:      slices.Clone(a.IRCReferences),
		priority:           strings.TrimSpace(a.Priority),
		parallelizable:     a.Parallelizable,
		embedding:          slices.Clone(a.Embedding),
	}, nil
}

// WithEmbedding returns a copy carrying the given embedding.
func (i Intervention) WithEmbedding(vec []float32) Intervention {
	i.embedding = slices.Clone(vec)
	return i
}

// ID returns the stable unique key.
func (i Intervention) ID() string { return i.id }

// Name returns the display name.
func (i Intervention) Name() string { return i.name }

// Category returns the category label (e.g. "Road Sign").
func (i Intervention) Category() string { return i.category }

// Problem returns the primary problem label (e.g. "Damaged").
func (i Intervention) Problem() string { return i.problem }

// Type returns the intervention type (e.g. "STOP Sign").
func (i Intervention) Type() string { return i.kind }

// Description returns the free-text description.
func (i Intervention) Description() string { return i.description }

// ProblemTags returns the canonical problem tag set.
func (i Intervention) ProblemTags() []string { return i.problemTags }

// SpeedRange returns the applicable speed band.
func (i Intervention) SpeedRange() SpeedRange { return i.speedRange }

// Dimensions returns the dimension strings.
func (i Intervention) Dimensions() []string { return i.dimensions }

// Colors returns the canonical color set.
func (i Intervention) Colors() []string { return i.colors }

// CostEstimate returns the currency-agnostic cost.
func (i Intervention) CostEstimate() float64 { return i.costEstimate }

// ImplementationTime returns the implementation time in days.
func (i Intervention) ImplementationTime() float64 { return i.implementationTime }

// IRCReferences returns citation codes in catalog order.
func (i Intervention) IRCReferences() []string { return i.ircReferences }

// Priority returns the curated priority label, possibly empty.
func (i Intervention) Priority() string { return i.priority }

// Parallelizable reports whether the work can run alongside other items.
func (i Intervention) Parallelizable() bool { return i.parallelizable }

// Embedding returns the precomputed embedding vector.
func (i Intervention) Embedding() []float32 { return i.embedding }

// HasTag reports whether any of tags is in the problem tag set.
// tags must already be canonical.
func (i Intervention) HasTag(tags []string) bool {
	for _, t := range tags {
		if _, ok := slices.BinarySearch(i.problemTags, t); ok {
			return true
		}
	}
	return false
}

// CanonicalSet lowercases, trims, dedups and sorts values, dropping blanks.
func CanonicalSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	out = slices.Compact(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
