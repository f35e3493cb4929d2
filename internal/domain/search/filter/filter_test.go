package filter

import (
	"math"
	"testing"

	"github.com/kailas-cloud/roadsafe/internal/domain/intervention"
)

func floatPtr(f float64) *float64 { return &f }

func mustIntervention(t *testing.T, a intervention.Attributes) intervention.Intervention {
	t.Helper()
	if a.ID == "" {
		a.ID = "iv"
	}
	if a.Name == "" {
		a.Name = "Intervention"
	}
	iv, err := intervention.New(a)
	if err != nil {
		t.Fatalf("intervention.New: %v", err)
	}
	return iv
}

func TestNew_Canonicalizes(t *testing.T) {
	f, err := New("  Road Sign ", floatPtr(30), nil, []string{"Faded", "faded", " Damaged"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Category() != "road sign" {
		t.Errorf("Category() = %q", f.Category())
	}
	if len(f.Tags()) != 2 || f.Tags()[0] != "damaged" || f.Tags()[1] != "faded" {
		t.Errorf("Tags() = %v", f.Tags())
	}
	if f.Count() != 3 {
		t.Errorf("Count() = %d, want 3", f.Count())
	}
}

func TestNew_Invalid(t *testing.T) {
	tooMany := make([]string, MaxTags+1)
	for i := range tooMany {
		tooMany[i] = string(rune('a'+i%26)) + string(rune('a'+i/26))
	}
	tests := []struct {
		name     string
		min, max *float64
		tags     []string
	}{
		{"inverted", floatPtr(80), floatPtr(30), nil},
		{"negative", floatPtr(-5), nil, nil},
		{"nan", nil, floatPtr(math.NaN()), nil},
		{"too many tags", nil, nil, tooMany},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New("", tt.min, tt.max, tt.tags); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestIsEmpty(t *testing.T) {
	f, _ := New(" ", nil, nil, []string{""})
	if !f.IsEmpty() {
		t.Error("blank filters should be empty")
	}
	if f.Count() != 0 {
		t.Errorf("Count() = %d", f.Count())
	}
	var zero Filters
	if !zero.IsEmpty() {
		t.Error("zero value should be empty")
	}
}

func TestNew_CopiesBounds(t *testing.T) {
	lo := 10.0
	f, _ := New("", &lo, nil, nil)
	lo = 99
	if *f.SpeedMin() != 10 {
		t.Errorf("SpeedMin() aliased caller pointer: %v", *f.SpeedMin())
	}
}

func TestMatch(t *testing.T) {
	sign := mustIntervention(t, intervention.Attributes{
		Category:    "Road Sign",
		ProblemTags: []string{"damaged", "faded"},
		SpeedRange:  intervention.SpeedRange{Min: floatPtr(0), Max: floatPtr(50)},
	})
	noSpeed := mustIntervention(t, intervention.Attributes{Category: "Road Marking"})

	tests := []struct {
		name        string
		iv          intervention.Intervention
		category    string
		min, max    *float64
		tags        []string
		wantMatched int
		wantOK      bool
	}{
		{"category case-insensitive", sign, "ROAD SIGN", nil, nil, nil, 1, true},
		{"category mismatch", sign, "road marking", nil, nil, nil, 0, false},
		{"speed overlap", sign, "", floatPtr(40), floatPtr(60), nil, 1, true},
		{"speed disjoint", sign, "", floatPtr(60), floatPtr(80), nil, 0, false},
		{"tag intersection", sign, "", nil, nil, []string{"missing", "faded"}, 1, true},
		{"tag disjoint", sign, "", nil, nil, []string{"missing"}, 0, false},
		{"all three", sign, "road sign", nil, floatPtr(30), []string{"damaged"}, 3, true},
		{"fails last", sign, "road sign", nil, floatPtr(30), []string{"missing"}, 2, false},
		{"no speed range passes", noSpeed, "", floatPtr(100), nil, nil, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.category, tt.min, tt.max, tt.tags)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			matched, ok := f.Match(tt.iv)
			if matched != tt.wantMatched || ok != tt.wantOK {
				t.Errorf("Match() = (%d, %v), want (%d, %v)", matched, ok, tt.wantMatched, tt.wantOK)
			}
		})
	}
}

func TestCanonical_Stable(t *testing.T) {
	a, _ := New("Road Sign", floatPtr(30), nil, []string{"b", "A"})
	b, _ := New("road sign ", floatPtr(30), nil, []string{"a", "B", "a"})
	if a.Canonical() != b.Canonical() {
		t.Errorf("canonical forms differ: %q vs %q", a.Canonical(), b.Canonical())
	}
	c, _ := New("road sign", nil, floatPtr(30), []string{"a", "b"})
	if a.Canonical() == c.Canonical() {
		t.Error("min and max bounds must not collide")
	}
}
