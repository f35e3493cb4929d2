package catalog

import (
	"strings"

	"github.com/kailas-cloud/roadsafe/internal/domain/intervention"
)

// Record is the raw catalog row as read from a Source.
// Data and Code/Clause are accepted as fallbacks for Description and
// IRCReferences.
type Record struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name,omitempty"`
	Category           string    `json:"category,omitempty"`
	Problem            string    `json:"problem,omitempty"`
	Type               string    `json:"type,omitempty"`
	Description        string    `json:"description,omitempty"`
	Data               string    `json:"data,omitempty"`
	ProblemTags        []string  `json:"problem_tags,omitempty"`
	SpeedMin           *float64  `json:"speed_min,omitempty"`
	SpeedMax           *float64  `json:"speed_max,omitempty"`
	Dimensions         []string  `json:"dimensions,omitempty"`
	Colors             []string  `json:"colors,omitempty"`
	CostEstimate       float64   `json:"cost_estimate,omitempty"`
	ImplementationTime float64   `json:"implementation_time,omitempty"`
	IRCReferences      []string  `json:"irc_references,omitempty"`
	Code               string    `json:"code,omitempty"`
	Clause             string    `json:"clause,omitempty"`
	Priority           string    `json:"priority,omitempty"`
	Parallelizable     bool      `json:"parallelizable,omitempty"`
	Embedding          []float32 `json:"embedding,omitempty"`
}

// toAttributes maps a record onto intervention attributes.
// Name falls back to Type; the problem label is always part of the tag set.
func (r Record) toAttributes() intervention.Attributes {
	name := r.Name
	if strings.TrimSpace(name) == "" {
		name = r.Type
	}
	desc := r.Description
	if desc == "" {
		desc = r.Data
	}
	refs := r.IRCReferences
	if len(refs) == 0 && r.Code != "" {
		ref := r.Code
		if r.Clause != "" {
			ref += " " + r.Clause
		}
		refs = []string{ref}
	}
	tags := r.ProblemTags
	if r.Problem != "" {
		tags = append(append([]string(nil), tags...), r.Problem)
	}
	return intervention.Attributes{
		ID:                 r.ID,
		Name:               name,
		Category:           r.Category,
		Problem:            r.Problem,
		Type:               r.Type,
		Description:        desc,
		ProblemTags:        tags,
		SpeedRange:         intervention.SpeedRange{Min: r.SpeedMin, Max: r.SpeedMax},
		Dimensions:         r.Dimensions,
		Colors:             r.Colors,
		CostEstimate:       r.CostEstimate,
		ImplementationTime: r.ImplementationTime,
		IRCReferences:      refs,
		Priority:           r.Priority,
		Parallelizable:     r.Parallelizable,
		Embedding:          r.Embedding,
	}
}

// SearchText is the text embedded for records lacking an embedding.
func (r Record) SearchText() string {
	parts := []string{r.Name, r.Category, r.Problem, r.Type}
	parts = append(parts, r.ProblemTags...)
	if r.Description != "" {
		parts = append(parts, r.Description)
	} else if r.Data != "" {
		parts = append(parts, r.Data)
	}
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " | ")
}
