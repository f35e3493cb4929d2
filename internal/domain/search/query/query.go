package query

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/kailas-cloud/roadsafe/internal/domain"
	"github.com/kailas-cloud/roadsafe/internal/domain/search/filter"
	"github.com/kailas-cloud/roadsafe/internal/domain/search/mode"
)

// Query parameter limits.
const (
	// MaxTextLength is the maximum allowed query text length in bytes.
	MaxTextLength     = 4096
	DefaultMaxResults = 5
	DefaultHardLimit  = 50
)

// Limits bound max_results. Zero fields fall back to package defaults.
type Limits struct {
	Default int
	Max     int
}

func (l Limits) withDefaults() Limits {
	if l.Default <= 0 {
		l.Default = DefaultMaxResults
	}
	if l.Max <= 0 {
		l.Max = DefaultHardLimit
	}
	if l.Default > l.Max {
		l.Default = l.Max
	}
	return l
}

// Query is a normalized search request.
type Query struct {
	rawText    string
	text       string
	filters    filter.Filters
	maxResults int
	mode       mode.Mode
}

// New validates and normalizes a query.
// Text is trimmed, lowercased and whitespace-collapsed. max_results of 0
// takes the default; negative or above the hard limit is ErrInvalidQuery.
// A query must carry text or at least one filter.
func New(rawText string, filters filter.Filters, maxResults int, limits Limits) (Query, error) {
	limits = limits.withDefaults()
	if len(rawText) > MaxTextLength {
		return Query{}, domain.InvalidQueryf("query text too long (max %d chars)", MaxTextLength)
	}
	if maxResults < 0 || maxResults > limits.Max {
		return Query{}, domain.InvalidQueryf("max_results must be between 1 and %d", limits.Max)
	}
	if maxResults == 0 {
		maxResults = limits.Default
	}
	text := Normalize(rawText)
	if text == "" && filters.IsEmpty() {
		return Query{}, domain.InvalidQueryf("query text or at least one filter is required")
	}
	return Query{
		rawText:    rawText,
		text:       text,
		filters:    filters,
		maxResults: maxResults,
		mode:       mode.Hybrid,
	}, nil
}

// WithMode returns a copy restricted to the strategies m allows. Vector
// needs query text and Structured needs at least one filter.
func (q Query) WithMode(m mode.Mode) (Query, error) {
	switch {
	case !m.IsValid():
		return Query{}, domain.InvalidQueryf("unknown search strategy %q", m)
	case m == mode.Vector && q.text == "":
		return Query{}, domain.InvalidQueryf("vector search requires query text")
	case m == mode.Structured && q.filters.IsEmpty():
		return Query{}, domain.InvalidQueryf("structured search requires at least one filter")
	}
	q.mode = m
	return q, nil
}

// Normalize trims, lowercases and collapses internal whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// RawText returns the text as submitted.
func (q Query) RawText() string { return q.rawText }

// Text returns the normalized text, empty for filter-only queries.
func (q Query) Text() string { return q.text }

// Filters returns the canonical structured filters.
func (q Query) Filters() filter.Filters { return q.filters }

// MaxResults returns the result bound.
func (q Query) MaxResults() int { return q.maxResults }

// Mode returns the strategy selection, Hybrid unless set.
func (q Query) Mode() mode.Mode {
	if q.mode == "" {
		return mode.Hybrid
	}
	return q.mode
}

// Fingerprint is the SHA-256 hex digest of the normalized text, canonical
// filters, max_results and mode. Equal normalized queries share a fingerprint.
func (q Query) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte("text="))
	h.Write([]byte(q.text))
	h.Write([]byte{0})
	h.Write([]byte(q.filters.Canonical()))
	h.Write([]byte{0})
	h.Write([]byte("max=" + strconv.Itoa(q.maxResults)))
	h.Write([]byte{0})
	h.Write([]byte("mode=" + string(q.Mode())))
	return hex.EncodeToString(h.Sum(nil))
}
