package roadsafe

import "context"

// Query is a hybrid search request. Text, or at least one filter, is required.
type Query struct {
	Text       string
	Category   string   // exact, case-insensitive
	SpeedMin   *float64 // km/h, open-ended when nil
	SpeedMax   *float64
	Tags       []string // matches when any tag is in the problem tag set
	MaxResults int      // 0 takes the client default
	Strategy   string   // "hybrid" (default), "vector", "rag" or "structured"
}

// SearchBuilder is a fluent builder for search queries.
type SearchBuilder struct {
	client *Client
	q      Query
}

// NewSearch starts a search query.
func (c *Client) NewSearch() *SearchBuilder {
	return &SearchBuilder{client: c}
}

// Text sets the free-text description of the problem.
func (b *SearchBuilder) Text(text string) *SearchBuilder {
	b.q.Text = text
	return b
}

// Category restricts results to one category.
func (b *SearchBuilder) Category(category string) *SearchBuilder {
	b.q.Category = category
	return b
}

// Speed restricts results to interventions whose speed band overlaps
// [minKmh, maxKmh].
func (b *SearchBuilder) Speed(minKmh, maxKmh float64) *SearchBuilder {
	b.q.SpeedMin = &minKmh
	b.q.SpeedMax = &maxKmh
	return b
}

// MinSpeed sets only the lower speed bound.
func (b *SearchBuilder) MinSpeed(kmh float64) *SearchBuilder {
	b.q.SpeedMin = &kmh
	return b
}

// MaxSpeed sets only the upper speed bound.
func (b *SearchBuilder) MaxSpeed(kmh float64) *SearchBuilder {
	b.q.SpeedMax = &kmh
	return b
}

// Tags adds problem tags.
func (b *SearchBuilder) Tags(tags ...string) *SearchBuilder {
	b.q.Tags = append(b.q.Tags, tags...)
	return b
}

// Limit sets the maximum number of results.
func (b *SearchBuilder) Limit(n int) *SearchBuilder {
	b.q.MaxResults = n
	return b
}

// Strategy restricts the search to one ranking strategy. "vector" needs
// text and "structured" needs a filter.
func (b *SearchBuilder) Strategy(name string) *SearchBuilder {
	b.q.Strategy = name
	return b
}

// Query returns the query built so far.
func (b *SearchBuilder) Query() Query {
	return b.q
}

// Do executes the search.
func (b *SearchBuilder) Do(ctx context.Context) (SearchResult, error) {
	return b.client.Search(ctx, b.q)
}
