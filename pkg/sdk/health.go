package roadsafe

import (
	"context"
	"fmt"
	"time"
)

// Health checks the catalog, the embedding cache database and the embedder.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.health.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status:         string(report.Status),
		Checks:         checks,
		CatalogVersion: report.Catalog.Version,
		Interventions:  report.Catalog.Interventions,
		Categories:     report.Catalog.Categories,
	}
}

// Stats summarizes the loaded catalog.
func (c *Client) Stats(ctx context.Context) (stats CatalogStats, err error) {
	start := time.Now()
	defer func() { c.obs.observe("stats", start, err) }()

	stats, err = c.analytics.Stats(ctx)
	if err != nil {
		return CatalogStats{}, fmt.Errorf("stats: %w", err)
	}
	return stats, nil
}
