package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates the catalog is unusable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// CatalogInfo describes the loaded catalog.
type CatalogInfo struct {
	Version       uint64
	Interventions int
	Categories    []string
}

// Report aggregates health check results.
type Report struct {
	Status  Status
	Checks  map[string]CheckResult
	Catalog CatalogInfo
}

// Service coordinates health checks.
type Service struct {
	catalog   CatalogReader
	db        DBPinger
	embedding EmbeddingChecker
}

// New creates a Service. db and embedding can be nil.
func New(catalog CatalogReader, db DBPinger, embedding EmbeddingChecker) *Service {
	return &Service{catalog: catalog, db: db, embedding: embedding}
}

// Check runs health checks against all components. Search cannot run
// without a catalog, so an empty one is Unhealthy; the embedding cache and
// provider only degrade it.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	var info CatalogInfo

	snap := s.catalog.Snapshot()
	if snap == nil || snap.Len() == 0 {
		checks["catalog"] = CheckError
	} else {
		checks["catalog"] = CheckOK
		info = CatalogInfo{
			Version:       snap.Version(),
			Interventions: snap.Len(),
			Categories:    snap.Categories(),
		}
	}

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			checks["database"] = CheckError
		} else {
			checks["database"] = CheckOK
		}
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks["catalog"] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks, Catalog: info}
}
