package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterSearchMetrics_Idempotent(t *testing.T) {
	RegisterSearchMetrics()
	RegisterSearchMetrics()

	SearchRequestsTotal.WithLabelValues("hit").Inc()
	CatalogVersion.Set(3)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	want := map[string]bool{
		"roadsafe_search_requests_total": false,
		"roadsafe_catalog_version":       false,
	}
	for _, f := range families {
		if _, ok := want[f.GetName()]; ok {
			want[f.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("%s not registered", name)
		}
	}
	if got := testutil.ToFloat64(CatalogVersion); got != 3 {
		t.Errorf("catalog_version = %v, want 3", got)
	}
}

func TestRegisterHTTPMetrics_Idempotent(t *testing.T) {
	RegisterHTTPMetrics()
	RegisterHTTPMetrics()

	httpRequestsTotal.WithLabelValues("GET", "/health", "200").Inc()
	if n := testutil.CollectAndCount(httpRequestsTotal); n == 0 {
		t.Error("expected http_requests_total series")
	}
}
