package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kailas-cloud/roadsafe/internal/domain"
)

const sampleCatalog = `[
  {"id": "RS_001", "category": "Road Sign", "problem": "Damaged", "type": "STOP Sign",
   "speed_min": 0, "speed_max": 50, "cost_estimate": 3500, "implementation_time": 1,
   "code": "IRC:67-2022", "clause": "14.4", "embedding": [0.1, 0.2]},
  {"id": "RM_002", "name": "Centre line", "category": "Road Marking", "speed_max": null,
   "irc_references": ["IRC:35-2015"], "parallelizable": true, "embedding": [0.3, 0.4]}
]`

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestFileSource_Load(t *testing.T) {
	records, err := NewFileSource(writeCatalog(t, sampleCatalog)).Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].SpeedMax == nil || *records[0].SpeedMax != 50 {
		t.Errorf("SpeedMax = %v", records[0].SpeedMax)
	}
	if records[1].SpeedMax != nil {
		t.Error("null speed_max must decode to nil")
	}
	if !records[1].Parallelizable {
		t.Error("Parallelizable not decoded")
	}
}

func TestFileSource_SchemaViolation(t *testing.T) {
	path := writeCatalog(t, `[{"id": 42, "embedding": "nope"}]`)
	_, err := NewFileSource(path).Load(context.Background())
	if !errors.Is(err, domain.ErrCatalogLoad) {
		t.Fatalf("expected ErrCatalogLoad, got %v", err)
	}
	if !strings.Contains(err.Error(), "embedding") {
		t.Errorf("expected field-level detail, got %q", err)
	}
}

func TestFileSource_NotAnArray(t *testing.T) {
	_, err := NewFileSource(writeCatalog(t, `{"id": "x"}`)).Load(context.Background())
	if !errors.Is(err, domain.ErrCatalogLoad) {
		t.Fatalf("expected ErrCatalogLoad, got %v", err)
	}
}

func TestFileSource_MissingFile(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "absent.json")).Load(context.Background())
	if !errors.Is(err, domain.ErrCatalogLoad) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped ErrNotExist, got %v", err)
	}
}

func TestFileSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFileSource("unused").Load(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLoader_FromFile(t *testing.T) {
	snap, err := NewLoader(LoaderConfig{Dimensions: 2}, nil, nil).
		Load(context.Background(), NewFileSource(writeCatalog(t, sampleCatalog)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	iv, err := snap.Lookup("RS_001")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if iv.Name() != "STOP Sign" || iv.IRCReferences()[0] != "IRC:67-2022 14.4" {
		t.Errorf("unexpected record %q %v", iv.Name(), iv.IRCReferences())
	}
}
