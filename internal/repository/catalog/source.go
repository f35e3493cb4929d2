package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/kailas-cloud/roadsafe/internal/domain"
)

//go:embed schema.json
var schemaJSON string

// Source produces the full set of raw catalog records.
type Source interface {
	Load(ctx context.Context) ([]Record, error)
}

// FileSource reads a JSON array of records from disk.
type FileSource struct {
	path string
}

// NewFileSource creates a source reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load reads, schema-validates and decodes the catalog file.
func (s *FileSource) Load(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w: %w", s.path, domain.ErrCatalogLoad, err)
	}
	return DecodeRecords(raw)
}

// DecodeRecords validates raw against the catalog schema and decodes it.
func DecodeRecords(raw []byte) ([]Record, error) {
	if err := validateSchema(raw); err != nil {
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode catalog: %w: %w", domain.ErrCatalogLoad, err)
	}
	return records, nil
}

func validateSchema(raw []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("validate catalog: %w: %w", domain.ErrCatalogLoad, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.Field()+": "+e.Description())
	}
	return fmt.Errorf("catalog schema: %w: %s", domain.ErrCatalogLoad, strings.Join(msgs, "; "))
}

// StaticSource serves records held in memory.
type StaticSource []Record

// Load returns a copy of the records.
func (s StaticSource) Load(_ context.Context) ([]Record, error) {
	return append([]Record(nil), s...), nil
}
