package testsupport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-instrument/pkg/expression/script"
	"github.com/goliatone/go-instrument/pkg/instrument"
)

// LoadSchema reads a definition fixture with expression syntax checking
// enabled. Testing helpers fail the test on error to keep callers concise.
func LoadSchema(t *testing.T, path string) *instrument.Schema {
	t.Helper()

	schema, err := LoadSchemaFromPath(path)
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	return schema
}

// LoadSchemaFromPath returns a Schema without requiring testing.T, allowing
// callers to wire fixtures in setup functions.
func LoadSchemaFromPath(path string) (*instrument.Schema, error) {
	if path == "" {
		return nil, errors.New("testsupport: schema path is required")
	}
	schema, err := instrument.Load(instrument.SourceFromFile(path), instrument.WithSyntaxCheck(func(expr string) error {
		_, err := script.Parse(expr)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("testsupport: load schema: %w", err)
	}
	return schema, nil
}

// ViewRow is the golden projection of one annotated field.
type ViewRow struct {
	Index    int    `json:"index"`
	Name     string `json:"name,omitempty"`
	Kind     string `json:"kind"`
	Value    any    `json:"value"`
	Required bool   `json:"required"`
}

// ViewRows projects a rendered view into golden rows.
func ViewRows(fields []instrument.AnnotatedField) []ViewRow {
	rows := make([]ViewRow, 0, len(fields))
	for _, field := range fields {
		kind, _ := field.Kind()
		rows = append(rows, ViewRow{
			Index:    field.Index,
			Name:     field.Name,
			Kind:     kind.String(),
			Value:    field.Value,
			Required: field.RequireResponse,
		})
	}
	return rows
}

// MustLoadViewRows loads a JSON golden file of view rows.
func MustLoadViewRows(t *testing.T, path string) []ViewRow {
	t.Helper()

	var out []ViewRow
	if err := json.Unmarshal(MustReadGolden(t, path), &out); err != nil {
		t.Fatalf("unmarshal golden: %v", err)
	}
	return out
}

// WriteGolden writes arbitrary data to a golden file when UPDATE_GOLDENS is set.
func WriteGolden(t *testing.T, path string, value any) {
	t.Helper()

	if os.Getenv("UPDATE_GOLDENS") == "" {
		return
	}
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		t.Fatalf("marshal golden: %v", err)
	}
	WriteMaybeGolden(t, path, append(payload, '\n'))
}

// CompareGolden returns a diff string if the values differ.
func CompareGolden(want, got any) string {
	return cmp.Diff(want, got)
}

// MustReadGolden reads a golden file and returns its raw bytes.
func MustReadGolden(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	return data
}

// WriteMaybeGolden updates a golden file when UPDATE_GOLDENS is set. Returns
// true if the golden was written (test should exit early).
func WriteMaybeGolden(t *testing.T, path string, data []byte) bool {
	t.Helper()
	if os.Getenv("UPDATE_GOLDENS") == "" {
		return false
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
	return true
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}
