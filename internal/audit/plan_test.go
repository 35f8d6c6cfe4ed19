package audit

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"provenance-audit/internal/derived"
)

func TestDefaultPlan(t *testing.T) {
	p := DefaultPlan()
	if p.Tolerance != 1e-6 {
		t.Fatalf("expected tolerance 1e-6, got %g", p.Tolerance)
	}
	if len(p.Documents) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(p.Documents))
	}
	base := p.Documents[0]
	if base.Path != "data/hanover_real_data.json" {
		t.Fatalf("unexpected baseline path %q", base.Path)
	}
	wantBlocks := []RequiredBlock{
		{Name: "raw_census_acs5", Provenance: true},
		{Name: "raw_census_decennial", Provenance: true},
	}
	if diff := cmp.Diff(wantBlocks, base.RequiredBlocks); diff != "" {
		t.Fatalf("required blocks mismatch (-want +got):\n%s", diff)
	}
	if base.Checks[1].Derivation != derived.Ratio {
		t.Fatalf("expected ratio check, got %s", base.Checks[1].Derivation)
	}
	if !p.Documents[2].Optional {
		t.Fatalf("labor document should be optional")
	}
	if p.Layout.Root != "data/raw" || len(p.Layout.LegacyRoots) != 1 || p.Layout.LegacyRoots[0] != "analysis/data/raw" {
		t.Fatalf("unexpected layout %+v", p.Layout)
	}
}

func TestParsePlanRequiredBlockForms(t *testing.T) {
	p, err := ParsePlan([]byte(`
documents:
  - name: Detailed
    path: data/detailed.json
    required_blocks:
      - income_distribution
      - name: legacy_block
        provenance: false
layout:
  root: data/raw
  extensions: [json]
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []RequiredBlock{
		{Name: "income_distribution", Provenance: true},
		{Name: "legacy_block", Provenance: false},
	}
	if diff := cmp.Diff(want, p.Documents[0].RequiredBlocks); diff != "" {
		t.Fatalf("required blocks mismatch (-want +got):\n%s", diff)
	}
	if p.Tolerance != DefaultTolerance {
		t.Fatalf("tolerance should default, got %g", p.Tolerance)
	}
	if diff := cmp.Diff([]string{".json"}, p.Layout.Extensions); diff != "" {
		t.Fatalf("extensions not normalized: %s", diff)
	}
}

func TestParsePlanRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{name: "syntax", yaml: "documents: ["},
		{name: "no root", yaml: "documents: []\n"},
		{name: "bad derivation", yaml: `
documents:
  - name: a
    path: a.json
    checks:
      - metric: m
        derivation: median
        inputs: [b.X]
layout: {root: data/raw}
`},
		{name: "bad input", yaml: `
documents:
  - name: a
    path: a.json
    checks:
      - metric: m
        derivation: ratio
        inputs: [noblock]
layout: {root: data/raw}
`},
		{name: "shared prefix", yaml: `
layout:
  root: data/raw
  buckets:
    - {name: a, prefixes: [x_]}
    - {name: b, prefixes: [x_]}
`},
		{name: "tolerance", yaml: "tolerance: 2\nlayout: {root: data/raw}\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParsePlan([]byte(tt.yaml)); !errors.Is(err, ErrInvalidPlan) {
				t.Fatalf("expected ErrInvalidPlan, got %v", err)
			}
		})
	}
}

func TestLoadPlan(t *testing.T) {
	p, err := LoadPlan("")
	if err != nil || len(p.Documents) != 3 {
		t.Fatalf("empty path should load the default plan: %v", err)
	}
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte("tolerance: 0.001\nlayout: {root: raw}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err = LoadPlan(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.ToleranceFor("anything") != 0.001 {
		t.Fatalf("unexpected tolerance %g", p.ToleranceFor("anything"))
	}
	if _, err := LoadPlan(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing plan")
	}
}
