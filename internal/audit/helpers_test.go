package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"provenance-audit/internal/derived"
	"provenance-audit/internal/rawstore"
)

const (
	zcta      = "zip code tabulation area:21076"
	acsRel    = "data/raw/census/acs5_2023_zcta21076_20250901T120000Z.json"
	baseline  = "data/hanover_real_data.json"
	acsHeader = `["B01003_001E","B25077_001E","B19013_001E","B25001_001E","B25003_002E","B25003_003E","B25064_001E","zip code tabulation area"]`
)

var fixedNow = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

func acsPayload(row string) []byte {
	return []byte("[" + acsHeader + "," + row + "]")
}

var defaultRow = `["17000","400000","100000","7000","5000","1600","-666666666","21076"]`

func writeFile(t *testing.T, root, rel string, data []byte) string {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
	return full
}

// buildBaseline writes the raw payload and a document derived from it.
func buildBaseline(t *testing.T, root string, payload []byte) derived.Document {
	t.Helper()
	writeFile(t, root, acsRel, payload)
	art := rawstore.Artifact{
		Path:        acsRel,
		Endpoint:    "https://api.census.gov/data/2023/acs/acs5",
		Variables:   []string{"B01003_001E", "B25077_001E", "B19013_001E", "B25001_001E", "B25003_002E", "B25003_003E", "B25064_001E"},
		Geography:   zcta,
		RetrievedAt: fixedNow,
		Payload:     payload,
	}
	ref := func(code string) derived.FieldRef { return derived.FieldRef{Block: "raw_census_acs5", Field: code} }

	b := derived.NewBuilder("baseline", "ZIP 21076", fixedNow)
	b.AddBlock("raw_census_acs5", art, 2023, nil)
	b.AddBlock("raw_census_decennial", art, 2020, nil)
	b.Derive("population_2023", derived.PassThrough, ref("B01003_001E"))
	b.Derive("price_to_income_ratio", derived.Ratio, ref("B25077_001E"), ref("B19013_001E"))
	b.Derive("vacancy_rate", derived.VacancyRate, ref("B25001_001E"), ref("B25003_002E"), ref("B25003_003E"))
	b.Derive("median_gross_rent", derived.PassThrough, ref("B25064_001E"))
	doc, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return doc
}

func writeDoc(t *testing.T, root, rel string, doc derived.Document) {
	t.Helper()
	if err := derived.Write(filepath.Join(root, filepath.FromSlash(rel)), doc); err != nil {
		t.Fatalf("write doc: %v", err)
	}
}

func setValue(doc derived.Document, metric, raw string) {
	m := doc.Metrics[metric]
	m.Value = json.RawMessage(raw)
	doc.Metrics[metric] = m
}

func baselineSpec() DocumentSpec {
	return DocumentSpec{
		Name: "Baseline",
		Path: baseline,
		RequiredBlocks: []RequiredBlock{
			{Name: "raw_census_acs5", Provenance: true},
			{Name: "raw_census_decennial", Provenance: true},
		},
	}
}

func findCheck(t *testing.T, res DocumentResult, name string) CheckResult {
	t.Helper()
	for _, c := range res.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %q not found in %+v", name, res.Checks)
	return CheckResult{}
}
