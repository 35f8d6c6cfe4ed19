package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWorstPrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []Status
		want Status
	}{
		{name: "empty", in: nil, want: StatusPass},
		{name: "all pass", in: []Status{StatusPass, StatusPass}, want: StatusPass},
		{name: "one warn", in: []Status{StatusPass, StatusWarn, StatusPass}, want: StatusWarn},
		{name: "fail among warns", in: []Status{StatusWarn, StatusFail, StatusWarn}, want: StatusFail},
		{name: "fail first", in: []Status{StatusFail, StatusPass}, want: StatusFail},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Worst(tt.in...); got != tt.want {
				t.Fatalf("Worst(%v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestExitCodes(t *testing.T) {
	t.Parallel()
	if StatusPass.ExitCode() != 0 || StatusFail.ExitCode() != 2 || StatusWarn.ExitCode() != 3 {
		t.Fatalf("unexpected exit codes")
	}
}

func TestBuildReportOverall(t *testing.T) {
	warnDoc := DocumentResult{Name: "a", Exists: true, Checks: []CheckResult{{Name: "x", Status: StatusWarn}}}
	failDoc := DocumentResult{Name: "b", Exists: true, Checks: []CheckResult{{Name: "y", Status: StatusFail, Kind: KindConsistency}}}
	passDoc := DocumentResult{Name: "c", Exists: true, Checks: []CheckResult{{Name: "z", Status: StatusPass}}}
	dupLayout := LayoutResult{Duplicates: []DuplicateGroup{{SHA256: "abc", Paths: []string{"p1", "p2"}}}}
	cfg := DefaultPlan().Layout

	if got := BuildReport([]DocumentResult{warnDoc, failDoc}, dupLayout, cfg, fixedNow).Overall; got != StatusFail {
		t.Fatalf("single FAIL must dominate, got %s", got)
	}
	if got := BuildReport([]DocumentResult{passDoc, warnDoc}, LayoutResult{}, cfg, fixedNow).Overall; got != StatusWarn {
		t.Fatalf("expected WARN, got %s", got)
	}
	if got := BuildReport([]DocumentResult{passDoc}, dupLayout, cfg, fixedNow).Overall; got != StatusWarn {
		t.Fatalf("duplicates should yield WARN, got %s", got)
	}
	r := BuildReport([]DocumentResult{passDoc}, LayoutResult{}, cfg, fixedNow)
	if r.Overall != StatusPass || r.Counts != (Counts{Pass: 2}) {
		t.Fatalf("unexpected report: overall %s counts %+v", r.Overall, r.Counts)
	}
}

func TestRenderLayout(t *testing.T) {
	docs := []DocumentResult{{
		Name:   "Baseline",
		Path:   baseline,
		Exists: true,
		Checks: []CheckResult{
			{Name: baseline + " exists", Status: StatusPass, Path: baseline},
			{Name: "block raw_census_acs5 raw_path exists", Status: StatusFail, Kind: KindMissingInput, Reason: "raw file missing", Path: acsRel, Depth: 1},
			{Name: "metric m (ratio of A, B)", Status: StatusFail, Kind: KindConsistency, Expected: "4", Actual: "4.5", Depth: 1},
		},
		Notes: []string{"metric housing_units carries no provenance; not cross-checked"},
	}}
	layout := LayoutResult{
		Roots:      []string{"data/raw"},
		Files:      []string{"data/raw/census/a.json", "data/raw/census/b.json"},
		Duplicates: []DuplicateGroup{{SHA256: "0123456789abcdef", Paths: []string{"data/raw/census/a.json", "data/raw/census/b.json"}}},
	}
	out := BuildReport(docs, layout, DefaultPlan().Layout, fixedNow).Render()

	for _, want := range []string{
		"# Provenance Audit Report\n",
		"Generated: 2025-09-01 12:00:00 UTC",
		"## Checks",
		"### Baseline (data/hanover_real_data.json)",
		"- data/hanover_real_data.json exists: PASS\n",
		"  - block raw_census_acs5 raw_path exists: FAIL (raw file missing; " + acsRel + ")",
		"  - metric m (ratio of A, B): FAIL (expected 4, got 4.5)",
		"  - metric housing_units carries no provenance",
		"### Raw file layout",
		"- duplicate groups: 1\n  - 0123456789ab: data/raw/census/a.json, data/raw/census/b.json",
		"## Recommendations",
		"Restore or re-collect missing raw artifacts: " + acsRel,
		"Consolidate duplicate raw files",
		"## Status",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(out, "Overall: FAIL\n") {
		t.Fatalf("report must end with overall status:\n%s", out)
	}
}

func TestWriteReportReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.md")
	if err := WriteReport(path, "first\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteReport(path, "second\n"); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "second\n" {
		t.Fatalf("unexpected content %q (%v)", data, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestAuditorRunScenarios(t *testing.T) {
	t.Run("clean tree passes", func(t *testing.T) {
		root := t.TempDir()
		writeDoc(t, root, baseline, buildBaseline(t, root, acsPayload(defaultRow)))
		plan := DefaultPlan()
		plan.Documents = []DocumentSpec{baselineSpec()}

		r, err := (&Auditor{Root: root, Plan: plan, Now: func() time.Time { return fixedNow }}).Run(context.Background())
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if r.Overall != StatusPass {
			t.Fatalf("expected PASS:\n%s", r.Render())
		}
	})

	t.Run("duplicate snapshot warns", func(t *testing.T) {
		root := t.TempDir()
		payload := acsPayload(defaultRow)
		writeDoc(t, root, baseline, buildBaseline(t, root, payload))
		writeFile(t, root, "data/raw/census/acs5_2023_zcta21076_20250902T120000Z.json", payload)
		plan := DefaultPlan()
		plan.Documents = []DocumentSpec{baselineSpec()}

		r, err := (&Auditor{Root: root, Plan: plan}).Run(context.Background())
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if r.Overall != StatusWarn || len(r.Layout.Duplicates) != 1 || len(r.Layout.Duplicates[0].Paths) != 2 {
			t.Fatalf("expected WARN with one pair:\n%s", r.Render())
		}
	})

	t.Run("default plan on empty tree fails", func(t *testing.T) {
		r, err := (&Auditor{Root: t.TempDir(), Plan: DefaultPlan()}).Run(context.Background())
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if r.Overall != StatusFail {
			t.Fatalf("missing documents must fail, got %s", r.Overall)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := (&Auditor{Root: t.TempDir(), Plan: DefaultPlan()}).Run(ctx); err == nil {
			t.Fatalf("expected context error")
		}
	})
}
