package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"provenance-audit/internal/audit"
)

func TestMemoryRepoNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	base := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	if _, err := repo.Latest(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty repo, got %v", err)
	}
	for i, overall := range []string{"PASS", "FAIL", "WARN"} {
		run := Run{ID: overall, Overall: overall, GeneratedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	runs, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "WARN" || runs[1].ID != "FAIL" {
		t.Fatalf("unexpected order: %+v", runs)
	}
	latest, err := repo.Latest(ctx)
	if err != nil || latest.ID != "WARN" {
		t.Fatalf("Latest = %+v, %v", latest, err)
	}
	got, err := repo.GetByID(ctx, "PASS")
	if err != nil || got.Overall != "PASS" {
		t.Fatalf("GetByID = %+v, %v", got, err)
	}
}

func TestFromReport(t *testing.T) {
	r := audit.Report{
		GeneratedAt: time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC),
		Overall:     audit.StatusWarn,
		Counts:      audit.Counts{Pass: 5, Warn: 1},
		Layout: audit.LayoutResult{
			Files:      []string{"a", "b", "c"},
			Duplicates: []audit.DuplicateGroup{{Paths: []string{"a", "b"}}},
		},
	}
	run := FromReport(r, "report.md", "Overall: WARN\n", 1500*time.Millisecond)
	if run.ID == "" || run.Overall != "WARN" || run.PassCount != 5 || run.WarnCount != 1 {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.RawFiles != 3 || run.DuplicateGroups != 1 || run.DurationMS != 1500 {
		t.Fatalf("unexpected layout summary: %+v", run)
	}
}
