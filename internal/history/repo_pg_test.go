package history

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var runColumns = []string{
	"id", "generated_at", "overall", "pass_count", "warn_count", "fail_count",
	"raw_files", "duplicate_groups", "misplaced_files", "duration_ms", "report_path", "report_md", "created_at",
}

func TestPGRepoCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	run := Run{
		ID:              "8c1f0d5e-0000-4000-8000-000000000001",
		GeneratedAt:     time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC),
		Overall:         "WARN",
		PassCount:       8,
		WarnCount:       1,
		RawFiles:        4,
		DuplicateGroups: 1,
		DurationMS:      12,
		ReportPath:      "data/provenance_audit_report.md",
		CreatedAt:       time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO audit_runs").
		WithArgs(
			run.ID,
			run.GeneratedAt,
			run.Overall,
			run.PassCount,
			run.WarnCount,
			run.FailCount,
			run.RawFiles,
			run.DuplicateGroups,
			run.MisplacedFiles,
			run.DurationMS,
			run.ReportPath,
			nil, // report_md
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), run); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListAndLatest(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}

	newer := time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)
	older := newer.Add(-24 * time.Hour)
	rows := sqlmock.NewRows(runColumns).
		AddRow("run-2", newer, "FAIL", 7, 0, 2, 3, 0, 0, int64(5), "r.md", nil, newer).
		AddRow("run-1", older, "PASS", 9, 0, 0, 3, 0, 0, int64(4), "r.md", nil, older)
	mock.ExpectQuery("SELECT (.+) FROM audit_runs ORDER BY generated_at DESC LIMIT").
		WithArgs(10).
		WillReturnRows(rows)

	runs, err := repo.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-2" || runs[0].FailCount != 2 {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	mock.ExpectQuery("SELECT (.+) FROM audit_runs ORDER BY generated_at DESC LIMIT 1").
		WillReturnRows(sqlmock.NewRows(runColumns).
			AddRow("run-2", newer, "FAIL", 7, 0, 2, 3, 0, 0, int64(5), "r.md", "# Provenance Audit Report", newer))
	latest, err := repo.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ReportMD != "# Provenance Audit Report" {
		t.Fatalf("expected report body, got %q", latest.ReportMD)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT (.+) FROM audit_runs WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = (&PGRepo{DB: db}).GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
