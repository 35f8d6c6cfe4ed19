package history

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

var _ Repo = (*PGRepo)(nil)

const selectColumns = `id, generated_at, overall, pass_count, warn_count, fail_count,
       raw_files, duplicate_groups, misplaced_files, duration_ms, report_path, report_md, created_at`

// Create inserts a run.
func (r *PGRepo) Create(ctx context.Context, run Run) error {
	const query = `
INSERT INTO audit_runs (
	id, generated_at, overall, pass_count, warn_count, fail_count,
	raw_files, duplicate_groups, misplaced_files, duration_ms, report_path, report_md, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.DB.ExecContext(ctx, query,
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
		nullIfEmpty(run.ReportMD),
		run.CreatedAt,
	)
	return err
}

// GetByID returns a run by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Run, error) {
	query := `SELECT ` + selectColumns + `
FROM audit_runs
WHERE id = $1
LIMIT 1`
	run, err := scanRun(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return run, err
}

// List returns runs newest first without their report bodies.
func (r *PGRepo) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
SELECT id, generated_at, overall, pass_count, warn_count, fail_count,
       raw_files, duplicate_groups, misplaced_files, duration_ms, report_path, NULL, created_at
FROM audit_runs
ORDER BY generated_at DESC
LIMIT $1`
	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Latest returns the most recent run including its report body.
func (r *PGRepo) Latest(ctx context.Context) (Run, error) {
	query := `SELECT ` + selectColumns + `
FROM audit_runs
ORDER BY generated_at DESC
LIMIT 1`
	run, err := scanRun(r.DB.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	var reportMD sql.NullString
	err := s.Scan(
		&run.ID,
		&run.GeneratedAt,
		&run.Overall,
		&run.PassCount,
		&run.WarnCount,
		&run.FailCount,
		&run.RawFiles,
		&run.DuplicateGroups,
		&run.MisplacedFiles,
		&run.DurationMS,
		&run.ReportPath,
		&reportMD,
		&run.CreatedAt,
	)
	if err != nil {
		return Run{}, err
	}
	if reportMD.Valid {
		run.ReportMD = reportMD.String
	}
	return run, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
