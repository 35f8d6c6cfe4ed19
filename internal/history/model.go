// Package history records a summary of every audit run.
package history

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"provenance-audit/internal/audit"
)

var ErrNotFound = errors.New("audit run not found")

// Run is the persisted summary of one audit.
type Run struct {
	ID              string    `json:"id"`
	GeneratedAt     time.Time `json:"generated_at"`
	Overall         string    `json:"overall"`
	PassCount       int       `json:"pass_count"`
	WarnCount       int       `json:"warn_count"`
	FailCount       int       `json:"fail_count"`
	RawFiles        int       `json:"raw_files"`
	DuplicateGroups int       `json:"duplicate_groups"`
	MisplacedFiles  int       `json:"misplaced_files"`
	DurationMS      int64     `json:"duration_ms"`
	ReportPath      string    `json:"report_path"`
	ReportMD        string    `json:"report_md,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// FromReport summarizes a report. markdown is the rendered report as written to reportPath.
func FromReport(r audit.Report, reportPath, markdown string, took time.Duration) Run {
	return Run{
		ID:              uuid.NewString(),
		GeneratedAt:     r.GeneratedAt.UTC(),
		Overall:         string(r.Overall),
		PassCount:       r.Counts.Pass,
		WarnCount:       r.Counts.Warn,
		FailCount:       r.Counts.Fail,
		RawFiles:        len(r.Layout.Files),
		DuplicateGroups: len(r.Layout.Duplicates),
		MisplacedFiles:  len(r.Layout.Misplaced),
		DurationMS:      took.Milliseconds(),
		ReportPath:      reportPath,
		ReportMD:        markdown,
		CreatedAt:       time.Now().UTC(),
	}
}
