package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"provenance-audit/internal/audit"
	"provenance-audit/internal/shared/metrics"
	"provenance-audit/internal/shared/storage/object"
	"provenance-audit/internal/shared/telemetry"
)

var ErrNoAuditor = errors.New("history service has no auditor")

// Service runs audits, writes the report file and records each run.
// Runs are serialized so the report file has one writer.
type Service struct {
	Auditor    *audit.Auditor
	Repo       Repo
	Store      object.ObjectStore
	ReportPath string

	mu sync.Mutex
}

// Outcome is what one RunAudit call produced.
type Outcome struct {
	Run          Run          `json:"run"`
	Report       audit.Report `json:"report"`
	PublishedKey string       `json:"published_key,omitempty"`
}

// RunAudit executes the plan once. The report file is written exactly once, at the
// end. History and publishing failures are logged and do not fail the run.
func (s *Service) RunAudit(ctx context.Context) (Outcome, error) {
	if s.Auditor == nil {
		return Outcome{}, ErrNoAuditor
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	report, err := s.Auditor.Run(ctx)
	if err != nil {
		metrics.IncAuditError()
		telemetry.Error("audit.failed", map[string]any{"error": err})
		return Outcome{}, fmt.Errorf("run audit: %w", err)
	}
	markdown := report.Render()
	if err := audit.WriteReport(s.ReportPath, markdown); err != nil {
		metrics.IncAuditError()
		telemetry.Error("audit.report_write_failed", map[string]any{"path": s.ReportPath, "error": err})
		return Outcome{}, err
	}
	took := time.Since(start)

	out := Outcome{Report: report, Run: FromReport(report, s.ReportPath, markdown, took)}
	if s.Repo != nil {
		if err := s.Repo.Create(ctx, out.Run); err != nil {
			telemetry.Error("audit.history_write_failed", map[string]any{"run_id": out.Run.ID, "error": err})
		}
	}
	if s.Store != nil {
		key, err := object.PublishReport(ctx, s.Store, report.GeneratedAt, markdown)
		if err != nil {
			telemetry.Error("audit.publish_failed", map[string]any{"run_id": out.Run.ID, "error": err})
		} else {
			out.PublishedKey = key
		}
	}

	metrics.ObserveAuditRun(string(report.Overall), report.Counts.Fail, float64(took.Microseconds())/1000.0)
	telemetry.Info("audit.complete", map[string]any{
		"run_id":      out.Run.ID,
		"overall":     string(report.Overall),
		"pass":        report.Counts.Pass,
		"warn":        report.Counts.Warn,
		"fail":        report.Counts.Fail,
		"raw_files":   len(report.Layout.Files),
		"report_path": s.ReportPath,
		"duration_ms": out.Run.DurationMS,
	})
	return out, nil
}

// List returns recent runs.
func (s *Service) List(ctx context.Context, limit int) ([]Run, error) {
	if s.Repo == nil {
		return []Run{}, nil
	}
	return s.Repo.List(ctx, limit)
}

// Latest returns the newest run.
func (s *Service) Latest(ctx context.Context) (Run, error) {
	if s.Repo == nil {
		return Run{}, ErrNotFound
	}
	return s.Repo.Latest(ctx)
}

// Get returns one run.
func (s *Service) Get(ctx context.Context, id string) (Run, error) {
	if s.Repo == nil {
		return Run{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, id)
}
