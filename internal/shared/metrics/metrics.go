package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	auditRunsPass atomic.Uint64
	auditRunsWarn atomic.Uint64
	auditRunsFail atomic.Uint64
	auditErrors   atomic.Uint64

	auditChecksFailedTotal atomic.Uint64
	rawArtifactsSavedTotal atomic.Uint64

	auditDuration = newHistogram([]float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000})
)

// ObserveAuditRun records the outcome of a finished audit.
func ObserveAuditRun(overall string, failedChecks int, durationMs float64) {
	switch overall {
	case "PASS":
		auditRunsPass.Add(1)
	case "WARN":
		auditRunsWarn.Add(1)
	default:
		auditRunsFail.Add(1)
	}
	if failedChecks > 0 {
		auditChecksFailedTotal.Add(uint64(failedChecks))
	}
	if durationMs < 0 {
		durationMs = 0
	}
	auditDuration.Observe(durationMs)
}

// IncAuditError counts audits that could not produce a report.
func IncAuditError() {
	auditErrors.Add(1)
}

// IncRawArtifactsSaved counts raw payloads written by the collector.
func IncRawArtifactsSaved(n int) {
	if n > 0 {
		rawArtifactsSavedTotal.Add(uint64(n))
	}
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# HELP audit_runs_total Audit runs by overall status\n")
	fmt.Fprintf(&buf, "# TYPE audit_runs_total counter\n")
	fmt.Fprintf(&buf, "audit_runs_total{overall=\"PASS\"} %d\n", auditRunsPass.Load())
	fmt.Fprintf(&buf, "audit_runs_total{overall=\"WARN\"} %d\n", auditRunsWarn.Load())
	fmt.Fprintf(&buf, "audit_runs_total{overall=\"FAIL\"} %d\n", auditRunsFail.Load())
	writeCounter(&buf, "audit_errors_total", "Audits that ended without a report", auditErrors.Load())
	writeCounter(&buf, "audit_checks_failed_total", "Failed checks across all audits", auditChecksFailedTotal.Load())
	writeCounter(&buf, "raw_artifacts_saved_total", "Raw API payloads cached by the collector", rawArtifactsSavedTotal.Load())
	writeHistogram(&buf, "audit_duration_ms", "Audit duration in milliseconds", auditDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe adds value to the first bucket that holds it; Render accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
