package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Counts tallies check outcomes across a report.
type Counts struct {
	Pass int `json:"pass"`
	Warn int `json:"warn"`
	Fail int `json:"fail"`
}

// Report is the aggregated result of one audit run.
type Report struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	Documents       []DocumentResult `json:"documents"`
	Layout          LayoutResult     `json:"layout"`
	LayoutRoot      string           `json:"layout_root"`
	LegacyRoots     []string         `json:"legacy_roots"`
	Recommendations []string         `json:"recommendations"`
	Overall         Status           `json:"overall"`
	Counts          Counts           `json:"counts"`
}

// BuildReport aggregates document and layout results. FAIL dominates WARN, which
// dominates PASS.
func BuildReport(docs []DocumentResult, layout LayoutResult, cfg LayoutConfig, now time.Time) Report {
	r := Report{
		GeneratedAt: now.UTC(),
		Documents:   docs,
		Layout:      layout,
		LayoutRoot:  cleanRoot(cfg.Root),
		LegacyRoots: append([]string(nil), cfg.LegacyRoots...),
	}
	statuses := []Status{layout.Status()}
	for _, d := range docs {
		statuses = append(statuses, d.Status())
		for _, c := range d.Checks {
			switch c.Status {
			case StatusPass:
				r.Counts.Pass++
			case StatusWarn:
				r.Counts.Warn++
			default:
				r.Counts.Fail++
			}
		}
	}
	switch layout.Status() {
	case StatusWarn:
		r.Counts.Warn++
	default:
		r.Counts.Pass++
	}
	r.Overall = Worst(statuses...)
	r.Recommendations = recommend(r)
	return r
}

func recommend(r Report) []string {
	var out []string
	var missingRaw, mismatch, uncached []string
	for _, d := range r.Documents {
		for _, c := range d.Checks {
			if c.Status == StatusPass {
				continue
			}
			switch {
			case c.Kind == KindMissingInput && c.Path != "" && c.Path != d.Path:
				missingRaw = appendUnique(missingRaw, c.Path)
			case c.Kind == KindConsistency:
				mismatch = appendUnique(mismatch, d.Name)
			case c.Kind == KindHygiene && strings.HasSuffix(c.Name, "raw response cached"):
				uncached = appendUnique(uncached, strings.TrimSuffix(strings.TrimPrefix(c.Name, "block "), " raw response cached"))
			}
		}
		if !d.Exists {
			out = append(out, fmt.Sprintf("Regenerate %s from cached raw data; it is expected by the audit plan.", d.Path))
		}
	}
	if len(missingRaw) > 0 {
		out = append(out, "Restore or re-collect missing raw artifacts: "+strings.Join(missingRaw, ", ")+". Values citing them cannot be trusted.")
	}
	if len(mismatch) > 0 {
		out = append(out, "Rebuild "+strings.Join(mismatch, ", ")+" from the cached raw payloads; stored values disagree with their sources.")
	}
	for _, b := range uncached {
		out = append(out, fmt.Sprintf("Cache the raw API response for %s and attach provenance (endpoint, variables, geography, retrieved_at, raw_path).", b))
	}
	if len(r.Layout.Misplaced) > 0 {
		out = append(out, fmt.Sprintf("Move %d misplaced raw file(s) under %s/<bucket>/ (provaudit tidy).", len(r.Layout.Misplaced), r.LayoutRoot))
	} else {
		out = append(out, fmt.Sprintf("Raw artifacts are centralized under %s/.", r.LayoutRoot))
	}
	if len(r.Layout.Duplicates) > 0 {
		out = append(out, "Consolidate duplicate raw files; keep the earliest snapshot of each group.")
	}
	if len(r.Layout.NearDuplicates) > 0 {
		out = append(out, "Review near-duplicate snapshots that differ only in retrieval timestamps.")
	}
	if len(r.Layout.Nonconforming) > 0 {
		out = append(out, "Rename raw files that do not follow <prefix>_<geo>_<timestamp>.json.")
	}
	out = append(out, "Keep figures and analysis reading only persisted inputs under data/.")
	return out
}

func appendUnique(xs []string, s string) []string {
	for _, x := range xs {
		if x == s {
			return xs
		}
	}
	return append(xs, s)
}

// Render produces the Markdown report. The last line is "Overall: <status>".
func (r Report) Render() string {
	var b strings.Builder
	b.WriteString("# Provenance Audit Report\n\n")
	fmt.Fprintf(&b, "Generated: %s UTC\n\n", r.GeneratedAt.UTC().Format("2006-01-02 15:04:05"))
	b.WriteString("## Checks\n\n")

	for _, d := range r.Documents {
		fmt.Fprintf(&b, "### %s (%s)\n\n", d.Name, d.Path)
		if !d.Exists && len(d.Checks) == 0 {
			fmt.Fprintf(&b, "- %s exists: FAIL\n", d.Path)
		}
		for _, c := range d.Checks {
			b.WriteString(checkLine(c))
		}
		if len(d.Notes) > 0 {
			b.WriteString("- Notes:\n")
			for _, n := range d.Notes {
				fmt.Fprintf(&b, "  - %s\n", n)
			}
		}
		fmt.Fprintf(&b, "\nSection status: %s\n\n", d.Status())
	}

	l := r.Layout
	b.WriteString("### Raw file layout\n\n")
	if len(l.Roots) == 0 {
		fmt.Fprintf(&b, "- raw root %s not found\n", r.LayoutRoot)
	} else {
		fmt.Fprintf(&b, "- scanned roots: %s\n", strings.Join(l.Roots, ", "))
	}
	fmt.Fprintf(&b, "- raw files found: %d\n", len(l.Files))
	fmt.Fprintf(&b, "- misplaced files: %d\n", len(l.Misplaced))
	for _, m := range l.Misplaced {
		fmt.Fprintf(&b, "  - %s -> %s (%s)\n", m.Path, m.Suggested, m.Reason)
	}
	fmt.Fprintf(&b, "- duplicate groups: %d\n", len(l.Duplicates))
	for _, g := range l.Duplicates {
		fmt.Fprintf(&b, "  - %s: %s\n", shortHash(g.SHA256), strings.Join(g.Paths, ", "))
	}
	if len(l.NearDuplicates) > 0 {
		fmt.Fprintf(&b, "- near-duplicate groups (timestamps only): %d\n", len(l.NearDuplicates))
		for _, g := range l.NearDuplicates {
			fmt.Fprintf(&b, "  - %s\n", strings.Join(g.Paths, ", "))
		}
	}
	if len(l.Unclassified) > 0 {
		fmt.Fprintf(&b, "- unclassified files: %s\n", strings.Join(l.Unclassified, ", "))
	}
	if len(l.Nonconforming) > 0 {
		fmt.Fprintf(&b, "- nonconforming names: %s\n", strings.Join(l.Nonconforming, ", "))
	}
	for _, e := range l.Errors {
		fmt.Fprintf(&b, "- read error: %s\n", e)
	}
	fmt.Fprintf(&b, "\nSection status: %s\n\n", l.Status())

	b.WriteString("## Recommendations\n\n")
	for _, rec := range r.Recommendations {
		fmt.Fprintf(&b, "- %s\n", rec)
	}
	b.WriteString("\n## Status\n\n")
	fmt.Fprintf(&b, "Checks: %d pass, %d warn, %d fail\n\n", r.Counts.Pass, r.Counts.Warn, r.Counts.Fail)
	fmt.Fprintf(&b, "Overall: %s\n", r.Overall)
	return b.String()
}

func checkLine(c CheckResult) string {
	indent := strings.Repeat("  ", c.Depth)
	line := fmt.Sprintf("%s- %s: %s", indent, c.Name, c.Status)
	var detail []string
	if c.Reason != "" {
		detail = append(detail, c.Reason)
	}
	if c.Path != "" && !strings.Contains(c.Name, c.Path) {
		detail = append(detail, c.Path)
	}
	if c.Status != StatusPass && (c.Expected != "" || c.Actual != "") {
		detail = append(detail, fmt.Sprintf("expected %s, got %s", c.Expected, c.Actual))
	}
	if len(detail) > 0 {
		line += " (" + strings.Join(detail, "; ") + ")"
	}
	return line + "\n"
}

func shortHash(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

// WriteReport replaces path with content in one rename.
func WriteReport(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".report-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}
