package labor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"provenance-audit/internal/derived"
	"provenance-audit/internal/shared/telemetry"
	"provenance-audit/internal/shared/util"
)

const (
	DefaultSourceURL = "https://www.labor.maryland.gov/whatsnews/mlraug2025.shtml"
	DefaultRawPath   = "data/raw/labor/mlraug2025.md"
	DefaultOutPath   = "data/processed/mlraug2025.json"
	DefaultPeriod    = "2025-08"

	// BlockName is the document block holding the parsed release.
	BlockName = "release"
	method    = "parsed from saved news release"
)

// IngestOptions locate the saved release and the output document. RawPath and
// OutPath are relative to Root unless absolute.
type IngestOptions struct {
	Root      string
	RawPath   string
	OutPath   string
	SourceURL string
	Period    string
	Now       func() time.Time
}

func (o IngestOptions) withDefaults() IngestOptions {
	if o.RawPath == "" {
		o.RawPath = DefaultRawPath
	}
	if o.OutPath == "" {
		o.OutPath = DefaultOutPath
	}
	if o.SourceURL == "" {
		o.SourceURL = DefaultSourceURL
	}
	if o.Period == "" {
		o.Period = DefaultPeriod
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o IngestOptions) resolve(p string) string {
	if filepath.IsAbs(p) || o.Root == "" {
		return p
	}
	return filepath.Join(o.Root, p)
}

// Ingest parses the saved release and writes a derived document whose only block
// points back at the release file and its digest.
func Ingest(ctx context.Context, opts IngestOptions) (derived.Document, error) {
	opts = opts.withDefaults()
	if err := ctx.Err(); err != nil {
		return derived.Document{}, err
	}
	raw, err := os.ReadFile(opts.resolve(opts.RawPath))
	if err != nil {
		return derived.Document{}, fmt.Errorf("required source missing: %w", err)
	}
	rel, err := Parse(string(raw))
	if err != nil {
		return derived.Document{}, err
	}

	now := opts.Now().UTC()
	b := derived.NewBuilder("md_labor_release", "Maryland", now)
	b.AddSourcedBlock(BlockName, derived.Provenance{
		RawPath:     filepath.ToSlash(opts.RawPath),
		Endpoint:    opts.SourceURL,
		RetrievedAt: now.Format(time.RFC3339),
		SHA256:      util.HashBytes(raw),
		Method:      method,
	}, map[string]any{
		"period":      opts.Period,
		"highlights":  rel.Highlights,
		"top_gainers": rel.TopGainers,
		"top_losers":  rel.TopLosers,
	})
	doc, err := b.Build()
	if err != nil {
		return derived.Document{}, err
	}
	if err := derived.Write(opts.resolve(opts.OutPath), doc); err != nil {
		return derived.Document{}, fmt.Errorf("write %s: %w", opts.OutPath, err)
	}
	telemetry.Info("labor.ingested", map[string]any{
		"raw_path":          opts.RawPath,
		"out_path":          opts.OutPath,
		"jobs_change_total": rel.Highlights.JobsChangeTotal,
		"gainers":           len(rel.TopGainers),
		"losers":            len(rel.TopLosers),
	})
	return doc, nil
}
