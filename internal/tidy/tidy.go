// Package tidy moves misplaced raw files into the canonical raw tree.
package tidy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"provenance-audit/internal/audit"
	"provenance-audit/internal/shared/telemetry"
	"provenance-audit/internal/shared/util"
)

// maxSuffix bounds the search for a free destination name.
const maxSuffix = 1000

var ErrNoFreeName = errors.New("no free destination name")

// Move is one planned or performed relocation. Paths are slash-separated and relative
// to the tidy base.
type Move struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// Result lists what happened to every misplaced file.
type Result struct {
	DryRun  bool     `json:"dry_run"`
	Moved   []Move   `json:"moved"`
	Renamed []Move   `json:"renamed"`
	Skipped []Move   `json:"skipped"`
	Errors  []string `json:"errors"`
}

// Options controls a tidy run.
type Options struct {
	Base   string
	Layout audit.LayoutConfig
	DryRun bool
}

// Run scans the layout and moves each misplaced file to its suggested path. A file
// whose destination already holds identical bytes is skipped and left in place. A
// destination with different bytes gets a _from_<origin>_<n> suffix instead of being
// overwritten.
func Run(ctx context.Context, opts Options) (Result, error) {
	scan, err := audit.ScanRawLayout(opts.Base, opts.Layout)
	if err != nil {
		return Result{}, err
	}
	res := Result{DryRun: opts.DryRun}
	for _, m := range scan.Misplaced {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		mv := Move{From: m.Path, To: m.Suggested, Reason: m.Reason}
		outcome, err := place(opts.Base, &mv, opts.DryRun)
		switch {
		case err != nil:
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", m.Path, err))
		case outcome == skipped:
			res.Skipped = append(res.Skipped, mv)
		case outcome == renamed:
			res.Renamed = append(res.Renamed, mv)
		default:
			res.Moved = append(res.Moved, mv)
		}
	}
	telemetry.Info("tidy.complete", map[string]any{
		"dry_run": opts.DryRun,
		"moved":   len(res.Moved),
		"renamed": len(res.Renamed),
		"skipped": len(res.Skipped),
		"errors":  len(res.Errors),
	})
	return res, nil
}

type outcome int

const (
	moved outcome = iota
	renamed
	skipped
)

func place(base string, mv *Move, dryRun bool) (outcome, error) {
	src := filepath.Join(base, filepath.FromSlash(mv.From))
	srcSum, err := util.HashFile(src)
	if err != nil {
		return 0, err
	}

	result := moved
	dest := mv.To
	for n := 1; ; n++ {
		sum, err := util.HashFile(filepath.Join(base, filepath.FromSlash(dest)))
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		if err != nil {
			return 0, err
		}
		if sum == srcSum {
			mv.To = dest
			return skipped, nil
		}
		if n > maxSuffix {
			return 0, fmt.Errorf("%w for %s", ErrNoFreeName, mv.To)
		}
		dest = suffixed(mv.To, origin(mv.From), n)
		result = renamed
	}
	mv.To = dest
	if dryRun {
		return result, nil
	}
	return result, relocate(src, filepath.Join(base, filepath.FromSlash(dest)))
}

// suffixed inserts _from_<origin>_<n> before the extension.
func suffixed(p, origin string, n int) string {
	ext := path.Ext(p)
	return fmt.Sprintf("%s_from_%s_%d%s", strings.TrimSuffix(p, ext), origin, n, ext)
}

// origin is the first path segment of the source, e.g. "analysis" for files under
// analysis/data/raw.
func origin(p string) string {
	first, _, _ := strings.Cut(p, "/")
	if slug := util.Slug(first); slug != "" {
		return slug
	}
	return "legacy"
}

// relocate renames src to dest, falling back to copy and remove across devices. The
// destination is created exclusively.
func relocate(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if _, err := os.Lstat(dest); err == nil {
		return fmt.Errorf("destination %s appeared during tidy", dest)
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
