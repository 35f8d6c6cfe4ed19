// Package object stores published audit reports outside the working tree.
package object

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var ErrInvalidKey = errors.New("invalid storage key")

// ObjectStore saves and retrieves objects by key.
type ObjectStore interface {
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

// ReportsPrefix is the key prefix of published reports.
const ReportsPrefix = "reports"

// LatestReportKey always points at the newest published report.
var LatestReportKey = path.Join(ReportsPrefix, "latest.md")

// ReportKey names the immutable copy of a report generated at t.
func ReportKey(t time.Time) string {
	return path.Join(ReportsPrefix, "provenance_audit_"+t.UTC().Format("20060102T150405Z")+".md")
}

// PublishReport writes markdown under its timestamped key and under LatestReportKey.
// It returns the timestamped key.
func PublishReport(ctx context.Context, store ObjectStore, generatedAt time.Time, markdown string) (string, error) {
	key := ReportKey(generatedAt)
	for _, k := range []string{key, LatestReportKey} {
		if _, err := store.SaveWithKey(ctx, k, "text/markdown; charset=utf-8", strings.NewReader(markdown)); err != nil {
			return "", fmt.Errorf("publish %s: %w", k, err)
		}
	}
	return key, nil
}

// CleanKey rejects absolute keys and keys escaping the store root.
func CleanKey(storageKey string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(storageKey, "\\", "/"))
	if clean == "." || strings.HasPrefix(clean, "../") || clean == ".." || strings.HasPrefix(clean, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, storageKey)
	}
	return clean, nil
}
