package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"provenance-audit/internal/shared/storage/object"
)

// Store implements ObjectStore using the local filesystem.
type Store struct {
	baseDir string
}

var _ object.ObjectStore = (*Store)(nil)

// New creates a local object store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Open opens a stored object for reading.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := object.CleanKey(storageKey)
	if err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(s.baseDir, filepath.FromSlash(clean)))
}

// SaveWithKey writes r to storageKey, replacing any previous object atomically.
// The content type is not recorded on disk.
func (s *Store) SaveWithKey(ctx context.Context, storageKey string, _ string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	clean, err := object.CleanKey(storageKey)
	if err != nil {
		return 0, err
	}

	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(fullPath), ".object-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp: %w", err)
	}
	tmpName := f.Name()
	defer os.Remove(tmpName)

	written, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		return 0, fmt.Errorf("write body: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		return 0, fmt.Errorf("rename: %w", err)
	}
	return written, nil
}
