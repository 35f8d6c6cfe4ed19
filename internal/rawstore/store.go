package rawstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"provenance-audit/internal/census"
	"provenance-audit/internal/shared/util"
)

// Store writes artifacts under Root/<bucket>/.
type Store struct {
	Root string
	Now  func() time.Time
}

// New creates a store rooted at root.
func New(root string) *Store {
	return &Store{Root: root, Now: time.Now}
}

// SaveInput describes a response to cache.
type SaveInput struct {
	Bucket      string
	Prefix      string
	Endpoint    string
	Variables   []string
	Geography   string
	RetrievedAt time.Time
	Payload     []byte
}

// Save writes the payload verbatim. The file is created exclusively, so an existing
// artifact is never overwritten.
func (s *Store) Save(ctx context.Context, in SaveInput) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	bucket, err := util.SanitizeFileName(in.Bucket)
	if err != nil {
		return Artifact{}, fmt.Errorf("bucket: %w", err)
	}
	prefix, err := util.SanitizeFileName(in.Prefix)
	if err != nil {
		return Artifact{}, fmt.Errorf("prefix: %w", err)
	}
	if !json.Valid(in.Payload) {
		return Artifact{}, fmt.Errorf("payload for %s is not valid JSON", in.Endpoint)
	}

	retrieved := in.RetrievedAt
	if retrieved.IsZero() {
		now := time.Now
		if s.Now != nil {
			now = s.Now
		}
		retrieved = now()
	}
	retrieved = retrieved.UTC().Truncate(time.Second)

	name := FormatName(Name{Prefix: prefix, GeoToken: GeoToken(in.Geography), RetrievedAt: retrieved})
	dir := filepath.Join(s.Root, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("mkdir: %w", err)
	}
	fullPath := filepath.Join(dir, name)
	if err := writeOnce(fullPath, in.Payload); err != nil {
		return Artifact{}, err
	}

	return Artifact{
		Path:        fullPath,
		Bucket:      bucket,
		Endpoint:    in.Endpoint,
		Variables:   append([]string(nil), in.Variables...),
		Geography:   in.Geography,
		RetrievedAt: retrieved,
		SHA256:      util.HashBytes(in.Payload),
		Payload:     append(json.RawMessage(nil), in.Payload...),
	}, nil
}

// Load reads an artifact payload from disk.
func Load(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func writeOnce(fullPath string, payload []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".raw-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o444); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	// Link fails when the destination exists, which keeps artifacts immutable.
	if err := os.Link(tmpName, fullPath); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrArtifactExists, fullPath)
		}
		return fmt.Errorf("link artifact: %w", err)
	}
	return nil
}

// GeoToken shortens a geography identifier for file names.
// "zip code tabulation area:21076" becomes "zcta21076"; other clauses become name+id slugs.
func GeoToken(geo string) string {
	clauses, err := census.ParseGeography(geo)
	if err != nil {
		return util.Slug(geo)
	}
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		name := util.Slug(c.Name)
		if name == "zip_code_tabulation_area" {
			name = "zcta"
		}
		parts = append(parts, strings.ReplaceAll(name, "_", "")+util.Slug(c.ID))
	}
	return strings.Join(parts, "")
}

// FormatName renders <prefix>_<geo>_<timestamp>.json.
func FormatName(n Name) string {
	return fmt.Sprintf("%s_%s_%s.json", n.Prefix, n.GeoToken, n.RetrievedAt.UTC().Format(TimestampLayout))
}

var nameRe = regexp.MustCompile(`^(.+)_([a-z0-9]+)_(\d{8}T\d{6}Z)\.json$`)

// ParseName decodes a file name produced by FormatName.
func ParseName(base string) (Name, error) {
	m := nameRe.FindStringSubmatch(base)
	if m == nil {
		return Name{}, fmt.Errorf("%w: %s", ErrInvalidName, base)
	}
	ts, err := time.Parse(TimestampLayout, m[3])
	if err != nil {
		return Name{}, fmt.Errorf("%w: %s", ErrInvalidName, base)
	}
	return Name{Prefix: m[1], GeoToken: m[2], RetrievedAt: ts}, nil
}
