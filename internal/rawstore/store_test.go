package rawstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveWritesVerbatimTimestampedFile(t *testing.T) {
	root := t.TempDir()
	store := New(root)
	retrieved := time.Date(2025, 9, 1, 8, 30, 15, 999, time.FixedZone("EDT", -4*3600))
	payload := []byte(`[["B01003_001E","zip code tabulation area"],["17000","21076"]]`)

	art, err := store.Save(context.Background(), SaveInput{
		Bucket:      "census",
		Prefix:      "acs5_2023",
		Endpoint:    "https://api.census.gov/data/2023/acs/acs5",
		Variables:   []string{"B01003_001E"},
		Geography:   "zip code tabulation area:21076",
		RetrievedAt: retrieved,
		Payload:     payload,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	wantPath := filepath.Join(root, "census", "acs5_2023_zcta21076_20250901T123015Z.json")
	if art.Path != wantPath {
		t.Fatalf("path = %s, want %s", art.Path, wantPath)
	}
	got, err := Load(art.Path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mutated: %s", got)
	}
	if art.RetrievedAt != time.Date(2025, 9, 1, 12, 30, 15, 0, time.UTC) {
		t.Fatalf("retrieved_at not normalized to UTC seconds: %s", art.RetrievedAt)
	}
	if len(art.SHA256) != 64 {
		t.Fatalf("expected sha256, got %q", art.SHA256)
	}

	entries, err := os.ReadDir(filepath.Join(root, "census"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the artifact in bucket, found %d entries", len(entries))
	}
}

func TestSaveNeverOverwrites(t *testing.T) {
	root := t.TempDir()
	store := New(root)
	in := SaveInput{
		Bucket:      "census",
		Prefix:      "decennial_2020_pl",
		Geography:   "zip code tabulation area:21076",
		RetrievedAt: time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC),
		Payload:     []byte(`[["P1_001N"],["16500"]]`),
	}
	if _, err := store.Save(context.Background(), in); err != nil {
		t.Fatalf("first Save: %v", err)
	}

	in.Payload = []byte(`[["P1_001N"],["1"]]`)
	_, err := store.Save(context.Background(), in)
	if !errors.Is(err, ErrArtifactExists) {
		t.Fatalf("expected ErrArtifactExists, got %v", err)
	}
	got, _ := Load(filepath.Join(root, "census", "decennial_2020_pl_zcta21076_20250901T120000Z.json"))
	if string(got) != `[["P1_001N"],["16500"]]` {
		t.Fatalf("artifact overwritten: %s", got)
	}
}

func TestSaveRejectsInvalidJSON(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.Save(context.Background(), SaveInput{Bucket: "census", Prefix: "acs5", Geography: "state:24", Payload: []byte("<html>")})
	if err == nil {
		t.Fatalf("expected invalid JSON error")
	}
}

func TestSaveHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(t.TempDir()).Save(ctx, SaveInput{Bucket: "census", Prefix: "acs5", Payload: []byte("[]")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNameRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		geo  string
		want string
	}{
		{geo: "zip code tabulation area:21076", want: "zcta21076"},
		{geo: "state:24", want: "state24"},
		{geo: "county:003;state:24", want: "county003state24"},
	}
	for _, tt := range tests {
		if got := GeoToken(tt.geo); got != tt.want {
			t.Fatalf("GeoToken(%q) = %q, want %q", tt.geo, got, tt.want)
		}
	}

	ts := time.Date(2025, 8, 31, 23, 59, 59, 0, time.UTC)
	name := FormatName(Name{Prefix: "acs5_2023_C24010", GeoToken: "zcta21076", RetrievedAt: ts})
	parsed, err := ParseName(name)
	if err != nil {
		t.Fatalf("ParseName(%q): %v", name, err)
	}
	if parsed.Prefix != "acs5_2023_C24010" || parsed.GeoToken != "zcta21076" || !parsed.RetrievedAt.Equal(ts) {
		t.Fatalf("unexpected parse: %+v", parsed)
	}

	if _, err := ParseName("mlraug2025.md"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}
