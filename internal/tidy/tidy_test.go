package tidy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provenance-audit/internal/audit"
)

func put(t *testing.T, base, rel, content string) {
	t.Helper()
	full := filepath.Join(base, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func read(t *testing.T, base, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(base, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func seed(t *testing.T) string {
	base := t.TempDir()
	put(t, base, "analysis/data/raw/acs5_hanover.json", `{"a":1}`)
	put(t, base, "analysis/data/raw/decennial_hanover.json", `{"d":1}`)
	put(t, base, "analysis/data/raw/acs5_conflict.json", `{"v":"legacy"}`)
	put(t, base, "analysis/data/raw/notes.txt", "ignored")
	put(t, base, "data/raw/census/decennial_hanover.json", `{"d":1}`)
	put(t, base, "data/raw/census/acs5_conflict.json", `{"v":"current"}`)
	put(t, base, "data/raw/mlraug2025.md", "# release")
	return base
}

func TestRunMovesMisplacedFiles(t *testing.T) {
	base := seed(t)
	res, err := Run(context.Background(), Options{Base: base, Layout: audit.DefaultPlan().Layout})
	require.NoError(t, err)
	assert.Empty(t, res.Errors)

	assert.ElementsMatch(t, []Move{
		{From: "analysis/data/raw/acs5_hanover.json", To: "data/raw/census/acs5_hanover.json", Reason: "under legacy root analysis/data/raw"},
		{From: "data/raw/mlraug2025.md", To: "data/raw/labor/mlraug2025.md", Reason: "outside bucket labor"},
	}, res.Moved)
	assert.Equal(t, []Move{{
		From:   "analysis/data/raw/acs5_conflict.json",
		To:     "data/raw/census/acs5_conflict_from_analysis_1.json",
		Reason: "under legacy root analysis/data/raw",
	}}, res.Renamed)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "analysis/data/raw/decennial_hanover.json", res.Skipped[0].From)

	assert.Equal(t, `{"a":1}`, read(t, base, "data/raw/census/acs5_hanover.json"))
	assert.Equal(t, `{"v":"current"}`, read(t, base, "data/raw/census/acs5_conflict.json"))
	assert.Equal(t, `{"v":"legacy"}`, read(t, base, "data/raw/census/acs5_conflict_from_analysis_1.json"))
	assert.NoFileExists(t, filepath.Join(base, "analysis/data/raw/acs5_hanover.json"))
	assert.FileExists(t, filepath.Join(base, "analysis/data/raw/decennial_hanover.json"))
	assert.FileExists(t, filepath.Join(base, "analysis/data/raw/notes.txt"))
}

func TestRunDryRunChangesNothing(t *testing.T) {
	base := seed(t)
	res, err := Run(context.Background(), Options{Base: base, Layout: audit.DefaultPlan().Layout, DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Len(t, res.Moved, 2)
	assert.Len(t, res.Renamed, 1)
	assert.FileExists(t, filepath.Join(base, "analysis/data/raw/acs5_hanover.json"))
	assert.NoFileExists(t, filepath.Join(base, "data/raw/census/acs5_hanover.json"))
}

func TestRunIsIdempotent(t *testing.T) {
	base := seed(t)
	layout := audit.DefaultPlan().Layout
	_, err := Run(context.Background(), Options{Base: base, Layout: layout})
	require.NoError(t, err)

	again, err := Run(context.Background(), Options{Base: base, Layout: layout})
	require.NoError(t, err)
	assert.Empty(t, again.Moved)
	assert.Empty(t, again.Renamed)
	assert.Len(t, again.Skipped, 1)
}

func TestRunPicksNextFreeSuffix(t *testing.T) {
	base := seed(t)
	put(t, base, "data/raw/census/acs5_conflict_from_analysis_1.json", `{"v":"older"}`)
	res, err := Run(context.Background(), Options{Base: base, Layout: audit.DefaultPlan().Layout})
	require.NoError(t, err)
	require.Len(t, res.Renamed, 1)
	assert.Equal(t, "data/raw/census/acs5_conflict_from_analysis_2.json", res.Renamed[0].To)
}

func TestRunMissingBase(t *testing.T) {
	_, err := Run(context.Background(), Options{Base: filepath.Join(t.TempDir(), "absent"), Layout: audit.DefaultPlan().Layout})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestSuffixed(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "data/raw/x_from_analysis_3.json", suffixed("data/raw/x.json", "analysis", 3))
	assert.Equal(t, "data/raw/notes_from_legacy_1", suffixed("data/raw/notes", "legacy", 1))
}
