package telemetry

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInfoWritesSortedFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	Info("audit.complete", map[string]any{"overall": "WARN", "duration_ms": 12.5})
	Error("audit.report_write_failed", map[string]any{"error": errors.New("disk full")})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	first := entries[0]
	if first.Message != "audit.complete" || first.Level != zapcore.InfoLevel {
		t.Fatalf("unexpected first entry: %+v", first.Entry)
	}
	if len(first.Context) != 2 || first.Context[0].Key != "duration_ms" || first.Context[1].Key != "overall" {
		t.Fatalf("expected sorted fields, got %+v", first.Context)
	}
	ctx := entries[1].ContextMap()
	if ctx["error"] != "disk full" {
		t.Fatalf("expected error field, got %v", ctx)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for raw, want := range cases {
		if got := parseLevel(raw); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", raw, got, want)
		}
	}
}
