package main

// Apply audit history migrations:
//   go run ./cmd/migrate

import (
	"context"
	"fmt"
	"os"

	"provenance-audit/internal/shared/config"
	"provenance-audit/internal/shared/storage/db"
	"provenance-audit/internal/shared/telemetry"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	if err := telemetry.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
	}
	defer telemetry.Sync()

	sqlDB, err := db.OpenHistory(context.Background(), cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultCLIOptions()))
	if err != nil {
		telemetry.Error("migrate.failed", map[string]any{"database": db.Redact(cfg.DatabaseURL), "error": err})
		return 1
	}
	defer sqlDB.Close()
	return 0
}
