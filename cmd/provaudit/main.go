// provaudit verifies that derived data documents trace back to cached raw responses.
//
// Usage:
//
//	provaudit audit [--data-root=<dir>] [--plan=<plan.yaml>] [--report=<path>]
//	provaudit tidy [--dry-run]
//	provaudit ingest-labor [--raw=<release.md>] [--out=<doc.json>]
//	provaudit collect [--year=2023] [--geography="zip code tabulation area:21076"]
//	provaudit history list|latest
//	provaudit serve
package main

import (
	"errors"
	"fmt"
	"os"

	"provenance-audit/internal/shared/telemetry"
)

func main() {
	err := newRootCmd().Execute()
	telemetry.Sync()
	os.Exit(exitCode(err))
}

// exitCode maps an audit verdict to its process status. Any other error is 1.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var verdict verdictError
	if errors.As(err, &verdict) {
		return verdict.status.ExitCode()
	}
	fmt.Fprintln(os.Stderr, err)
	return 1
}
