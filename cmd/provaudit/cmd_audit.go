package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"provenance-audit/internal/audit"
	"provenance-audit/internal/bootstrap"
)

// verdictError carries a non-PASS overall status out to the exit code.
type verdictError struct {
	status audit.Status
}

func (e verdictError) Error() string {
	return "audit overall " + string(e.status)
}

func newAuditCmd(c *cli) *cobra.Command {
	var printReport bool
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run the provenance audit and write the Markdown report",
		Long: "Verifies every planned document, scans the raw layout and writes the report.\n" +
			"Exit status is 0 for PASS, 3 for WARN, 2 for FAIL and 1 when the audit cannot run.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := bootstrap.Build(ctx, c.cfg, bootstrap.Options{})
			if err != nil {
				return err
			}
			defer app.Close()

			outcome, err := app.History.RunAudit(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if printReport {
				fmt.Fprint(out, outcome.Report.Render())
			}
			r := outcome.Report
			fmt.Fprintf(out, "Report: %s\n", app.History.ReportPath)
			fmt.Fprintf(out, "Checks: %d pass, %d warn, %d fail\n", r.Counts.Pass, r.Counts.Warn, r.Counts.Fail)
			if outcome.PublishedKey != "" {
				fmt.Fprintf(out, "Published: %s\n", outcome.PublishedKey)
			}
			fmt.Fprintf(out, "Overall: %s\n", r.Overall)
			if r.Overall != audit.StatusPass {
				return verdictError{status: r.Overall}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&printReport, "print", false, "also print the full report to stdout")
	return cmd
}
