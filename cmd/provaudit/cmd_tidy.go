package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"provenance-audit/internal/audit"
	"provenance-audit/internal/tidy"
)

func newTidyCmd(c *cli) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "tidy",
		Short: "Move misplaced raw files into the canonical raw tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan, err := audit.LoadPlan(c.cfg.ResolvePath(c.cfg.AuditPlanPath))
			if err != nil {
				return err
			}
			res, err := tidy.Run(cmd.Context(), tidy.Options{Base: c.cfg.DataRoot, Layout: plan.Layout, DryRun: dryRun})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			verb := "moved"
			if dryRun {
				verb = "would move"
			}
			for _, m := range res.Moved {
				fmt.Fprintf(out, "%s %s -> %s\n", verb, m.From, m.To)
			}
			for _, m := range res.Renamed {
				fmt.Fprintf(out, "%s %s -> %s (destination differs)\n", verb, m.From, m.To)
			}
			for _, m := range res.Skipped {
				fmt.Fprintf(out, "skip %s (identical to %s)\n", m.From, m.To)
			}
			for _, e := range res.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "error %s\n", e)
			}
			fmt.Fprintf(out, "Moved: %d  Renamed: %d  Skipped: %d\n", len(res.Moved), len(res.Renamed), len(res.Skipped))
			if len(res.Errors) > 0 {
				return fmt.Errorf("tidy: %d file(s) could not be moved", len(res.Errors))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the moves without touching files")
	return cmd
}
