package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"provenance-audit/internal/bootstrap"
	"provenance-audit/internal/collect"
)

func newCollectCmd(c *cli) *cobra.Command {
	var opts collect.Options
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Fetch Census data, cache raw responses and rebuild the derived documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Year == 0 {
				opts.Year = c.cfg.DefaultACSYear
			}
			app, err := bootstrap.Build(cmd.Context(), c.cfg, bootstrap.Options{})
			if err != nil {
				return err
			}
			defer app.Close()
			collector, err := app.Collector()
			if err != nil {
				return err
			}
			res, err := collector.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, art := range res.Artifacts {
				fmt.Fprintf(out, "cached %s\n", art.Path)
			}
			fmt.Fprintf(out, "Wrote %d metrics to baseline and %d to detailed document\n", len(res.Baseline.Metrics), len(res.Detailed.Metrics))
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.Year, "year", 0, "ACS 5-year vintage (default $DEFAULT_ACS_YEAR)")
	f.StringVar(&opts.Geography, "geography", collect.DefaultGeography, "Census geography, name:id clauses joined by ;")
	f.StringVar(&opts.Area, "area", collect.DefaultArea, "human label stored in the documents")
	return cmd
}
