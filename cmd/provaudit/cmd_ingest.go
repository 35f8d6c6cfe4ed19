package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"provenance-audit/internal/labor"
)

func newIngestLaborCmd(c *cli) *cobra.Command {
	var opts labor.IngestOptions
	cmd := &cobra.Command{
		Use:   "ingest-labor",
		Short: "Parse a saved Maryland labor release into a derived document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Root = c.cfg.DataRoot
			doc, err := labor.Ingest(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := opts.OutPath
			if out == "" {
				out = labor.DefaultOutPath
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", out, doc.GeneratedAt)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.RawPath, "raw", labor.DefaultRawPath, "saved release markdown")
	f.StringVar(&opts.OutPath, "out", labor.DefaultOutPath, "output document")
	f.StringVar(&opts.SourceURL, "source-url", labor.DefaultSourceURL, "URL the release was saved from")
	f.StringVar(&opts.Period, "period", labor.DefaultPeriod, "reference month, YYYY-MM")
	return cmd
}
