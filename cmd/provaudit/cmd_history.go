package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"provenance-audit/internal/bootstrap"
	"provenance-audit/internal/history"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded audit runs",
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON")

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap.Build(cmd.Context(), c.cfg, bootstrap.Options{})
			if err != nil {
				return err
			}
			defer app.Close()
			runs, err := app.History.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			for _, r := range runs {
				printRun(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum runs to show")

	latest := &cobra.Command{
		Use:   "latest",
		Short: "Show the newest run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap.Build(cmd.Context(), c.cfg, bootstrap.Options{})
			if err != nil {
				return err
			}
			defer app.Close()
			run, err := app.History.Latest(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), run)
			}
			printRun(cmd.OutOrStdout(), run)
			return nil
		},
	}

	cmd.AddCommand(list, latest)
	return cmd
}

func printRun(w io.Writer, r history.Run) {
	fmt.Fprintf(w, "%s  %s  %-4s  pass=%d warn=%d fail=%d  %s\n",
		r.ID, r.GeneratedAt.Format("2006-01-02 15:04:05"), r.Overall,
		r.PassCount, r.WarnCount, r.FailCount, r.ReportPath)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
