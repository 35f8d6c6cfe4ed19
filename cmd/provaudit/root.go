package main

import (
	"github.com/spf13/cobra"

	"provenance-audit/internal/shared/config"
	"provenance-audit/internal/shared/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

// cli carries configuration resolved once per invocation.
type cli struct {
	cfg config.Config

	dataRoot string
	plan     string
	report   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "provaudit",
		Short: "Audit derived data documents against cached raw Census responses",
		Long: "provaudit checks that every figure in the derived documents under data/ can be\n" +
			"traced to a raw API response cached under data/raw, and reports PASS, WARN or FAIL.",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&c.dataRoot, "data-root", "", "repository root holding data/ (default $DATA_ROOT or .)")
	f.StringVar(&c.plan, "plan", "", "audit plan YAML (default built-in plan)")
	f.StringVar(&c.report, "report", "", "report output path (default data/provenance_audit_report.md)")
	f.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL)")

	root.AddCommand(
		newAuditCmd(c),
		newTidyCmd(c),
		newIngestLaborCmd(c),
		newCollectCmd(c),
		newHistoryCmd(c),
		newServeCmd(c),
	)
	return root
}

// load reads the environment and lets flags override it.
func (c *cli) load(cmd *cobra.Command) error {
	cfg := config.Load()
	flags := cmd.Flags()
	if flags.Changed("data-root") {
		cfg.DataRoot = c.dataRoot
	}
	if flags.Changed("plan") {
		cfg.AuditPlanPath = c.plan
	}
	if flags.Changed("report") {
		cfg.ReportPath = c.report
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = c.logLevel
	}
	c.cfg = cfg
	return telemetry.Init(cfg.LogLevel)
}
