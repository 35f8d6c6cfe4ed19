package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"provenance-audit/internal/bootstrap"
	"provenance-audit/internal/shared/server"
	"provenance-audit/internal/shared/telemetry"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve health, on-demand audits, history and metrics over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := bootstrap.Build(ctx, c.cfg, bootstrap.Options{WithRouter: true})
			if err != nil {
				return err
			}
			defer app.Close()

			srv := &http.Server{
				Addr:              server.Addr(c.cfg.Port),
				Handler:           app.Router,
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				telemetry.Info("server.start", map[string]any{"addr": srv.Addr, "env": c.cfg.Env})
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			telemetry.Info("server.shutdown", nil)
			return srv.Shutdown(shutdownCtx)
		},
	}
}
