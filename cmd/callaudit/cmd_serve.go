package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/callaudit/callaudit/internal/webserver"
	"github.com/spf13/cobra"
)

// drainTimeout bounds how long serve waits for running audits on shutdown.
const drainTimeout = 2 * time.Minute

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string
	var allowedOrigins []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API.

Endpoints:
  POST   /api/audits              Submit a transcript (multipart: transcript_file, audit_types)
  GET    /api/audits              List every record
  GET    /api/audits/{id}         Fetch one record
  GET    /api/audits/{id}/report  HTML report (?format=md for Markdown)
  POST   /api/audits/{id}/rerun   Rerun audit types (default: the FAILED ones)
  DELETE /api/audits/{id}         Delete a record
  GET    /api/summary             Status counts per audit type
  GET    /api/health              Store health`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Addr()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, opts.fs)
			if err != nil {
				return err
			}

			srv, err := webserver.New(webserver.Config{
				Addr:           addr,
				Service:        a.coordinator,
				AllowedOrigins: allowedOrigins,
				Logger:         slog.Default(),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "callaudit API listening on %s\n", addr) //nolint:errcheck
			serveErr := srv.ListenAndServe(ctx)

			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
			if err := a.Close(drainCtx); err != nil {
				slog.Error("Shutdown incomplete", "error", err)
			}
			return serveErr
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8000)")
	cmd.Flags().StringSliceVar(&allowedOrigins, "cors-origin", nil, "Allowed CORS origin (repeatable)")

	return cmd
}
