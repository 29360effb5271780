package main

import (
	"context"
	"fmt"

	"github.com/callaudit/callaudit/internal/models"
	"github.com/spf13/cobra"
)

// withApp runs fn with an app built from the configuration and closes it.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, opts.fs)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx)) //nolint:errcheck

	return fn(ctx, a)
}

func newListCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				recs, err := a.coordinator.List(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), recs)
				}
				return writeTable(cmd.OutOrStdout(), recs)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")

	return cmd
}

func newGetCommand(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one audit record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				rec, err := a.coordinator.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return writeRecord(cmd.OutOrStdout(), rec, format)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json, md or html")

	return cmd
}

func newRerunCommand(opts *rootOptions) *cobra.Command {
	var typeFlags []string

	cmd := &cobra.Command{
		Use:   "rerun <id>",
		Short: "Rerun audit types of a record and wait for them",
		Long: `Reset audit types of a record to PENDING and run them again against the
stored conversation. Without --type every FAILED type is rerun.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var types []models.AuditType
			if len(typeFlags) > 0 {
				var err error
				if types, err = models.ParseAuditTypes(typeFlags); err != nil {
					return err
				}
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				a.coordinator.OnProgress(progressPrinter(cmd.ErrOrStderr()))

				if _, err := a.coordinator.Rerun(ctx, args[0], types); err != nil {
					return err
				}
				if err := a.coordinator.Shutdown(ctx); err != nil {
					return err
				}

				rec, err := a.coordinator.Get(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), statusSummary(rec)) //nolint:errcheck

				if failed := rec.FailedTypes(); len(failed) > 0 {
					return &AuditFailureError{Message: fmt.Sprintf("record %s: %d audit type(s) failed: %s", rec.ID, len(failed), joinTypes(failed))}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&typeFlags, "type", "t", nil, "Audit type to rerun (repeatable)")

	return cmd
}

func newDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an audit record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.coordinator.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0]) //nolint:errcheck
				return nil
			})
		},
	}
}
