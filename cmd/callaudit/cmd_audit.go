package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/callaudit/callaudit/internal/models"
	"github.com/callaudit/callaudit/internal/orchestration"
	"github.com/callaudit/callaudit/internal/spinner"
	"github.com/callaudit/callaudit/internal/wizard"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newAuditCommand(opts *rootOptions) *cobra.Command {
	var typeFlags []string
	var format string

	cmd := &cobra.Command{
		Use:   "audit <transcript-file>",
		Short: "Audit a transcript and wait for the result",
		Long: `Audit a transcript file (JSON, NDJSON or gzip of either) and wait for
every requested audit type to finish.

Without --type, an interactive terminal asks which audits to run; otherwise
every audit type runs. Exits 1 when any audit type ends FAILED.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}

			data, err := afero.ReadFile(opts.fs, args[0])
			if err != nil {
				return fmt.Errorf("reading transcript: %w", err)
			}

			types, err := resolveAuditTypes(cmd, typeFlags)
			if err != nil {
				return err
			}

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

			listener, stop := newProgress(cmd.ErrOrStderr())
			defer stop()
			a.coordinator.OnProgress(listener)

			rec, _, err := a.coordinator.SubmitAndWait(ctx, orchestration.Submission{
				FileName:   filepath.Base(args[0]),
				Data:       data,
				AuditTypes: types,
			})
			stop()
			if err != nil {
				return err
			}

			if err := writeRecord(cmd.OutOrStdout(), rec, format); err != nil {
				return err
			}

			if failed := rec.FailedTypes(); len(failed) > 0 {
				return &AuditFailureError{Message: fmt.Sprintf("record %s: %d audit type(s) failed: %s", rec.ID, len(failed), joinTypes(failed))}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&typeFlags, "type", "t", nil, "Audit type to run (repeatable): RECORDED_LINE_PHRASES, SECTION_BREAKDOWN")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json, md or html")

	return cmd
}

func resolveAuditTypes(cmd *cobra.Command, flags []string) ([]models.AuditType, error) {
	if len(flags) > 0 {
		return models.ParseAuditTypes(flags)
	}
	if wizard.IsTerminal(cmd.InOrStdin()) {
		return wizard.SelectAuditTypes(cmd.InOrStdin(), cmd.ErrOrStderr())
	}
	return models.AllAuditTypes(), nil
}

// newProgress reports progress with a spinner on a terminal and with plain
// lines otherwise. Call stop before writing anything else to w.
func newProgress(w io.Writer) (listener orchestration.ProgressListener, stop func()) {
	if !wizard.IsTerminal(w) {
		return progressPrinter(w), func() {}
	}

	sp := spinner.Start(w, "submitting transcript")

	var mu sync.Mutex
	total, finished := 0, 0
	listener = func(e orchestration.ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()

		switch e.EventType {
		case orchestration.EventSubmissionAccepted:
			total = e.TotalTasks
		case orchestration.EventTaskComplete:
			finished++
			sp.Println(fmt.Sprintf("  ✓ %s (%dms)", e.AuditType, e.DurationMs))
		case orchestration.EventTaskFailed:
			finished++
			sp.Println(fmt.Sprintf("  ✗ %s (%dms): %v", e.AuditType, e.DurationMs, e.Err))
		}
		sp.SetMessage(fmt.Sprintf("%d of %d audits done", finished, total))
	}
	return listener, sp.Stop
}

func progressPrinter(w io.Writer) orchestration.ProgressListener {
	return func(e orchestration.ProgressEvent) {
		switch e.EventType {
		case orchestration.EventSubmissionAccepted:
			fmt.Fprintf(w, "record %s: running %d audit(s)\n", e.RecordID, e.TotalTasks) //nolint:errcheck
		case orchestration.EventTaskComplete:
			fmt.Fprintf(w, "  ✓ %s (%dms)\n", e.AuditType, e.DurationMs) //nolint:errcheck
		case orchestration.EventTaskFailed:
			fmt.Fprintf(w, "  ✗ %s (%dms): %v\n", e.AuditType, e.DurationMs, e.Err) //nolint:errcheck
		}
	}
}

func joinTypes(types []models.AuditType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}
