// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/term"
)

// Format selects the handler.
type Format string

const (
	// FormatAuto uses FormatText on a terminal and FormatJSON otherwise.
	FormatAuto Format = ""
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures New.
type Options struct {
	Debug  bool
	Format Format
	// Writer defaults to os.Stderr.
	Writer io.Writer
}

// New creates a slog.Logger. It does not install it; the entry point calls
// slog.SetDefault.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	format := opts.Format
	if format == FormatAuto {
		format = FormatJSON
		if isTerminal(w) {
			format = FormatText
		}
	}

	if format == FormatText {
		level := log.InfoLevel
		if opts.Debug {
			level = log.DebugLevel
		}
		return slog.New(log.NewWithOptions(w, log.Options{
			Level:           level,
			ReportTimestamp: true,
			ReportCaller:    opts.Debug,
			Prefix:          "callaudit",
		}))
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: opts.Debug,
	}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
