package main

import (
	"log/slog"

	"github.com/callaudit/callaudit/internal/config"
	"github.com/callaudit/callaudit/internal/logging"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var version = "dev"

// rootOptions are shared by every subcommand.
type rootOptions struct {
	debug     bool
	configDir string
	logFormat string
	fs        afero.Fs
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configDir)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:   "callaudit",
		Short: "callaudit - LLM audits for voice-agent call transcripts",
		Long: `callaudit audits voice-agent call transcripts.

It detects every point where a new human joins the call and checks that the
agent disclosed the recorded line, and it breaks calls into IVR, introduction,
transfer and benefits-collection sections.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.configDir, "config", ".", "Directory to search (upwards) for "+config.FileName)
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: text or json (default: text on a terminal)")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		slog.SetDefault(logging.New(logging.Options{
			Debug:  opts.debug,
			Format: logging.Format(opts.logFormat),
			Writer: cmd.ErrOrStderr(),
		}))
	}

	// Add subcommands
	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newAuditCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newGetCommand(opts))
	cmd.AddCommand(newRerunCommand(opts))
	cmd.AddCommand(newDeleteCommand(opts))
	cmd.AddCommand(newSchemaCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
