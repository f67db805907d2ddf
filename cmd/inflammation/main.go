package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/inflammation/inflammation/internal/config"
)

// app carries what every subcommand needs once the root command has run.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "inflammation",
		Short:         "Patient inflammation data management",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = newLogger(cfg, cmd.ErrOrStderr())
			return nil
		},
	}

	root.AddCommand(a.visualiseCmd())
	root.AddCommand(a.recordCmd())
	root.AddCommand(a.toJSONCmd())
	root.AddCommand(a.exportCmd())
	root.AddCommand(a.normaliseCmd())
	root.AddCommand(a.serveCmd())
	root.AddCommand(a.importCmd())
	root.AddCommand(a.migrateCmd())
	return root
}

// newLogger writes JSON lines, or coloured console output in development.
func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: out}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
