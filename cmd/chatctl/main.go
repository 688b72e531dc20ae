package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rickgao/chat-realtime/internal/config"
	"github.com/rickgao/chat-realtime/internal/logging"
	"github.com/rickgao/chat-realtime/internal/version"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// load reads the config file (or defaults when none is given) and builds the
// logger. Logs go to stderr so stdout carries only chat output.
func (o *globalOptions) load() (*config.Config, *slog.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath == "" {
		cfg = config.Default()
		err = cfg.Validate()
	} else {
		cfg, err = config.LoadAndValidate(o.configPath)
	}
	if err != nil {
		return nil, nil, err
	}

	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}
	logger, err := logging.Init(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "chatctl",
		Short: "Realtime chat client and relay tooling",
		Long: `chatctl talks to a chat relay.

It can hold a live realtime session (with automatic reconnect), mint
development tokens, and read conversation history.`,
		Version:      version.String(),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to YAML configuration file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Override logging.format (console, json)")

	rootCmd.AddCommand(
		buildConnectCmd(opts),
		buildTokenCmd(opts),
		buildHistoryCmd(opts),
		buildVersionCmd(),
	)

	return rootCmd
}
