package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"okinoko_moloch/internal/config"
)

const (
	programName = "okinoko"
)

var (
	globalFlags = struct {
		debug bool
		as    string
		dao   string
	}{}
	configFile string
)

func commonRun(cfg *config.Config) *slog.Logger {
	logLevel, err := cfg.Level()
	if err != nil {
		// validated on load
		logLevel = slog.LevelInfo
	}
	logger := slog.New(
		slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			AddSource: cfg.Debug,
			Level:     logLevel,
		}),
	)
	slog.SetDefault(logger)
	return logger
}

func rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Share based DAO governance with futarchy side pools",
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to config file")
	rootCmd.PersistentFlags().
		StringVar(&globalFlags.as, "as", "", "account the call is made from, e.g. hive:alice")
	rootCmd.PersistentFlags().
		StringVar(&globalFlags.dao, "dao", "", "DAO instance address (defaults to the first summoned)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if globalFlags.debug {
			cfg.Debug = true
		}
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	}

	// Subcommands
	rootCmd.AddCommand(summonCommand())
	rootCmd.AddCommand(depositCommand())
	rootCmd.AddCommand(idCommand())
	rootCmd.AddCommand(openCommand())
	rootCmd.AddCommand(voteCommand())
	rootCmd.AddCommand(cancelVoteCommand())
	rootCmd.AddCommand(executeCommand())
	rootCmd.AddCommand(stateCommand())
	rootCmd.AddCommand(delegateCommand())
	rootCmd.AddCommand(splitCommand())
	rootCmd.AddCommand(seatsCommand())
	rootCmd.AddCommand(votesCommand())
	rootCmd.AddCommand(fundCommand())
	rootCmd.AddCommand(resolveCommand())
	rootCmd.AddCommand(cashOutCommand())
	rootCmd.AddCommand(ragequitCommand())
	rootCmd.AddCommand(serveCommand())
	return rootCmd
}

func main() {
	// Execute cobra command
	if err := rootCommand().Execute(); err != nil {
		// cobra has already printed the error
		os.Exit(1)
	}
}
