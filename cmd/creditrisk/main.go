package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"credit-risk/internal/cfg"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	settings  cfg.Settings
	logLevel  string
	logFormat string
	baseDir   string

	rootCmd = &cobra.Command{
		Use:   "creditrisk",
		Short: "Credit-risk classification pipeline",
		Long: `creditrisk cleans an applicant dataset, trains and compares classifiers
for the P1-P4 risk classes, and predicts the class of single records.

Every stage reads and writes files under the base directory
(data/, models/, outputs/, utils/).`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().StringVar(&baseDir, "home", "", "base directory (default: $CREDITRISK_HOME or .)")

	rootCmd.AddCommand(cleanCmd())
	rootCmd.AddCommand(trainCmd())
	rootCmd.AddCommand(evaluateCmd())
	rootCmd.AddCommand(importanceCmd())
	rootCmd.AddCommand(predictCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(sampleCmd())
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := cfg.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	settings = loaded

	if baseDir != "" {
		settings.BaseDir = baseDir
	}
	if logLevel != "" {
		settings.LogLevel = logLevel
	}

	return setupLogging(settings.LogLevel, logFormat)
}

// setupLogging points the global logger at stderr. Standard output is
// reserved for command results.
func setupLogging(level, format string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)

	switch format {
	case "json":
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	case "console", "":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	return nil
}
