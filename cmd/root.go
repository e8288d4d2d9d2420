// Package cmd implements the core CLI using cobra.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/coreagent/core/internal/config"
	"github.com/coreagent/core/internal/logging"
	"github.com/coreagent/core/internal/shared/cmdutils"
)

const version = "0.2.0"

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "core",
	Short: cmdutils.Logo + " core, an autonomous assistant for your desktop",
	Long: cmdutils.Logo + ` core drives a model through tool cycles: files, shell, web,
a headless browser, desktop windows and long-term memory.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// setupLogging routes slog to the configured log file. With console set the
// records are mirrored to stderr as well.
func setupLogging(cfg *config.Config, console bool) (io.Closer, error) {
	lc := cfg.Logging
	return logging.Setup(logging.Options{
		Level:      lc.Level,
		Format:     lc.Format,
		File:       cfg.LogPath(),
		MaxSizeMB:  lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAgeDays: lc.MaxAgeDays,
		Console:    console,
	})
}
