// Package cmd implements the creatorlens command line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/creatorlens/creatorlens/internal/app"
	"github.com/creatorlens/creatorlens/internal/config"
	"github.com/creatorlens/creatorlens/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "creatorlens",
	Short: "creatorlens - chat with a creator's content catalog",
	Long: `creatorlens answers questions about a content creator's videos and
posts. It assembles context from the creator's knowledge profile, catalog
and transcripts (keyword plus semantic retrieval) and streams the model's
answer.

Running creatorlens without a subcommand starts an interactive chat.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// setupApp loads configuration, validates it and wires the application.
// The caller must Close the returned App.
func setupApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	return app.Setup(ctx, cfg, logger)
}
