// Package main provides the citenet CLI entry point.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/matsen/citenet/internal/config"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	configFile  string

	cfg    *config.Config
	logger = slog.New(slog.DiscardHandler)
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(reportError(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "citenet",
	Short: "Build related-paper networks around a seed DOI",
	Long: `citenet ranks the papers most related to a seed work by direct
citation, co-citation, and bibliographic coupling, and emits the resulting
network as JSON, Cytoscape elements, HTML, or BibTeX.

Citations come from a local SQLite store (see 'citenet load') or a remote
citation API. All commands output JSON by default.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default $CITENET_CONFIG or ~/.config/citenet/config.yml)")
	rootCmd.Version = Version
}

// setup loads .env, the config file, and the logger before any command runs.
func setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	path := configFile
	if path == "" {
		path = config.Path()
	}
	loaded, err := config.LoadFile(path)
	if err != nil {
		return withCode(ExitConfigError, err)
	}
	cfg = loaded

	l, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return withCode(ExitConfigError, fmt.Errorf("log: %w", err))
	}
	logger = l
	return nil
}
