// Package cmd implements the quarry CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/embed"
	"github.com/quarrylabs/quarry/internal/logging"
	"github.com/quarrylabs/quarry/internal/retrieve"
	"github.com/quarrylabs/quarry/internal/store"
	"github.com/quarrylabs/quarry/internal/telemetry"
)

// rootOptions holds persistent CLI flags.
type rootOptions struct {
	indexDir string
	logLevel string
}

var rootOpts rootOptions

// newRootCmd builds the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quarry",
		Short: "Multi-signal code retrieval",
		Long: `Quarry searches an indexed repository of source symbols by fusing
BM25 full text, vector similarity, exact-name matching, and relation-graph
expansion into one deterministic ranking.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&rootOpts.indexDir, "index-dir", "", "Index directory (overrides config)")
	cmd.PersistentFlags().StringVar(&rootOpts.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newNeighborsCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the CLI.
func Execute() error {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

// loadConfig builds the effective configuration with flag overrides applied.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, err
	}
	if rootOpts.indexDir != "" {
		cfg.Paths.IndexDir = rootOpts.indexDir
	}
	if rootOpts.logLevel != "" {
		cfg.Logging.Level = rootOpts.logLevel
	}
	return cfg, nil
}

// setupLogging configures file logging for a command run.
func setupLogging(cfg *config.Config, mirrorStderr bool) func() {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	if cfg.Logging.FilePath != "" {
		logCfg.FilePath = cfg.Logging.FilePath
	}
	logCfg.WriteToStderr = mirrorStderr
	if _, cleanup, err := logging.Setup(logCfg); err == nil {
		return cleanup
	}
	return func() {}
}

// openPipeline opens the storage facade and builds the retrieval pipeline.
// The returned cleanup closes the facade.
func openPipeline(cfg *config.Config) (*retrieve.Pipeline, *store.Facade, func(), error) {
	facade, err := store.OpenFacade(cfg.Paths.IndexDir, cfg.Embeddings.Dimensions)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open index: %w", err)
	}

	embedder, err := embed.New(cfg.Embeddings)
	if err != nil {
		_ = facade.Close()
		return nil, nil, nil, err
	}

	metrics := telemetry.NewQueryMetrics()
	pipeline, err := retrieve.New(facade, embedder, cfg.Search, metrics)
	if err != nil {
		_ = facade.Close()
		return nil, nil, nil, err
	}

	cleanup := func() {
		if embedder != nil {
			_ = embedder.Close()
		}
		_ = facade.Close()
	}
	return pipeline, facade, cleanup, nil
}
