package cmd

import (
	"github.com/spf13/cobra"

	qmcp "github.com/quarrylabs/quarry/internal/mcp"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Run the Model Context Protocol server, exposing the search_code and
related_symbols tools to AI clients over stdio.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// stdout carries the protocol; keep logs in the file only.
	cleanupLog := setupLogging(cfg, false)
	defer cleanupLog()

	pipeline, facade, cleanup, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	server, err := qmcp.NewServer(pipeline, facade)
	if err != nil {
		return err
	}

	return server.Serve(cmd.Context())
}
