package cmd

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/output"
	"github.com/quarrylabs/quarry/internal/retrieve"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit      int
	language   string
	pathPrefix string
	format     string // "text", "json"
	noGraph    bool
	depth      int
	files      bool // render the per-file outline instead of the flat list
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed repository",
		Long: `Search indexed source symbols.

Fuses BM25 keyword relevance, embedding similarity, exact identifier
matches, and relation-graph neighborhoods into one deterministic ranking.

Examples:
  quarry search "parse xml attributes"
  quarry search "HTMLParser.feed" --language python --limit 5
  quarry search "retry backoff" --path internal/ --format json
  quarry search "connection pool" --files`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Filter by source language (e.g. go, python)")
	cmd.Flags().StringVarP(&opts.pathPrefix, "path", "p", "", "Filter by relative file path prefix")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.noGraph, "no-graph", false, "Disable relation-graph expansion")
	cmd.Flags().IntVar(&opts.depth, "depth", 0, "Graph expansion depth (0 = configured default)")
	cmd.Flags().BoolVar(&opts.files, "files", false, "Group output by file")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, queryText string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cleanupLog := setupLogging(cfg, false)
	defer cleanupLog()

	pipeline, _, cleanup, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := pipeline.Search(ctx, queryText, retrieve.Options{
		Limit:                 opts.limit,
		Language:              opts.language,
		FilePath:              opts.pathPrefix,
		DisableGraphExpansion: opts.noGraph,
		GraphDepth:            opts.depth,
	})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	out := output.New(cmd.OutOrStdout())
	if opts.files {
		out.Files(resp.Files)
	} else {
		out.Results(resp.Results)
	}
	return nil
}
