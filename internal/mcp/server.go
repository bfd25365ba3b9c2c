// Package mcp implements the Model Context Protocol server for Quarry.
// It bridges AI clients with the retrieval pipeline over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quarrylabs/quarry/internal/retrieve"
	"github.com/quarrylabs/quarry/internal/search"
	"github.com/quarrylabs/quarry/internal/store"
	"github.com/quarrylabs/quarry/internal/symbol"
	"github.com/quarrylabs/quarry/pkg/version"
)

// Server is the MCP server for Quarry.
type Server struct {
	mcp      *mcp.Server
	pipeline *retrieve.Pipeline
	reader   store.Reader
	logger   *slog.Logger
}

// NewServer creates a new MCP server over the retrieval pipeline and the
// storage reader (used by the related_symbols tool).
func NewServer(pipeline *retrieve.Pipeline, reader store.Reader) (*Server, error) {
	if pipeline == nil {
		return nil, errors.New("retrieval pipeline is required")
	}
	if reader == nil {
		return nil, errors.New("storage reader is required")
	}

	s := &Server{
		pipeline: pipeline,
		reader:   reader,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "Quarry",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()

	return s, nil
}

// registerTools registers the search_code and related_symbols tools.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_code",
		Description: "Search indexed source symbols with fused BM25, embedding, exact-name, and relation-graph signals. Returns ranked symbols with file locations and the signals that matched, plus a per-file outline.",
	}, s.searchCodeHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "related_symbols",
		Description: "Walk the relation graph (calls, imports, implements, ...) outward from a symbol and return its neighbors with hop distances. Useful to map the code around a known symbol.",
	}, s.relatedSymbolsHandler)

	s.logger.Debug("mcp tools registered", slog.Int("count", 2))
}

// searchCodeHandler is the MCP SDK handler for the search_code tool.
func (s *Server) searchCodeHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchCodeInput) (
	*mcp.CallToolResult,
	SearchCodeOutput,
	error,
) {
	if input.Query == "" {
		return nil, SearchCodeOutput{}, fmt.Errorf("query parameter is required")
	}

	resp, err := s.pipeline.Search(ctx, input.Query, retrieve.Options{
		Limit:                 input.Limit,
		Language:              input.Language,
		FilePath:              input.PathPrefix,
		DisableGraphExpansion: input.NoGraph,
	})
	if err != nil {
		return nil, SearchCodeOutput{}, err
	}

	out := SearchCodeOutput{
		Results: make([]SearchResultOutput, 0, len(resp.Results)),
		Files:   make([]FileGroupOutput, 0, len(resp.Files)),
	}
	for _, r := range resp.Results {
		out.Results = append(out.Results, toResultOutput(r))
	}
	for _, g := range resp.Files {
		out.Files = append(out.Files, toFileOutput(g))
	}

	return nil, out, nil
}

// relatedSymbolsHandler is the MCP SDK handler for the related_symbols tool.
func (s *Server) relatedSymbolsHandler(ctx context.Context, _ *mcp.CallToolRequest, input RelatedSymbolsInput) (
	*mcp.CallToolResult,
	RelatedSymbolsOutput,
	error,
) {
	id, err := symbol.ParseID(input.SymbolID)
	if err != nil {
		return nil, RelatedSymbolsOutput{}, fmt.Errorf("invalid symbol_id: %w", err)
	}

	depth := input.Depth
	if depth <= 0 {
		depth = 1
	}
	if depth > search.MaxGraphDepth {
		depth = search.MaxGraphDepth
	}

	hops, err := s.reader.TraverseKHop(ctx, id, depth, search.DefaultGraphFanout, store.DirectionBoth)
	if err != nil {
		return nil, RelatedSymbolsOutput{}, err
	}

	ids := make([]symbol.ID, len(hops))
	distance := make(map[symbol.ID]int, len(hops))
	for i, h := range hops {
		ids[i] = h.ID
		distance[h.ID] = h.Distance
	}
	syms, err := s.reader.Hydrate(ctx, ids)
	if err != nil {
		return nil, RelatedSymbolsOutput{}, err
	}

	out := RelatedSymbolsOutput{Neighbors: make([]NeighborOutput, 0, len(syms))}
	for _, sym := range syms {
		out.Neighbors = append(out.Neighbors, NeighborOutput{
			ID:            sym.ID.String(),
			QualifiedName: sym.QualifiedName,
			Kind:          string(sym.Kind),
			FilePath:      sym.FilePath,
			HopDistance:   distance[sym.ID],
		})
	}

	return nil, out, nil
}

// Serve runs the server over stdio until the context is canceled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting mcp server", slog.String("transport", "stdio"))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("mcp server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp server stopped")
	return nil
}

// toResultOutput converts an engine result for the wire.
func toResultOutput(r *search.SearchResult) SearchResultOutput {
	signals := make([]string, len(r.MatchSignals))
	for i, sig := range r.MatchSignals {
		signals[i] = string(sig)
	}
	var related []string
	for _, rel := range r.Related {
		related = append(related, rel.QualifiedName)
	}
	return SearchResultOutput{
		ID:            r.ID.String(),
		Name:          r.Name,
		QualifiedName: r.QualifiedName,
		Kind:          string(r.Kind),
		FilePath:      r.FilePath,
		StartLine:     r.StartLine,
		EndLine:       r.EndLine,
		Score:         r.Score,
		MatchSignals:  signals,
		Related:       related,
	}
}

// toFileOutput converts a file group for the wire.
func toFileOutput(g *retrieve.FileGroup) FileGroupOutput {
	symbols := make([]string, len(g.Symbols))
	for i, sym := range g.Symbols {
		symbols[i] = sym.QualifiedName
	}
	return FileGroupOutput{
		FilePath: g.FilePath,
		Best:     g.Best.QualifiedName,
		Score:    g.Score(),
		Symbols:  symbols,
	}
}
