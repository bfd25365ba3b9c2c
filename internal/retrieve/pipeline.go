package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/embed"
	"github.com/quarrylabs/quarry/internal/query"
	"github.com/quarrylabs/quarry/internal/search"
	"github.com/quarrylabs/quarry/internal/store"
	"github.com/quarrylabs/quarry/internal/telemetry"
)

// Options configure one pipeline search.
type Options struct {
	// Limit is the maximum number of symbol results (default from config).
	Limit int

	// Language restricts results to one source language.
	Language string

	// FilePath restricts results to files under this relative prefix.
	FilePath string

	// RerankPoolSize caps how many results reach the reranker (default from
	// config, capped at 100).
	RerankPoolSize int

	// DisableGraphExpansion turns off k-hop expansion of direct hits.
	DisableGraphExpansion bool

	// GraphDepth overrides the configured expansion depth when positive.
	GraphDepth int
}

// Response is the pipeline output: ranked symbol results plus the per-file
// aggregation so callers can render file outlines.
type Response struct {
	Results []*search.SearchResult `json:"results"`
	Files   []*FileGroup           `json:"files"`
}

// Pipeline orchestrates preparation, the fusion engine, and post-processing.
type Pipeline struct {
	preparer *query.Preparer
	engine   *search.Engine
	reranker Reranker
	cfg      config.SearchConfig
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithReranker attaches an optional reranker. Reranker failures fall back
// silently to the pre-rerank order.
func WithReranker(r Reranker) Option {
	return func(p *Pipeline) {
		p.reranker = r
	}
}

// New builds a pipeline over the storage reader. embedder may be nil, in
// which case the vector signal is skipped for every query.
func New(reader store.Reader, embedder embed.Embedder, cfg config.SearchConfig, metrics *telemetry.QueryMetrics, opts ...Option) (*Pipeline, error) {
	engineOpts := []search.EngineOption{search.WithGraphFanout(cfg.GraphFanout)}
	if metrics != nil {
		engineOpts = append(engineOpts, search.WithMetrics(metrics))
	}
	engine, err := search.NewEngine(reader, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	p := &Pipeline{
		preparer: query.NewPreparer(embedder),
		engine:   engine,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Search is the public entry point. It prepares the query, runs the fusion
// engine, aggregates per file, trims the weak tail, and applies the
// reranker when one is configured.
func (p *Pipeline) Search(ctx context.Context, text string, opts Options) (*Response, error) {
	q, err := p.preparer.Prepare(ctx, text)
	if err != nil {
		return nil, err
	}

	if opts.Limit > 0 {
		q.Limit = opts.Limit
	} else {
		q.Limit = p.cfg.DefaultLimit
	}
	q.LanguageFilter = opts.Language
	q.FilePathFilter = opts.FilePath
	q.EnableGraphExpansion = !opts.DisableGraphExpansion
	if opts.GraphDepth > 0 {
		q.GraphDepth = opts.GraphDepth
	} else {
		q.GraphDepth = p.cfg.GraphDepth
	}
	q.BM25PoolSize = p.cfg.BM25PoolSize
	q.ExactPoolSize = p.cfg.ExactMatchPoolSize
	q.VectorPoolSize = p.cfg.VectorPoolSize

	results, err := p.engine.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	groups := Aggregate(results)
	groups = TruncateGroups(groups, p.cfg.ScoreGapRatio, p.cfg.ScoreGapMinKeep)

	kept := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		kept[g.FilePath] = struct{}{}
	}
	trimmed := results[:0:0]
	for _, r := range results {
		if _, ok := kept[r.FilePath]; ok {
			trimmed = append(trimmed, r)
		}
	}

	rerankPool := opts.RerankPoolSize
	if rerankPool <= 0 {
		rerankPool = p.cfg.RerankPoolSize
	}
	if rerankPool > config.MaxRerankPool {
		rerankPool = config.MaxRerankPool
	}
	final := p.rerank(ctx, text, trimmed, rerankPool)

	// Rebuild the file view when the reranker changed the ordering.
	if p.reranker != nil {
		groups = Aggregate(final)
	}

	return &Response{Results: final, Files: groups}, nil
}

// rerank hands the top pool to the configured reranker and applies its
// ordering. Any failure keeps the pre-rerank order (fail-open).
func (p *Pipeline) rerank(ctx context.Context, queryText string, results []*search.SearchResult, pool int) []*search.SearchResult {
	if p.reranker == nil || len(results) < 2 {
		return results
	}

	start := time.Now()
	if !p.reranker.Available(ctx) {
		slog.Debug("reranker unavailable, skipping")
		return results
	}

	head := results
	if len(head) > pool {
		head = head[:pool]
	}

	documents := make([]string, len(head))
	for i, r := range head {
		documents[i] = rerankDocument(r)
	}

	reranked, err := p.reranker.Rerank(ctx, queryText, documents, 0)
	if err != nil {
		slog.Warn("reranking failed, using original order",
			slog.String("error", err.Error()))
		return results
	}

	reordered := make([]*search.SearchResult, 0, len(results))
	seen := make(map[int]struct{}, len(reranked))
	for _, rr := range reranked {
		if rr.Index < 0 || rr.Index >= len(head) {
			slog.Warn("invalid reranker index, skipping",
				slog.Int("index", rr.Index))
			continue
		}
		if _, dup := seen[rr.Index]; dup {
			continue
		}
		seen[rr.Index] = struct{}{}
		r := head[rr.Index]
		r.Score = rr.Score
		reordered = append(reordered, r)
	}
	// Anything the reranker dropped keeps its relative order at the tail.
	for i, r := range head {
		if _, ok := seen[i]; !ok {
			reordered = append(reordered, r)
		}
	}
	reordered = append(reordered, results[len(head):]...)

	slog.Debug("rerank_complete",
		slog.Int("pool", len(head)),
		slog.Duration("took", time.Since(start)))

	return reordered
}

// rerankDocument builds the text a cross-encoder scores for one result.
func rerankDocument(r *search.SearchResult) string {
	var b strings.Builder
	b.WriteString(r.QualifiedName)
	b.WriteString(" ")
	b.WriteString(string(r.Kind))
	b.WriteString(" ")
	b.WriteString(r.FilePath)
	return b.String()
}
