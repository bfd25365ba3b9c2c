package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	qerrors "github.com/quarrylabs/quarry/internal/errors"
	"github.com/quarrylabs/quarry/internal/store"
	"github.com/quarrylabs/quarry/internal/symbol"
	"github.com/quarrylabs/quarry/internal/telemetry"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine is the fusion engine. It holds a read-only handle to the storage
// facade and no other state; every Search call allocates its own scratch
// structures, so concurrent calls from multiple goroutines are safe.
type Engine struct {
	reader    store.Reader
	fanout    int
	direction store.Direction
	metrics   *telemetry.QueryMetrics
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithGraphFanout caps neighbors per node during graph expansion.
func WithGraphFanout(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.fanout = n
		}
	}
}

// WithTraversalDirection selects which relation edges expansion follows.
func WithTraversalDirection(d store.Direction) EngineOption {
	return func(e *Engine) {
		e.direction = d
	}
}

// WithMetrics sets an optional query metrics collector.
func WithMetrics(m *telemetry.QueryMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates a fusion engine over the given storage reader.
func NewEngine(reader store.Reader, opts ...EngineOption) (*Engine, error) {
	if reader == nil {
		return nil, fmt.Errorf("%w: storage reader is required", ErrNilDependency)
	}
	e := &Engine{
		reader:    reader,
		fanout:    DefaultGraphFanout,
		direction: store.DirectionBoth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search runs all eligible signals, fuses their rankings with RRF, expands
// the direct hits through the relation graph when enabled, and hydrates the
// final results. A backend failure degrades the affected signal; the call
// errors on a malformed query, with StorageUnavailable when no signal
// produced a candidate and at least one reported an error or when
// hydration fails, and with Internal when hydration returns inconsistent
// records.
func (e *Engine) Search(ctx context.Context, query *SearchQuery) ([]*SearchResult, error) {
	start := time.Now()

	if query == nil {
		return nil, qerrors.InvalidQuery("query is required")
	}
	if strings.TrimSpace(query.Text) == "" &&
		len(query.ExactQueries) == 0 && len(query.QueryVector) == 0 {
		return nil, qerrors.New(qerrors.ErrCodeQueryEmpty, "query has no text, identifiers, or vector", nil)
	}

	q := query.normalized()

	fusion := NewFusion()
	var failedSignals []Signal
	var lastErr error

	for _, c := range e.collectors() {
		if !c.eligible(&q) {
			continue
		}
		refs, err := c.run(ctx, &q)
		if err != nil {
			slog.Warn("signal_failed",
				slog.String("signal", string(c.signal)),
				slog.String("error", err.Error()))
			failedSignals = append(failedSignals, c.signal)
			lastErr = err
			continue
		}
		fusion.AddRanking(c.signal, refs)
	}

	// Expand the fused direct pool before trimming to the limit. Each newly
	// discovered symbol scores 1/(hop+k) under the graph tag; seeds keep
	// their scores untouched.
	neighborsBySeed := make(map[symbol.ID][]store.Hop)
	if q.EnableGraphExpansion && q.GraphDepth > 0 {
		seeds := fusion.DirectIDs()
		for _, seed := range seeds {
			hops, err := e.reader.TraverseKHop(ctx, seed, q.GraphDepth, e.fanout, e.direction)
			if err != nil {
				slog.Warn("signal_failed",
					slog.String("signal", string(SignalGraph)),
					slog.String("error", err.Error()))
				failedSignals = append(failedSignals, SignalGraph)
				lastErr = err
				break
			}
			neighborsBySeed[seed] = hops
			for _, hop := range hops {
				fusion.AddGraphHit(hop.ID, hop.Distance)
			}
		}
	}

	if fusion.Len() == 0 {
		if len(failedSignals) > 0 {
			return nil, qerrors.StorageUnavailable(
				fmt.Sprintf("no signal produced candidates and %d signal(s) failed", len(failedSignals)),
				lastErr)
		}
		e.record(q.Text, 0, time.Since(start))
		return []*SearchResult{}, nil
	}

	results, err := e.finalize(ctx, &q, fusion, neighborsBySeed)
	if err != nil {
		return nil, err
	}

	e.record(q.Text, len(results), time.Since(start))
	return results, nil
}

// finalize filters, sorts, truncates, and hydrates the fused candidates.
func (e *Engine) finalize(
	ctx context.Context,
	q *SearchQuery,
	fusion *Fusion,
	neighborsBySeed map[symbol.ID][]store.Hop,
) ([]*SearchResult, error) {
	ranked := fusion.Ranked()

	ids := make([]symbol.ID, len(ranked))
	for i, c := range ranked {
		ids[i] = c.id
	}

	syms, err := e.reader.Hydrate(ctx, ids)
	if err != nil {
		return nil, qerrors.StorageUnavailable("hydration failed", err)
	}
	if len(syms) > len(ids) {
		return nil, qerrors.Internal(
			fmt.Sprintf("hydration returned %d records for %d ids", len(syms), len(ids)), nil)
	}
	byID := make(map[symbol.ID]*symbol.Symbol, len(syms))
	for _, sym := range syms {
		if _, dup := byID[sym.ID]; dup {
			return nil, qerrors.Internal("hydration returned duplicate symbol "+sym.ID.String(), nil)
		}
		byID[sym.ID] = sym
	}

	filters := store.Filters{Language: q.LanguageFilter, PathPrefix: q.FilePathFilter}

	results := make([]*SearchResult, 0, q.Limit)
	for _, c := range ranked {
		if len(results) == q.Limit {
			break
		}
		sym, ok := byID[c.id]
		if !ok {
			// Dropped from the index since the signal ran.
			continue
		}
		if !store.MatchesFilters(sym, filters) {
			continue
		}
		results = append(results, &SearchResult{
			ID:            sym.ID,
			Name:          sym.Name,
			QualifiedName: displayName(sym),
			Kind:          sym.Kind,
			FilePath:      sym.FilePath,
			StartLine:     sym.StartLine,
			EndLine:       sym.EndLine,
			Score:         c.Score(),
			MatchSignals:  c.Signals(),
		})
	}

	if q.EnableGraphExpansion && q.GraphDepth > 0 {
		if err := e.attachRelated(ctx, results, neighborsBySeed); err != nil {
			return nil, err
		}
	}

	return results, nil
}

// attachRelated hydrates each direct hit's traversal neighbors and attaches
// them in hop order. Graph-only results keep an empty neighbor list.
func (e *Engine) attachRelated(
	ctx context.Context,
	results []*SearchResult,
	neighborsBySeed map[symbol.ID][]store.Hop,
) error {
	var all []symbol.ID
	want := make(map[symbol.ID]struct{})
	for _, r := range results {
		for _, hop := range neighborsBySeed[r.ID] {
			if _, ok := want[hop.ID]; !ok {
				want[hop.ID] = struct{}{}
				all = append(all, hop.ID)
			}
		}
	}
	if len(all) == 0 {
		return nil
	}

	syms, err := e.reader.Hydrate(ctx, all)
	if err != nil {
		return qerrors.StorageUnavailable("neighbor hydration failed", err)
	}
	byID := make(map[symbol.ID]*symbol.Symbol, len(syms))
	for _, sym := range syms {
		byID[sym.ID] = sym
	}

	for _, r := range results {
		hops := neighborsBySeed[r.ID]
		if len(hops) == 0 {
			continue
		}
		related := make([]*symbol.Symbol, 0, len(hops))
		for _, hop := range hops {
			if sym, ok := byID[hop.ID]; ok {
				related = append(related, sym)
			}
		}
		r.Related = related
	}
	return nil
}

// displayName prefers the language-native form, falling back to the
// canonical qualified name.
func displayName(sym *symbol.Symbol) string {
	if sym.DisplayName != "" {
		return sym.DisplayName
	}
	return sym.QualifiedName
}

// record reports query telemetry if a collector is configured.
func (e *Engine) record(query string, resultCount int, latency time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		ResultCount: resultCount,
		Latency:     latency,
		Timestamp:   time.Now(),
	})
}
