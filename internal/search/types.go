// Package search implements the multi-signal fusion engine. For one query it
// consults BM25 full text, vector kNN, and exact-name lookups, merges the
// rankings with Reciprocal Rank Fusion, optionally expands the direct hits
// through the relation graph, and hydrates the final top-N. The engine is
// synchronous, stateless per call, and bit-deterministic for a fixed index.
package search

import (
	"github.com/quarrylabs/quarry/internal/symbol"
)

// Signal identifies one of the independent ranking sources.
type Signal string

const (
	SignalBM25   Signal = "bm25"
	SignalVector Signal = "vector"
	SignalExact  Signal = "exact"
	SignalGraph  Signal = "graph"
)

// CanonicalSignalOrder fixes the floating-point summation order during
// fusion and the order of match-signal tags on results. Appending a new
// signal here is part of adding a collector.
var CanonicalSignalOrder = []Signal{SignalBM25, SignalVector, SignalExact, SignalGraph}

// Limits and defaults for query normalization.
const (
	DefaultLimit       = 10
	MaxLimit           = 100
	DefaultGraphDepth  = 2
	MaxGraphDepth      = 5
	DefaultGraphFanout = 50
	DefaultBM25Pool    = 100
	DefaultExactPool   = 50
	DefaultVectorPool  = 50
)

// SearchQuery is the engine-facing request. Use NewSearchQuery to get the
// documented defaults; the engine clamps whatever it receives.
type SearchQuery struct {
	// Text is the raw query text. Required; may be natural language.
	Text string

	// BM25Text overrides Text for the BM25 signal when non-empty.
	BM25Text string

	// ExactQueries are explicit identifier strings for the exact-match
	// signal. When empty the exact signal is skipped; the raw Text is never
	// used for equality lookups.
	ExactQueries []string

	// QueryVector is a dense embedding of the query. When nil the vector
	// signal is skipped.
	QueryVector []float32

	// Limit is the requested number of final results, capped at MaxLimit.
	Limit int

	// LanguageFilter restricts results to one source language.
	LanguageFilter string

	// FilePathFilter restricts results to files under this relative prefix.
	FilePathFilter string

	// EnableGraphExpansion turns k-hop expansion of direct hits on.
	EnableGraphExpansion bool

	// GraphDepth is the k-hop depth, clamped to [0, MaxGraphDepth].
	GraphDepth int

	// Per-signal candidate pool sizes.
	BM25PoolSize   int
	ExactPoolSize  int
	VectorPoolSize int
}

// NewSearchQuery returns a query for text with the documented defaults:
// limit 10, graph expansion on at depth 2, pools 100/50/50.
func NewSearchQuery(text string) *SearchQuery {
	return &SearchQuery{
		Text:                 text,
		Limit:                DefaultLimit,
		EnableGraphExpansion: true,
		GraphDepth:           DefaultGraphDepth,
		BM25PoolSize:         DefaultBM25Pool,
		ExactPoolSize:        DefaultExactPool,
		VectorPoolSize:       DefaultVectorPool,
	}
}

// EffectiveBM25Text returns BM25Text when set, else Text.
func (q *SearchQuery) EffectiveBM25Text() string {
	if q.BM25Text != "" {
		return q.BM25Text
	}
	return q.Text
}

// normalized returns a copy of q with every tunable clamped into range.
func (q *SearchQuery) normalized() SearchQuery {
	n := *q
	if n.Limit <= 0 {
		n.Limit = DefaultLimit
	}
	if n.Limit > MaxLimit {
		n.Limit = MaxLimit
	}
	if n.GraphDepth < 0 {
		n.GraphDepth = 0
	}
	if n.GraphDepth > MaxGraphDepth {
		n.GraphDepth = MaxGraphDepth
	}
	if n.BM25PoolSize <= 0 {
		n.BM25PoolSize = DefaultBM25Pool
	}
	if n.ExactPoolSize <= 0 {
		n.ExactPoolSize = DefaultExactPool
	}
	if n.VectorPoolSize <= 0 {
		n.VectorPoolSize = DefaultVectorPool
	}
	return n
}

// SearchResult is one ranked hit.
type SearchResult struct {
	// ID is the symbol identity.
	ID symbol.ID `json:"id"`

	// Name is the short symbol name.
	Name string `json:"name"`

	// QualifiedName is the language-native display form.
	QualifiedName string `json:"qualified_name"`

	// Kind is the symbol kind.
	Kind symbol.Kind `json:"kind"`

	// FilePath is relative to the repository root.
	FilePath string `json:"file_path"`

	// StartLine/EndLine are the zero-indexed half-open line range.
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`

	// Score is the fused RRF score.
	Score float64 `json:"score"`

	// MatchSignals lists exactly the signals that contributed rank, in
	// canonical order. Never empty on a returned result.
	MatchSignals []Signal `json:"match_signals"`

	// Related holds graph neighbors of this hit. Populated only when graph
	// expansion is enabled and the result entered through a non-graph
	// signal.
	Related []*symbol.Symbol `json:"related_symbols,omitempty"`
}
