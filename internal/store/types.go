// Package store provides the storage read facade the retrieval core consults:
// BM25 full text (Bleve), vector kNN (HNSW), and the symbol/relation graph
// (SQLite). Each capability is independently failable; a backend that cannot
// serve reports ErrUnavailable and the engine degrades rather than aborts.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/quarrylabs/quarry/internal/symbol"
)

// ErrUnavailable indicates a backend cannot currently serve reads, for
// example while an index rewrite holds the exclusive lock.
var ErrUnavailable = errors.New("storage backend unavailable")

// ErrClosed indicates the store has been closed.
var ErrClosed = errors.New("store is closed")

// DimensionMismatchError indicates a query vector's dimension does not match
// the configured index dimension.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: index has %d dimensions, query has %d", e.Expected, e.Got)
}

// Filters restricts reads to a source language and/or a file path prefix.
// Zero values mean unfiltered.
type Filters struct {
	Language   string
	PathPrefix string
}

// Empty reports whether no filter is set.
func (f Filters) Empty() bool {
	return f.Language == "" && f.PathPrefix == ""
}

// Ref is a ranked reference to a symbol. Rank is 1-indexed; rank 1 is best.
type Ref struct {
	ID   symbol.ID
	Rank int
}

// Hop is a symbol reached by graph traversal together with its BFS distance
// from the start symbol.
type Hop struct {
	ID       symbol.ID
	Distance int
}

// Direction selects which edges a traversal follows.
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

// TextIndex is the full-text read capability. The query text is treated as a
// bag of tokens, never as a query DSL; punctuation and operators from
// natural-language text must not cause a parse error.
type TextIndex interface {
	// SearchBM25 returns up to poolSize symbol refs ranked by BM25 relevance.
	SearchBM25(ctx context.Context, text string, poolSize int, f Filters) ([]Ref, error)
}

// VectorIndex is the approximate-nearest-neighbor read capability.
type VectorIndex interface {
	// SearchKNN returns up to k symbol refs ranked by cosine distance.
	// Returns DimensionMismatchError when the query dimension is wrong.
	SearchKNN(ctx context.Context, query []float32, k int, f Filters) ([]Ref, error)

	// Dimensions returns the configured index dimension.
	Dimensions() int
}

// GraphStore is the symbol/relation read capability.
type GraphStore interface {
	// FindByName returns symbols whose short name matches exactly.
	FindByName(ctx context.Context, name string) ([]symbol.ID, error)

	// FindByQualifiedName returns symbols whose qualified name matches
	// exactly, in either canonical-dot or language-native display form.
	FindByQualifiedName(ctx context.Context, qn string) ([]symbol.ID, error)

	// TraverseKHop performs a bounded BFS from start. Each visited node is
	// reported once with its minimal hop distance; cycles are detected with
	// a visited set and each node contributes at most fanout neighbors.
	// Neighbors within a level are visited in symbol.ID byte order, so the
	// result is deterministic for a fixed graph.
	TraverseKHop(ctx context.Context, start symbol.ID, depth, fanout int, dir Direction) ([]Hop, error)

	// Hydrate resolves ids into full symbol records, in the order of the
	// input ids, skipping ids no longer present.
	Hydrate(ctx context.Context, ids []symbol.ID) ([]*symbol.Symbol, error)
}

// Reader bundles the three read capabilities the retrieval core consumes.
type Reader interface {
	TextIndex
	VectorIndex
	GraphStore
}

// Document is a unit handed to the full-text index by the indexing
// subsystem: the searchable text of one symbol plus its filter metadata.
type Document struct {
	ID       symbol.ID
	Content  string
	Language string
	FilePath string
}
