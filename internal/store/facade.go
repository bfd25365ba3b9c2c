package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/quarrylabs/quarry/internal/symbol"
)

// Index file names inside the index directory.
const (
	TextIndexFile   = "bm25.bleve"
	VectorIndexFile = "vectors.hnsw"
	GraphFile       = "graph.db"
	LockFile        = "index.lock"
)

// Facade bundles the three read backends behind the Reader contract.
// Each backend is independently failable: a backend that could not be opened
// (or whose index is mid-rewrite) is held as nil and its reads report
// ErrUnavailable instead of failing the whole facade.
type Facade struct {
	text    *BleveTextIndex
	vectors *HNSWIndex
	graph   *SQLiteGraph
	cache   *SymbolCache
	lock    *flock.Flock
}

// Verify interface implementation at compile time
var _ Reader = (*Facade)(nil)

// OpenFacade opens the index directory for reading. The three backends are
// opened concurrently. Indexers hold the exclusive lock while rewriting; if
// the shared lock cannot be taken, the facade opens with every backend
// unavailable rather than erroring, per the degradation contract.
func OpenFacade(dir string, vectorDims int) (*Facade, error) {
	f := &Facade{}

	cache, err := NewSymbolCache(DefaultSymbolCacheSize)
	if err != nil {
		return nil, err
	}
	f.cache = cache

	f.lock = flock.New(filepath.Join(dir, LockFile))
	locked, err := f.lock.TryRLock()
	if err != nil || !locked {
		slog.Warn("index_locked_for_rewrite",
			slog.String("dir", dir))
		return f, nil
	}

	var g errgroup.Group

	g.Go(func() error {
		text, err := NewBleveTextIndex(filepath.Join(dir, TextIndexFile))
		if err != nil {
			slog.Warn("text_index_unavailable", slog.String("error", err.Error()))
			return nil
		}
		f.text = text
		return nil
	})

	g.Go(func() error {
		vectors, err := NewHNSWIndex(DefaultVectorConfig(vectorDims))
		if err != nil {
			slog.Warn("vector_index_unavailable", slog.String("error", err.Error()))
			return nil
		}
		if err := vectors.Load(filepath.Join(dir, VectorIndexFile)); err != nil {
			slog.Warn("vector_index_unavailable", slog.String("error", err.Error()))
			return nil
		}
		f.vectors = vectors
		return nil
	})

	g.Go(func() error {
		graph, err := NewSQLiteGraph(filepath.Join(dir, GraphFile))
		if err != nil {
			slog.Warn("graph_store_unavailable", slog.String("error", err.Error()))
			return nil
		}
		f.graph = graph
		return nil
	})

	if err := g.Wait(); err != nil {
		_ = f.Close()
		return nil, err
	}

	return f, nil
}

// NewFacadeFromBackends builds a facade over pre-built backends. Any backend
// may be nil, in which case its capability reports ErrUnavailable. Used by
// tests and by the fixture loader.
func NewFacadeFromBackends(text *BleveTextIndex, vectors *HNSWIndex, graph *SQLiteGraph) *Facade {
	cache, err := NewSymbolCache(DefaultSymbolCacheSize)
	if err != nil {
		// Cache construction only fails on non-positive size.
		panic(fmt.Sprintf("store: symbol cache: %v", err))
	}
	return &Facade{text: text, vectors: vectors, graph: graph, cache: cache}
}

// Text returns the underlying text backend (nil when unavailable).
func (f *Facade) Text() *BleveTextIndex { return f.text }

// Vectors returns the underlying vector backend (nil when unavailable).
func (f *Facade) Vectors() *HNSWIndex { return f.vectors }

// Graph returns the underlying graph backend (nil when unavailable).
func (f *Facade) Graph() *SQLiteGraph { return f.graph }

// SearchBM25 implements TextIndex.
func (f *Facade) SearchBM25(ctx context.Context, text string, poolSize int, flt Filters) ([]Ref, error) {
	if f.text == nil {
		return nil, ErrUnavailable
	}
	return f.text.SearchBM25(ctx, text, poolSize, flt)
}

// knnOverfetchFactor widens filtered kNN reads so that post-filtering still
// fills the pool.
const knnOverfetchFactor = 4

// SearchKNN implements VectorIndex. The HNSW backend knows nothing about
// symbol metadata, so filters are applied by over-fetching and consulting
// the graph store, then re-ranking the survivors.
func (f *Facade) SearchKNN(ctx context.Context, query []float32, k int, flt Filters) ([]Ref, error) {
	if f.vectors == nil {
		return nil, ErrUnavailable
	}

	if flt.Empty() {
		return f.vectors.Search(ctx, query, k)
	}

	refs, err := f.vectors.Search(ctx, query, k*knnOverfetchFactor)
	if err != nil {
		return nil, err
	}

	ids := make([]symbol.ID, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	syms, err := f.Hydrate(ctx, ids)
	if err != nil {
		return nil, err
	}

	keep := make(map[symbol.ID]bool, len(syms))
	for _, sym := range syms {
		keep[sym.ID] = matchesFilters(sym, flt)
	}

	out := make([]Ref, 0, k)
	for _, r := range refs {
		if !keep[r.ID] {
			continue
		}
		out = append(out, Ref{ID: r.ID, Rank: len(out) + 1})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// Dimensions implements VectorIndex.
func (f *Facade) Dimensions() int {
	if f.vectors == nil {
		return 0
	}
	return f.vectors.Dimensions()
}

// FindByName implements GraphStore.
func (f *Facade) FindByName(ctx context.Context, name string) ([]symbol.ID, error) {
	if f.graph == nil {
		return nil, ErrUnavailable
	}
	return f.graph.FindByName(ctx, name)
}

// FindByQualifiedName implements GraphStore.
func (f *Facade) FindByQualifiedName(ctx context.Context, qn string) ([]symbol.ID, error) {
	if f.graph == nil {
		return nil, ErrUnavailable
	}
	return f.graph.FindByQualifiedName(ctx, qn)
}

// TraverseKHop implements GraphStore.
func (f *Facade) TraverseKHop(ctx context.Context, start symbol.ID, depth, fanout int, dir Direction) ([]Hop, error) {
	if f.graph == nil {
		return nil, ErrUnavailable
	}
	return f.graph.TraverseKHop(ctx, start, depth, fanout, dir)
}

// Hydrate implements GraphStore with an LRU in front of the database.
func (f *Facade) Hydrate(ctx context.Context, ids []symbol.ID) ([]*symbol.Symbol, error) {
	if f.graph == nil {
		return nil, ErrUnavailable
	}

	hydrated := make(map[symbol.ID]*symbol.Symbol, len(ids))
	var missing []symbol.ID
	for _, id := range ids {
		if sym, ok := f.cache.Get(id); ok {
			hydrated[id] = sym
		} else {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		syms, err := f.graph.Hydrate(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, sym := range syms {
			f.cache.Put(sym)
			hydrated[sym.ID] = sym
		}
	}

	out := make([]*symbol.Symbol, 0, len(hydrated))
	for _, id := range ids {
		if sym, ok := hydrated[id]; ok {
			out = append(out, sym)
		}
	}
	return out, nil
}

// matchesFilters reports whether a symbol passes the language and path
// prefix filters.
func matchesFilters(sym *symbol.Symbol, flt Filters) bool {
	if flt.Language != "" && sym.Language != flt.Language {
		return false
	}
	if flt.PathPrefix != "" && !hasPathPrefix(sym.FilePath, flt.PathPrefix) {
		return false
	}
	return true
}

func hasPathPrefix(path, prefix string) bool {
	return len(path) >= len(prefix) && path[:len(prefix)] == prefix
}

// MatchesFilters is the exported form used by the engine's post-fusion
// filter step.
func MatchesFilters(sym *symbol.Symbol, flt Filters) bool {
	return matchesFilters(sym, flt)
}

// Close releases all backends and the shared lock.
func (f *Facade) Close() error {
	var errs []error

	if f.text != nil {
		if err := f.text.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if f.vectors != nil {
		if err := f.vectors.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if f.graph != nil {
		if err := f.graph.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if f.lock != nil {
		if err := f.lock.Unlock(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
