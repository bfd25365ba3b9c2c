package store

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quarrylabs/quarry/internal/symbol"
)

// DefaultSymbolCacheSize bounds the hydration cache.
const DefaultSymbolCacheSize = 4096

// SymbolCache is an LRU over hydrated symbol records. The index is read-only
// for the lifetime of a facade, so entries never go stale; the cache only
// bounds memory.
type SymbolCache struct {
	lru *lru.Cache[symbol.ID, *symbol.Symbol]
}

// NewSymbolCache creates a cache holding up to size symbols.
func NewSymbolCache(size int) (*SymbolCache, error) {
	if size <= 0 {
		size = DefaultSymbolCacheSize
	}
	c, err := lru.New[symbol.ID, *symbol.Symbol](size)
	if err != nil {
		return nil, err
	}
	return &SymbolCache{lru: c}, nil
}

// Get returns the cached symbol, if present.
func (c *SymbolCache) Get(id symbol.ID) (*symbol.Symbol, bool) {
	return c.lru.Get(id)
}

// Put stores a hydrated symbol.
func (c *SymbolCache) Put(sym *symbol.Symbol) {
	c.lru.Add(sym.ID, sym)
}

// Len returns the number of cached symbols.
func (c *SymbolCache) Len() int {
	return c.lru.Len()
}
