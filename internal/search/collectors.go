package search

import (
	"context"
	"sort"
	"strings"

	"github.com/quarrylabs/quarry/internal/store"
	"github.com/quarrylabs/quarry/internal/symbol"
)

// collector is one polymorphic signal source: a tag, an eligibility test on
// the query, and a rank-yielding function. Adding a signal means defining
// the function, adding a tag with a canonical position in the summation
// order, and appending here.
type collector struct {
	signal   Signal
	eligible func(q *SearchQuery) bool
	run      func(ctx context.Context, q *SearchQuery) ([]store.Ref, error)
}

// collectors returns the direct-signal collectors in canonical order.
// Graph expansion is not a collector; it runs on the fused direct hits.
func (e *Engine) collectors() []collector {
	return []collector{
		{
			signal:   SignalBM25,
			eligible: func(q *SearchQuery) bool { return strings.TrimSpace(q.EffectiveBM25Text()) != "" },
			run:      e.collectBM25,
		},
		{
			signal:   SignalVector,
			eligible: func(q *SearchQuery) bool { return len(q.QueryVector) > 0 },
			run:      e.collectVector,
		},
		{
			signal:   SignalExact,
			eligible: func(q *SearchQuery) bool { return len(q.ExactQueries) > 0 },
			run:      e.collectExact,
		},
	}
}

// collectBM25 runs the full-text signal. The backend treats the text as a
// bag of tokens, so natural-language punctuation cannot fail the parse.
func (e *Engine) collectBM25(ctx context.Context, q *SearchQuery) ([]store.Ref, error) {
	return e.reader.SearchBM25(ctx, q.EffectiveBM25Text(), q.BM25PoolSize, store.Filters{
		Language:   q.LanguageFilter,
		PathPrefix: q.FilePathFilter,
	})
}

// collectVector runs the kNN signal. A dimension mismatch surfaces as an
// error here and is treated by the engine as signal-unavailable.
func (e *Engine) collectVector(ctx context.Context, q *SearchQuery) ([]store.Ref, error) {
	return e.reader.SearchKNN(ctx, q.QueryVector, q.VectorPoolSize, store.Filters{
		Language:   q.LanguageFilter,
		PathPrefix: q.FilePathFilter,
	})
}

// exactCandidate carries the ordering keys for one exact-match hit.
type exactCandidate struct {
	id     symbol.ID
	fields int // how many of {name, qualified name} matched
	qnLen  int // qualified name length, filled during hydration
}

// collectExact looks every explicit identifier up against short names and
// qualified names (canonical-dot and language-native forms), deduplicates
// across the iteration, and orders by (matching fields desc, shorter
// qualified name, symbol ID). It is never run with the raw query text:
// equality against a long problem description can never match a symbol name.
func (e *Engine) collectExact(ctx context.Context, q *SearchQuery) ([]store.Ref, error) {
	seen := make(map[symbol.ID]*exactCandidate)
	var order []*exactCandidate

	for _, raw := range q.ExactQueries {
		ident := strings.TrimSpace(raw)
		if ident == "" {
			continue
		}

		byName, err := e.reader.FindByName(ctx, ident)
		if err != nil {
			return nil, err
		}

		qnMatches := make(map[symbol.ID]struct{})
		byQN, err := e.reader.FindByQualifiedName(ctx, ident)
		if err != nil {
			return nil, err
		}
		for _, id := range byQN {
			qnMatches[id] = struct{}{}
		}
		if canonical := symbol.CanonicalName(ident); canonical != ident {
			more, err := e.reader.FindByQualifiedName(ctx, canonical)
			if err != nil {
				return nil, err
			}
			for _, id := range more {
				qnMatches[id] = struct{}{}
			}
		}

		nameSet := make(map[symbol.ID]struct{}, len(byName))
		for _, id := range byName {
			nameSet[id] = struct{}{}
		}

		add := func(id symbol.ID) {
			if _, dup := seen[id]; dup {
				return
			}
			fields := 0
			if _, ok := nameSet[id]; ok {
				fields++
			}
			if _, ok := qnMatches[id]; ok {
				fields++
			}
			c := &exactCandidate{id: id, fields: fields}
			seen[id] = c
			order = append(order, c)
		}

		for _, id := range byName {
			add(id)
		}
		qnIDs := make([]symbol.ID, 0, len(qnMatches))
		for id := range qnMatches {
			qnIDs = append(qnIDs, id)
		}
		sort.Slice(qnIDs, func(i, j int) bool { return qnIDs[i].Less(qnIDs[j]) })
		for _, id := range qnIDs {
			add(id)
		}
	}

	if len(order) == 0 {
		return []store.Ref{}, nil
	}

	// Hydrate for the qualified-name-length tie-break; ids that no longer
	// hydrate are dropped.
	ids := make([]symbol.ID, len(order))
	for i, c := range order {
		ids[i] = c.id
	}
	syms, err := e.reader.Hydrate(ctx, ids)
	if err != nil {
		return nil, err
	}
	present := make(map[symbol.ID]int, len(syms))
	for _, sym := range syms {
		present[sym.ID] = len(sym.QualifiedName)
	}

	ranked := make([]*exactCandidate, 0, len(order))
	for _, c := range order {
		qnLen, ok := present[c.id]
		if !ok {
			continue
		}
		c.qnLen = qnLen
		ranked = append(ranked, c)
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.fields != b.fields {
			return a.fields > b.fields
		}
		if a.qnLen != b.qnLen {
			return a.qnLen < b.qnLen
		}
		return a.id.Less(b.id)
	})

	if len(ranked) > q.ExactPoolSize {
		ranked = ranked[:q.ExactPoolSize]
	}

	refs := make([]store.Ref, len(ranked))
	for i, c := range ranked {
		refs[i] = store.Ref{ID: c.id, Rank: i + 1}
	}
	return refs, nil
}
