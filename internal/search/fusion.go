package search

import (
	"sort"

	"github.com/quarrylabs/quarry/internal/store"
	"github.com/quarrylabs/quarry/internal/symbol"
)

// RRFConstant is the RRF smoothing parameter. k=60 is empirically validated
// across domains (Azure AI Search, OpenSearch and others use the same value)
// and is deliberately not configurable: changing it breaks score
// comparability across queries.
const RRFConstant = 60

// fusedCandidate accumulates per-signal ranks for one symbol during fusion.
// For the graph signal the "rank" is the hop distance from the nearest seed.
type fusedCandidate struct {
	id    symbol.ID
	ranks map[Signal]int
}

// Score sums 1/(rank+k) over the signals the symbol appeared in, iterating
// signals in canonical order so that floating-point accumulation is
// reproducible.
func (c *fusedCandidate) Score() float64 {
	var score float64
	for _, sig := range CanonicalSignalOrder {
		if rank, ok := c.ranks[sig]; ok {
			score += 1.0 / float64(rank+RRFConstant)
		}
	}
	return score
}

// Signals returns the contributing signals in canonical order.
func (c *fusedCandidate) Signals() []Signal {
	out := make([]Signal, 0, len(c.ranks))
	for _, sig := range CanonicalSignalOrder {
		if _, ok := c.ranks[sig]; ok {
			out = append(out, sig)
		}
	}
	return out
}

// Fusion merges per-signal rankings with Reciprocal Rank Fusion.
// A symbol appearing in several signals sums all its contributions; rank
// information per signal is retained for provenance.
type Fusion struct {
	candidates map[symbol.ID]*fusedCandidate
}

// NewFusion creates an empty fusion accumulator.
func NewFusion() *Fusion {
	return &Fusion{candidates: make(map[symbol.ID]*fusedCandidate)}
}

// AddRanking records a collector's ordered candidates under its signal tag.
// Ranks are taken from Ref.Rank (1-indexed, rank 1 is best).
func (f *Fusion) AddRanking(sig Signal, refs []store.Ref) {
	for _, r := range refs {
		f.get(r.ID).ranks[sig] = r.Rank
	}
}

// AddGraphHit records a symbol discovered by graph expansion at the given
// hop distance, keeping the minimum distance when the symbol is reached
// from several seeds. Symbols already present through a direct signal are
// ignored: expansion never alters the scores of the hits that seeded it.
func (f *Fusion) AddGraphHit(id symbol.ID, hopDistance int) {
	if c, ok := f.candidates[id]; ok {
		if prev, isGraph := c.ranks[SignalGraph]; isGraph {
			if hopDistance < prev {
				c.ranks[SignalGraph] = hopDistance
			}
			return
		}
		// Direct hit; graph contributes nothing.
		return
	}
	f.get(id).ranks[SignalGraph] = hopDistance
}

// Contains reports whether the symbol is already a candidate.
func (f *Fusion) Contains(id symbol.ID) bool {
	_, ok := f.candidates[id]
	return ok
}

// Len returns the number of fused candidates.
func (f *Fusion) Len() int {
	return len(f.candidates)
}

// DirectIDs returns the ids of candidates that arrived through a non-graph
// signal, in ranked order. These are the seeds for graph expansion.
func (f *Fusion) DirectIDs() []symbol.ID {
	var direct []*fusedCandidate
	for _, c := range f.candidates {
		if c.isDirect() {
			direct = append(direct, c)
		}
	}
	sortCandidates(direct)

	ids := make([]symbol.ID, len(direct))
	for i, c := range direct {
		ids[i] = c.id
	}
	return ids
}

func (c *fusedCandidate) isDirect() bool {
	for sig := range c.ranks {
		if sig != SignalGraph {
			return true
		}
	}
	return false
}

// Ranked returns all candidates ordered by descending fused score with ties
// broken by ascending symbol ID byte order.
func (f *Fusion) Ranked() []*fusedCandidate {
	out := make([]*fusedCandidate, 0, len(f.candidates))
	for _, c := range f.candidates {
		out = append(out, c)
	}
	sortCandidates(out)
	return out
}

func (f *Fusion) get(id symbol.ID) *fusedCandidate {
	if c, ok := f.candidates[id]; ok {
		return c
	}
	c := &fusedCandidate{id: id, ranks: make(map[Signal]int, 2)}
	f.candidates[id] = c
	return c
}

// sortCandidates orders by score descending, then symbol ID ascending.
func sortCandidates(cs []*fusedCandidate) {
	sort.Slice(cs, func(i, j int) bool {
		si, sj := cs[i].Score(), cs[j].Score()
		if si != sj {
			return si > sj
		}
		return cs[i].id.Less(cs[j].id)
	})
}
