package retrieve

import (
	"sort"

	"github.com/quarrylabs/quarry/internal/search"
	"github.com/quarrylabs/quarry/internal/symbol"
)

// FileGroup is the per-file aggregation of engine hits: the best-scoring
// symbol leads, the full group rides along so callers can render a per-file
// outline.
type FileGroup struct {
	FilePath string                 `json:"file_path"`
	Best     *search.SearchResult   `json:"best"`
	Symbols  []*search.SearchResult `json:"symbols"`
}

// Score returns the group's ranking score, the best symbol's fused score.
func (g *FileGroup) Score() float64 {
	return g.Best.Score
}

// kindPriority ranks symbol kinds for the best-symbol tie-break: containers
// beat callables beat everything else.
func kindPriority(k symbol.Kind) int {
	switch k {
	case symbol.KindClass, symbol.KindStruct, symbol.KindInterface, symbol.KindTrait:
		return 2
	case symbol.KindFunction, symbol.KindMethod:
		return 1
	default:
		return 0
	}
}

// betterSymbol reports whether a should lead its file group over b:
// higher kind priority, then higher score, then lower symbol ID.
func betterSymbol(a, b *search.SearchResult) bool {
	pa, pb := kindPriority(a.Kind), kindPriority(b.Kind)
	if pa != pb {
		return pa > pb
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID.Less(b.ID)
}

// Aggregate groups engine results by file path. Groups are ordered by best
// score descending with ties broken by the best symbol's ID; symbols inside
// a group keep the engine's ranked order.
func Aggregate(results []*search.SearchResult) []*FileGroup {
	byPath := make(map[string]*FileGroup)
	var order []string

	for _, r := range results {
		g, ok := byPath[r.FilePath]
		if !ok {
			g = &FileGroup{FilePath: r.FilePath, Best: r}
			byPath[r.FilePath] = g
			order = append(order, r.FilePath)
		}
		g.Symbols = append(g.Symbols, r)
		if r != g.Best && betterSymbol(r, g.Best) {
			g.Best = r
		}
	}

	groups := make([]*FileGroup, 0, len(order))
	for _, path := range order {
		groups = append(groups, byPath[path])
	}

	sort.Slice(groups, func(i, j int) bool {
		si, sj := groups[i].Score(), groups[j].Score()
		if si != sj {
			return si > sj
		}
		return groups[i].Best.ID.Less(groups[j].Best.ID)
	})

	return groups
}
