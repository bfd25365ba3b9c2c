package retrieve

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quarrylabs/quarry/internal/search"
	"github.com/quarrylabs/quarry/internal/symbol"
)

func TestGapTruncate(t *testing.T) {
	tests := []struct {
		name    string
		scores  []float64
		ratio   float64
		minKeep int
		want    int
	}{
		{
			name:    "no gap keeps everything",
			scores:  []float64{1.0, 0.9, 0.8, 0.7, 0.6},
			ratio:   0.4,
			minKeep: 3,
			want:    5,
		},
		{
			name:    "gap after head cuts the tail",
			scores:  []float64{1.0, 0.9, 0.8, 0.7, 0.1, 0.09},
			ratio:   0.4,
			minKeep: 3,
			want:    4,
		},
		{
			name:    "gap before min keep is ignored",
			scores:  []float64{1.0, 0.1, 0.09, 0.08, 0.07},
			ratio:   0.4,
			minKeep: 3,
			want:    5,
		},
		{
			name:    "short list never cut",
			scores:  []float64{1.0, 0.05},
			ratio:   0.4,
			minKeep: 3,
			want:    2,
		},
		{
			name:    "zero score ends the list",
			scores:  []float64{1.0, 0.9, 0.8, 0.0, 0.0},
			ratio:   0.4,
			minKeep: 3,
			want:    4,
		},
		{
			name:    "invalid ratio falls back to default",
			scores:  []float64{1.0, 0.9, 0.8, 0.7, 0.1},
			ratio:   7.5,
			minKeep: 3,
			want:    4,
		},
		{
			name:    "empty",
			scores:  nil,
			ratio:   0.4,
			minKeep: 3,
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GapTruncate(tt.scores, tt.ratio, tt.minKeep))
		})
	}
}

func TestTruncateGroups(t *testing.T) {
	mk := func(b byte, path string, score float64) *FileGroup {
		r := &search.SearchResult{FilePath: path, Score: score, Kind: symbol.KindFunction}
		r.ID = rid(b)
		return &FileGroup{FilePath: path, Best: r, Symbols: []*search.SearchResult{r}}
	}

	groups := []*FileGroup{
		mk(1, "a.go", 1.0),
		mk(2, "b.go", 0.9),
		mk(3, "c.go", 0.8),
		mk(4, "d.go", 0.7),
		mk(5, "e.go", 0.05),
	}

	kept := TruncateGroups(groups, 0.4, 3)
	assert.Len(t, kept, 4)
	assert.Equal(t, "d.go", kept[3].FilePath)
}
