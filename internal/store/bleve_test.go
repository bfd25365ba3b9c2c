package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/internal/symbol"
)

func newTestTextIndex(t *testing.T) *BleveTextIndex {
	t.Helper()
	idx, err := NewBleveTextIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func seedTextIndex(t *testing.T, idx *BleveTextIndex) {
	t.Helper()
	docs := []*Document{
		{ID: testID(1), Content: "parse_xml parses xml attribute streams", Language: "python", FilePath: "f1.py"},
		{ID: testID(2), Content: "XMLReader incremental xml reader", Language: "python", FilePath: "f1.py"},
		{ID: testID(3), Content: "read_chunk reads buffered chunks from disk", Language: "python", FilePath: "f2.py"},
		{ID: testID(4), Content: "flush writes buffered bytes", Language: "rust", FilePath: "src/buffer.rs"},
	}
	require.NoError(t, idx.Index(context.Background(), docs))
}

func TestBleveTextIndex_SearchRanksRelevance(t *testing.T) {
	idx := newTestTextIndex(t)
	seedTextIndex(t, idx)

	refs, err := idx.SearchBM25(context.Background(), "parse xml", 10, Filters{})
	require.NoError(t, err)
	require.NotEmpty(t, refs)

	assert.Equal(t, testID(1), refs[0].ID, "both query tokens match the parser")
	for i, r := range refs {
		assert.Equal(t, i+1, r.Rank)
	}
}

func TestBleveTextIndex_PunctuationNeverFailsParse(t *testing.T) {
	idx := newTestTextIndex(t)
	seedTextIndex(t, idx)

	queries := []string{
		`how do I "parse" xml??`,
		`parse_xml() AND OR NOT +xml -stream`,
		`foo:[bar TO baz] {weird} (chars) ~fuzzy^boost`,
		`\\backslashes\\ and /slashes/`,
	}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			_, err := idx.SearchBM25(context.Background(), q, 10, Filters{})
			assert.NoError(t, err)
		})
	}
}

func TestBleveTextIndex_EmptyQuery(t *testing.T) {
	idx := newTestTextIndex(t)
	seedTextIndex(t, idx)

	refs, err := idx.SearchBM25(context.Background(), "   ", 10, Filters{})
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestBleveTextIndex_LanguageFilter(t *testing.T) {
	idx := newTestTextIndex(t)
	seedTextIndex(t, idx)

	refs, err := idx.SearchBM25(context.Background(), "buffered", 10, Filters{Language: "rust"})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, testID(4), refs[0].ID)
}

func TestBleveTextIndex_PathPrefixFilter(t *testing.T) {
	idx := newTestTextIndex(t)
	seedTextIndex(t, idx)

	refs, err := idx.SearchBM25(context.Background(), "xml", 10, Filters{PathPrefix: "f1"})
	require.NoError(t, err)
	require.NotEmpty(t, refs)
	for _, r := range refs {
		assert.Contains(t, []symbol.ID{testID(1), testID(2)}, r.ID)
	}
}

func TestBleveTextIndex_PoolSizeTruncates(t *testing.T) {
	idx := newTestTextIndex(t)
	seedTextIndex(t, idx)

	refs, err := idx.SearchBM25(context.Background(), "xml buffered chunks", 2, Filters{})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(refs), 2)
}

func TestBleveTextIndex_CamelCaseTokenization(t *testing.T) {
	idx := newTestTextIndex(t)
	seedTextIndex(t, idx)

	// The code analyzer splits XMLReader into xml + reader at index time,
	// so the lowercase parts are searchable.
	refs, err := idx.SearchBM25(context.Background(), "reader", 10, Filters{})
	require.NoError(t, err)
	require.NotEmpty(t, refs)
	assert.Equal(t, testID(2), refs[0].ID)
}

func TestBleveTextIndex_Delete(t *testing.T) {
	idx := newTestTextIndex(t)
	seedTextIndex(t, idx)
	ctx := context.Background()

	require.NoError(t, idx.Delete(ctx, []symbol.ID{testID(1)}))

	refs, err := idx.SearchBM25(ctx, "parse xml", 10, Filters{})
	require.NoError(t, err)
	for _, r := range refs {
		assert.NotEqual(t, testID(1), r.ID)
	}
	assert.Equal(t, 3, idx.DocCount())
}

func TestBleveTextIndex_ClosedIsUnavailable(t *testing.T) {
	idx := newTestTextIndex(t)
	require.NoError(t, idx.Close())

	_, err := idx.SearchBM25(context.Background(), "anything", 10, Filters{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestBleveTextIndex_Deterministic(t *testing.T) {
	idx := newTestTextIndex(t)
	seedTextIndex(t, idx)

	first, err := idx.SearchBM25(context.Background(), "xml reader", 10, Filters{})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := idx.SearchBM25(context.Background(), "xml reader", 10, Filters{})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
