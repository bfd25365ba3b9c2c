package search

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/quarrylabs/quarry/internal/errors"
	"github.com/quarrylabs/quarry/internal/store"
	"github.com/quarrylabs/quarry/internal/symbol"
)

// fakeReader is a scripted store.Reader for engine-level scenarios.
type fakeReader struct {
	bm25    []store.Ref
	bm25Err error

	knn    []store.Ref
	knnErr error

	byName map[string][]symbol.ID
	byQN   map[string][]symbol.ID

	edges       map[symbol.ID][]store.Hop
	traverseErr error

	symbols map[symbol.ID]*symbol.Symbol

	nameCalls int
	qnCalls   int
}

func (f *fakeReader) SearchBM25(_ context.Context, _ string, poolSize int, _ store.Filters) ([]store.Ref, error) {
	if f.bm25Err != nil {
		return nil, f.bm25Err
	}
	if len(f.bm25) > poolSize {
		return f.bm25[:poolSize], nil
	}
	return f.bm25, nil
}

func (f *fakeReader) SearchKNN(_ context.Context, _ []float32, k int, _ store.Filters) ([]store.Ref, error) {
	if f.knnErr != nil {
		return nil, f.knnErr
	}
	if len(f.knn) > k {
		return f.knn[:k], nil
	}
	return f.knn, nil
}

func (f *fakeReader) Dimensions() int { return 4 }

func (f *fakeReader) FindByName(_ context.Context, name string) ([]symbol.ID, error) {
	f.nameCalls++
	return f.byName[name], nil
}

func (f *fakeReader) FindByQualifiedName(_ context.Context, qn string) ([]symbol.ID, error) {
	f.qnCalls++
	return f.byQN[qn], nil
}

func (f *fakeReader) TraverseKHop(_ context.Context, start symbol.ID, depth, fanout int, _ store.Direction) ([]store.Hop, error) {
	if f.traverseErr != nil {
		return nil, f.traverseErr
	}
	var out []store.Hop
	for _, hop := range f.edges[start] {
		if hop.Distance <= depth {
			out = append(out, hop)
		}
		if len(out) == fanout {
			break
		}
	}
	return out, nil
}

func (f *fakeReader) Hydrate(_ context.Context, ids []symbol.ID) ([]*symbol.Symbol, error) {
	out := make([]*symbol.Symbol, 0, len(ids))
	for _, id := range ids {
		if sym, ok := f.symbols[id]; ok {
			out = append(out, sym)
		}
	}
	return out, nil
}

var _ store.Reader = (*fakeReader)(nil)

func mkSym(b byte, name, qn, path, lang string, kind symbol.Kind) *symbol.Symbol {
	return &symbol.Symbol{
		ID:            id(b),
		Name:          name,
		QualifiedName: qn,
		DisplayName:   qn,
		Kind:          kind,
		Language:      lang,
		FilePath:      path,
		StartLine:     10,
		EndLine:       30,
	}
}

// fixture returns a reader with symbols S1..S5 across f1.py, f2.py, f3.py.
func fixture() *fakeReader {
	return &fakeReader{
		byName: map[string][]symbol.ID{},
		byQN:   map[string][]symbol.ID{},
		edges:  map[symbol.ID][]store.Hop{},
		symbols: map[symbol.ID]*symbol.Symbol{
			id(1): mkSym(1, "parse_xml", "f1.parse_xml", "f1.py", "python", symbol.KindFunction),
			id(2): mkSym(2, "XMLReader", "f1.XMLReader", "f1.py", "python", symbol.KindClass),
			id(3): mkSym(3, "read_chunk", "f2.read_chunk", "f2.py", "python", symbol.KindFunction),
			id(4): mkSym(4, "Tokenizer", "f2.Tokenizer", "f2.py", "python", symbol.KindClass),
			id(5): mkSym(5, "flush", "f3.Buffer.flush", "f3.py", "python", symbol.KindMethod),
		},
	}
}

func newTestEngine(t *testing.T, r store.Reader) *Engine {
	t.Helper()
	e, err := NewEngine(r)
	require.NoError(t, err)
	return e
}

func TestNewEngine_NilReader(t *testing.T) {
	_, err := NewEngine(nil)
	assert.ErrorIs(t, err, ErrNilDependency)
}

func TestSearch_SingleSignalBM25(t *testing.T) {
	r := fixture()
	r.bm25 = refs(id(1), id(2))
	e := newTestEngine(t, r)

	q := NewSearchQuery("parse xml")
	q.EnableGraphExpansion = false

	results, err := e.Search(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, id(1), results[0].ID)
	assert.InDelta(t, 1.0/61.0, results[0].Score, 1e-12)
	assert.Equal(t, []Signal{SignalBM25}, results[0].MatchSignals)

	assert.Equal(t, id(2), results[1].ID)
	assert.InDelta(t, 1.0/62.0, results[1].Score, 1e-12)
}

func TestSearch_MultiSignalDedup(t *testing.T) {
	r := fixture()
	r.bm25 = refs(id(1), id(2))
	r.byName["parse_xml"] = []symbol.ID{id(1)}
	// Both lookups match for the other two identifiers, so they outrank the
	// single-field parse_xml hit and push it to exact rank 3.
	r.byName["read_chunk"] = []symbol.ID{id(3)}
	r.byQN["read_chunk"] = []symbol.ID{id(3)}
	r.byName["Tokenizer"] = []symbol.ID{id(4)}
	r.byQN["Tokenizer"] = []symbol.ID{id(4)}
	e := newTestEngine(t, r)

	q := NewSearchQuery("parse xml")
	q.EnableGraphExpansion = false
	q.ExactQueries = []string{"read_chunk", "Tokenizer", "parse_xml"}

	results, err := e.Search(context.Background(), q)
	require.NoError(t, err)

	var s1 *SearchResult
	seen := map[symbol.ID]int{}
	for _, res := range results {
		seen[res.ID]++
		if res.ID == id(1) {
			s1 = res
		}
	}
	require.NotNil(t, s1)
	for sid, count := range seen {
		assert.Equal(t, 1, count, "symbol %s appears more than once", sid)
	}

	assert.InDelta(t, 1.0/61.0+1.0/63.0, s1.Score, 1e-12)
	assert.Equal(t, []Signal{SignalBM25, SignalExact}, s1.MatchSignals)
}

func TestSearch_GraphExpansion(t *testing.T) {
	r := fixture()
	r.bm25 = refs(id(1))
	r.edges[id(1)] = []store.Hop{{ID: id(3), Distance: 1}}
	e := newTestEngine(t, r)

	q := NewSearchQuery("parse xml")
	q.GraphDepth = 1

	results, err := e.Search(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Direct hit leads with its neighbor attached.
	assert.Equal(t, id(1), results[0].ID)
	require.Len(t, results[0].Related, 1)
	assert.Equal(t, id(3), results[0].Related[0].ID)

	// The graph-only neighbor surfaces as its own result when limit allows.
	assert.Equal(t, id(3), results[1].ID)
	assert.Equal(t, []Signal{SignalGraph}, results[1].MatchSignals)
	assert.InDelta(t, 1.0/61.0, results[1].Score, 1e-12)
	assert.Empty(t, results[1].Related, "graph-only results carry no neighbors")
}

func TestSearch_GraphExpansionDisconnectedSeed(t *testing.T) {
	r := fixture()
	r.bm25 = refs(id(5))
	e := newTestEngine(t, r)

	q := NewSearchQuery("flush buffer")

	results, err := e.Search(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Related)
}

func TestSearch_GracefulBM25Failure(t *testing.T) {
	r := fixture()
	r.bm25Err = store.ErrUnavailable
	r.knn = refs(id(3))
	r.byName["Tokenizer"] = []symbol.ID{id(4)}
	e := newTestEngine(t, r)

	q := NewSearchQuery("read chunks")
	q.EnableGraphExpansion = false
	q.QueryVector = []float32{1, 0, 0, 0}
	q.ExactQueries = []string{"Tokenizer"}

	results, err := e.Search(context.Background(), q)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for _, res := range results {
		assert.NotContains(t, res.MatchSignals, SignalBM25)
	}
}

func TestSearch_EmptyInputs(t *testing.T) {
	e := newTestEngine(t, fixture())

	q := &SearchQuery{Text: "   "}

	_, err := e.Search(context.Background(), q)
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeQueryEmpty, qerrors.GetCode(err))
}

func TestSearch_NilQuery(t *testing.T) {
	e := newTestEngine(t, fixture())
	_, err := e.Search(context.Background(), nil)
	assert.Equal(t, qerrors.ErrCodeInvalidQuery, qerrors.GetCode(err))
}

func TestSearch_DeterminismUnderTie(t *testing.T) {
	r := fixture()
	r.bm25 = refs(id(4))
	r.knn = refs(id(2))
	e := newTestEngine(t, r)

	q := NewSearchQuery("tokenize")
	q.EnableGraphExpansion = false
	q.QueryVector = []float32{1, 0, 0, 0}

	for run := 0; run < 5; run++ {
		results, err := e.Search(context.Background(), q)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, id(2), results[0].ID, "smaller SymbolID wins the tie")
		assert.Equal(t, id(4), results[1].ID)
	}
}

func TestSearch_ByteIdenticalAcrossCalls(t *testing.T) {
	r := fixture()
	r.bm25 = refs(id(1), id(2), id(5))
	r.knn = refs(id(2), id(3))
	r.edges[id(1)] = []store.Hop{{ID: id(4), Distance: 1}}
	e := newTestEngine(t, r)

	q := NewSearchQuery("parse xml")
	q.QueryVector = []float32{0.5, 0.5, 0, 0}

	first, err := e.Search(context.Background(), q)
	require.NoError(t, err)
	second, err := e.Search(context.Background(), q)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSearch_LimitRespected(t *testing.T) {
	r := fixture()
	r.bm25 = refs(id(1), id(2), id(3), id(4), id(5))
	e := newTestEngine(t, r)

	q := NewSearchQuery("everything")
	q.EnableGraphExpansion = false
	q.Limit = 2

	results, err := e.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_LimitClampedToMax(t *testing.T) {
	q := NewSearchQuery("x")
	q.Limit = 5000
	n := q.normalized()
	assert.Equal(t, MaxLimit, n.Limit)
}

func TestSearch_FiltersRespected(t *testing.T) {
	r := fixture()
	r.symbols[id(9)] = mkSym(9, "parseXML", "xml.parseXML", "xml.go", "go", symbol.KindFunction)
	r.bm25 = refs(id(1), id(9))
	e := newTestEngine(t, r)

	q := NewSearchQuery("parse xml")
	q.EnableGraphExpansion = false
	q.LanguageFilter = "go"

	results, err := e.Search(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id(9), results[0].ID)

	q2 := NewSearchQuery("parse xml")
	q2.EnableGraphExpansion = false
	q2.FilePathFilter = "f1"

	results, err = e.Search(context.Background(), q2)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id(1), results[0].ID)
}

func TestSearch_ExactMatchSafety(t *testing.T) {
	// Without explicit identifiers no equality lookup may be issued.
	r := fixture()
	r.bm25 = refs(id(1))
	e := newTestEngine(t, r)

	q := NewSearchQuery("how do I parse xml attributes from a stream?")
	q.EnableGraphExpansion = false

	_, err := e.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Zero(t, r.nameCalls)
	assert.Zero(t, r.qnCalls)
}

func TestSearch_AllSignalsEmptyIsSuccess(t *testing.T) {
	e := newTestEngine(t, fixture())

	q := NewSearchQuery("nothing matches this")
	q.EnableGraphExpansion = false

	results, err := e.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_StorageUnavailable(t *testing.T) {
	r := fixture()
	r.bm25Err = store.ErrUnavailable
	r.knnErr = store.ErrUnavailable
	e := newTestEngine(t, r)

	q := NewSearchQuery("anything")
	q.QueryVector = []float32{1, 0, 0, 0}

	_, err := e.Search(context.Background(), q)
	require.Error(t, err)
	assert.Equal(t, qerrors.ErrCodeStorageUnavailable, qerrors.GetCode(err))
}

func TestSearch_DimensionMismatchDegrades(t *testing.T) {
	r := fixture()
	r.bm25 = refs(id(1))
	r.knnErr = store.DimensionMismatchError{Expected: 4, Got: 3}
	e := newTestEngine(t, r)

	q := NewSearchQuery("parse xml")
	q.EnableGraphExpansion = false
	q.QueryVector = []float32{1, 0, 0}

	results, err := e.Search(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []Signal{SignalBM25}, results[0].MatchSignals)
}

func TestSearch_GraphIsolation(t *testing.T) {
	// Disabling expansion leaves non-graph result scores unchanged.
	r := fixture()
	r.bm25 = refs(id(1), id(2))
	r.edges[id(1)] = []store.Hop{{ID: id(3), Distance: 1}}

	e := newTestEngine(t, r)

	with := NewSearchQuery("parse xml")
	withResults, err := e.Search(context.Background(), with)
	require.NoError(t, err)

	without := NewSearchQuery("parse xml")
	without.EnableGraphExpansion = false
	withoutResults, err := e.Search(context.Background(), without)
	require.NoError(t, err)

	scores := func(rs []*SearchResult) map[symbol.ID]float64 {
		out := map[symbol.ID]float64{}
		for _, r := range rs {
			out[r.ID] = r.Score
		}
		return out
	}
	w, wo := scores(withResults), scores(withoutResults)
	for sid, score := range wo {
		assert.Equal(t, score, w[sid], "score of %s changed with expansion", sid)
	}
}

func TestSearch_GraphTraversalFailureDegrades(t *testing.T) {
	r := fixture()
	r.bm25 = refs(id(1))
	r.traverseErr = errors.New("graph store busy")
	e := newTestEngine(t, r)

	q := NewSearchQuery("parse xml")

	results, err := e.Search(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Related)
}

func TestSearch_SignalHonesty(t *testing.T) {
	r := fixture()
	r.bm25 = refs(id(1), id(2))
	r.knn = refs(id(2), id(3))
	e := newTestEngine(t, r)

	q := NewSearchQuery("parse")
	q.EnableGraphExpansion = false
	q.QueryVector = []float32{1, 0, 0, 0}

	results, err := e.Search(context.Background(), q)
	require.NoError(t, err)

	inBM25 := map[symbol.ID]bool{id(1): true, id(2): true}
	inKNN := map[symbol.ID]bool{id(2): true, id(3): true}

	for _, res := range results {
		require.NotEmpty(t, res.MatchSignals)
		for _, sig := range res.MatchSignals {
			switch sig {
			case SignalBM25:
				assert.True(t, inBM25[res.ID])
			case SignalVector:
				assert.True(t, inKNN[res.ID])
			default:
				t.Fatalf("unexpected signal %s", sig)
			}
		}
	}
}
