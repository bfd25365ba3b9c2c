package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/internal/symbol"
)

func testID(b byte) symbol.ID {
	var out symbol.ID
	out[0] = b
	return out
}

func testSymbol(b byte, name, qn, display, path, lang string, kind symbol.Kind) *symbol.Symbol {
	return &symbol.Symbol{
		ID:            testID(b),
		Name:          name,
		QualifiedName: qn,
		DisplayName:   display,
		Kind:          kind,
		Language:      lang,
		FilePath:      path,
		StartByte:     0,
		EndByte:       100,
		StartLine:     1,
		EndLine:       5,
	}
}

func newTestGraph(t *testing.T) *SQLiteGraph {
	t.Helper()
	g, err := NewSQLiteGraph("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func seedGraph(t *testing.T, g *SQLiteGraph) {
	t.Helper()
	ctx := context.Background()

	syms := []*symbol.Symbol{
		testSymbol(1, "parse_xml", "f1.parse_xml", "f1.parse_xml", "f1.py", "python", symbol.KindFunction),
		testSymbol(2, "XMLReader", "f1.XMLReader", "f1.XMLReader", "f1.py", "python", symbol.KindClass),
		testSymbol(3, "read_chunk", "f2.read_chunk", "f2.read_chunk", "f2.py", "python", symbol.KindFunction),
		testSymbol(4, "flush", "f3.Buffer.flush", "f3::Buffer::flush", "f3.rs", "rust", symbol.KindMethod),
	}
	require.NoError(t, g.UpsertSymbols(ctx, syms))

	rels := []*symbol.Relation{
		{From: testID(1), To: testID(2), Kind: symbol.RelationCalls, Confidence: 1},
		{From: testID(2), To: testID(3), Kind: symbol.RelationCalls, Confidence: 1},
		{From: testID(3), To: testID(1), Kind: symbol.RelationCalls, Confidence: 1}, // cycle
		{From: testID(2), To: testID(4), Kind: symbol.RelationUses, Confidence: 0.8},
	}
	require.NoError(t, g.UpsertRelations(ctx, rels))
}

func TestSQLiteGraph_FindByName(t *testing.T) {
	g := newTestGraph(t)
	seedGraph(t, g)
	ctx := context.Background()

	ids, err := g.FindByName(ctx, "parse_xml")
	require.NoError(t, err)
	assert.Equal(t, []symbol.ID{testID(1)}, ids)

	ids, err = g.FindByName(ctx, "no_such_symbol")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSQLiteGraph_FindByQualifiedName_BothForms(t *testing.T) {
	g := newTestGraph(t)
	seedGraph(t, g)
	ctx := context.Background()

	canonical, err := g.FindByQualifiedName(ctx, "f3.Buffer.flush")
	require.NoError(t, err)
	assert.Equal(t, []symbol.ID{testID(4)}, canonical)

	native, err := g.FindByQualifiedName(ctx, "f3::Buffer::flush")
	require.NoError(t, err)
	assert.Equal(t, []symbol.ID{testID(4)}, native)
}

func TestSQLiteGraph_Hydrate_OrderAndSkip(t *testing.T) {
	g := newTestGraph(t)
	seedGraph(t, g)
	ctx := context.Background()

	syms, err := g.Hydrate(ctx, []symbol.ID{testID(3), testID(99), testID(1)})
	require.NoError(t, err)
	require.Len(t, syms, 2, "missing ids are skipped")
	assert.Equal(t, testID(3), syms[0].ID, "input order preserved")
	assert.Equal(t, testID(1), syms[1].ID)

	assert.Equal(t, "read_chunk", syms[0].Name)
	assert.Equal(t, symbol.KindFunction, syms[0].Kind)
	assert.Equal(t, "f2.py", syms[0].FilePath)
}

func TestSQLiteGraph_Hydrate_Empty(t *testing.T) {
	g := newTestGraph(t)
	syms, err := g.Hydrate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, syms)
}

func TestSQLiteGraph_TraverseKHop_DepthOne(t *testing.T) {
	g := newTestGraph(t)
	seedGraph(t, g)

	hops, err := g.TraverseKHop(context.Background(), testID(1), 1, 50, DirectionOut)
	require.NoError(t, err)
	require.Len(t, hops, 1)
	assert.Equal(t, testID(2), hops[0].ID)
	assert.Equal(t, 1, hops[0].Distance)
}

func TestSQLiteGraph_TraverseKHop_DepthTwo(t *testing.T) {
	g := newTestGraph(t)
	seedGraph(t, g)

	hops, err := g.TraverseKHop(context.Background(), testID(1), 2, 50, DirectionOut)
	require.NoError(t, err)
	require.Len(t, hops, 3)

	distances := map[symbol.ID]int{}
	for _, h := range hops {
		distances[h.ID] = h.Distance
	}
	assert.Equal(t, 1, distances[testID(2)])
	assert.Equal(t, 2, distances[testID(3)])
	assert.Equal(t, 2, distances[testID(4)])
}

func TestSQLiteGraph_TraverseKHop_CycleTerminates(t *testing.T) {
	g := newTestGraph(t)
	seedGraph(t, g)

	// 1 -> 2 -> 3 -> 1 is a cycle; depth 5 must not revisit or loop.
	hops, err := g.TraverseKHop(context.Background(), testID(1), 5, 50, DirectionOut)
	require.NoError(t, err)

	seen := map[symbol.ID]int{}
	for _, h := range hops {
		seen[h.ID]++
		assert.NotEqual(t, testID(1), h.ID, "start node is never reported")
	}
	for sid, count := range seen {
		assert.Equal(t, 1, count, "node %s reported more than once", sid)
	}
}

func TestSQLiteGraph_TraverseKHop_DirectionIn(t *testing.T) {
	g := newTestGraph(t)
	seedGraph(t, g)

	hops, err := g.TraverseKHop(context.Background(), testID(1), 1, 50, DirectionIn)
	require.NoError(t, err)
	require.Len(t, hops, 1)
	assert.Equal(t, testID(3), hops[0].ID)
}

func TestSQLiteGraph_TraverseKHop_DirectionBoth(t *testing.T) {
	g := newTestGraph(t)
	seedGraph(t, g)

	hops, err := g.TraverseKHop(context.Background(), testID(1), 1, 50, DirectionBoth)
	require.NoError(t, err)

	ids := map[symbol.ID]bool{}
	for _, h := range hops {
		ids[h.ID] = true
	}
	assert.True(t, ids[testID(2)], "outgoing neighbor")
	assert.True(t, ids[testID(3)], "incoming neighbor")
}

func TestSQLiteGraph_TraverseKHop_FanoutCap(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	hub := testSymbol(10, "hub", "pkg.hub", "pkg.hub", "hub.go", "go", symbol.KindFunction)
	require.NoError(t, g.UpsertSymbols(ctx, []*symbol.Symbol{hub}))

	var rels []*symbol.Relation
	for b := byte(11); b < 31; b++ {
		leaf := testSymbol(b, "leaf", "pkg.leaf", "pkg.leaf", "leaf.go", "go", symbol.KindFunction)
		leaf.ID = testID(b)
		require.NoError(t, g.UpsertSymbols(ctx, []*symbol.Symbol{leaf}))
		rels = append(rels, &symbol.Relation{From: testID(10), To: testID(b), Kind: symbol.RelationCalls, Confidence: 1})
	}
	require.NoError(t, g.UpsertRelations(ctx, rels))

	hops, err := g.TraverseKHop(ctx, testID(10), 1, 5, DirectionOut)
	require.NoError(t, err)
	require.Len(t, hops, 5)

	// Neighbors come back in symbol ID byte order.
	for i := 0; i < len(hops)-1; i++ {
		assert.True(t, hops[i].ID.Less(hops[i+1].ID))
	}
}

func TestSQLiteGraph_TraverseKHop_ZeroDepth(t *testing.T) {
	g := newTestGraph(t)
	seedGraph(t, g)

	hops, err := g.TraverseKHop(context.Background(), testID(1), 0, 50, DirectionOut)
	require.NoError(t, err)
	assert.Empty(t, hops)
}

func TestSQLiteGraph_TraverseKHop_Deterministic(t *testing.T) {
	g := newTestGraph(t)
	seedGraph(t, g)

	first, err := g.TraverseKHop(context.Background(), testID(1), 3, 50, DirectionBoth)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := g.TraverseKHop(context.Background(), testID(1), 3, 50, DirectionBoth)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSQLiteGraph_UpsertReplaces(t *testing.T) {
	g := newTestGraph(t)
	ctx := context.Background()

	sym := testSymbol(1, "old_name", "pkg.old_name", "pkg.old_name", "a.go", "go", symbol.KindFunction)
	require.NoError(t, g.UpsertSymbols(ctx, []*symbol.Symbol{sym}))

	sym.Name = "new_name"
	require.NoError(t, g.UpsertSymbols(ctx, []*symbol.Symbol{sym}))

	syms, err := g.Hydrate(ctx, []symbol.ID{testID(1)})
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "new_name", syms[0].Name)

	n, err := g.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteGraph_DeleteSymbols(t *testing.T) {
	g := newTestGraph(t)
	seedGraph(t, g)
	ctx := context.Background()

	require.NoError(t, g.DeleteSymbols(ctx, []symbol.ID{testID(2)}))

	syms, err := g.Hydrate(ctx, []symbol.ID{testID(2)})
	require.NoError(t, err)
	assert.Empty(t, syms)

	// Outgoing edges cascade, incoming edges are cleaned up explicitly.
	hops, err := g.TraverseKHop(ctx, testID(1), 1, 50, DirectionOut)
	require.NoError(t, err)
	assert.Empty(t, hops)
}
