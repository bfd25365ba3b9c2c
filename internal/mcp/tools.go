package mcp

// SearchCodeInput defines the input schema for the search_code tool.
type SearchCodeInput struct {
	Query      string `json:"query" jsonschema:"the code search query to execute"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Language   string `json:"language,omitempty" jsonschema:"filter by source language (go, python, rust)"`
	PathPrefix string `json:"path_prefix,omitempty" jsonschema:"filter by relative file path prefix"`
	NoGraph    bool   `json:"no_graph,omitempty" jsonschema:"disable relation-graph expansion of direct hits"`
}

// SearchCodeOutput defines the output schema for the search_code tool.
type SearchCodeOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"ranked symbol results"`
	Files   []FileGroupOutput    `json:"files" jsonschema:"per-file aggregation of the results"`
}

// SearchResultOutput is one ranked symbol hit.
type SearchResultOutput struct {
	ID            string   `json:"id" jsonschema:"symbol identifier"`
	Name          string   `json:"name" jsonschema:"short symbol name"`
	QualifiedName string   `json:"qualified_name" jsonschema:"fully qualified name in language-native form"`
	Kind          string   `json:"kind" jsonschema:"symbol kind: function, method, class, struct, ..."`
	FilePath      string   `json:"file_path" jsonschema:"file path relative to repository root"`
	StartLine     int      `json:"start_line" jsonschema:"zero-indexed start line"`
	EndLine       int      `json:"end_line" jsonschema:"zero-indexed end line (exclusive)"`
	Score         float64  `json:"score" jsonschema:"fused relevance score"`
	MatchSignals  []string `json:"match_signals" jsonschema:"signals that contributed rank: bm25, vector, exact, graph"`
	Related       []string `json:"related,omitempty" jsonschema:"qualified names of graph neighbors"`
}

// FileGroupOutput is the per-file outline of results.
type FileGroupOutput struct {
	FilePath string   `json:"file_path" jsonschema:"file path relative to repository root"`
	Best     string   `json:"best" jsonschema:"qualified name of the best-scoring symbol in this file"`
	Score    float64  `json:"score" jsonschema:"score of the best symbol"`
	Symbols  []string `json:"symbols" jsonschema:"qualified names of all hits in this file"`
}

// RelatedSymbolsInput defines the input schema for the related_symbols tool.
type RelatedSymbolsInput struct {
	SymbolID string `json:"symbol_id" jsonschema:"hex symbol identifier to expand from"`
	Depth    int    `json:"depth,omitempty" jsonschema:"k-hop traversal depth, default 1, max 5"`
}

// RelatedSymbolsOutput defines the output schema for the related_symbols tool.
type RelatedSymbolsOutput struct {
	Neighbors []NeighborOutput `json:"neighbors" jsonschema:"symbols reachable through the relation graph"`
}

// NeighborOutput is one graph neighbor.
type NeighborOutput struct {
	ID            string `json:"id" jsonschema:"symbol identifier"`
	QualifiedName string `json:"qualified_name" jsonschema:"fully qualified name"`
	Kind          string `json:"kind" jsonschema:"symbol kind"`
	FilePath      string `json:"file_path" jsonschema:"file path relative to repository root"`
	HopDistance   int    `json:"hop_distance" jsonschema:"BFS distance from the start symbol"`
}
