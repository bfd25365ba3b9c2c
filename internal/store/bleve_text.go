package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/quarrylabs/quarry/internal/symbol"
)

const (
	// CodeTokenizerName is the name of the custom code tokenizer.
	CodeTokenizerName = "code_tokenizer"

	// CodeStopFilterName is the name of the custom stop word filter.
	CodeStopFilterName = "code_stop"

	// CodeAnalyzerName is the name of the custom code analyzer.
	CodeAnalyzerName = "code_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(CodeTokenizerName, codeTokenizerConstructor)
	_ = registry.RegisterTokenFilter(CodeStopFilterName, codeStopFilterConstructor)
}

// BleveTextIndex implements TextIndex on a Bleve v2 index with BM25-style
// scoring and a code-aware analyzer. Queries go through a match query, never
// the query-string DSL, so arbitrary punctuation cannot raise a parse error.
type BleveTextIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// bleveSymbolDoc is the document shape stored per symbol.
type bleveSymbolDoc struct {
	Content  string `json:"content"`
	Language string `json:"language"`
	Path     string `json:"path"`
}

// NewBleveTextIndex opens or creates a Bleve index at path.
// An empty path creates an in-memory index for testing.
func NewBleveTextIndex(path string) (*BleveTextIndex, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("failed to create directory: %w", mkErr)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveTextIndex{index: idx, path: path}, nil
}

// createIndexMapping builds the Bleve mapping: analyzed content plus keyword
// fields for the language and path filters.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(CodeAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": CodeTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			CodeStopFilterName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = CodeAnalyzerName

	languageField := bleve.NewTextFieldMapping()
	languageField.Analyzer = keyword.Name

	pathField := bleve.NewTextFieldMapping()
	pathField.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("content", contentField)
	docMapping.AddFieldMappingsAt("language", languageField)
	docMapping.AddFieldMappingsAt("path", pathField)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = CodeAnalyzerName

	return indexMapping, nil
}

// Index adds documents to the index. Used by the indexing subsystem and by
// test fixtures; the retrieval core only reads.
func (b *BleveTextIndex) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		bd := bleveSymbolDoc{
			Content:  doc.Content,
			Language: doc.Language,
			Path:     doc.FilePath,
		}
		if err := batch.Index(doc.ID.String(), bd); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	return nil
}

// SearchBM25 returns up to poolSize symbol refs ranked by relevance.
func (b *BleveTextIndex) SearchBM25(ctx context.Context, text string, poolSize int, f Filters) ([]Ref, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrUnavailable
	}

	if strings.TrimSpace(text) == "" {
		return []Ref{}, nil
	}

	matchQuery := bleve.NewMatchQuery(text)
	matchQuery.SetField("content")

	var q query.Query = matchQuery
	if !f.Empty() {
		conj := bleve.NewConjunctionQuery(matchQuery)
		if f.Language != "" {
			tq := bleve.NewTermQuery(f.Language)
			tq.SetField("language")
			conj.AddQuery(tq)
		}
		if f.PathPrefix != "" {
			pq := bleve.NewPrefixQuery(f.PathPrefix)
			pq.SetField("path")
			conj.AddQuery(pq)
		}
		q = conj
	}

	req := bleve.NewSearchRequest(q)
	req.Size = poolSize
	// Secondary sort on document ID keeps equal-score orderings stable.
	req.SortBy([]string{"-_score", "_id"})

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bm25 search failed: %w", err)
	}

	refs := make([]Ref, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, parseErr := symbol.ParseID(hit.ID)
		if parseErr != nil {
			slog.Warn("bm25_hit_bad_id", slog.String("doc_id", hit.ID))
			continue
		}
		refs = append(refs, Ref{ID: id, Rank: len(refs) + 1})
	}

	return refs, nil
}

// Delete removes documents from the index.
func (b *BleveTextIndex) Delete(ctx context.Context, ids []symbol.ID) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id.String())
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}

	return nil
}

// DocCount returns the number of indexed documents.
func (b *BleveTextIndex) DocCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}

	n, _ := b.index.DocCount()
	return int(n)
}

// Close closes the index.
func (b *BleveTextIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// Verify interface implementation
var _ TextIndex = (*BleveTextIndex)(nil)

// codeTokenizerConstructor creates the code tokenizer for Bleve.
func codeTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveCodeTokenizer{}, nil
}

// bleveCodeTokenizer implements analysis.Tokenizer for code-aware tokenization.
type bleveCodeTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *bleveCodeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeCode(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0

	for _, token := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), token)
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)

		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}

	return result
}

// codeStopFilterConstructor creates the code stop word filter for Bleve.
func codeStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &bleveCodeStopFilter{
		stopWords: BuildStopWordMap(DefaultCodeStopWords),
	}, nil
}

// bleveCodeStopFilter implements analysis.TokenFilter for code stop words.
type bleveCodeStopFilter struct {
	stopWords map[string]struct{}
}

// Filter implements analysis.TokenFilter.
func (f *bleveCodeStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		term := strings.ToLower(string(token.Term))
		if _, isStop := f.stopWords[term]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
