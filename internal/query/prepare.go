package query

import (
	"context"
	"log/slog"
	"strings"

	"github.com/quarrylabs/quarry/internal/embed"
	qerrors "github.com/quarrylabs/quarry/internal/errors"
	"github.com/quarrylabs/quarry/internal/search"
)

// Preparer builds engine-facing SearchQueries from raw user text. The
// embedding provider is optional; without one (or when it fails) the
// prepared query simply carries no vector and the engine searches
// BM25+exact only.
type Preparer struct {
	embedder embed.Embedder
}

// NewPreparer creates a preparer. embedder may be nil.
func NewPreparer(embedder embed.Embedder) *Preparer {
	return &Preparer{embedder: embedder}
}

// Prepare routes the query text to its per-signal inputs:
//
//   - bm25_text: extracted identifiers joined by space, then the original text
//   - exact_queries: deduplicated identifiers in discovery order
//   - query_vector: embedding of the original text (fail-open)
//   - text: the original text, kept for provenance and as BM25 fallback
func (p *Preparer) Prepare(ctx context.Context, text string) (*search.SearchQuery, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, qerrors.New(qerrors.ErrCodeQueryEmpty, "query text is empty", nil)
	}

	ext := Extract(trimmed)

	q := search.NewSearchQuery(trimmed)
	q.ExactQueries = ext.Identifiers
	if len(ext.BM25Terms) > 0 {
		q.BM25Text = strings.Join(ext.BM25Terms, " ") + " " + trimmed
	}

	if p.embedder != nil {
		vec, err := p.embedder.Embed(ctx, trimmed)
		if err != nil {
			// Fail open: the engine degrades to BM25+exact.
			slog.Warn("embedding_failed",
				slog.String("model", p.embedder.ModelName()),
				slog.String("error", err.Error()))
		} else {
			q.QueryVector = vec
		}
	}

	return q, nil
}
