// Package query turns a user-facing natural-language query into the
// per-signal inputs the fusion engine consumes: extracted code identifiers
// for exact matching, a widened token stream for BM25, and an embedding of
// the original text for the vector signal.
package query

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/quarrylabs/quarry/internal/store"
	"github.com/quarrylabs/quarry/internal/symbol"
)

// chainPattern captures identifier-shaped runs, including dotted chains and
// path-like tokens (a.b.c, pkg::Type::method, src/parser/html_parser.py).
var chainPattern = regexp.MustCompile(`[A-Za-z0-9_]+(?:(?:::|[./])[A-Za-z0-9_]+)*`)

// englishStopwords are filtered out of extraction. Extraction never sees the
// stopwords again; the original text still reaches BM25 untouched.
var englishStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "can": {}, "do": {}, "does": {}, "for": {}, "from": {},
	"how": {}, "i": {}, "in": {}, "is": {}, "it": {}, "my": {}, "of": {},
	"on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {},
	"use": {}, "we": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"why": {}, "with": {}, "you": {},
}

// fileExtensions marks trailing chain segments that denote a file rather
// than a qualified-name component.
var fileExtensions = map[string]struct{}{
	"c": {}, "cc": {}, "cpp": {}, "cs": {}, "go": {}, "h": {}, "hpp": {},
	"java": {}, "js": {}, "jsx": {}, "kt": {}, "md": {}, "php": {},
	"py": {}, "rb": {}, "rs": {}, "scala": {}, "sh": {}, "swift": {},
	"ts": {}, "tsx": {}, "txt": {}, "yaml": {}, "yml": {},
}

// Extracted holds the per-signal token routing of one query.
type Extracted struct {
	// Identifiers are the extracted code identifiers in discovery order,
	// deduplicated, preserved verbatim. These feed the exact-match signal.
	Identifiers []string

	// BM25Terms widen the BM25 text: identifiers plus their component
	// parts and underscore-trimmed forms.
	BM25Terms []string
}

// Extract pulls code-identifier tokens out of natural-language text.
// Deterministic, pure regex, no external calls. Recognized shapes:
// CamelCase/PascalCase runs (acronym-led included), snake_case and
// SCREAMING_SNAKE_CASE, dotted identifier chains with `::` and `/`
// normalized to `.`, file-path stems, and leading-underscore identifiers.
func Extract(text string) Extracted {
	var ext Extracted
	seenIdent := make(map[string]struct{})
	seenTerm := make(map[string]struct{})

	addIdent := func(s string) {
		if _, dup := seenIdent[s]; dup {
			return
		}
		seenIdent[s] = struct{}{}
		ext.Identifiers = append(ext.Identifiers, s)
	}
	addTerm := func(s string) {
		if s == "" {
			return
		}
		if _, dup := seenTerm[s]; dup {
			return
		}
		seenTerm[s] = struct{}{}
		ext.BM25Terms = append(ext.BM25Terms, s)
	}

	for _, token := range chainPattern.FindAllString(text, -1) {
		if isStopword(token) {
			continue
		}

		switch {
		case looksLikePath(token):
			stem := pathStem(token)
			if stem == "" || isStopword(stem) {
				continue
			}
			addIdent(stem)
			addTerm(stem)
			for _, part := range store.SplitCodeToken(stem) {
				addTerm(part)
			}

		case isChain(token):
			addIdent(token)
			// Chain parts bypass the length filter: one-letter segments
			// inside a.b.c are still meaningful.
			for _, part := range splitChain(token) {
				addTerm(part)
			}
			addTerm(symbol.CanonicalName(token))

		default:
			ident, ok := classifyWord(token)
			if !ok {
				continue
			}
			addIdent(ident)
			addTerm(strings.Trim(ident, "_"))
			for _, part := range store.SplitCodeToken(ident) {
				addTerm(part)
			}
		}
	}

	return ext
}

// classifyWord decides whether a separator-free token is a code identifier.
// Plain lowercase English words are not; they reach BM25 through the
// original text instead.
func classifyWord(token string) (string, bool) {
	if len(token) < 2 {
		return "", false
	}

	switch {
	case strings.HasPrefix(token, "_"):
		// Leading-underscore identifiers are preserved verbatim for exact
		// matching; the widened form is added by the caller.
		return token, true
	case strings.Contains(token, "_"):
		return token, true
	case isMixedCase(token), isAllUpper(token):
		return token, true
	}
	return "", false
}

// isMixedCase reports whether the token mixes upper and lower case letters.
func isMixedCase(s string) bool {
	var hasUpper, hasLower bool
	for _, r := range s {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsLower(r) {
			hasLower = true
		}
	}
	return hasUpper && hasLower
}

// isAllUpper reports whether the token is an acronym-style all-caps run.
func isAllUpper(s string) bool {
	var hasUpper bool
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
	}
	return hasUpper
}

// isChain reports whether the token is a dotted identifier chain.
func isChain(token string) bool {
	return strings.Contains(token, ".") ||
		strings.Contains(token, "::") ||
		strings.Contains(token, "/")
}

// splitChain splits a chain on any of its separators.
func splitChain(token string) []string {
	canon := symbol.CanonicalName(token)
	return strings.Split(canon, ".")
}

// looksLikePath reports whether the token denotes a file path: it has a
// path separator or a trailing file extension.
func looksLikePath(token string) bool {
	if strings.Contains(token, "/") {
		last := token[strings.LastIndex(token, "/")+1:]
		if i := strings.LastIndex(last, "."); i > 0 {
			_, ok := fileExtensions[strings.ToLower(last[i+1:])]
			return ok
		}
		return false
	}
	if i := strings.LastIndex(token, "."); i > 0 && !strings.Contains(token, "::") {
		_, ok := fileExtensions[strings.ToLower(token[i+1:])]
		return ok
	}
	return false
}

// pathStem returns the basename without extension.
func pathStem(token string) string {
	base := token
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return base
}

func isStopword(token string) bool {
	_, ok := englishStopwords[strings.ToLower(token)]
	return ok
}
