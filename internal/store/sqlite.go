package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/quarrylabs/quarry/internal/symbol"
)

// SQLiteGraph implements GraphStore on a SQLite database holding the symbol
// table and the relation edges between symbols.
type SQLiteGraph struct {
	db *sql.DB
}

// Verify interface implementation at compile time
var _ GraphStore = (*SQLiteGraph)(nil)

// NewSQLiteGraph opens (or creates) the graph database at dbPath.
// An empty path opens an in-memory database for testing.
func NewSQLiteGraph(dbPath string) (*SQLiteGraph, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for concurrent readers; a single writer avoids lock churn.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteGraph{db: db}, nil
}

// applyMigrations creates the schema if it does not exist.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS symbols (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	qualified_name TEXT NOT NULL,
	display_name   TEXT NOT NULL,
	kind           TEXT NOT NULL,
	language       TEXT NOT NULL,
	file_path      TEXT NOT NULL,
	start_byte     INTEGER NOT NULL,
	end_byte       INTEGER NOT NULL,
	start_line     INTEGER NOT NULL,
	end_line       INTEGER NOT NULL,
	signature      TEXT NOT NULL DEFAULT '',
	doc            TEXT NOT NULL DEFAULT '',
	body_hash      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_symbols_name    ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_qname   ON symbols(qualified_name);
CREATE INDEX IF NOT EXISTS idx_symbols_display ON symbols(display_name);
CREATE INDEX IF NOT EXISTS idx_symbols_path    ON symbols(file_path);

CREATE TABLE IF NOT EXISTS relations (
	from_id    TEXT NOT NULL REFERENCES symbols(id) ON DELETE CASCADE,
	to_id      TEXT NOT NULL,
	kind       TEXT NOT NULL,
	file_path  TEXT NOT NULL DEFAULT '',
	line       INTEGER NOT NULL DEFAULT 0,
	confidence REAL NOT NULL DEFAULT 1.0,
	PRIMARY KEY (from_id, to_id, kind)
);

CREATE INDEX IF NOT EXISTS idx_relations_from ON relations(from_id);
CREATE INDEX IF NOT EXISTS idx_relations_to   ON relations(to_id);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// UpsertSymbols writes symbol records. Used by the indexing subsystem and
// test fixtures; the retrieval core only reads.
func (s *SQLiteGraph) UpsertSymbols(ctx context.Context, syms []*symbol.Symbol) error {
	if len(syms) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO symbols
			(id, name, qualified_name, display_name, kind, language, file_path,
			 start_byte, end_byte, start_line, end_line, signature, doc, body_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, qualified_name=excluded.qualified_name,
			display_name=excluded.display_name, kind=excluded.kind,
			language=excluded.language, file_path=excluded.file_path,
			start_byte=excluded.start_byte, end_byte=excluded.end_byte,
			start_line=excluded.start_line, end_line=excluded.end_line,
			signature=excluded.signature, doc=excluded.doc,
			body_hash=excluded.body_hash`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, sym := range syms {
		if _, err := stmt.ExecContext(ctx,
			sym.ID.String(), sym.Name, sym.QualifiedName, sym.DisplayName,
			string(sym.Kind), sym.Language, sym.FilePath,
			sym.StartByte, sym.EndByte, sym.StartLine, sym.EndLine,
			sym.Signature, sym.Doc, sym.BodyHash,
		); err != nil {
			return fmt.Errorf("upsert symbol %s: %w", sym.ID, err)
		}
	}

	return tx.Commit()
}

// UpsertRelations writes relation edges.
func (s *SQLiteGraph) UpsertRelations(ctx context.Context, rels []*symbol.Relation) error {
	if len(rels) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO relations (from_id, to_id, kind, file_path, line, confidence)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(from_id, to_id, kind) DO UPDATE SET
			file_path=excluded.file_path, line=excluded.line,
			confidence=excluded.confidence`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rel := range rels {
		if _, err := stmt.ExecContext(ctx,
			rel.From.String(), rel.To.String(), string(rel.Kind),
			rel.FilePath, rel.Line, rel.Confidence,
		); err != nil {
			return fmt.Errorf("upsert relation %s->%s: %w", rel.From, rel.To, err)
		}
	}

	return tx.Commit()
}

// FindByName returns symbols whose short name matches exactly.
func (s *SQLiteGraph) FindByName(ctx context.Context, name string) ([]symbol.ID, error) {
	return s.queryIDs(ctx,
		`SELECT id FROM symbols WHERE name = ? ORDER BY id`, name)
}

// FindByQualifiedName returns symbols whose qualified name matches exactly
// in either canonical-dot or language-native display form.
func (s *SQLiteGraph) FindByQualifiedName(ctx context.Context, qn string) ([]symbol.ID, error) {
	return s.queryIDs(ctx,
		`SELECT id FROM symbols WHERE qualified_name = ? OR display_name = ? ORDER BY id`,
		qn, qn)
}

func (s *SQLiteGraph) queryIDs(ctx context.Context, query string, args ...any) ([]symbol.ID, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []symbol.ID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := symbol.ParseID(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt symbol id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TraverseKHop performs a bounded BFS from start. Visited nodes are reported
// once with their minimal hop distance. The frontier is processed in
// symbol.ID byte order and each node yields at most fanout neighbors, also
// in ID order, so the traversal is deterministic for a fixed graph.
func (s *SQLiteGraph) TraverseKHop(ctx context.Context, start symbol.ID, depth, fanout int, dir Direction) ([]Hop, error) {
	if depth <= 0 || fanout <= 0 {
		return []Hop{}, nil
	}

	visited := map[symbol.ID]struct{}{start: {}}
	frontier := []symbol.ID{start}
	var hops []Hop

	for dist := 1; dist <= depth && len(frontier) > 0; dist++ {
		sort.Slice(frontier, func(i, j int) bool { return frontier[i].Less(frontier[j]) })

		var next []symbol.ID
		for _, node := range frontier {
			neighbors, err := s.neighbors(ctx, node, fanout, dir)
			if err != nil {
				return nil, err
			}
			for _, n := range neighbors {
				if _, seen := visited[n]; seen {
					continue
				}
				visited[n] = struct{}{}
				hops = append(hops, Hop{ID: n, Distance: dist})
				next = append(next, n)
			}
		}
		frontier = next
	}

	return hops, nil
}

// neighbors returns up to fanout adjacent symbol IDs in byte order.
func (s *SQLiteGraph) neighbors(ctx context.Context, node symbol.ID, fanout int, dir Direction) ([]symbol.ID, error) {
	var query string
	var args []any

	switch dir {
	case DirectionIn:
		query = `SELECT from_id FROM relations WHERE to_id = ? ORDER BY from_id LIMIT ?`
		args = []any{node.String(), fanout}
	case DirectionBoth:
		query = `SELECT n FROM (
			SELECT to_id AS n FROM relations WHERE from_id = ?
			UNION
			SELECT from_id AS n FROM relations WHERE to_id = ?
		) ORDER BY n LIMIT ?`
		args = []any{node.String(), node.String(), fanout}
	default: // DirectionOut
		query = `SELECT to_id FROM relations WHERE from_id = ? ORDER BY to_id LIMIT ?`
		args = []any{node.String(), fanout}
	}

	return s.queryIDs(ctx, query, args...)
}

// Hydrate resolves ids into full symbol records, preserving input order and
// skipping ids no longer present.
func (s *SQLiteGraph) Hydrate(ctx context.Context, ids []symbol.ID) ([]*symbol.Symbol, error) {
	if len(ids) == 0 {
		return []*symbol.Symbol{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id.String()
	}

	query := fmt.Sprintf(`
		SELECT id, name, qualified_name, display_name, kind, language, file_path,
		       start_byte, end_byte, start_line, end_line, signature, doc, body_hash
		FROM symbols WHERE id IN (%s)`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[symbol.ID]*symbol.Symbol, len(ids))
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		byID[sym.ID] = sym
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*symbol.Symbol, 0, len(byID))
	for _, id := range ids {
		if sym, ok := byID[id]; ok {
			out = append(out, sym)
		}
	}
	return out, nil
}

// scanSymbol reads one symbols row.
func scanSymbol(rows *sql.Rows) (*symbol.Symbol, error) {
	var raw, kind string
	sym := &symbol.Symbol{}
	if err := rows.Scan(
		&raw, &sym.Name, &sym.QualifiedName, &sym.DisplayName, &kind,
		&sym.Language, &sym.FilePath,
		&sym.StartByte, &sym.EndByte, &sym.StartLine, &sym.EndLine,
		&sym.Signature, &sym.Doc, &sym.BodyHash,
	); err != nil {
		return nil, err
	}

	id, err := symbol.ParseID(raw)
	if err != nil {
		return nil, fmt.Errorf("corrupt symbol id %q: %w", raw, err)
	}
	sym.ID = id
	sym.Kind = symbol.Kind(kind)
	return sym, nil
}

// DeleteSymbols removes symbols and their outgoing relations.
func (s *SQLiteGraph) DeleteSymbols(ctx context.Context, ids []symbol.ID) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id.String()
	}
	in := strings.Join(placeholders, ",")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM relations WHERE to_id IN (%s)`, in), args...); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM symbols WHERE id IN (%s)`, in), args...); err != nil {
		return err
	}

	return tx.Commit()
}

// Count returns the number of stored symbols.
func (s *SQLiteGraph) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM symbols`).Scan(&n)
	return n, err
}

// Close closes the database connection.
func (s *SQLiteGraph) Close() error {
	return s.db.Close()
}
