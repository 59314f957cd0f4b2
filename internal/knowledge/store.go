package knowledge

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

//go:embed migrations/001_knowledge.sql
var knowledgeSchema string

// Store is the SQLite-backed knowledge store with an FTS5 index. It
// implements Searcher via BM25 ranking weighted by trust score.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the knowledge database under dataDir
// and applies the schema. Safe to call repeatedly.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "knowledge.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer keeps SQLite happy.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range splitSQL(knowledgeSchema) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

// Add inserts a knowledge item, assigning an id when absent.
func (s *Store) Add(ctx context.Context, item *Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.TrustScore == 0 {
		item.TrustScore = 0.5
	}
	tags, err := json.Marshal(item.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO knowledge_items (id, title, content, source_type, tags, trust_score)
VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.Title, item.Content, string(item.SourceType), string(tags), item.TrustScore)
	if err != nil {
		return fmt.Errorf("insert knowledge item: %w", err)
	}
	return nil
}

// Items returns every stored item, used to hydrate the vector index
// at startup.
func (s *Store) Items(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, title, content, source_type, tags, trust_score
FROM knowledge_items`)
	if err != nil {
		return nil, fmt.Errorf("list knowledge items: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var item Item
		var source, tags string
		if err := rows.Scan(&item.ID, &item.Title, &item.Content, &source, &tags, &item.TrustScore); err != nil {
			return nil, fmt.Errorf("scan knowledge item: %w", err)
		}
		item.SourceType = SourceType(source)
		if err := json.Unmarshal([]byte(tags), &item.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags for %s: %w", item.ID, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge items: %w", err)
	}
	return out, nil
}

// Count returns the number of stored items.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM knowledge_items").Scan(&n); err != nil {
		return 0, fmt.Errorf("count knowledge items: %w", err)
	}
	return n, nil
}

// Search implements Searcher with FTS5 + BM25, blended with the
// item's trust score. BM25 is negative (lower is better), hence the
// negation in the ORDER BY.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]RankedResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if limit <= 0 {
		limit = 10
	}

	ftsQuery := prepareFTSQuery(query)

	rows, err := s.db.QueryContext(ctx, `
SELECT k.id, k.title, snippet(knowledge_fts, 2, '', '', '...', 24),
       k.source_type, k.trust_score, bm25(knowledge_fts)
FROM knowledge_fts
JOIN knowledge_items k ON knowledge_fts.rowid = k.rowid
WHERE knowledge_fts MATCH ?
ORDER BY (0.7 * (-bm25(knowledge_fts))) + (0.3 * k.trust_score) DESC
LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}
	defer rows.Close()

	var out []RankedResult
	for rows.Next() {
		var r RankedResult
		var trust, bm25 float64
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet, &r.SourceType, &trust, &bm25); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		r.RelevanceScore = blendScore(bm25, trust)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search results: %w", err)
	}
	return out, nil
}

// Close flushes the WAL and closes the connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: WAL checkpoint failed: %v\n", err)
	}
	return s.db.Close()
}

// blendScore normalizes a BM25 score into [0,1] and blends it with
// trust, 70/30.
func blendScore(bm25, trust float64) float64 {
	const maxBM25 = 10.0
	norm := (-bm25) / maxBM25
	if norm < 0 {
		norm = 0
	}
	if norm > 1 {
		norm = 1
	}
	return norm*0.7 + trust*0.3
}

// prepareFTSQuery quotes each term so user input cannot carry FTS5
// syntax, then ORs the terms for recall.
func prepareFTSQuery(query string) string {
	terms := strings.Fields(query)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ReplaceAll(t, `"`, "")
		if t == "" {
			continue
		}
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// splitSQL splits the embedded schema into statements, keeping
// trigger BEGIN...END bodies intact.
func splitSQL(schema string) []string {
	var statements []string
	var current strings.Builder
	depth := 0

	for _, line := range strings.Split(schema, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}

		upper := strings.ToUpper(trimmed)
		if strings.HasSuffix(upper, "BEGIN") {
			depth++
		}
		if depth > 0 && strings.HasSuffix(upper, "END;") {
			depth--
		}

		current.WriteString(line)
		current.WriteByte('\n')

		if depth == 0 && strings.HasSuffix(trimmed, ";") {
			statements = append(statements, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		statements = append(statements, rest)
	}
	return statements
}
