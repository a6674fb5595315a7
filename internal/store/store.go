// Package store provides the SQLite + FTS5 persistence layer for
// generated briefs.
//
// Every accepted (or best-effort) pipeline result can be persisted as
// one labeled brief record: the raw document, its extracted ranked
// entries, and generation metadata. The pipeline itself never touches
// this package — callers use it to supply the prior brief for novelty
// checks and to keep history searchable.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.briefgen/briefgen.db"

// Brief is a single persisted brief record.
type Brief struct {
	ID         int64     `json:"id"`
	UID        string    `json:"uid"` // external reference, assigned on insert
	Topic      string    `json:"topic"`
	Template   string    `json:"template,omitempty"`
	Content    string    `json:"content"`
	ItemsJSON  string    `json:"-"` // extracted ranked entries, serialized
	Accepted   bool      `json:"accepted"`
	RetryCount int       `json:"retry_count"`
	Model      string    `json:"model,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListOpts controls pagination and filtering for List operations.
type ListOpts struct {
	Topic  string // filter by topic (empty = all)
	Limit  int
	Offset int
}

// SearchResult holds one FTS hit with rank and snippet.
type SearchResult struct {
	Brief   Brief   `json:"brief"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}

// Stats holds aggregate counts for observability.
type Stats struct {
	BriefCount    int64 `json:"briefs"`
	AcceptedCount int64 `json:"accepted"`
	TopicCount    int64 `json:"topics"`
	DBSizeBytes   int64 `json:"db_size_bytes"`
}

// Config holds configuration for NewStore.
type Config struct {
	DBPath string
}

// Store defines the brief persistence interface.
type Store interface {
	AddBrief(ctx context.Context, b *Brief) (int64, error)
	GetBrief(ctx context.Context, id int64) (*Brief, error)
	LatestBrief(ctx context.Context, topic string) (*Brief, error)
	ListBriefs(ctx context.Context, opts ListOpts) ([]*Brief, error)
	SearchBriefs(ctx context.Context, query string, limit int) ([]*SearchResult, error)
	ClearBriefs(ctx context.Context, topic string) (int64, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// SQLiteStore implements Store using SQLite + FTS5.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg Config) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Stats returns aggregate counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM briefs`).Scan(&stats.BriefCount); err != nil {
		return nil, fmt.Errorf("counting briefs: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM briefs WHERE accepted = 1`).Scan(&stats.AcceptedCount); err != nil {
		return nil, fmt.Errorf("counting accepted briefs: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT topic) FROM briefs`).Scan(&stats.TopicCount); err != nil {
		return nil, fmt.Errorf("counting topics: %w", err)
	}

	if s.dbPath != ":memory:" {
		if info, err := os.Stat(s.dbPath); err == nil {
			stats.DBSizeBytes = info.Size()
		}
	}
	return stats, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
