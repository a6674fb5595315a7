package store

import "fmt"

// migrate creates all tables if they don't exist. Every statement is
// idempotent, so re-running against an existing database is safe.
func (s *SQLiteStore) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS briefs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			uid         TEXT UNIQUE NOT NULL,
			topic       TEXT NOT NULL,
			template    TEXT,
			content     TEXT NOT NULL,
			items_json  TEXT,
			accepted    INTEGER NOT NULL DEFAULT 0,
			retry_count INTEGER NOT NULL DEFAULT 0,
			model       TEXT,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_briefs_topic_created
			ON briefs(topic, created_at DESC)`,

		// FTS5 full-text search index over topic and content
		`CREATE VIRTUAL TABLE IF NOT EXISTS briefs_fts USING fts5(
			topic,
			content,
			content=briefs,
			content_rowid=id,
			tokenize='porter unicode61'
		)`,

		// FTS sync triggers
		`CREATE TRIGGER IF NOT EXISTS briefs_ai AFTER INSERT ON briefs BEGIN
			INSERT INTO briefs_fts(rowid, topic, content)
			VALUES (new.id, new.topic, new.content);
		END`,

		`CREATE TRIGGER IF NOT EXISTS briefs_ad AFTER DELETE ON briefs BEGIN
			INSERT INTO briefs_fts(briefs_fts, rowid, topic, content)
			VALUES ('delete', old.id, old.topic, old.content);
		END`,

		`CREATE TRIGGER IF NOT EXISTS briefs_au AFTER UPDATE ON briefs BEGIN
			INSERT INTO briefs_fts(briefs_fts, rowid, topic, content)
			VALUES ('delete', old.id, old.topic, old.content);
			INSERT INTO briefs_fts(rowid, topic, content)
			VALUES (new.id, new.topic, new.content);
		END`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}
	return nil
}
