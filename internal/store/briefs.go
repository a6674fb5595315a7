package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mtholland/briefgen/internal/extract"
)

// AddBrief inserts a new brief record. Assigns a UID when none is set.
// Returns the new brief ID.
func (s *SQLiteStore) AddBrief(ctx context.Context, b *Brief) (int64, error) {
	if b.Topic == "" {
		return 0, fmt.Errorf("brief topic cannot be empty")
	}
	if b.Content == "" {
		return 0, fmt.Errorf("brief content cannot be empty")
	}
	if b.UID == "" {
		b.UID = uuid.NewString()
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO briefs (uid, topic, template, content, items_json, accepted, retry_count, model, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.UID, b.Topic, b.Template, b.Content, b.ItemsJSON, b.Accepted, b.RetryCount, b.Model, now,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting brief: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	b.ID = id
	b.CreatedAt = now
	return id, nil
}

const briefColumns = `id, uid, topic, COALESCE(template, ''), content, COALESCE(items_json, ''), accepted, retry_count, COALESCE(model, ''), created_at`

func scanBrief(row interface{ Scan(...interface{}) error }) (*Brief, error) {
	b := &Brief{}
	err := row.Scan(&b.ID, &b.UID, &b.Topic, &b.Template, &b.Content,
		&b.ItemsJSON, &b.Accepted, &b.RetryCount, &b.Model, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetBrief retrieves a brief by ID. Returns nil if not found.
func (s *SQLiteStore) GetBrief(ctx context.Context, id int64) (*Brief, error) {
	b, err := scanBrief(s.db.QueryRowContext(ctx,
		`SELECT `+briefColumns+` FROM briefs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting brief %d: %w", id, err)
	}
	return b, nil
}

// LatestBrief returns the most recent brief for a topic, or nil when
// the topic has no history. This is what feeds the novelty check.
func (s *SQLiteStore) LatestBrief(ctx context.Context, topic string) (*Brief, error) {
	b, err := scanBrief(s.db.QueryRowContext(ctx,
		`SELECT `+briefColumns+` FROM briefs
		 WHERE topic = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`, topic))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest brief for %q: %w", topic, err)
	}
	return b, nil
}

// ListBriefs returns briefs newest first.
func (s *SQLiteStore) ListBriefs(ctx context.Context, opts ListOpts) ([]*Brief, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	query := `SELECT ` + briefColumns + ` FROM briefs`
	args := []interface{}{}
	if opts.Topic != "" {
		query += ` WHERE topic = ?`
		args = append(args, opts.Topic)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing briefs: %w", err)
	}
	defer rows.Close()

	var briefs []*Brief
	for rows.Next() {
		b, err := scanBrief(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning brief row: %w", err)
		}
		briefs = append(briefs, b)
	}
	return briefs, rows.Err()
}

// SearchBriefs performs full-text search over topic and content.
func (s *SQLiteStore) SearchBriefs(ctx context.Context, query string, limit int) ([]*SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT b.id, b.uid, b.topic, COALESCE(b.template, ''), b.content, COALESCE(b.items_json, ''),
		        b.accepted, b.retry_count, COALESCE(b.model, ''), b.created_at,
		        rank,
		        snippet(briefs_fts, 1, '<b>', '</b>', '...', 32)
		 FROM briefs_fts
		 JOIN briefs b ON briefs_fts.rowid = b.id
		 WHERE briefs_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("FTS search: %w", err)
	}
	defer rows.Close()

	var results []*SearchResult
	for rows.Next() {
		r := &SearchResult{}
		if err := rows.Scan(&r.Brief.ID, &r.Brief.UID, &r.Brief.Topic, &r.Brief.Template,
			&r.Brief.Content, &r.Brief.ItemsJSON, &r.Brief.Accepted, &r.Brief.RetryCount,
			&r.Brief.Model, &r.Brief.CreatedAt, &r.Score, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ClearBriefs deletes briefs for a topic, or every brief when topic is
// empty. Returns the number of deleted records.
func (s *SQLiteStore) ClearBriefs(ctx context.Context, topic string) (int64, error) {
	var result sql.Result
	var err error
	if topic == "" {
		result, err = s.db.ExecContext(ctx, `DELETE FROM briefs`)
	} else {
		result, err = s.db.ExecContext(ctx, `DELETE FROM briefs WHERE topic = ?`, topic)
	}
	if err != nil {
		return 0, fmt.Errorf("clearing briefs: %w", err)
	}
	return result.RowsAffected()
}

// MarshalItems serializes extracted ranked entries for storage.
func MarshalItems(items []extract.Item) string {
	if len(items) == 0 {
		return ""
	}
	data, err := json.Marshal(items)
	if err != nil {
		return ""
	}
	return string(data)
}

// Attempt reconstructs the stored brief in the shape the validation
// gates expect for a prior document.
func (b *Brief) Attempt() *extract.Attempt {
	var items []extract.Item
	if b.ItemsJSON != "" {
		// Fall back to re-parsing the raw text on decode failure.
		if err := json.Unmarshal([]byte(b.ItemsJSON), &items); err != nil {
			items = nil
		}
	}
	if items == nil {
		items = extract.Items(b.Content)
	}
	return &extract.Attempt{
		RawText: b.Content,
		Items:   items,
	}
}
