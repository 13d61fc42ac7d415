// Package store persists posting history in a local sqlite database.
// The history backs the daily budget counts across restarts and the
// comment-once guarantee per tweet.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hasan199191/crobot/internal/logging"
)

// Kind distinguishes history rows.
type Kind string

const (
	KindPost    Kind = "post"
	KindComment Kind = "comment"
)

// Post is one history row.
type Post struct {
	ID       string
	Kind     Kind
	Target   string // tweet URL for comments, topic for posts
	Content  string
	PostedAt time.Time
}

// Store wraps the history database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	target     TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	posted_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_kind_time ON posts(kind, posted_at);
CREATE INDEX IF NOT EXISTS idx_posts_target ON posts(target);
`

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// sqlite is single-writer; one connection avoids lock churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("failed to set sqlite synchronous=NORMAL: %v", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logging.Store("history store open at %s", path)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordPost inserts a history row and returns its id.
func (s *Store) RecordPost(ctx context.Context, kind Kind, target, content string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (id, kind, target, content, posted_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(kind), target, content, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("record %s: %w", kind, err)
	}
	logging.StoreDebug("recorded %s %s", kind, id)
	return id, nil
}

// HasCommented reports whether a comment was already posted on tweetURL.
func (s *Store) HasCommented(ctx context.Context, tweetURL string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE kind = ? AND target = ?`,
		string(KindComment), tweetURL).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check comment history: %w", err)
	}
	return n > 0, nil
}

// CountSince returns how many rows of kind were posted at or after t.
func (s *Store) CountSince(ctx context.Context, kind Kind, t time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE kind = ? AND posted_at >= ?`,
		string(kind), t.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s since %s: %w", kind, t, err)
	}
	return n, nil
}

// RecentPosts returns the n newest rows, newest first.
func (s *Store) RecentPosts(ctx context.Context, n int) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, target, content, posted_at FROM posts ORDER BY posted_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent posts: %w", err)
	}
	defer rows.Close()

	var out []Post
	for rows.Next() {
		var p Post
		var kind string
		if err := rows.Scan(&p.ID, &kind, &p.Target, &p.Content, &p.PostedAt); err != nil {
			return nil, fmt.Errorf("scan post row: %w", err)
		}
		p.Kind = Kind(kind)
		out = append(out, p)
	}
	return out, rows.Err()
}

// LastPostTime returns the timestamp of the newest row of any kind, or
// the zero time when the history is empty.
func (s *Store) LastPostTime(ctx context.Context) (time.Time, error) {
	var ts time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT posted_at FROM posts ORDER BY posted_at DESC LIMIT 1`).Scan(&ts)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query last post time: %w", err)
	}
	return ts, nil
}
