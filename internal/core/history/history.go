// Package history records resolved notes in a local sqlite database so the
// CLI can list what was looked up before.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const createTable = `CREATE TABLE IF NOT EXISTS resolutions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	platform   TEXT    NOT NULL,
	note_id    TEXT    NOT NULL DEFAULT '',
	target_url TEXT    NOT NULL,
	image_url  TEXT    NOT NULL,
	images     INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
)`

// Entry is one successful resolution
type Entry struct {
	ID        int64
	Platform  string
	NoteID    string
	TargetURL string
	ImageURL  string
	Images    int
	CreatedAt time.Time
}

// Store wraps the history database. Only the newest limit entries are kept;
// a non-positive limit keeps everything.
type Store struct {
	db    *sql.DB
	limit int
	now   func() time.Time
}

// Open opens (creating if needed) the history database at path
func Open(path string, limit int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history table: %w", err)
	}
	return &Store{db: db, limit: limit, now: time.Now}, nil
}

// Add stores an entry and prunes anything beyond the limit
func (s *Store) Add(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resolutions (platform, note_id, target_url, image_url, images, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Platform, e.NoteID, e.TargetURL, e.ImageURL, e.Images, e.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("saving history: %w", err)
	}

	if s.limit > 0 {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM resolutions WHERE id NOT IN (
				SELECT id FROM resolutions ORDER BY id DESC LIMIT ?
			)`, s.limit)
		if err != nil {
			return fmt.Errorf("pruning history: %w", err)
		}
	}
	return nil
}

// Recent returns up to n entries, newest first. n <= 0 returns all of them.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, platform, note_id, target_url, image_url, images, created_at
		 FROM resolutions ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.ID, &e.Platform, &e.NoteID, &e.TargetURL, &e.ImageURL, &e.Images, &created); err != nil {
			return nil, fmt.Errorf("reading history: %w", err)
		}
		e.CreatedAt = time.UnixMilli(created)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return entries, nil
}

// Clear removes every entry and reports how many were deleted
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM resolutions`)
	if err != nil {
		return 0, fmt.Errorf("clearing history: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Close() error {
	return s.db.Close()
}
