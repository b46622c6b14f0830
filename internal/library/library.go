// Package library is the SQLite-backed index of committed clips. The
// daemon inserts a row whenever a session commits; the HTTP API and
// clipctl read from it.
package library

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/clipwatch/clipwatch/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS clips (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	path        TEXT NOT NULL UNIQUE,
	started_at  TIMESTAMP NOT NULL,
	duration_s  DOUBLE NOT NULL,
	size_bytes  BIGINT NOT NULL,
	created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_clips_started_at ON clips(started_at);
`

// Clip is one indexed clip row.
type Clip struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	Filename  string    `json:"filename"`
	StartedAt time.Time `json:"started_at"`
	Seconds   float64   `json:"duration_s"`
	SizeBytes int64     `json:"size_bytes"`
}

// Stats aggregates the whole library.
type Stats struct {
	TotalClips   int     `json:"total_clips"`
	TotalBytes   int64   `json:"total_bytes"`
	TotalSeconds float64 `json:"total_seconds"`
	LastClipAt   string  `json:"last_clip_at,omitempty"`
}

// Library wraps the SQLite handle.
type Library struct {
	*sql.DB
}

// Open opens (creating if needed) the clip index at path and applies the
// schema.
func Open(path string) (*Library, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create library directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply library schema: %w", err)
	}
	return &Library{db}, nil
}

// Add indexes a committed clip.
func (l *Library) Add(rec *session.ClipRecord) (int64, error) {
	res, err := l.Exec(
		`INSERT INTO clips (path, started_at, duration_s, size_bytes) VALUES (?, ?, ?, ?)`,
		rec.Path, rec.StartedAt.UTC(), rec.Seconds, rec.SizeBytes,
	)
	if err != nil {
		return 0, fmt.Errorf("insert clip: %w", err)
	}
	return res.LastInsertId()
}

// List returns clips newest first. limit <= 0 means no limit.
func (l *Library) List(limit int) ([]Clip, error) {
	q := `SELECT id, path, started_at, duration_s, size_bytes FROM clips ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clips []Clip
	for rows.Next() {
		var c Clip
		if err := rows.Scan(&c.ID, &c.Path, &c.StartedAt, &c.Seconds, &c.SizeBytes); err != nil {
			return nil, err
		}
		c.Filename = filepath.Base(c.Path)
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

// Get returns one clip by id.
func (l *Library) Get(id int64) (*Clip, error) {
	var c Clip
	err := l.QueryRow(
		`SELECT id, path, started_at, duration_s, size_bytes FROM clips WHERE id = ?`, id,
	).Scan(&c.ID, &c.Path, &c.StartedAt, &c.Seconds, &c.SizeBytes)
	if err != nil {
		return nil, err
	}
	c.Filename = filepath.Base(c.Path)
	return &c, nil
}

// Remove deletes a clip row and best-effort removes the file behind it.
// A missing file does not fail the removal.
func (l *Library) Remove(id int64) error {
	c, err := l.Get(id)
	if err != nil {
		return err
	}
	if _, err := l.Exec(`DELETE FROM clips WHERE id = ?`, id); err != nil {
		return err
	}
	if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clip row deleted but file removal failed: %w", err)
	}
	return nil
}

// Aggregate computes library-wide stats.
func (l *Library) Aggregate() (Stats, error) {
	var s Stats
	var last sql.NullString
	err := l.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(size_bytes), 0), COALESCE(SUM(duration_s), 0), MAX(started_at) FROM clips`,
	).Scan(&s.TotalClips, &s.TotalBytes, &s.TotalSeconds, &last)
	if err != nil {
		return s, err
	}
	if last.Valid {
		s.LastClipAt = last.String
	}
	return s, nil
}
