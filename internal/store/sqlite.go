package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	appLog "examcal/internal/log"
)

// SQLite keeps files in a single-file database so download links survive
// restarts.
type SQLite struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewSQLite(path string, ttl time.Duration) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite store path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One connection serializes writers.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, ttl: normalizeTTL(ttl), now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	const query = `
	CREATE TABLE IF NOT EXISTS downloads (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		body BLOB NOT NULL,
		inline INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS downloads_expires_at ON downloads (expires_at);`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to run migration: %w", err)
	}
	appLog.Debug("download store tables ready")
	return nil
}

func (s *SQLite) Put(ctx context.Context, f File) (string, error) {
	now := s.now()
	f.ID = newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO downloads (id, name, body, inline, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Body, f.Inline, now.UnixMilli(), now.Add(s.ttl).UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("store download: %w", err)
	}
	return f.ID, nil
}

func (s *SQLite) Get(ctx context.Context, id string) (File, error) {
	var (
		f                  File
		created, expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, body, inline, created_at, expires_at FROM downloads WHERE id = ? AND expires_at > ?`,
		id, s.now().UnixMilli(),
	).Scan(&f.ID, &f.Name, &f.Body, &f.Inline, &created, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return File{}, notFound(id)
	}
	if err != nil {
		return File{}, fmt.Errorf("load download: %w", err)
	}
	f.CreatedAt = time.UnixMilli(created)
	f.ExpiresAt = time.UnixMilli(expiresAt)
	return f, nil
}

func (s *SQLite) Sweep(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM downloads WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sweep downloads: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLite) Close() error { return s.db.Close() }
