// Package store keeps generated calendar files for later download.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"examcal/internal/apperr"
)

// DefaultTTL is how long a generated file stays downloadable.
const DefaultTTL = time.Hour

// File is a stored calendar document.
type File struct {
	ID        string
	Name      string
	Body      []byte
	Inline    bool // serve with Content-Disposition: inline
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store persists generated files under opaque ids. Implementations are
// safe for concurrent use.
type Store interface {
	// Put stores f and returns its new id.
	Put(ctx context.Context, f File) (string, error)
	// Get returns a NotFound error for unknown or expired ids.
	Get(ctx context.Context, id string) (File, error)
	// Sweep deletes expired files and reports how many were removed.
	Sweep(ctx context.Context) (int, error)
	Close() error
}

// Open returns the backend named by kind ("memory" or "sqlite").
func Open(kind, path string, ttl time.Duration) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemory(ttl), nil
	case "sqlite":
		return NewSQLite(path, ttl)
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}
}

func newID() string { return uuid.NewString() }

func notFound(id string) error {
	return apperr.New(apperr.NotFound, fmt.Sprintf("文件 %s 不存在或已过期", id))
}

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
