package store

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"examcal/internal/apperr"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func backends(t *testing.T, c *clock) map[string]Store {
	t.Helper()

	mem := NewMemory(time.Hour)
	mem.now = c.now

	sq, err := NewSQLite(filepath.Join(t.TempDir(), "db", "downloads.db"), time.Hour)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	sq.now = c.now
	t.Cleanup(func() { sq.Close() })

	return map[string]Store{"memory": mem, "sqlite": sq}
}

func TestStoreRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)}

	for name, s := range backends(t, c) {
		t.Run(name, func(t *testing.T) {
			body := []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")
			id, err := s.Put(ctx, File{Name: "exams.ics", Body: body, Inline: true})
			if err != nil {
				t.Fatalf("Put: %v", err)
			}
			if id == "" {
				t.Fatal("Put returned an empty id")
			}

			f, err := s.Get(ctx, id)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if !bytes.Equal(f.Body, body) || f.Name != "exams.ics" || !f.Inline {
				t.Errorf("Get = %+v", f)
			}
			if !f.ExpiresAt.Equal(c.t.Add(time.Hour)) {
				t.Errorf("ExpiresAt = %v, want %v", f.ExpiresAt, c.t.Add(time.Hour))
			}

			if _, err := s.Get(ctx, "missing"); apperr.KindOf(err) != apperr.NotFound {
				t.Errorf("unknown id: err = %v, want NotFound", err)
			}

			c.advance(time.Hour)
			if _, err := s.Get(ctx, id); apperr.KindOf(err) != apperr.NotFound {
				t.Errorf("expired id: err = %v, want NotFound", err)
			}

			n, err := s.Sweep(ctx)
			if err != nil {
				t.Fatalf("Sweep: %v", err)
			}
			if n != 1 {
				t.Errorf("Sweep removed %d, want 1", n)
			}
			c.advance(-time.Hour)
			if _, err := s.Get(ctx, id); apperr.KindOf(err) != apperr.NotFound {
				t.Error("swept file must be gone even if the clock goes back")
			}
		})
	}
}

func TestOpen(t *testing.T) {
	s, err := Open("memory", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if m, ok := s.(*Memory); !ok || m.ttl != DefaultTTL {
		t.Errorf("Open(memory) = %T with default ttl expected", s)
	}

	if _, err := Open("redis", "", 0); err == nil {
		t.Error("unknown backend should fail")
	}
	if _, err := Open("sqlite", "", 0); err == nil {
		t.Error("sqlite without a path should fail")
	}
}
