package store

import (
	"context"
	"sync"
	"time"
)

// Memory keeps files in process memory. Contents are lost on restart.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	files map[string]File
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:   normalizeTTL(ttl),
		now:   time.Now,
		files: make(map[string]File),
	}
}

func (m *Memory) Put(_ context.Context, f File) (string, error) {
	now := m.now()
	f.ID = newID()
	f.CreatedAt = now
	f.ExpiresAt = now.Add(m.ttl)

	m.mu.Lock()
	m.files[f.ID] = f
	m.mu.Unlock()
	return f.ID, nil
}

func (m *Memory) Get(_ context.Context, id string) (File, error) {
	m.mu.RLock()
	f, ok := m.files[id]
	m.mu.RUnlock()
	if !ok || !m.now().Before(f.ExpiresAt) {
		return File{}, notFound(id)
	}
	return f, nil
}

func (m *Memory) Sweep(_ context.Context) (int, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, f := range m.files {
		if !now.Before(f.ExpiresAt) {
			delete(m.files, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Close() error { return nil }
