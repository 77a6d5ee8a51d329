package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/movietix/seat-reservation/internal/model"
)

// Memory is an in-process Catalog used by tests and single-node runs.
type Memory struct {
	mu     sync.RWMutex
	nextID uint64
	shows  map[uint64]model.Show
}

// NewMemory returns an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{nextID: 1, shows: make(map[uint64]model.Show)}
}

// Create stores a new show, assigning its ID and creation timestamp.
func (m *Memory) Create(ctx context.Context, s *model.Show) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.nextID
	m.nextID++
	s.CreatedAt = time.Now().UTC()
	m.shows[s.ID] = *s
	return nil
}

// Get implements Catalog.
func (m *Memory) Get(ctx context.Context, id uint64) (*model.Show, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shows[id]
	if !ok {
		return nil, ErrShowNotFound
	}
	return &s, nil
}

// List implements Catalog.
func (m *Memory) List(ctx context.Context) ([]model.Show, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Show, 0, len(m.shows))
	for _, s := range m.shows {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out, nil
}
