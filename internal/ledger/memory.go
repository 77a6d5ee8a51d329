package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/movietix/seat-reservation/internal/model"
)

// Memory is an in-process Ledger used by tests and single-node runs.
// Records are copied on the way in and out so callers can never mutate
// ledger state without going through Put.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*model.Reservation
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]*model.Reservation)}
}

func clone(r *model.Reservation) *model.Reservation {
	cp := *r
	cp.SeatIDs = append([]string(nil), r.SeatIDs...)
	return &cp
}

// Put implements Ledger.
func (m *Memory) Put(ctx context.Context, r *model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID] = clone(r)
	return nil
}

// Get implements Ledger.
func (m *Memory) Get(ctx context.Context, id string) (*model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(r), nil
}

// ListPendingBefore implements Ledger.
func (m *Memory) ListPendingBefore(ctx context.Context, deadline time.Time) ([]*model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []*model.Reservation
	for _, r := range m.records {
		if r.Status == model.StatusPending && !r.Deadline.After(deadline) {
			due = append(due, clone(r))
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].Deadline.Equal(due[j].Deadline) {
			return due[i].ID < due[j].ID
		}
		return due[i].Deadline.Before(due[j].Deadline)
	})
	return due, nil
}

// ListByUser implements Ledger.
func (m *Memory) ListByUser(ctx context.Context, userID uint64) ([]*model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Reservation
	for _, r := range m.records {
		if r.UserID == userID {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
