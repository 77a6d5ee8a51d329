package seatmap

import (
	"context"
	"sort"
	"sync"
	"time"
)

// seatEntry records the owner of a non-FREE seat.  FREE seats are not
// stored at all: absence from the map means available.
type seatEntry struct {
	status        string // HELD or BOOKED
	reservationID string
	deadline      time.Time // meaningful only while HELD
}

// showSeats is the seat table of a single show guarded by its own
// mutex.  The per-show lock is held for the full duration of the
// check-and-set, which makes TryHold indivisible for that show while
// leaving unrelated shows fully concurrent.
type showSeats struct {
	mu    sync.Mutex
	seats map[string]seatEntry
}

// Memory is an in-process SeatMap keyed by show ID.  It backs the
// engine in tests and single-node deployments; the MySQL
// implementation provides the same contract against shared storage.
type Memory struct {
	mu    sync.Mutex
	shows map[uint64]*showSeats
}

// NewMemory returns an empty in-memory seat map.
func NewMemory() *Memory {
	return &Memory{shows: make(map[uint64]*showSeats)}
}

// forShow returns the seat table of a show, creating it on first use.
func (m *Memory) forShow(showID uint64) *showSeats {
	m.mu.Lock()
	defer m.mu.Unlock()
	ss, ok := m.shows[showID]
	if !ok {
		ss = &showSeats{seats: make(map[string]seatEntry)}
		m.shows[showID] = ss
	}
	return ss
}

// InitShow is a no-op: the in-memory map treats any seat it has no
// entry for as FREE, so new shows need no seeding.  It exists so the
// memory and MySQL seat maps are interchangeable at show creation.
func (m *Memory) InitShow(ctx context.Context, showID uint64, seatIDs []string) error {
	return nil
}

// TryHold implements SeatMap.  The conflict check and the state
// writes happen under one critical section, so concurrent holds on
// overlapping seat sets resolve to exactly one winner.
func (m *Memory) TryHold(ctx context.Context, showID uint64, seatIDs []string, reservationID string, deadline time.Time) error {
	ss := m.forShow(showID)
	ss.mu.Lock()
	defer ss.mu.Unlock()

	var conflicts []string
	for _, id := range seatIDs {
		if _, taken := ss.seats[id]; taken {
			conflicts = append(conflicts, id)
		}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return &ConflictError{Seats: conflicts}
	}
	for _, id := range seatIDs {
		ss.seats[id] = seatEntry{status: StatusHeld, reservationID: reservationID, deadline: deadline}
	}
	return nil
}

// Commit implements SeatMap.  Seats the reservation already booked
// count as committed, so a retried commit after a partial failure
// downstream succeeds instead of reporting ErrNoHeldSeats.
func (m *Memory) Commit(ctx context.Context, showID uint64, reservationID string) error {
	ss := m.forShow(showID)
	ss.mu.Lock()
	defer ss.mu.Unlock()

	owned := 0
	for id, e := range ss.seats {
		if e.reservationID != reservationID {
			continue
		}
		if e.status == StatusHeld {
			ss.seats[id] = seatEntry{status: StatusBooked, reservationID: reservationID}
		}
		owned++
	}
	if owned == 0 {
		return ErrNoHeldSeats
	}
	return nil
}

// Release implements SeatMap.  Only HELD seats are returned to FREE;
// BOOKED seats stay booked, and releasing twice is a no-op.
func (m *Memory) Release(ctx context.Context, showID uint64, reservationID string) error {
	ss := m.forShow(showID)
	ss.mu.Lock()
	defer ss.mu.Unlock()

	for id, e := range ss.seats {
		if e.status == StatusHeld && e.reservationID == reservationID {
			delete(ss.seats, id)
		}
	}
	return nil
}

// Occupied implements SeatMap.
func (m *Memory) Occupied(ctx context.Context, showID uint64) ([]string, error) {
	ss := m.forShow(showID)
	ss.mu.Lock()
	defer ss.mu.Unlock()

	out := make([]string, 0, len(ss.seats))
	for id := range ss.seats {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
