// Package engine orchestrates the reservation lifecycle: hold seats
// against a show, confirm the hold after payment, cancel it, or expire
// it once its deadline passes.  The engine is the only component that
// transitions reservation state; the seat map and the ledger are never
// mutated by anything else.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/movietix/seat-reservation/internal/catalog"
	"github.com/movietix/seat-reservation/internal/ledger"
	"github.com/movietix/seat-reservation/internal/model"
	"github.com/movietix/seat-reservation/internal/seatmap"
)

// Engine drives the reservation state machine.  All methods are safe
// for concurrent use; the seat map serializes racing holds and a
// per-reservation lock serializes racing transitions of the same
// reservation.
type Engine struct {
	catalog catalog.Catalog
	seats   seatmap.SeatMap
	ledger  ledger.Ledger
	log     zerolog.Logger

	// now is replaceable in tests to drive deadlines.
	now func() time.Time

	// locks holds one mutex per in-flight reservation ID so that
	// confirm, cancel and expiry cannot interleave on one record.
	locks sync.Map
}

// New constructs an Engine over the given collaborators.
func New(cat catalog.Catalog, seats seatmap.SeatMap, led ledger.Ledger, log zerolog.Logger) *Engine {
	if cat == nil || seats == nil || led == nil {
		panic("nil dependency passed to engine.New")
	}
	return &Engine{
		catalog: cat,
		seats:   seats,
		ledger:  led,
		log:     log,
		now:     time.Now,
	}
}

// lockReservation acquires the transition lock for a reservation ID.
// The returned func releases it.
func (e *Engine) lockReservation(id string) func() {
	v, _ := e.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// forgetLock drops a reservation's transition lock once it has reached
// a terminal state, so the lock map does not grow for the lifetime of
// the process.  Dropping early is harmless: terminal states are
// monotone, and any late caller re-reads the ledger under whatever
// mutex it gets and sees the final state.
func (e *Engine) forgetLock(id string) {
	e.locks.Delete(id)
}

// Hold places a time-bounded claim on the given seats of a show.  When
// idemKey is non-empty it becomes the reservation ID, and a repeated
// hold with the same key by the same user returns the existing
// reservation instead of creating a duplicate; a different user
// replaying the key gets ErrForbidden.  On a lost race it returns a
// *SeatsUnavailableError listing the contested seats; no seats are held
// in that case.
func (e *Engine) Hold(ctx context.Context, userID, showID uint64, seatIDs []string, idemKey string, ttl time.Duration) (*model.Reservation, error) {
	// Self-heal before checking availability in case the periodic
	// sweep has fallen behind.
	e.sweep(ctx)

	if idemKey != "" {
		existing, err := e.ledger.Get(ctx, idemKey)
		if err == nil {
			// An idempotency key replays only for its original owner;
			// another user's key must not expose their reservation.
			if existing.UserID != userID {
				return nil, ErrForbidden
			}
			return existing, nil
		}
		if !errors.Is(err, ledger.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}
	}

	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", ErrInvalidRequest)
	}
	if len(seatIDs) == 0 {
		return nil, fmt.Errorf("%w: no seats requested", ErrInvalidRequest)
	}
	seen := make(map[string]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate seat %s", ErrInvalidRequest, id)
		}
		seen[id] = struct{}{}
	}

	show, err := e.catalog.Get(ctx, showID)
	if err != nil {
		if errors.Is(err, catalog.ErrShowNotFound) {
			return nil, ErrShowNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	for _, id := range seatIDs {
		if !show.HasSeat(id) {
			return nil, fmt.Errorf("%w: seat %s does not exist in show %d", ErrInvalidRequest, id, showID)
		}
	}

	reservationID := idemKey
	if reservationID == "" {
		reservationID = uuid.NewString()
	}
	now := e.now().UTC()
	deadline := now.Add(ttl)

	if err := e.seats.TryHold(ctx, showID, seatIDs, reservationID, deadline); err != nil {
		var conflict *seatmap.ConflictError
		if errors.As(err, &conflict) {
			return nil, &SeatsUnavailableError{Conflicting: conflict.Seats}
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	r := &model.Reservation{
		ID:          reservationID,
		ShowID:      showID,
		UserID:      userID,
		SeatIDs:     append([]string(nil), seatIDs...),
		Status:      model.StatusPending,
		AmountCents: show.PriceCents * uint32(len(seatIDs)),
		CreatedAt:   now,
		Deadline:    deadline,
	}
	if err := e.ledger.Put(ctx, r); err != nil {
		// The hold only counts once it is durable.  Undo the seat
		// transition so the map and the ledger stay in agreement.
		if relErr := e.seats.Release(ctx, showID, reservationID); relErr != nil {
			e.log.Error().Err(relErr).Str("reservation_id", reservationID).
				Msg("failed to release seats after ledger write failure")
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return r, nil
}

// Confirm finalizes a pending reservation, turning its held seats into
// booked ones.  A reservation past its deadline is expired on the spot
// (seats released) and ErrExpired is returned; a reservation that is
// already CONFIRMED or CANCELLED yields ErrAlreadyFinal.  Pass userID 0
// to skip the ownership check.
func (e *Engine) Confirm(ctx context.Context, userID uint64, reservationID string) (*model.Reservation, error) {
	unlock := e.lockReservation(reservationID)
	defer unlock()

	r, err := e.get(ctx, userID, reservationID)
	if err != nil {
		return nil, err
	}
	switch r.Status {
	case model.StatusExpired:
		e.forgetLock(r.ID)
		return nil, ErrExpired
	case model.StatusConfirmed, model.StatusCancelled:
		e.forgetLock(r.ID)
		return nil, ErrAlreadyFinal
	}
	if r.DueAt(e.now().UTC()) {
		if err := e.expireOne(ctx, r); err != nil {
			return nil, err
		}
		e.forgetLock(r.ID)
		return nil, ErrExpired
	}

	// Commit is idempotent for this reservation, so a retry after a
	// failed ledger write below finds its seats already BOOKED and
	// completes the transition instead of wedging.
	if err := e.seats.Commit(ctx, r.ShowID, r.ID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := r.Confirm(); err != nil {
		return nil, ErrAlreadyFinal
	}
	if err := e.ledger.Put(ctx, r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	e.forgetLock(r.ID)
	return r, nil
}

// Cancel releases a pending reservation's seats and marks it
// CANCELLED.  Cancelling a reservation in any final state, expired
// included, yields ErrAlreadyFinal.
func (e *Engine) Cancel(ctx context.Context, userID uint64, reservationID string) error {
	unlock := e.lockReservation(reservationID)
	defer unlock()

	r, err := e.get(ctx, userID, reservationID)
	if err != nil {
		return err
	}
	if r.Final() {
		e.forgetLock(r.ID)
		return ErrAlreadyFinal
	}
	if err := e.seats.Release(ctx, r.ShowID, r.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := r.Cancel(); err != nil {
		return ErrAlreadyFinal
	}
	if err := e.ledger.Put(ctx, r); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	e.forgetLock(r.ID)
	return nil
}

// ExpireDue releases every pending reservation whose deadline is at or
// before now and returns the newly expired records ordered by deadline.
// Reservations that left PENDING between the listing and the transition
// are skipped, which makes concurrent sweeps idempotent.
func (e *Engine) ExpireDue(ctx context.Context, now time.Time) ([]*model.Reservation, error) {
	due, err := e.ledger.ListPendingBefore(ctx, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	expired := make([]*model.Reservation, 0, len(due))
	for _, r := range due {
		unlock := e.lockReservation(r.ID)
		// Re-read under the lock: a concurrent confirm or sweep may
		// have moved the reservation on since the listing.
		fresh, err := e.ledger.Get(ctx, r.ID)
		if err != nil {
			unlock()
			if errors.Is(err, ledger.ErrNotFound) {
				continue
			}
			return expired, fmt.Errorf("%w: %w", ErrStorage, err)
		}
		if fresh.Status != model.StatusPending {
			e.forgetLock(fresh.ID)
			unlock()
			continue
		}
		err = e.expireOne(ctx, fresh)
		if err == nil {
			e.forgetLock(fresh.ID)
		}
		unlock()
		if err != nil {
			return expired, err
		}
		expired = append(expired, fresh)
	}
	return expired, nil
}

// OccupiedSeats returns the sorted labels of all held and booked seats
// of a show.
func (e *Engine) OccupiedSeats(ctx context.Context, showID uint64) ([]string, error) {
	if _, err := e.catalog.Get(ctx, showID); err != nil {
		if errors.Is(err, catalog.ErrShowNotFound) {
			return nil, ErrShowNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	seats, err := e.seats.Occupied(ctx, showID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return seats, nil
}

// Reservation returns a single reservation.  Ownership is enforced when
// userID is non-zero.  A pending reservation past its deadline is
// expired before it is returned, so callers never see a stale PENDING.
func (e *Engine) Reservation(ctx context.Context, userID uint64, reservationID string) (*model.Reservation, error) {
	unlock := e.lockReservation(reservationID)
	defer unlock()

	r, err := e.get(ctx, userID, reservationID)
	if err != nil {
		return nil, err
	}
	if r.Status == model.StatusPending && r.DueAt(e.now().UTC()) {
		if err := e.expireOne(ctx, r); err != nil {
			return nil, err
		}
		e.forgetLock(r.ID)
	}
	return r, nil
}

// Reservations returns all reservations placed by the given user,
// newest first.
func (e *Engine) Reservations(ctx context.Context, userID uint64) ([]*model.Reservation, error) {
	out, err := e.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return out, nil
}

// get loads a reservation and enforces ownership when userID is
// non-zero.
func (e *Engine) get(ctx context.Context, userID uint64, reservationID string) (*model.Reservation, error) {
	r, err := e.ledger.Get(ctx, reservationID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if userID != 0 && r.UserID != userID {
		return nil, ErrForbidden
	}
	return r, nil
}

// expireOne releases the seats of a pending reservation and persists
// the EXPIRED state.  Callers hold the reservation's transition lock.
func (e *Engine) expireOne(ctx context.Context, r *model.Reservation) error {
	if err := e.seats.Release(ctx, r.ShowID, r.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := r.Expire(); err != nil {
		return nil // already moved on, nothing to persist
	}
	if err := e.ledger.Put(ctx, r); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// sweep runs an opportunistic expiry pass and only logs failures; the
// caller's own operation must not fail because housekeeping did.
func (e *Engine) sweep(ctx context.Context) {
	if _, err := e.ExpireDue(ctx, e.now()); err != nil {
		e.log.Warn().Err(err).Msg("opportunistic expiry sweep failed")
	}
}
