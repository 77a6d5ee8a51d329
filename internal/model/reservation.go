package model

import (
	"errors"
	"time"
)

// ReservationStatus is the lifecycle state of a reservation.  A
// reservation starts PENDING and moves to exactly one of the terminal
// states; no transition ever leaves a terminal state.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "PENDING"
	StatusConfirmed ReservationStatus = "CONFIRMED"
	StatusExpired   ReservationStatus = "EXPIRED"
	StatusCancelled ReservationStatus = "CANCELLED"
)

// ErrFinalState is returned by the transition methods when the
// reservation has already reached CONFIRMED, EXPIRED or CANCELLED.
var ErrFinalState = errors.New("reservation is in a final state")

// Reservation records a time-bounded claim on a set of seats for a
// show.  The ID doubles as the caller's idempotency key when one was
// supplied with the hold request.  AmountCents is derived at hold time
// as seat count times the show price and never changes afterwards.
//
// Fields:
//  ID          – reservation identifier / idempotency key.
//  ShowID      – show whose seats are claimed.
//  UserID      – user who placed the hold.
//  SeatIDs     – seat labels claimed, in request order, no duplicates.
//  Status      – lifecycle state (see ReservationStatus).
//  AmountCents – total price in cents for all claimed seats.
//  CreatedAt   – when the hold was placed (UTC).
//  Deadline    – when a PENDING hold expires (UTC).
type Reservation struct {
	ID          string            // reservations.id
	ShowID      uint64            // reservations.show_id
	UserID      uint64            // reservations.user_id
	SeatIDs     []string          // reservation_seats rows
	Status      ReservationStatus // reservations.status
	AmountCents uint32            // reservations.amount_cents
	CreatedAt   time.Time         // reservations.created_at
	Deadline    time.Time         // reservations.deadline
}

// Final reports whether the reservation has reached a state that
// permits no further transitions.
func (r *Reservation) Final() bool {
	return r.Status != StatusPending
}

// Confirm transitions PENDING -> CONFIRMED.  Callers must have already
// verified the deadline; this method only enforces the state machine.
func (r *Reservation) Confirm() error {
	if r.Status != StatusPending {
		return ErrFinalState
	}
	r.Status = StatusConfirmed
	return nil
}

// Cancel transitions PENDING -> CANCELLED.
func (r *Reservation) Cancel() error {
	if r.Status != StatusPending {
		return ErrFinalState
	}
	r.Status = StatusCancelled
	return nil
}

// Expire transitions PENDING -> EXPIRED.
func (r *Reservation) Expire() error {
	if r.Status != StatusPending {
		return ErrFinalState
	}
	r.Status = StatusExpired
	return nil
}

// DueAt reports whether the reservation's deadline has passed at the
// given instant.  The deadline itself counts as due so that a sweep at
// exactly t = deadline releases the hold.
func (r *Reservation) DueAt(now time.Time) bool {
	return !r.Deadline.After(now)
}
