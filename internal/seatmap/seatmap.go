// Package seatmap tracks the state of every seat of a show.  A seat is
// FREE, HELD by a pending reservation, or BOOKED by a confirmed one.
// The map is the single serialization point of the reservation system:
// TryHold performs an all-or-nothing check-and-set over the requested
// seat set, so two racing holds on overlapping seats can never both
// succeed and a seat can never end up partially held.
package seatmap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Seat states as persisted in the show_seats table and the in-memory map.
const (
	StatusFree   = "FREE"
	StatusHeld   = "HELD"
	StatusBooked = "BOOKED"
)

// ErrNoHeldSeats is returned by Commit when the reservation holds no
// seats, either because it never held any or because they were already
// released.
var ErrNoHeldSeats = errors.New("reservation holds no seats")

// ConflictError reports a failed TryHold.  Seats lists the requested
// seat labels that were not FREE at the time of the attempt; the caller
// lost the race for exactly these seats and none of the requested seats
// were touched.
type ConflictError struct {
	Seats []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("seats not available: %s", strings.Join(e.Seats, ","))
}

// SeatMap is the contract the reservation engine mutates seat state
// through.  Implementations must make TryHold atomic with respect to
// concurrent callers; Commit and Release operate on whatever seats the
// reservation currently holds, and Release is idempotent.
type SeatMap interface {
	// TryHold transitions every listed seat FREE -> HELD(reservationID)
	// in one indivisible step.  If any seat is not FREE it returns a
	// *ConflictError naming the offending seats and changes nothing.
	TryHold(ctx context.Context, showID uint64, seatIDs []string, reservationID string, deadline time.Time) error

	// Commit transitions every seat held by reservationID to BOOKED.
	// It is idempotent for the owning reservation: seats it already
	// booked count as committed.  ErrNoHeldSeats is returned only when
	// the reservation owns no seats at all.
	Commit(ctx context.Context, showID uint64, reservationID string) error

	// Release transitions every seat held by reservationID back to
	// FREE.  Releasing an unknown or already-released reservation is a
	// no-op.
	Release(ctx context.Context, showID uint64, reservationID string) error

	// Occupied returns the labels of all HELD and BOOKED seats of the
	// show, sorted, for read-only availability displays.
	Occupied(ctx context.Context, showID uint64) ([]string, error)
}
