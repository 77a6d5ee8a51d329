// Package ledger persists reservation records.  The ledger is the
// durable side of the reservation engine: a hold, confirm, cancel or
// expiry only counts once the corresponding record is written here, so
// a crash can never leave the seat map claiming an owner the ledger
// does not know about.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/movietix/seat-reservation/internal/model"
)

// ErrNotFound is returned by Get when no reservation with the given ID
// exists.
var ErrNotFound = errors.New("reservation not found")

// Ledger is a durable key-value store of reservations keyed by
// reservation ID.  Put must not return until the write is durable.
type Ledger interface {
	// Put inserts the reservation or updates its status.  The seat set
	// and amounts of an existing record never change; only the
	// lifecycle status does.
	Put(ctx context.Context, r *model.Reservation) error

	// Get returns the reservation with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Reservation, error)

	// ListPendingBefore returns every PENDING reservation whose
	// deadline is at or before the given instant, ordered by deadline
	// ascending.  The expiry sweep is driven off this query, so
	// implementations index by (status, deadline).
	ListPendingBefore(ctx context.Context, deadline time.Time) ([]*model.Reservation, error)

	// ListByUser returns all reservations placed by the user, newest
	// first.
	ListByUser(ctx context.Context, userID uint64) ([]*model.Reservation, error)
}
