package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the engine.  Handlers translate these
// into HTTP statuses; none of them are retried by the engine itself.
var (
	// ErrInvalidRequest covers malformed input: empty, duplicate or
	// foreign seat ids, a non-positive TTL, or an unknown show.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrShowNotFound is an ErrInvalidRequest specialization so callers
	// can distinguish an unknown show from other bad input.
	ErrShowNotFound = fmt.Errorf("%w: show not found", ErrInvalidRequest)

	// ErrNotFound means no reservation with the given ID exists.
	ErrNotFound = errors.New("reservation not found")

	// ErrExpired means the reservation's deadline has passed.  It is
	// distinct from ErrNotFound so callers can explain the timeout.
	ErrExpired = errors.New("reservation expired")

	// ErrAlreadyFinal means the reservation is CONFIRMED or CANCELLED
	// and accepts no further transitions.
	ErrAlreadyFinal = errors.New("reservation already final")

	// ErrForbidden means the reservation belongs to a different user.
	ErrForbidden = errors.New("forbidden")

	// ErrStorage wraps a non-transient storage failure.  The operation
	// had no partial effect when this is returned.
	ErrStorage = errors.New("storage failure")
)

// SeatsUnavailableError reports a lost hold race.  Conflicting lists
// the requested seats that were already held or booked; the caller may
// retry with a different seat selection.
type SeatsUnavailableError struct {
	Conflicting []string
}

func (e *SeatsUnavailableError) Error() string {
	return fmt.Sprintf("seats unavailable: %s", strings.Join(e.Conflicting, ","))
}
