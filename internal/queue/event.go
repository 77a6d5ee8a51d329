// Package queue defines the reservation events exchanged over the
// message broker and the background consumer that audits them.
package queue

// Queue names.  Both queues are declared durable by publisher and
// consumer alike, so declaration order does not matter.
const (
	ConfirmedQueue = "reservation.confirmed"
	ExpiredQueue   = "reservation.expired"
)

// ReservationConfirmedEvent is published after a reservation reaches
// CONFIRMED.  It carries enough for downstream consumers to log or
// notify without querying the primary database.
type ReservationConfirmedEvent struct {
	ReservationID string   `json:"reservation_id"`
	ShowID        uint64   `json:"show_id"`
	UserID        uint64   `json:"user_id"`
	SeatIDs       []string `json:"seats"`
	AmountCents   uint32   `json:"amount_cents"`
	ConfirmedAt   string   `json:"confirmed_at"`
}

// ReservationExpiredEvent is published for each hold the expiry sweep
// released.
type ReservationExpiredEvent struct {
	ReservationID string   `json:"reservation_id"`
	ShowID        uint64   `json:"show_id"`
	UserID        uint64   `json:"user_id"`
	SeatIDs       []string `json:"seats"`
	Deadline      string   `json:"deadline"`
	ExpiredAt     string   `json:"expired_at"`
}
