package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movietix/seat-reservation/internal/catalog"
	"github.com/movietix/seat-reservation/internal/ledger"
	"github.com/movietix/seat-reservation/internal/model"
	"github.com/movietix/seat-reservation/internal/seatmap"
)

const holdTTL = 2 * time.Minute

// testClock drives the engine's notion of now from the test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T) (*Engine, *testClock, uint64) {
	t.Helper()
	cat := catalog.NewMemory()
	show := &model.Show{Title: "The Matinee", StartsAt: time.Now().Add(24 * time.Hour), SeatRows: 5, SeatCols: 10, PriceCents: 1250}
	require.NoError(t, cat.Create(context.Background(), show))

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	eng := New(cat, seatmap.NewMemory(), ledger.NewMemory(), zerolog.Nop())
	eng.now = clock.Now
	return eng, clock, show.ID
}

func TestHoldAndConfirm(t *testing.T) {
	eng, _, showID := newTestEngine(t)
	ctx := context.Background()

	r, err := eng.Hold(ctx, 7, showID, []string{"A1", "A2"}, "", holdTTL)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, r.Status)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, uint32(2500), r.AmountCents, "two seats at 1250 cents")
	assert.Equal(t, r.CreatedAt.Add(holdTTL), r.Deadline)

	confirmed, err := eng.Confirm(ctx, 7, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, confirmed.Status)

	occupied, err := eng.OccupiedSeats(ctx, showID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2"}, occupied)
}

// flakyLedger wraps a real ledger and fails exactly one Put on demand.
type flakyLedger struct {
	ledger.Ledger
	failNext bool
}

func (l *flakyLedger) Put(ctx context.Context, r *model.Reservation) error {
	if l.failNext {
		l.failNext = false
		return errors.New("write timed out")
	}
	return l.Ledger.Put(ctx, r)
}

func TestConfirmRetrySucceedsAfterLedgerWriteFailure(t *testing.T) {
	cat := catalog.NewMemory()
	show := &model.Show{Title: "Encore", StartsAt: time.Now().Add(time.Hour), SeatRows: 2, SeatCols: 2, PriceCents: 1000}
	require.NoError(t, cat.Create(context.Background(), show))

	led := &flakyLedger{Ledger: ledger.NewMemory()}
	eng := New(cat, seatmap.NewMemory(), led, zerolog.Nop())
	ctx := context.Background()

	r, err := eng.Hold(ctx, 7, show.ID, []string{"A1"}, "", holdTTL)
	require.NoError(t, err)

	// First confirm books the seat but the ledger write fails.
	led.failNext = true
	_, err = eng.Confirm(ctx, 7, r.ID)
	require.ErrorIs(t, err, ErrStorage)

	got, err := eng.Reservation(ctx, 7, r.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, got.Status)

	// The retry must complete the transition, not wedge on the already
	// booked seat.
	confirmed, err := eng.Confirm(ctx, 7, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, confirmed.Status)

	occupied, err := eng.OccupiedSeats(ctx, show.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, occupied)
}

func TestConfirmTwice(t *testing.T) {
	eng, _, showID := newTestEngine(t)
	ctx := context.Background()

	r, err := eng.Hold(ctx, 7, showID, []string{"B1"}, "", holdTTL)
	require.NoError(t, err)
	_, err = eng.Confirm(ctx, 7, r.ID)
	require.NoError(t, err)

	_, err = eng.Confirm(ctx, 7, r.ID)
	assert.ErrorIs(t, err, ErrAlreadyFinal)
}

func TestHoldValidation(t *testing.T) {
	eng, _, showID := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Hold(ctx, 7, showID, nil, "", holdTTL)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = eng.Hold(ctx, 7, showID, []string{"A1", "A1"}, "", holdTTL)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = eng.Hold(ctx, 7, showID, []string{"Z99"}, "", holdTTL)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = eng.Hold(ctx, 7, showID, []string{"A1"}, "", 0)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = eng.Hold(ctx, 7, 999, []string{"A1"}, "", holdTTL)
	assert.ErrorIs(t, err, ErrShowNotFound)
	assert.ErrorIs(t, err, ErrInvalidRequest, "unknown show is a kind of invalid request")

	// A failed validation must not leave seats occupied.
	occupied, err := eng.OccupiedSeats(ctx, showID)
	require.NoError(t, err)
	assert.Empty(t, occupied)
}

func TestHoldConflict(t *testing.T) {
	eng, _, showID := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Hold(ctx, 7, showID, []string{"A2", "A3"}, "", holdTTL)
	require.NoError(t, err)

	_, err = eng.Hold(ctx, 8, showID, []string{"A1", "A2", "A3"}, "", holdTTL)
	var unavailable *SeatsUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []string{"A2", "A3"}, unavailable.Conflicting)

	// The loser's non-contested seat stays free.
	occupied, err := eng.OccupiedSeats(ctx, showID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A2", "A3"}, occupied)
}

func TestHoldIdempotencyKey(t *testing.T) {
	eng, _, showID := newTestEngine(t)
	ctx := context.Background()

	first, err := eng.Hold(ctx, 7, showID, []string{"C1"}, "order-42", holdTTL)
	require.NoError(t, err)
	assert.Equal(t, "order-42", first.ID)

	// The retry returns the existing record instead of a conflict.
	second, err := eng.Hold(ctx, 7, showID, []string{"C1"}, "order-42", holdTTL)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Deadline, second.Deadline)

	occupied, err := eng.OccupiedSeats(ctx, showID)
	require.NoError(t, err)
	assert.Equal(t, []string{"C1"}, occupied)
}

func TestHoldIdempotencyKeyIsPerUser(t *testing.T) {
	eng, _, showID := newTestEngine(t)
	ctx := context.Background()

	first, err := eng.Hold(ctx, 7, showID, []string{"C1"}, "order-42", holdTTL)
	require.NoError(t, err)

	// Another user replaying the same key must not receive user 7's
	// reservation.
	_, err = eng.Hold(ctx, 8, showID, []string{"C2"}, "order-42", holdTTL)
	assert.ErrorIs(t, err, ErrForbidden)

	// User 7's hold is untouched and C2 was never claimed.
	occupied, err := eng.OccupiedSeats(ctx, showID)
	require.NoError(t, err)
	assert.Equal(t, []string{"C1"}, occupied)

	got, err := eng.Reservation(ctx, 7, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestExpiredHoldCannotBeConfirmed(t *testing.T) {
	eng, clock, showID := newTestEngine(t)
	ctx := context.Background()

	r, err := eng.Hold(ctx, 7, showID, []string{"A1"}, "", holdTTL)
	require.NoError(t, err)

	clock.Advance(holdTTL) // deadline itself counts as due

	_, err = eng.Confirm(ctx, 7, r.ID)
	assert.ErrorIs(t, err, ErrExpired)

	got, err := eng.Reservation(ctx, 7, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, got.Status)

	// The seat is free again for another user.
	_, err = eng.Hold(ctx, 8, showID, []string{"A1"}, "", holdTTL)
	require.NoError(t, err)
}

func TestExpireDue(t *testing.T) {
	eng, clock, showID := newTestEngine(t)
	ctx := context.Background()

	early, err := eng.Hold(ctx, 7, showID, []string{"A1"}, "", time.Minute)
	require.NoError(t, err)
	late, err := eng.Hold(ctx, 7, showID, []string{"A2"}, "", 3*time.Minute)
	require.NoError(t, err)
	keeper, err := eng.Hold(ctx, 7, showID, []string{"A3"}, "", time.Hour)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	expired, err := eng.ExpireDue(ctx, clock.Now())
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, early.ID, expired[0].ID, "deadline order")
	assert.Equal(t, late.ID, expired[1].ID)

	// A second sweep finds nothing new.
	expired, err = eng.ExpireDue(ctx, clock.Now())
	require.NoError(t, err)
	assert.Empty(t, expired)

	occupied, err := eng.OccupiedSeats(ctx, showID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A3"}, occupied)

	got, err := eng.Reservation(ctx, 7, keeper.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestExpireDueSkipsConfirmed(t *testing.T) {
	eng, clock, showID := newTestEngine(t)
	ctx := context.Background()

	r, err := eng.Hold(ctx, 7, showID, []string{"A1"}, "", holdTTL)
	require.NoError(t, err)
	_, err = eng.Confirm(ctx, 7, r.ID)
	require.NoError(t, err)

	clock.Advance(holdTTL + time.Minute)
	expired, err := eng.ExpireDue(ctx, clock.Now())
	require.NoError(t, err)
	assert.Empty(t, expired, "confirmed bookings never expire")
}

func TestCancelReleasesSeats(t *testing.T) {
	eng, _, showID := newTestEngine(t)
	ctx := context.Background()

	r, err := eng.Hold(ctx, 7, showID, []string{"A1", "A2"}, "", holdTTL)
	require.NoError(t, err)
	require.NoError(t, eng.Cancel(ctx, 7, r.ID))

	got, err := eng.Reservation(ctx, 7, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)

	// Cancelling again is rejected.
	assert.ErrorIs(t, eng.Cancel(ctx, 7, r.ID), ErrAlreadyFinal)

	// The seats are immediately available to others.
	_, err = eng.Hold(ctx, 8, showID, []string{"A1", "A2"}, "", holdTTL)
	require.NoError(t, err)
}

func TestOwnershipEnforced(t *testing.T) {
	eng, _, showID := newTestEngine(t)
	ctx := context.Background()

	r, err := eng.Hold(ctx, 7, showID, []string{"A1"}, "", holdTTL)
	require.NoError(t, err)

	_, err = eng.Confirm(ctx, 8, r.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, eng.Cancel(ctx, 8, r.ID), ErrForbidden)
	_, err = eng.Reservation(ctx, 8, r.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// userID 0 bypasses ownership for internal callers.
	_, err = eng.Reservation(ctx, 0, r.ID)
	require.NoError(t, err)
}

func TestUnknownReservation(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Confirm(ctx, 7, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, eng.Cancel(ctx, 7, "missing"), ErrNotFound)
	_, err = eng.Reservation(ctx, 7, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentConfirmAndCancel(t *testing.T) {
	eng, _, showID := newTestEngine(t)
	ctx := context.Background()

	r, err := eng.Hold(ctx, 7, showID, []string{"A1"}, "", holdTTL)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var confirmErr, cancelErr error
	wg.Add(2)
	go func() { defer wg.Done(); _, confirmErr = eng.Confirm(ctx, 7, r.ID) }()
	go func() { defer wg.Done(); cancelErr = eng.Cancel(ctx, 7, r.ID) }()
	wg.Wait()

	// Exactly one of the two racing transitions wins.
	if confirmErr == nil {
		assert.ErrorIs(t, cancelErr, ErrAlreadyFinal)
	} else {
		assert.NoError(t, cancelErr)
		assert.ErrorIs(t, confirmErr, ErrAlreadyFinal)
	}
}

func TestTerminalReservationsDropTransitionLocks(t *testing.T) {
	eng, clock, showID := newTestEngine(t)
	ctx := context.Background()

	lockCount := func() int {
		n := 0
		eng.locks.Range(func(_, _ interface{}) bool { n++; return true })
		return n
	}

	confirmed, err := eng.Hold(ctx, 7, showID, []string{"A1"}, "", holdTTL)
	require.NoError(t, err)
	cancelled, err := eng.Hold(ctx, 7, showID, []string{"A2"}, "", holdTTL)
	require.NoError(t, err)
	expiring, err := eng.Hold(ctx, 7, showID, []string{"A3"}, "", time.Minute)
	require.NoError(t, err)

	_, err = eng.Confirm(ctx, 7, confirmed.ID)
	require.NoError(t, err)
	require.NoError(t, eng.Cancel(ctx, 7, cancelled.ID))

	clock.Advance(time.Minute)
	expired, err := eng.ExpireDue(ctx, clock.Now())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, expiring.ID, expired[0].ID)

	// Every reservation is terminal, so no transition lock remains.
	assert.Equal(t, 0, lockCount())
}

func TestReservationsNewestFirst(t *testing.T) {
	eng, clock, showID := newTestEngine(t)
	ctx := context.Background()

	first, err := eng.Hold(ctx, 7, showID, []string{"A1"}, "", holdTTL)
	require.NoError(t, err)
	clock.Advance(time.Second)
	second, err := eng.Hold(ctx, 7, showID, []string{"A2"}, "", holdTTL)
	require.NoError(t, err)

	out, err := eng.Reservations(ctx, 7)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, second.ID, out[0].ID)
	assert.Equal(t, first.ID, out[1].ID)
}
