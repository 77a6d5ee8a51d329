package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movietix/seat-reservation/internal/model"
)

func record(id string, userID uint64, status model.ReservationStatus, created, deadline time.Time) *model.Reservation {
	return &model.Reservation{
		ID:        id,
		ShowID:    1,
		UserID:    userID,
		SeatIDs:   []string{"A1"},
		Status:    status,
		CreatedAt: created,
		Deadline:  deadline,
	}
}

func TestPutGetCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	r := record("r1", 7, model.StatusPending, now, now.Add(time.Minute))
	require.NoError(t, m.Put(ctx, r))

	// Mutating the original after Put must not leak into the ledger.
	r.Status = model.StatusCancelled
	r.SeatIDs[0] = "Z9"

	got, err := m.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, []string{"A1"}, got.SeatIDs)

	// Same for mutations of a fetched copy.
	got.Status = model.StatusExpired
	again, err := m.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, again.Status)
}

func TestGetUnknown(t *testing.T) {
	m := NewMemory()
	_, err := m.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPendingBefore(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, m.Put(ctx, record("late", 1, model.StatusPending, base, base.Add(3*time.Minute))))
	require.NoError(t, m.Put(ctx, record("early", 1, model.StatusPending, base, base.Add(time.Minute))))
	require.NoError(t, m.Put(ctx, record("exact", 1, model.StatusPending, base, base.Add(2*time.Minute))))
	require.NoError(t, m.Put(ctx, record("confirmed", 1, model.StatusConfirmed, base, base.Add(time.Minute))))
	require.NoError(t, m.Put(ctx, record("future", 1, model.StatusPending, base, base.Add(time.Hour))))

	due, err := m.ListPendingBefore(ctx, base.Add(2*time.Minute))
	require.NoError(t, err)
	ids := make([]string, 0, len(due))
	for _, r := range due {
		ids = append(ids, r.ID)
	}
	// Deadline ascending; a deadline equal to the cutoff is included,
	// final states and future deadlines are not.
	assert.Equal(t, []string{"early", "exact"}, ids)
}

func TestListByUserNewestFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, m.Put(ctx, record("old", 7, model.StatusConfirmed, base, base)))
	require.NoError(t, m.Put(ctx, record("new", 7, model.StatusPending, base.Add(time.Hour), base.Add(2*time.Hour))))
	require.NoError(t, m.Put(ctx, record("other-user", 8, model.StatusPending, base, base)))

	out, err := m.ListByUser(ctx, 7)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "new", out[0].ID)
	assert.Equal(t, "old", out[1].ID)
}
