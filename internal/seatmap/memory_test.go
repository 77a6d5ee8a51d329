package seatmap

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryHoldThenOccupied(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	deadline := time.Now().Add(time.Minute)

	require.NoError(t, m.TryHold(ctx, 1, []string{"A1", "A2"}, "res-1", deadline))

	occupied, err := m.Occupied(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2"}, occupied)

	// A different show is untouched.
	occupied, err = m.Occupied(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, occupied)
}

func TestTryHoldConflictIsAllOrNothing(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	deadline := time.Now().Add(time.Minute)

	require.NoError(t, m.TryHold(ctx, 1, []string{"A2"}, "res-1", deadline))

	err := m.TryHold(ctx, 1, []string{"A1", "A2", "A3"}, "res-2", deadline)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"A2"}, conflict.Seats)

	// The non-conflicting seats of the losing request stay free.
	occupied, err := m.Occupied(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A2"}, occupied)
}

func TestConcurrentOverlappingHoldsHaveOneWinner(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	deadline := time.Now().Add(time.Minute)
	seats := []string{"A1", "A2", "A3"}

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.TryHold(ctx, 1, seats, "res-"+strconv.Itoa(i), deadline)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			var conflict *ConflictError
			require.ErrorAs(t, err, &conflict)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestConcurrentDisjointHoldsAllSucceed(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	deadline := time.Now().Add(time.Minute)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seat := "A" + strconv.Itoa(i+1)
			errs[i] = m.TryHold(ctx, 1, []string{seat}, "res-"+strconv.Itoa(i), deadline)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestCommitBooksOnlyOwnedSeats(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	deadline := time.Now().Add(time.Minute)

	require.NoError(t, m.TryHold(ctx, 1, []string{"A1"}, "res-1", deadline))
	require.NoError(t, m.TryHold(ctx, 1, []string{"A2"}, "res-2", deadline))

	require.NoError(t, m.Commit(ctx, 1, "res-1"))

	// res-1's seat is booked: releasing it is now a no-op.
	require.NoError(t, m.Release(ctx, 1, "res-1"))
	occupied, err := m.Occupied(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2"}, occupied)
}

func TestCommitWithoutHeldSeats(t *testing.T) {
	m := NewMemory()
	assert.ErrorIs(t, m.Commit(context.Background(), 1, "ghost"), ErrNoHeldSeats)
}

func TestCommitIsIdempotentForOwner(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	deadline := time.Now().Add(time.Minute)

	require.NoError(t, m.TryHold(ctx, 1, []string{"A1", "A2"}, "res-1", deadline))
	require.NoError(t, m.Commit(ctx, 1, "res-1"))

	// Repeating the commit finds the seats already booked by res-1 and
	// succeeds rather than reporting ErrNoHeldSeats.
	require.NoError(t, m.Commit(ctx, 1, "res-1"))

	occupied, err := m.Occupied(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2"}, occupied)
}

func TestReleaseFreesHeldSeatsAndIsIdempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	deadline := time.Now().Add(time.Minute)

	require.NoError(t, m.TryHold(ctx, 1, []string{"A1", "A2"}, "res-1", deadline))
	require.NoError(t, m.Release(ctx, 1, "res-1"))
	require.NoError(t, m.Release(ctx, 1, "res-1"))

	occupied, err := m.Occupied(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, occupied)

	// Seats can be held again by someone else.
	require.NoError(t, m.TryHold(ctx, 1, []string{"A1"}, "res-2", deadline))
}
