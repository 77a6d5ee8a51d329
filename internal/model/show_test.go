package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeatLabelsRowMajor(t *testing.T) {
	s := Show{SeatRows: 2, SeatCols: 3}
	require.Equal(t, []string{"A1", "A2", "A3", "B1", "B2", "B3"}, s.SeatLabels())
}

func TestSeatLabelsBeyondZ(t *testing.T) {
	s := Show{SeatRows: 28, SeatCols: 1}
	labels := s.SeatLabels()
	require.Len(t, labels, 28)
	assert.Equal(t, "Z1", labels[25])
	assert.Equal(t, "AA1", labels[26])
	assert.Equal(t, "AB1", labels[27])
}

func TestHasSeat(t *testing.T) {
	s := Show{SeatRows: 3, SeatCols: 10}

	assert.True(t, s.HasSeat("A1"))
	assert.True(t, s.HasSeat("C10"))

	assert.False(t, s.HasSeat("D1"), "row out of range")
	assert.False(t, s.HasSeat("A11"), "seat number out of range")
	assert.False(t, s.HasSeat("A0"))
	assert.False(t, s.HasSeat("A01"), "leading zero is not canonical")
	assert.False(t, s.HasSeat("a1"), "lower case row")
	assert.False(t, s.HasSeat("A"))
	assert.False(t, s.HasSeat("1"))
	assert.False(t, s.HasSeat(""))
	assert.False(t, s.HasSeat("A1X"))
}

func TestRowLabelRoundTrip(t *testing.T) {
	for i := 0; i < 800; i++ {
		label := RowLabel(i)
		require.NotEmpty(t, label)
		got, ok := rowIndex(label)
		require.True(t, ok, "label %q", label)
		require.Equal(t, i, got)
	}
}
