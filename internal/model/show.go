package model

import (
	"strconv"
	"time"
)

// Show represents a scheduled screening with a fixed seating layout.
// The layout is a grid of SeatRows rows and SeatCols seats per row;
// every seat in the grid is sold at PriceCents.  Shows are immutable
// once created: the reservation engine only ever reads them.
//
// Fields:
//  ID         – primary key identifier.
//  Title      – movie title or an external reference.
//  StartsAt   – when the show begins (UTC).
//  SeatRows   – number of seating rows.
//  SeatCols   – number of seats per row.
//  PriceCents – price in cents for every seat of the show.
//  CreatedAt  – creation timestamp.
type Show struct {
	ID         uint64    // shows.id
	Title      string    // shows.title
	StartsAt   time.Time // shows.starts_at
	SeatRows   uint32    // shows.seat_rows
	SeatCols   uint32    // shows.seat_cols
	PriceCents uint32    // shows.price_cents
	CreatedAt  time.Time // shows.created_at
}

// SeatLabels enumerates every seat identifier of the show in row-major
// order: A1..A<cols>, B1..B<cols> and so on.  Row labels continue with
// AA, AB, ... beyond 26 rows.
func (s *Show) SeatLabels() []string {
	labels := make([]string, 0, int(s.SeatRows)*int(s.SeatCols))
	for r := 0; r < int(s.SeatRows); r++ {
		row := RowLabel(r)
		for n := 1; n <= int(s.SeatCols); n++ {
			labels = append(labels, row+strconv.Itoa(n))
		}
	}
	return labels
}

// HasSeat reports whether the given label names a seat inside the
// show's grid.  Labels are case-sensitive: the canonical form uses
// upper-case row letters ("A1", "AB12").
func (s *Show) HasSeat(label string) bool {
	i := 0
	for i < len(label) && label[i] >= 'A' && label[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(label) {
		return false
	}
	row, ok := rowIndex(label[:i])
	if !ok || row >= int(s.SeatRows) {
		return false
	}
	// Reject leading zeros ("A01") so every seat has exactly one name.
	if label[i] == '0' {
		return false
	}
	num := 0
	for j := i; j < len(label); j++ {
		ch := label[j]
		if ch < '0' || ch > '9' {
			return false
		}
		num = num*10 + int(ch-'0')
	}
	return num >= 1 && num <= int(s.SeatCols)
}

// RowLabel converts a zero-based row index to its alphabetical label
// (0 -> A, 25 -> Z, 26 -> AA).
func RowLabel(i int) string {
	if i < 0 {
		return ""
	}
	var res []rune
	for {
		res = append(res, rune('A'+i%26))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}

// rowIndex converts a row label back to its zero-based index.  Only
// upper-case ASCII letters are accepted.
func rowIndex(label string) (int, bool) {
	if label == "" {
		return -1, false
	}
	n := 0
	for i := 0; i < len(label); i++ {
		ch := label[i]
		if ch < 'A' || ch > 'Z' {
			return -1, false
		}
		n = n*26 + int(ch-'A'+1)
	}
	return n - 1, true
}
