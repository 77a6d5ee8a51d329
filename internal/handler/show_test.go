package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movietix/seat-reservation/internal/catalog"
	"github.com/movietix/seat-reservation/internal/seatmap"
)

func newShowHandler(t *testing.T) *ShowHandler {
	t.Helper()
	return NewShowHandler(catalog.NewMemory(), seatmap.NewMemory(), zerolog.Nop())
}

func TestCreateShow(t *testing.T) {
	h := newShowHandler(t)
	startsAt := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)

	rec := doJSON(t, h.CreateShow, http.MethodPost, "/v1/shows",
		`{"title":"Opening Night","starts_at":"`+startsAt+`","seat_rows":5,"seat_cols":8,"price_cents":1200}`,
		1, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Show struct {
			ID        uint64 `json:"id"`
			SeatCount uint32 `json:"seat_count"`
		} `json:"show"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(1), resp.Show.ID)
	assert.Equal(t, uint32(40), resp.Show.SeatCount)
}

func TestCreateShowValidation(t *testing.T) {
	h := newShowHandler(t)
	startsAt := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	cases := []struct {
		name string
		body string
	}{
		{"missing title", `{"starts_at":"` + startsAt + `","seat_rows":5,"seat_cols":8}`},
		{"bad time", `{"title":"X","starts_at":"tomorrow","seat_rows":5,"seat_cols":8}`},
		{"zero rows", `{"title":"X","starts_at":"` + startsAt + `","seat_rows":0,"seat_cols":8}`},
		{"oversized grid", `{"title":"X","starts_at":"` + startsAt + `","seat_rows":101,"seat_cols":8}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h.CreateShow, http.MethodPost, "/v1/shows", tc.body, 1, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestListAndGetShow(t *testing.T) {
	h := newShowHandler(t)
	startsAt := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	rec := doJSON(t, h.CreateShow, http.MethodPost, "/v1/shows",
		`{"title":"Matinee","starts_at":"`+startsAt+`","seat_rows":2,"seat_cols":2,"price_cents":500}`,
		1, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h.ListShows, http.MethodGet, "/v1/shows", "", 0, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Matinee")

	rec = doJSON(t, h.GetShow, http.MethodGet, "/v1/shows/1", "", 0, map[string]string{"id": "1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h.GetShow, http.MethodGet, "/v1/shows/9", "", 0, map[string]string{"id": "9"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
