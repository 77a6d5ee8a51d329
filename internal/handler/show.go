package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/movietix/seat-reservation/internal/catalog"
	"github.com/movietix/seat-reservation/internal/model"
)

// SeatSeeder initializes the seat rows of a freshly created show.  The
// MySQL seat map inserts one FREE row per seat; the in-memory seat map
// needs no seeding and implements this as a no-op.
type SeatSeeder interface {
	InitShow(ctx context.Context, showID uint64, seatIDs []string) error
}

// ShowHandler serves the show catalog: public browse endpoints plus the
// owner-only creation endpoint.  Shows are immutable after creation,
// so there are no update or delete routes.
type ShowHandler struct {
	Catalog catalog.Store
	Seats   SeatSeeder
	Log     zerolog.Logger
}

// NewShowHandler constructs a ShowHandler.
func NewShowHandler(store catalog.Store, seats SeatSeeder, log zerolog.Logger) *ShowHandler {
	if store == nil || seats == nil {
		panic("nil dependency passed to NewShowHandler")
	}
	return &ShowHandler{Catalog: store, Seats: seats, Log: log}
}

// showView is the JSON shape of a show in responses.
type showView struct {
	ID         uint64 `json:"id"`
	Title      string `json:"title"`
	StartsAt   string `json:"starts_at"`
	SeatRows   uint32 `json:"seat_rows"`
	SeatCols   uint32 `json:"seat_cols"`
	SeatCount  uint32 `json:"seat_count"`
	PriceCents uint32 `json:"price_cents"`
}

func showViewOf(s *model.Show) showView {
	return showView{
		ID:         s.ID,
		Title:      s.Title,
		StartsAt:   s.StartsAt.Format(time.RFC3339),
		SeatRows:   s.SeatRows,
		SeatCols:   s.SeatCols,
		SeatCount:  s.SeatRows * s.SeatCols,
		PriceCents: s.PriceCents,
	}
}

// CreateShow handles POST /v1/shows (OWNER role).  The body names the
// title, start time, grid dimensions and per-seat price; the handler
// stores the show and seeds its seat map in one go.  Layout bounds are
// capped so a typo cannot allocate a million seat rows.
func (h *ShowHandler) CreateShow(c echo.Context) error {
	var body struct {
		Title      string `json:"title"`
		StartsAt   string `json:"starts_at"`
		SeatRows   uint32 `json:"seat_rows"`
		SeatCols   uint32 `json:"seat_cols"`
		PriceCents uint32 `json:"price_cents"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}
	startsAt, err := time.Parse(time.RFC3339, body.StartsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC3339"})
	}
	if body.SeatRows == 0 || body.SeatCols == 0 || body.SeatRows > 100 || body.SeatCols > 100 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat layout must be between 1x1 and 100x100"})
	}

	show := &model.Show{
		Title:      body.Title,
		StartsAt:   startsAt.UTC(),
		SeatRows:   body.SeatRows,
		SeatCols:   body.SeatCols,
		PriceCents: body.PriceCents,
	}
	ctx := c.Request().Context()
	if err := h.Catalog.Create(ctx, show); err != nil {
		h.Log.Error().Err(err).Msg("show creation failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create show"})
	}
	if err := h.Seats.InitShow(ctx, show.ID, show.SeatLabels()); err != nil {
		h.Log.Error().Err(err).Uint64("show_id", show.ID).Msg("seat map seeding failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to initialize seats"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"show": showViewOf(show)})
}

// ListShows handles GET /v1/shows.
func (h *ShowHandler) ListShows(c echo.Context) error {
	shows, err := h.Catalog.List(c.Request().Context())
	if err != nil {
		h.Log.Error().Err(err).Msg("show listing failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load shows"})
	}
	items := make([]showView, 0, len(shows))
	for i := range shows {
		items = append(items, showViewOf(&shows[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetShow handles GET /v1/shows/:id.
func (h *ShowHandler) GetShow(c echo.Context) error {
	showID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || showID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	show, err := h.Catalog.Get(c.Request().Context(), showID)
	if err != nil {
		if errors.Is(err, catalog.ErrShowNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "show not found"})
		}
		h.Log.Error().Err(err).Uint64("show_id", showID).Msg("show lookup failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load show"})
	}
	return c.JSON(http.StatusOK, echo.Map{"show": showViewOf(show)})
}
