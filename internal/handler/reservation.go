package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/movietix/seat-reservation/internal/engine"
	"github.com/movietix/seat-reservation/internal/model"
	"github.com/movietix/seat-reservation/internal/queue"
)

// ReservationHandler exposes the hold/confirm/cancel lifecycle over
// HTTP.  JWT authentication and role checks have already run in
// middleware; handlers read the verified user ID from the context.
// Every error the engine can return maps to exactly one status code so
// clients can distinguish a lost race (409) from a timed-out hold (410)
// from bad input (400).
type ReservationHandler struct {
	Engine    *engine.Engine
	Publisher *queue.Publisher // nil disables event publishing
	HoldTTL   time.Duration
	Log       zerolog.Logger
}

// NewReservationHandler constructs a ReservationHandler.  publisher may
// be nil.
func NewReservationHandler(eng *engine.Engine, publisher *queue.Publisher, holdTTL time.Duration, log zerolog.Logger) *ReservationHandler {
	if eng == nil {
		panic("nil engine passed to NewReservationHandler")
	}
	return &ReservationHandler{Engine: eng, Publisher: publisher, HoldTTL: holdTTL, Log: log}
}

// reservationView is the JSON shape of a reservation in responses.
type reservationView struct {
	ReservationID string   `json:"reservation_id"`
	ShowID        uint64   `json:"show_id"`
	SeatIDs       []string `json:"seat_ids"`
	Status        string   `json:"status"`
	AmountCents   uint32   `json:"amount_cents"`
	CreatedAt     string   `json:"created_at"`
	ExpiresAt     string   `json:"expires_at"`
}

func viewOf(r *model.Reservation) reservationView {
	return reservationView{
		ReservationID: r.ID,
		ShowID:        r.ShowID,
		SeatIDs:       r.SeatIDs,
		Status:        string(r.Status),
		AmountCents:   r.AmountCents,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		ExpiresAt:     r.Deadline.Format(time.RFC3339),
	}
}

// HoldSeats handles POST /v1/shows/:id/hold.  The body names the seats
// to claim and an optional idempotency key; on success the response
// carries the reservation ID, the amount due and the hold deadline the
// payment must beat.  A lost seat race returns 409 with the contested
// seat labels.
func (h *ReservationHandler) HoldSeats(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || showID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	var body struct {
		SeatIDs        []string `json:"seat_ids"`
		IdempotencyKey string   `json:"idempotency_key"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	r, err := h.Engine.Hold(c.Request().Context(), userID, showID, body.SeatIDs, body.IdempotencyKey, h.HoldTTL)
	if err != nil {
		var unavailable *engine.SeatsUnavailableError
		switch {
		case errors.As(err, &unavailable):
			return c.JSON(http.StatusConflict, echo.Map{
				"error":             "seats unavailable",
				"conflicting_seats": unavailable.Conflicting,
			})
		case errors.Is(err, engine.ErrShowNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "show not found"})
		case errors.Is(err, engine.ErrInvalidRequest):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, engine.ErrForbidden):
			// Someone else's idempotency key.
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		default:
			h.Log.Error().Err(err).Uint64("show_id", showID).Msg("hold failed")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to hold seats"})
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"reservation_id": r.ID,
		"amount_cents":   r.AmountCents,
		"expires_at":     r.Deadline.Format(time.RFC3339),
	})
}

// ConfirmReservation handles POST /v1/reservations/:id/confirm.  The
// caller invokes this only after the payment provider reported success;
// the engine then books the held seats for good.  A hold whose deadline
// passed returns 410 so the client can explain the timeout.
func (h *ReservationHandler) ConfirmReservation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID := c.Param("id")
	if reservationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	r, err := h.Engine.Confirm(c.Request().Context(), userID, reservationID)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, engine.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, engine.ErrExpired):
			return c.JSON(http.StatusGone, echo.Map{"error": "reservation expired"})
		case errors.Is(err, engine.ErrAlreadyFinal):
			return c.JSON(http.StatusConflict, echo.Map{"error": "reservation already final"})
		default:
			h.Log.Error().Err(err).Str("reservation_id", reservationID).Msg("confirm failed")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to confirm reservation"})
		}
	}
	if h.Publisher != nil {
		// Best effort; the booking stands even when the broker is down.
		if err := h.Publisher.ReservationConfirmed(c.Request().Context(), r); err != nil {
			h.Log.Warn().Err(err).Str("reservation_id", r.ID).Msg("failed to publish confirmation event")
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"reservation": viewOf(r)})
}

// CancelReservation handles DELETE /v1/reservations/:id.  Cancelling a
// pending hold releases its seats immediately; a reservation in any
// final state returns 409.
func (h *ReservationHandler) CancelReservation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID := c.Param("id")
	if reservationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	err = h.Engine.Cancel(c.Request().Context(), userID, reservationID)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, engine.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, engine.ErrAlreadyFinal):
			return c.JSON(http.StatusConflict, echo.Map{"error": "reservation already final"})
		default:
			h.Log.Error().Err(err).Str("reservation_id", reservationID).Msg("cancel failed")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel reservation"})
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// GetReservation handles GET /v1/reservations/:id.
func (h *ReservationHandler) GetReservation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID := c.Param("id")
	if reservationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	r, err := h.Engine.Reservation(c.Request().Context(), userID, reservationID)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, engine.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		default:
			h.Log.Error().Err(err).Str("reservation_id", reservationID).Msg("reservation lookup failed")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservation"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"reservation": viewOf(r)})
}

// GetOccupiedSeats handles GET /v1/shows/:id/seats/occupied.  It
// returns the union of held and booked seats so clients can grey them
// out; the view is read-only and eventual consistency is acceptable,
// which is why this route sits behind the response cache.
func (h *ReservationHandler) GetOccupiedSeats(c echo.Context) error {
	showID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || showID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	seats, err := h.Engine.OccupiedSeats(c.Request().Context(), showID)
	if err != nil {
		if errors.Is(err, engine.ErrShowNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "show not found"})
		}
		h.Log.Error().Err(err).Uint64("show_id", showID).Msg("occupied seats lookup failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load seats"})
	}
	return c.JSON(http.StatusOK, echo.Map{"seat_ids": seats})
}

// ListReservations handles GET /v1/my-reservations.  Newest first; an
// empty list is a normal response, not an error.
func (h *ReservationHandler) ListReservations(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservations, err := h.Engine.Reservations(c.Request().Context(), userID)
	if err != nil {
		h.Log.Error().Err(err).Uint64("user_id", userID).Msg("list reservations failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
	}
	items := make([]reservationView, 0, len(reservations))
	for _, r := range reservations {
		items = append(items, viewOf(r))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
