// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/movietix/seat-reservation/internal/config"
	"github.com/movietix/seat-reservation/internal/handler"
	"github.com/movietix/seat-reservation/internal/middleware"
)

// RegisterRoutes registers routes that require no authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the auth endpoints.  Register, login, refresh
// and logout live under /v1/auth without a session; /v1/me requires a
// valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole("OWNER", "CUSTOMER"))
	auth.GET("/me", a.Me)
}

// RegisterShows registers the show catalog endpoints.  Browsing is
// public so guests can pick a show before registering; creation is
// limited to owners.  The occupied-seats read sits behind the Redis
// response cache when one is available.
func RegisterShows(e *echo.Echo, s *handler.ShowHandler, r *handler.ReservationHandler, rdb *redis.Client, cacheCfg config.CacheConfig, jwtSecret string) {
	cached := middleware.NewRedisCache(cacheCfg, rdb)
	e.GET("/v1/shows", s.ListShows, cached)
	e.GET("/v1/shows/:id", s.GetShow, cached)
	e.GET("/v1/shows/:id/seats/occupied", r.GetOccupiedSeats, cached)

	owner := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole("OWNER"))
	owner.POST("/shows", s.CreateShow)
}

// RegisterReservations registers the customer reservation lifecycle:
// hold seats, confirm, cancel, inspect.
func RegisterReservations(e *echo.Echo, r *handler.ReservationHandler, jwtSecret string) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole("CUSTOMER"))
	g.POST("/shows/:id/hold", r.HoldSeats)
	g.POST("/reservations/:id/confirm", r.ConfirmReservation)
	g.DELETE("/reservations/:id", r.CancelReservation)
	g.GET("/reservations/:id", r.GetReservation)
	g.GET("/my-reservations", r.ListReservations)
}
