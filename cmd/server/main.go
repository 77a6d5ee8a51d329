package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/movietix/seat-reservation/internal/catalog"
	"github.com/movietix/seat-reservation/internal/config"
	"github.com/movietix/seat-reservation/internal/database"
	"github.com/movietix/seat-reservation/internal/engine"
	"github.com/movietix/seat-reservation/internal/expiry"
	"github.com/movietix/seat-reservation/internal/handler"
	"github.com/movietix/seat-reservation/internal/ledger"
	"github.com/movietix/seat-reservation/internal/middleware"
	"github.com/movietix/seat-reservation/internal/queue"
	"github.com/movietix/seat-reservation/internal/repository"
	"github.com/movietix/seat-reservation/internal/router"
	"github.com/movietix/seat-reservation/internal/seatmap"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	cfg := config.Load()
	if cfg.Env == "dev" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stdout}).Level(zerolog.DebugLevel)
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn().Msg("redis unavailable, cache and rate limiting disabled")
	}

	cat := catalog.NewMySQL(db)
	seats := seatmap.NewMySQL(db)
	led := ledger.NewMySQL(db)
	eng := engine.New(cat, seats, led, log.With().Str("component", "engine").Logger())

	var publisher *queue.Publisher
	if cfg.RabbitURL != "" {
		publisher = queue.NewPublisher(cfg.RabbitURL, log.With().Str("component", "publisher").Logger())
	}

	authH := handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db))
	showH := handler.NewShowHandler(cat, seats, log.With().Str("component", "shows").Logger())
	resH := handler.NewReservationHandler(eng, publisher, cfg.HoldTTL, log.With().Str("component", "reservations").Logger())

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterShows(e, showH, resH, rdb, config.LoadCacheConfig(), cfg.JWTSecret)
	router.RegisterReservations(e, resH, cfg.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// HTTP server
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	// Background expiry sweep; the publisher doubles as its notifier.
	var notifier expiry.Notifier
	if publisher != nil {
		notifier = publisher
	}
	sched := expiry.New(eng, cfg.SweepInterval, notifier, log.With().Str("component", "expiry").Logger())
	g.Go(func() error { return sched.Run(ctx) })

	// Audit consumer, only when a broker is configured.
	if cfg.RabbitURL != "" {
		consumer := queue.NewConsumer(cfg.RabbitURL, log.With().Str("component", "consumer").Logger())
		g.Go(func() error { return consumer.Run(ctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("shutdown complete")
}
