// Package expiry runs the periodic sweep that releases holds whose
// deadline has passed.  The sweep delegates to the engine's ExpireDue,
// which is idempotent, so overlapping or concurrent sweeps are
// harmless.
package expiry

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/movietix/seat-reservation/internal/engine"
	"github.com/movietix/seat-reservation/internal/model"
)

// Notifier receives the reservations a sweep expired, for audit and
// notification fan-out.  Implementations must not block for long; the
// sweep holds no locks while notifying but the next tick waits.
type Notifier interface {
	ReservationsExpired(ctx context.Context, expired []*model.Reservation)
}

// Scheduler ticks at a fixed interval and expires due holds.
type Scheduler struct {
	engine   *engine.Engine
	interval time.Duration
	notifier Notifier
	log      zerolog.Logger
}

// New constructs a Scheduler.  notifier may be nil when no event
// fan-out is wanted.
func New(eng *engine.Engine, interval time.Duration, notifier Notifier, log zerolog.Logger) *Scheduler {
	if eng == nil {
		panic("nil engine passed to expiry.New")
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{engine: eng, interval: interval, notifier: notifier, log: log}
}

// Run sweeps on every tick until the context is cancelled.  It always
// returns ctx.Err so it slots directly into an errgroup.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("expiry scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("expiry scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.SweepOnce(ctx, time.Now())
		}
	}
}

// SweepOnce expires everything due at the given instant and notifies
// the configured sink.  Failures are logged, never propagated: the
// next tick retries whatever is still pending.
func (s *Scheduler) SweepOnce(ctx context.Context, now time.Time) {
	expired, err := s.engine.ExpireDue(ctx, now)
	if err != nil {
		s.log.Error().Err(err).Msg("expiry sweep failed")
		return
	}
	if len(expired) == 0 {
		return
	}
	s.log.Info().Int("count", len(expired)).Msg("expired due reservations")
	if s.notifier != nil {
		s.notifier.ReservationsExpired(ctx, expired)
	}
}
