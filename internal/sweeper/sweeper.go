// Package sweeper expires stale governance state on a schedule: pending
// alerts past their maximum age, and locks whose alert never got a decision.
// One instance sweeps at a time; peers coordinate through a Redis leader key.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"keystone/internal/sweeper/metrics"
	"keystone/pkg/requestcontext"
)

// AlertExpirer expires pending alerts created at or before the cutoff and
// returns how many it expired.
type AlertExpirer interface {
	ExpirePending(ctx context.Context, cutoff time.Time) (int, error)
}

// LockExpirer expires active locks locked at or before the cutoff and
// returns how many it expired.
type LockExpirer interface {
	ExpireOld(ctx context.Context, cutoff time.Time) (int, error)
}

// Leader gates a sweep round to a single instance. A nil Leader in the
// Sweeper means single-instance deployment; every round sweeps.
type Leader interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type Sweeper struct {
	alerts      AlertExpirer
	locks       LockExpirer
	leader      Leader
	interval    time.Duration
	alertMaxAge time.Duration
	lockMaxAge  time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

// WithLeader enables multi-instance coordination.
func WithLeader(leader Leader) Option {
	return func(s *Sweeper) { s.leader = leader }
}

func New(alerts AlertExpirer, locks LockExpirer, interval, alertMaxAge, lockMaxAge time.Duration, opts ...Option) (*Sweeper, error) {
	if alerts == nil {
		return nil, fmt.Errorf("alert expirer is required")
	}
	if locks == nil {
		return nil, fmt.Errorf("lock expirer is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive")
	}
	if alertMaxAge <= 0 || lockMaxAge <= 0 {
		return nil, fmt.Errorf("expiry ages must be positive")
	}

	s := &Sweeper{
		alerts:      alerts,
		locks:       locks,
		interval:    interval,
		alertMaxAge: alertMaxAge,
		lockMaxAge:  lockMaxAge,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.sweepRound(ctx); err != nil {
				s.logger.ErrorContext(ctx, "sweep round failed", "error", err)
				s.metrics.IncRun("failed")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Sweeper) sweepRound(ctx context.Context) error {
	if s.leader != nil {
		acquired, err := s.leader.TryAcquire(ctx)
		if err != nil {
			return err
		}
		if !acquired {
			s.metrics.IncRun("skipped")
			return nil
		}
		defer func() {
			if err := s.leader.Release(ctx); err != nil {
				s.logger.WarnContext(ctx, "release leader lock", "error", err)
			}
		}()
	}

	start := time.Now()
	alertsExpired, locksExpired, err := s.SweepAt(ctx, requestcontext.Now(ctx))
	s.metrics.ObserveSweep(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	s.metrics.IncRun("swept")
	if alertsExpired > 0 || locksExpired > 0 {
		s.logger.InfoContext(ctx, "sweep complete",
			"alerts_expired", alertsExpired,
			"locks_expired", locksExpired,
		)
	}
	return nil
}

// SweepAt runs one sweep with now as the reference time. An alert exactly at
// the maximum age is expired; orphaned locks get the same treatment against
// the lock age. Exported for testability; Run passes wall-clock time.
func (s *Sweeper) SweepAt(ctx context.Context, now time.Time) (alertsExpired, locksExpired int, err error) {
	alertsExpired, err = s.alerts.ExpirePending(ctx, now.Add(-s.alertMaxAge))
	if err != nil {
		return 0, 0, fmt.Errorf("expire alerts: %w", err)
	}
	s.metrics.AddAlertsExpired(alertsExpired)

	locksExpired, err = s.locks.ExpireOld(ctx, now.Add(-s.lockMaxAge))
	if err != nil {
		return alertsExpired, 0, fmt.Errorf("expire locks: %w", err)
	}
	s.metrics.AddLocksExpired(locksExpired)

	return alertsExpired, locksExpired, nil
}
