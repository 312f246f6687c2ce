// Package maintenance runs scheduled housekeeping against the history backend.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	rcron "github.com/robfig/cron/v3"
)

// DefaultSchedule runs the sweep at the top of every hour.
const DefaultSchedule = "@hourly"

// Purger removes expired rows and reports how many went.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type Sweeper struct {
	purger   Purger
	schedule string
	logger   *slog.Logger

	mu   sync.Mutex
	cron *rcron.Cron
}

func NewSweeper(p Purger, schedule string, logger *slog.Logger) (*Sweeper, error) {
	if p == nil {
		return nil, errors.New("maintenance: purger must not be nil")
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := rcron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("maintenance: parse schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{purger: p, schedule: schedule, logger: logger}, nil
}

// Start schedules the sweep and stops it when ctx is done.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("maintenance: sweeper already started")
	}

	c := rcron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("maintenance: register sweep: %w", err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("history sweeper started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Sweeper) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// RunOnce performs a single sweep. Failures are logged.
func (s *Sweeper) RunOnce(ctx context.Context) int64 {
	n, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.logger.Warn("history sweep failed", "err", err)
		return 0
	}
	if n > 0 {
		s.logger.Info("history sweep removed expired logs", "count", n)
	}
	return n
}
