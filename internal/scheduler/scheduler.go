// Package scheduler wires the hourly optimization cycle and the
// daily/weekly/monthly snapshot and recalibration jobs onto robfig/cron,
// bound to the configured IANA timezone. A timezone setting change tears
// down and rebuilds every job without interrupting a job already running.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/mkallio/heatopt/internal/herrors"
)

// Jobs is the set of callbacks the Scheduler fires, each run with
// context.Background(). Stop and Restart wait for running jobs to finish but
// do not cancel them.
type Jobs struct {
	Hourly              func(ctx context.Context)
	DailySnapshot       func(ctx context.Context)
	WeeklyRecalibration func(ctx context.Context)
	MonthlySnapshot     func(ctx context.Context)
}

// parseLocation loads an IANA timezone name, surfacing herrors.ErrInvalidTimezone
// the same way tzclock.NewClock does.
func parseLocation(tzName string) (*time.Location, error) {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", herrors.ErrInvalidTimezone, tzName, err)
	}
	return loc, nil
}

// Scheduler owns one robfig/cron.Cron bound to an IANA location. Restart
// stops the current cron instance and replaces it with a new one on the new
// location, never coalescing or double-firing a job that was already
// in-flight at the moment of the swap.
type Scheduler struct {
	logger zerolog.Logger
	jobs   Jobs

	mu     sync.Mutex
	cron   *cron.Cron
	tzName string
	wg     sync.WaitGroup
}

// New builds a Scheduler and registers every job against tzName. An invalid
// IANA name surfaces herrors.ErrInvalidTimezone (see parseLocation).
func New(tzName string, jobs Jobs, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{logger: logger, jobs: jobs}
	if err := s.Restart(tzName); err != nil {
		return nil, err
	}
	return s, nil
}

// Restart stops the current cron instance (if any), waits for its running
// jobs to finish, and starts a fresh instance bound to the new timezone.
// Per the design's concurrency model, missed wall-clock triggers during the
// swap are never made up — cron only fires forward from the moment the new
// instance starts.
func (s *Scheduler) Restart(tzName string) error {
	s.mu.Lock()
	old := s.cron
	s.mu.Unlock()

	if old != nil {
		stopCtx := old.Stop()
		<-stopCtx.Done()
	}

	location, err := parseLocation(tzName)
	if err != nil {
		return err
	}

	c := cron.New(cron.WithLocation(location), cron.WithChain(
		cron.Recover(cron.DefaultLogger),
	))

	if s.jobs.Hourly != nil {
		if _, err := c.AddFunc("0 * * * *", s.wrap(s.jobs.Hourly)); err != nil {
			return err
		}
	}
	if s.jobs.DailySnapshot != nil {
		if _, err := c.AddFunc("5 0 * * *", s.wrap(s.jobs.DailySnapshot)); err != nil {
			return err
		}
	}
	if s.jobs.WeeklyRecalibration != nil {
		if _, err := c.AddFunc("0 2 * * 0", s.wrap(s.jobs.WeeklyRecalibration)); err != nil {
			return err
		}
	}
	if s.jobs.MonthlySnapshot != nil {
		if _, err := c.AddFunc("15 0 1 * *", s.wrap(s.jobs.MonthlySnapshot)); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.cron = c
	s.tzName = tzName
	s.mu.Unlock()

	c.Start()
	s.logger.Info().Str("timezone", tzName).Msg("scheduler started")
	return nil
}

// wrap tracks each firing with the Scheduler's WaitGroup so Stop can await
// in-flight jobs cooperatively rather than killing them mid-write.
func (s *Scheduler) wrap(fn func(ctx context.Context)) func() {
	return func() {
		s.wg.Add(1)
		defer s.wg.Done()
		fn(context.Background())
	}
}

// Stop halts future firings and blocks until any job already running
// returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()
	if c == nil {
		return
	}
	ctx := c.Stop()
	<-ctx.Done()
	s.wg.Wait()
}

// TimeZone returns the IANA name this scheduler is currently bound to.
func (s *Scheduler) TimeZone() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tzName
}

// Entries exposes the underlying cron entries, for a status surface that
// wants to report next-fire times.
func (s *Scheduler) Entries() []cron.Entry {
	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Entries()
}
