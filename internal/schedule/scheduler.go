// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schedule repeats a job at a fixed time of day or on a fixed
// hourly interval by polling the wall clock.
package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

// DefaultPollInterval is how often the scheduler checks the clock.
const DefaultPollInterval = 60 * time.Second

// Job is one scheduled unit of work. It runs synchronously.
type Job func(ctx context.Context)

// Clock is a parsed HH:MM time of day.
type Clock struct {
	Hour, Minute int
}

// ParseClock parses a 24-hour "HH:MM" string.
func ParseClock(s string) (Clock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return Clock{}, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// NextFire returns the next run time after now. A daily clock takes
// precedence over the interval: it fires today if the time is still
// ahead, otherwise tomorrow.
func NextFire(now time.Time, daily *Clock, interval time.Duration) time.Time {
	if daily != nil {
		t := time.Date(now.Year(), now.Month(), now.Day(), daily.Hour, daily.Minute, 0, 0, now.Location())
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t
	}
	return now.Add(interval)
}

// Scheduler runs a Job on its cadence until the context is cancelled.
type Scheduler struct {
	daily    *Clock
	interval time.Duration
	log      zerolog.Logger

	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration

	// Now and Sleep default to the wall clock.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Scheduler from the schedule settings.
func New(cfg types.ScheduleConfig, log zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		interval: time.Duration(cfg.IntervalHours) * time.Hour,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
	if cfg.Time != "" {
		c, err := ParseClock(cfg.Time)
		if err != nil {
			return nil, err
		}
		s.daily = &c
	} else if s.interval <= 0 {
		return nil, fmt.Errorf("schedule interval must be positive, got %d hours", cfg.IntervalHours)
	}
	return s, nil
}

// Describe reports the cadence in human-readable form.
func (s *Scheduler) Describe() string {
	if s.daily != nil {
		return "daily at " + s.daily.String()
	}
	return fmt.Sprintf("every %s", s.interval)
}

// Run executes job on schedule. When immediately is true the job runs
// once before the first wait. Run returns nil when ctx is cancelled; a
// job already running is never interrupted by the scheduler.
func (s *Scheduler) Run(ctx context.Context, job Job, immediately bool) error {
	poll := s.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	s.log.Info().Str("schedule", s.Describe()).Msg("starting scheduler")
	if immediately {
		s.log.Info().Msg("running initial job")
		s.runJob(ctx, job)
	}

	next := NextFire(s.now(), s.daily, s.interval)
	s.log.Info().Time("next_run", next).Msg("scheduler is running")

	for {
		if err := s.sleep(ctx, poll); err != nil {
			break
		}
		if s.now().Before(next) {
			continue
		}
		s.runJob(ctx, job)
		next = NextFire(s.now(), s.daily, s.interval)
		s.log.Debug().Time("next_run", next).Msg("next scheduled run")
	}

	s.log.Info().Msg("scheduler stopped")
	return nil
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("scheduled job panicked")
		}
	}()
	s.log.Info().Msg("starting scheduled job")
	job(ctx)
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
