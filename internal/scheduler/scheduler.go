// Package scheduler fires derivation cycles at fixed UTC hours on trading
// days.
package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Bullnettraders/levelcast/internal/config"
)

// Job is the work run at each scheduled slot.
type Job func(ctx context.Context)

// Scheduler runs a job at the configured UTC hours, once per slot.
type Scheduler struct {
	cfg config.ScheduleConfig
	job Job

	// now is swappable in tests.
	now func() time.Time
}

// New creates a scheduler for cfg.
func New(cfg config.ScheduleConfig, job Job) *Scheduler {
	hours := append([]int(nil), cfg.Hours...)
	sort.Ints(hours)
	cfg.Hours = hours
	return &Scheduler{cfg: cfg, job: job, now: time.Now}
}

// Next returns the first slot strictly after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	t = t.UTC()
	for day := 0; ; day++ {
		date := t.AddDate(0, 0, day)
		if s.cfg.WeekdaysOnly && (date.Weekday() == time.Saturday || date.Weekday() == time.Sunday) {
			continue
		}
		for _, h := range s.cfg.Hours {
			slot := time.Date(date.Year(), date.Month(), date.Day(), h, 0, 0, 0, time.UTC)
			if slot.After(t) {
				return slot
			}
		}
	}
}

// Run blocks, firing the job at every slot until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		next := s.Next(s.now().UTC())
		wait := next.Sub(s.now())
		log.Info().Time("next_run", next).Dur("wait", wait).Msg("scheduler sleeping until next slot")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		log.Info().Time("slot", next).Msg("scheduled cycle starting")
		s.job(ctx)
	}
}
