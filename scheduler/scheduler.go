// Package scheduler drives the batch-runner's periodic ingestion sweep.
// The core pipeline exposes only idempotent operations (spec.md §9's
// "does not schedule crons" non-goal); this package is the minimal
// concrete driver that actually calls them on a timer, since any real
// deployment needs one.
package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler manages cron-based sweep scheduling: a recurring task (the
// orchestrator's batch sweep over tracked competitions) fired either
// once daily at a fixed time or at a fixed interval.
type Scheduler struct {
	cron     *cron.Cron
	mu       sync.Mutex
	entryID  cron.EntryID
	task     func()
	location *time.Location
}

// New creates a Scheduler in the given timezone.
func New(timezone string) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
	}

	c := cron.New(cron.WithLocation(loc))

	return &Scheduler{
		cron:     c,
		location: loc,
	}, nil
}

// Schedule sets up the daily sweep at the given time (HH:MM format).
// If a previous schedule exists, it is replaced.
func (s *Scheduler) Schedule(sweepTime string, task func()) error {
	hour, minute, err := parseTime(sweepTime)
	if err != nil {
		return err
	}
	return s.replace(fmt.Sprintf("%d %d * * *", minute, hour), task)
}

// ScheduleInterval sets up the sweep to run every N minutes instead of
// once daily — the shape a competition-monitoring sweep more often
// needs than the teacher's original once-a-day digest. If a previous
// schedule exists, it is replaced.
func (s *Scheduler) ScheduleInterval(everyMinutes int, task func()) error {
	if everyMinutes < 1 {
		return fmt.Errorf("invalid interval %d: must be at least 1 minute", everyMinutes)
	}
	return s.replace(fmt.Sprintf("@every %dm", everyMinutes), task)
}

func (s *Scheduler) replace(expr string, task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}

	entryID, err := s.cron.AddFunc(expr, task)
	if err != nil {
		return fmt.Errorf("adding cron entry: %w", err)
	}

	s.entryID = entryID
	s.task = task
	slog.Info("sweep scheduled", "cron", expr, "timezone", s.location.String())
	return nil
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// parseTime extracts hour and minute from HH:MM format.
func parseTime(t string) (int, int, error) {
	if len(t) != 5 || t[2] != ':' {
		return 0, 0, fmt.Errorf("invalid time format %q: must be HH:MM", t)
	}

	hour := (int(t[0]-'0') * 10) + int(t[1]-'0')
	minute := (int(t[3]-'0') * 10) + int(t[4]-'0')

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time %q: hour 0-23, minute 0-59", t)
	}

	return hour, minute, nil
}
