package api

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/tranvh2/marquee/store"
)

// ScheduleManager periodically checks the time to decide if the
// display output needs to be turned off or on. The on/off window
// comes from the screen schedule fetched by the refresh poller and
// persisted in the store.
type ScheduleManager struct {
	db   *store.Database
	ctrl DisplayController
	jobs *gocron.Scheduler

	lastCheck time.Time
	now       func() time.Time
}

func NewScheduleManager(db *store.Database, ctrl DisplayController, jobs *gocron.Scheduler) (*ScheduleManager, error) {
	if db == nil {
		return nil, errors.New("no database provided for scheduler")
	}
	if ctrl == nil {
		return nil, errors.New("no display controller provided for scheduler")
	}

	return &ScheduleManager{
		db:   db,
		ctrl: ctrl,
		jobs: jobs,
		now:  time.Now,
	}, nil
}

// Start runs the first check immediately and registers the recurring
// per-minute check.
func (s *ScheduleManager) Start() error {
	s.checkSchedule()
	if _, err := s.jobs.Every(1).Minute().Do(s.checkSchedule); err != nil {
		return fmt.Errorf("unable to schedule display schedule check: %w", err)
	}
	return nil
}

func (s *ScheduleManager) checkSchedule() {
	schedule, err := s.db.GetSchedule()
	if err != nil {
		slog.Error("unable to get schedule", "error", err)
		return
	}

	if !schedule.Enabled {
		return
	}

	startTime, err := time.Parse("15:04", schedule.Start)
	if err != nil {
		slog.Warn("start time with invalid format", "start", schedule.Start, "error", err)
		return
	}

	endTime, err := time.Parse("15:04", schedule.End)
	if err != nil {
		slog.Warn("end time with invalid format", "end", schedule.End, "error", err)
		return
	}

	now := s.now()
	defer func() { s.lastCheck = now }()

	inside := inWindow(now, startTime, endTime)

	// act only on boundary crossings so a manual override holds until
	// the next scheduled flip; the first check after boot snaps the
	// display to where the schedule says it should be
	if !s.lastCheck.IsZero() && inWindow(s.lastCheck, startTime, endTime) == inside {
		return
	}

	if err := s.ctrl.SetEnabled(inside); err != nil {
		slog.Warn("issue while applying display schedule", "enabled", inside, "error", err)
		return
	}
	slog.Info("display schedule applied", "enabled", inside, "time", now)
}

// inWindow reports whether t falls inside the on-window. A window
// whose start is later than its end runs past midnight, e.g.
// 06:00-00:30.
func inWindow(t, start, end time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	s := start.Hour()*60 + start.Minute()
	e := end.Hour()*60 + end.Minute()
	if s <= e {
		return m >= s && m < e
	}
	return m >= s || m < e
}
