package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/tranvh2/marquee/gateway"
	"github.com/tranvh2/marquee/metrics"
	"github.com/tranvh2/marquee/rotation"
	"github.com/tranvh2/marquee/store"
)

const (
	refreshTimeout        = 30 * time.Second
	defaultRefreshMinutes = 5
)

// RefreshManager keeps the rotation list and poll cadence eventually
// consistent with the remote data gateway. A failed fetch keeps the
// last known list and cadence; the next natural poll retries without
// backoff.
type RefreshManager struct {
	gw        *gateway.Client
	db        *store.Database
	scheduler *rotation.Scheduler
	jobs      *gocron.Scheduler

	mu          sync.Mutex
	job         *gocron.Job
	interval    int
	lastRefresh time.Time
}

func NewRefreshManager(gw *gateway.Client, db *store.Database, scheduler *rotation.Scheduler, jobs *gocron.Scheduler) *RefreshManager {
	return &RefreshManager{
		gw:        gw,
		db:        db,
		scheduler: scheduler,
		jobs:      jobs,
		interval:  defaultRefreshMinutes,
	}
}

// Start performs the initial fetch and registers the recurring poll.
// A dead gateway at boot is not fatal: the scheduler falls back to
// the persisted snapshot and the poller retries on cadence.
func (r *RefreshManager) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	if items, err := r.gw.Announcements(ctx); err != nil {
		slog.Warn("initial announcement fetch failed", "error", err)
		metrics.RefreshRuns.WithLabelValues("failure").Inc()
		r.restoreSnapshot()
	} else {
		r.applyAnnouncements(items)
		r.markRefreshed()
		metrics.RefreshRuns.WithLabelValues("success").Inc()
	}

	if settings, err := r.gw.Settings(ctx); err != nil {
		slog.Warn("initial settings fetch failed, using persisted settings", "error", err)
		r.applyPersistedSettings()
	} else {
		r.applySettings(settings)
	}

	r.mu.Lock()
	interval := r.interval
	r.mu.Unlock()

	job, err := r.jobs.Every(interval).Minutes().Do(r.refresh)
	if err != nil {
		return fmt.Errorf("unable to schedule refresh poll: %w", err)
	}

	r.mu.Lock()
	r.job = job
	r.mu.Unlock()

	slog.Info("refresh poller scheduled", "interval_minutes", interval)
	return nil
}

// refresh is the recurring poll body.
func (r *RefreshManager) refresh() {
	logger := slog.With("run_id", uuid.NewString())

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	items, err := r.gw.Announcements(ctx)
	if err != nil {
		logger.Warn("announcement fetch failed, keeping last known list", "error", err)
		metrics.RefreshRuns.WithLabelValues("failure").Inc()
		return
	}
	r.applyAnnouncements(items)
	r.markRefreshed()
	metrics.RefreshRuns.WithLabelValues("success").Inc()
	logger.Debug("announcements refreshed", "count", r.scheduler.Snapshot().Count)

	settings, err := r.gw.Settings(ctx)
	if err != nil {
		logger.Warn("settings fetch failed, keeping last known cadence", "error", err)
		return
	}
	r.applySettings(settings)
}

// applyAnnouncements replaces the rotation list wholesale and
// persists it as the restart snapshot.
func (r *RefreshManager) applyAnnouncements(items []rotation.Announcement) {
	items = rotation.Normalize(items)
	r.scheduler.Replace(items)
	if err := r.db.ReplaceAnnouncements(items); err != nil {
		slog.Warn("unable to persist announcement snapshot", "error", err)
	}
}

// restoreSnapshot feeds the scheduler the last persisted list so a
// restart with an unreachable gateway still shows something.
func (r *RefreshManager) restoreSnapshot() {
	items, err := r.db.GetAnnouncements()
	if err != nil {
		slog.Warn("unable to read announcement snapshot", "error", err)
		return
	}
	if len(items) == 0 {
		return
	}
	slog.Info("restored announcement snapshot", "count", len(items))
	r.scheduler.Replace(items)
}

// applySettings clamps and adopts a fetched settings record: cadence
// re-armed when it changed, settings and screen schedule persisted
// for restart fallback.
func (r *RefreshManager) applySettings(settings *gateway.DisplaySettings) {
	interval := settings.RefreshInterval
	if interval < 1 {
		interval = 1
	}

	if err := r.db.UpsertSettings(&store.Settings{RefreshIntervalMinutes: interval}); err != nil {
		slog.Warn("unable to persist display settings", "error", err)
	}
	if err := r.db.UpsertSchedule(&store.Schedule{
		Enabled: settings.Schedule.Enabled,
		Start:   settings.Schedule.Start,
		End:     settings.Schedule.End,
	}); err != nil {
		slog.Warn("unable to persist screen schedule", "error", err)
	}

	r.mu.Lock()
	changed := interval != r.interval
	r.interval = interval
	job := r.job
	r.mu.Unlock()

	metrics.RefreshInterval.Set(float64(interval))
	if changed && job != nil {
		if _, err := r.jobs.Job(job).Every(interval).Minutes().Update(); err != nil {
			slog.Warn("unable to update refresh cadence", "error", err)
			return
		}
		slog.Info("refresh cadence updated", "interval_minutes", interval)
	}
}

func (r *RefreshManager) applyPersistedSettings() {
	interval := defaultRefreshMinutes
	if settings, err := r.db.GetSettings(); err != nil {
		slog.Warn("unable to read persisted settings", "error", err)
	} else if settings.RefreshIntervalMinutes >= 1 {
		interval = settings.RefreshIntervalMinutes
	}

	r.mu.Lock()
	r.interval = interval
	r.mu.Unlock()
	metrics.RefreshInterval.Set(float64(interval))
}

func (r *RefreshManager) markRefreshed() {
	r.mu.Lock()
	r.lastRefresh = time.Now()
	r.mu.Unlock()
}

// Status reports the poll cadence, the last successful refresh and
// the next scheduled poll for the status endpoint. last is nil before
// the first success; next is nil until the job scheduler is running.
func (r *RefreshManager) Status() (interval int, last, next *time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lastRefresh.IsZero() {
		t := r.lastRefresh
		last = &t
	}
	if r.job != nil {
		if nr := r.job.NextRun(); !nr.IsZero() {
			next = &nr
		}
	}
	return r.interval, last, next
}
