package rotation

import (
	"sync"
	"time"

	"github.com/tranvh2/marquee/metrics"
)

// Scheduler owns the current index and drives automatic advancement.
// Every operation that changes the index or replaces the list cancels
// the outstanding advance timer before arming a new one, so at most
// one timer is live at any instant and a stale expiry can never land
// on the wrong item.
type Scheduler struct {
	surface Surface

	mu      sync.Mutex
	items   []Announcement
	current int
	loaded  bool
	stopped bool

	timer *time.Timer
	// arm is the generation of the armed timer; expiries carrying an
	// older generation are discarded
	arm uint64
	seq uint64

	// scale converts an item's display_duration into wall time.
	// Production uses time.Second; tests shrink it.
	scale time.Duration
}

// Snapshot is a point-in-time view of the scheduler for the status
// endpoint and navigation responses.
type Snapshot struct {
	State     string `json:"state"`
	Current   int    `json:"current"`
	Count     int    `json:"count"`
	CurrentID string `json:"current_id,omitempty"`
}

func NewScheduler(surface Surface) *Scheduler {
	return &Scheduler{
		surface: surface,
		scale:   time.Second,
	}
}

// Replace swaps in a freshly fetched list wholesale. The first list
// initializes the index to 0; afterwards the index is kept if still
// in range and re-clamped modulo the new length otherwise, so a
// mid-rotation refresh does not disturb the item on screen.
func (s *Scheduler) Replace(items []Announcement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	switch {
	case !s.loaded:
		s.current = 0
		s.loaded = true
	case len(items) == 0:
		s.current = 0
	case s.current >= len(items):
		s.current = s.current % len(items)
	}
	s.items = items

	metrics.RotationItems.Set(float64(len(items)))
	s.armLocked()
	s.publishLocked()
}

// Next advances to the following item and resets the dwell clock. A
// no-op unless the scheduler is cycling.
func (s *Scheduler) Next() (Snapshot, bool) { return s.step(1) }

// Prev moves back one item and resets the dwell clock. A no-op unless
// the scheduler is cycling.
func (s *Scheduler) Prev() (Snapshot, bool) { return s.step(-1) }

func (s *Scheduler) step(delta int) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.stateLocked() != StateCycling {
		return s.snapshotLocked(), false
	}

	n := len(s.items)
	s.current = (s.current + delta + n) % n

	metrics.RotationAdvances.WithLabelValues("manual").Inc()
	s.armLocked()
	s.publishLocked()
	return s.snapshotLocked(), true
}

// Select jumps directly to the given index and resets the dwell
// clock. Out-of-range indices are rejected.
func (s *Scheduler) Select(index int) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || !s.loaded || index < 0 || index >= len(s.items) {
		return s.snapshotLocked(), false
	}

	s.current = index

	metrics.RotationAdvances.WithLabelValues("select").Inc()
	s.armLocked()
	s.publishLocked()
	return s.snapshotLocked(), true
}

// advance is the timer expiry path. gen identifies the arming that
// scheduled it; anything re-armed in the meantime wins.
func (s *Scheduler) advance(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || gen != s.arm || s.stateLocked() != StateCycling {
		return
	}

	s.current = (s.current + 1) % len(s.items)

	metrics.RotationAdvances.WithLabelValues("timer").Inc()
	s.armLocked()
	s.publishLocked()
}

// armLocked cancels any outstanding timer and, when cycling, arms
// exactly one new timer for the current item's duration.
func (s *Scheduler) armLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.arm++
	if s.stateLocked() != StateCycling {
		return
	}

	gen := s.arm
	s.timer = time.AfterFunc(s.dwellLocked(), func() { s.advance(gen) })
}

// dwellLocked returns how long the current item stays on screen.
// Non-positive durations fall back to one second so a bad row cannot
// stall the rotation.
func (s *Scheduler) dwellLocked() time.Duration {
	secs := s.items[s.current].DisplayDuration
	if secs <= 0 {
		secs = 1
	}
	return time.Duration(secs) * s.scale
}

func (s *Scheduler) publishLocked() {
	metrics.RotationIndex.Set(float64(s.current))
	if s.surface == nil {
		return
	}
	s.seq++
	s.surface.Render(buildFrame(s.seq, s.stateLocked(), s.items, s.current))
}

// Stop cancels the outstanding timer and blocks all further
// mutation. No callback fires after Stop returns. Safe to call more
// than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.arm++
}

// State returns the name of the current rotation state.
func (s *Scheduler) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Scheduler) stateLocked() string {
	switch {
	case !s.loaded:
		return StateLoading
	case len(s.items) == 0:
		return StateEmpty
	case len(s.items) == 1:
		return StateSingle
	default:
		return StateCycling
	}
}

func (s *Scheduler) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:   s.stateLocked(),
		Current: s.current,
		Count:   len(s.items),
	}
	if s.current < len(s.items) {
		snap.CurrentID = s.items[s.current].ID
	}
	return snap
}
