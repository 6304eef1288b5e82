package rotation

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testSurface struct {
	mu     sync.Mutex
	frames []Frame
	ch     chan Frame
}

func newTestSurface() *testSurface {
	return &testSurface{ch: make(chan Frame, 64)}
}

func (t *testSurface) Render(f Frame) {
	t.mu.Lock()
	t.frames = append(t.frames, f)
	t.mu.Unlock()
	select {
	case t.ch <- f:
	default:
	}
}

func (t *testSurface) next(tb testing.TB, timeout time.Duration) Frame {
	tb.Helper()
	select {
	case f := <-t.ch:
		return f
	case <-time.After(timeout):
		tb.Fatalf("timed out waiting for frame after %s", timeout)
		return Frame{}
	}
}

func (t *testSurface) expectNone(tb testing.TB, window time.Duration) {
	tb.Helper()
	select {
	case f := <-t.ch:
		tb.Fatalf("expected no frame, got state=%s current=%d", f.State, f.Current)
	case <-time.After(window):
	}
}

func testItems(durations ...int) []Announcement {
	items := make([]Announcement, len(durations))
	for i, d := range durations {
		items[i] = Announcement{
			ID:              fmt.Sprintf("a%d", i),
			MediaURL:        fmt.Sprintf("media/a%d.jpg", i),
			DisplayDuration: d,
			Transition:      TransitionFade,
			Active:          true,
		}
	}
	return items
}

func newTestScheduler(surface Surface, scale time.Duration) *Scheduler {
	s := NewScheduler(surface)
	s.scale = scale
	return s
}

func TestSchedulerCyclicOrderAndDwell(t *testing.T) {
	const scale = 50 * time.Millisecond
	surface := newTestSurface()
	s := newTestScheduler(surface, scale)
	defer s.Stop()

	s.Replace(testItems(1, 2, 3))

	first := surface.next(t, time.Second)
	require.Equal(t, StateCycling, first.State)
	require.Equal(t, 0, first.Current)
	last := time.Now()

	// each item must dwell for its own duration before the advance;
	// a timer never fires early, the upper bound only absorbs
	// scheduling noise, tol covers the gap between render and read
	const tol = 20 * time.Millisecond
	for _, want := range []struct {
		index int
		dwell time.Duration
	}{
		{1, 1 * scale},
		{2, 2 * scale},
		{0, 3 * scale},
	} {
		f := surface.next(t, 5*time.Second)
		now := time.Now()
		assert.Equal(t, want.index, f.Current)
		assert.GreaterOrEqual(t, now.Sub(last), want.dwell-tol)
		assert.Less(t, now.Sub(last), want.dwell+2*time.Second)
		last = now
	}
}

func TestSchedulerRapidNavigationSingleTimer(t *testing.T) {
	const scale = 50 * time.Millisecond
	surface := newTestSurface()
	s := newTestScheduler(surface, scale)
	defer s.Stop()

	s.Replace(testItems(10, 10, 10))
	surface.next(t, time.Second)

	for i := 0; i < 10; i++ {
		_, ok := s.Next()
		require.True(t, ok)
	}

	// ten manual frames, ending at (0+10) mod 3
	var f Frame
	for i := 0; i < 10; i++ {
		f = surface.next(t, time.Second)
	}
	require.Equal(t, 1, f.Current)

	s.mu.Lock()
	armed := s.timer != nil
	s.mu.Unlock()
	require.True(t, armed, "exactly one timer should be armed after the navigation burst")

	// exactly one automatic advance lands; every stale timer armed
	// during the burst would fire inside the same dwell window
	f = surface.next(t, 5*time.Second)
	assert.Equal(t, 2, f.Current)
	surface.expectNone(t, 100*time.Millisecond)
}

func TestSchedulerSingleItemNeverArms(t *testing.T) {
	surface := newTestSurface()
	s := newTestScheduler(surface, 10*time.Millisecond)
	defer s.Stop()

	s.Replace(testItems(1))
	f := surface.next(t, time.Second)
	require.Equal(t, StateSingle, f.State)

	s.mu.Lock()
	armed := s.timer != nil
	s.mu.Unlock()
	assert.False(t, armed, "single-item rotation must not arm a timer")

	_, ok := s.Next()
	assert.False(t, ok)
	_, ok = s.Prev()
	assert.False(t, ok)
	surface.expectNone(t, 60*time.Millisecond)
}

func TestSchedulerLoadingAndEmpty(t *testing.T) {
	surface := newTestSurface()
	s := newTestScheduler(surface, 10*time.Millisecond)
	defer s.Stop()

	assert.Equal(t, StateLoading, s.State())
	_, ok := s.Next()
	assert.False(t, ok)

	s.Replace(nil)
	f := surface.next(t, time.Second)
	assert.Equal(t, StateEmpty, f.State)
	assert.Empty(t, f.Slots)

	_, ok = s.Next()
	assert.False(t, ok)
	surface.expectNone(t, 60*time.Millisecond)
}

func TestSchedulerReplaceKeepsIndexInRange(t *testing.T) {
	surface := newTestSurface()
	s := newTestScheduler(surface, time.Hour)
	defer s.Stop()

	s.Replace(testItems(1, 1, 1))
	snap, ok := s.Select(2)
	require.True(t, ok)
	require.Equal(t, 2, snap.Current)

	// growth keeps the on-screen item
	s.Replace(testItems(1, 1, 1, 1, 1))
	assert.Equal(t, 2, s.Snapshot().Current)

	// shrink past the index re-clamps via modulo
	s.Replace(testItems(1, 1))
	assert.Equal(t, 0, s.Snapshot().Current)

	s.Replace(nil)
	snap = s.Snapshot()
	assert.Equal(t, StateEmpty, snap.State)
	assert.Equal(t, 0, snap.Current)
}

func TestSchedulerSelect(t *testing.T) {
	surface := newTestSurface()
	s := newTestScheduler(surface, time.Hour)
	defer s.Stop()

	s.Replace(testItems(1, 1, 1))

	_, ok := s.Select(3)
	assert.False(t, ok)
	_, ok = s.Select(-1)
	assert.False(t, ok)

	snap, ok := s.Select(1)
	require.True(t, ok)
	assert.Equal(t, 1, snap.Current)
	assert.Equal(t, "a1", snap.CurrentID)
}

func TestSchedulerSelectResetsDwell(t *testing.T) {
	const scale = 50 * time.Millisecond
	surface := newTestSurface()
	s := newTestScheduler(surface, scale)
	defer s.Stop()

	s.Replace(testItems(5, 5))
	surface.next(t, time.Second)

	// burn part of the dwell, then re-select the same index; the
	// dwell clock starts over
	time.Sleep(2 * scale)
	selected := time.Now()
	_, ok := s.Select(0)
	require.True(t, ok)
	surface.next(t, time.Second)

	f := surface.next(t, 5*time.Second)
	assert.Equal(t, 1, f.Current)
	assert.GreaterOrEqual(t, time.Since(selected), 5*scale)
}

func TestSchedulerStop(t *testing.T) {
	surface := newTestSurface()
	s := newTestScheduler(surface, 10*time.Millisecond)

	s.Replace(testItems(1, 1))
	surface.next(t, time.Second)

	s.Stop()
	// drain anything that squeaked in before the stop took effect
	for {
		select {
		case <-surface.ch:
			continue
		default:
		}
		break
	}
	surface.expectNone(t, 60*time.Millisecond)

	s.Replace(testItems(1, 1, 1))
	_, ok := s.Next()
	assert.False(t, ok)
	surface.expectNone(t, 30*time.Millisecond)

	// Stop twice is fine
	s.Stop()
}

func TestSchedulerFrameSequenceMonotonic(t *testing.T) {
	surface := newTestSurface()
	s := newTestScheduler(surface, time.Hour)
	defer s.Stop()

	s.Replace(testItems(1, 1, 1))
	s.Next()
	s.Next()
	s.Replace(testItems(1, 1, 1))

	surface.mu.Lock()
	defer surface.mu.Unlock()
	require.Len(t, surface.frames, 4)
	var last uint64
	for _, f := range surface.frames {
		assert.Greater(t, f.Seq, last)
		last = f.Seq
	}
}
