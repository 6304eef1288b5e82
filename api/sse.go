package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/r3labs/sse/v2"

	"github.com/tranvh2/marquee/media"
	"github.com/tranvh2/marquee/rotation"
)

// frameStream is the SSE stream carrying render frames to the
// display page.
const frameStream = "frames"

const materializeTimeout = 2 * time.Minute

// sseSurface bridges the rotation scheduler to the display page:
// frames are published on an SSE stream and the preload window is
// materialized in the media spool. Render runs with the scheduler
// lock held, so it only records the frame and kicks the delivery
// goroutine; intermediate frames may be skipped under load but the
// latest one always goes out.
type sseSurface struct {
	events *sse.Server
	spool  *media.Spool

	mu   sync.Mutex
	last rotation.Frame
	keys mapset.Set[string]

	kick chan struct{}
	stop chan struct{}
	done chan struct{}
}

func newSSESurface(events *sse.Server, spool *media.Spool) *sseSurface {
	return &sseSurface{
		events: events,
		spool:  spool,
		last:   rotation.Frame{State: rotation.StateLoading},
		keys:   mapset.NewSet[string](),
		kick:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Render implements rotation.Surface.
func (s *sseSurface) Render(f rotation.Frame) {
	frame, keys := rewriteFrame(f)

	s.mu.Lock()
	s.last = frame
	s.keys = keys
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// LastFrame reports the most recent frame, for late subscribers and
// the status endpoint.
func (s *sseSurface) LastFrame() rotation.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// run delivers frames until shutdown: each kick publishes the latest
// frame on the SSE stream and reconciles the spool with its preload
// window.
func (s *sseSurface) run() {
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			return
		case <-s.kick:
			s.mu.Lock()
			frame := s.last
			keys := s.keys.Clone()
			s.mu.Unlock()

			s.publish(frame)
			if s.spool != nil {
				ctx, cancel := context.WithTimeout(context.Background(), materializeTimeout)
				s.spool.Materialize(ctx, keys)
				cancel()
			}
		}
	}
}

func (s *sseSurface) publish(f rotation.Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		slog.Warn("unable to marshal frame", "error", err)
		return
	}
	s.events.Publish(frameStream, &sse.Event{Data: payload})
}

func (s *sseSurface) shutdown() {
	close(s.stop)
	<-s.done
}

// rewriteFrame points storage-relative media locators at the local
// media handler and collects their storage keys for the spool.
// Absolute URLs pass through untouched.
func rewriteFrame(f rotation.Frame) (rotation.Frame, mapset.Set[string]) {
	keys := mapset.NewSet[string]()
	if len(f.Slots) == 0 {
		return f, keys
	}

	slots := make([]rotation.Slot, len(f.Slots))
	copy(slots, f.Slots)
	for i := range slots {
		key, ok := media.StorageKey(slots[i].MediaURL)
		if !ok {
			continue
		}
		keys.Add(key)
		slots[i].MediaURL = "/media/" + key
	}
	f.Slots = slots
	return f, keys
}
