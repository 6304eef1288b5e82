package display

import (
	"log/slog"
	"time"
)

const watchInterval = 5 * time.Second

// Watcher polls the output power state and reports transitions, so
// other components can react when the display goes dark or comes
// back. The daemon equivalent of watching page visibility changes.
type Watcher struct {
	ctrl     *Controller
	interval time.Duration

	// C carries visibility transitions: true when the output turned
	// on, false when it turned off.
	C chan bool

	stop chan struct{}
	done chan struct{}
}

func NewWatcher(ctrl *Controller) *Watcher {
	return &Watcher{
		ctrl:     ctrl,
		interval: watchInterval,
		C:        make(chan bool, 4),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run polls until Stop is called. Read failures are skipped; a flaky
// wlr-randr read must not produce phantom transitions.
func (w *Watcher) Run() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	last, err := w.ctrl.Enabled()
	known := err == nil
	if err != nil {
		slog.Debug("unable to read initial display state", "error", err)
	}

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			enabled, err := w.ctrl.Enabled()
			if err != nil {
				slog.Debug("unable to read display state", "error", err)
				continue
			}
			if known && enabled == last {
				continue
			}
			last, known = enabled, true
			slog.Info("display visibility changed", "visible", enabled)
			select {
			case w.C <- enabled:
			case <-w.stop:
				return
			}
		}
	}
}

// Stop ends the poll loop and waits for it to exit.
func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
}
