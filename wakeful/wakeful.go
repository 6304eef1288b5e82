// Package wakeful keeps the host device awake during unattended
// operation through redundant, independently degrading layers.
package wakeful

import (
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/tranvh2/marquee/metrics"
)

// Layer names used in logs and metrics.
const (
	layerInhibit = "inhibit"
	layerInput   = "input"
	layerAudio   = "audio"
	layerVideo   = "video"
)

const (
	jiggleInterval = 10 * time.Second
	respawnDelay   = 5 * time.Second
)

// Process is a handle on a started child process.
type Process interface {
	Wait() error
	Kill() error
}

// Runner starts and runs external commands.
type Runner interface {
	Start(name string, args ...string) (Process, error)
	Run(name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Start(name string, args ...string) (Process, error) {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return execProcess{cmd}, nil
}

func (execRunner) Run(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p execProcess) Wait() error { return p.cmd.Wait() }
func (p execProcess) Kill() error { return p.cmd.Process.Kill() }

// Maintainer prevents the host from entering a low-power or
// screen-off state using four layers, all active concurrently:
//
//  1. a systemd idle/sleep inhibitor lock, reacquired whenever the
//     display output comes back from an off phase
//  2. synthetic input on a short cadence to defeat idle-detection
//     heuristics that only watch for user activity
//  3. an inaudible sine tone keeping the audio subsystem busy
//  4. a null video pipeline keeping the media pipeline busy
//
// Failure of any one layer never takes the others down with it.
type Maintainer struct {
	runner         Runner
	vis            <-chan bool
	jiggleInterval time.Duration
	respawnDelay   time.Duration

	mu      sync.Mutex
	lock    Process
	procs   map[string]Process
	stopped bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds a Maintainer. vis carries display visibility transitions
// (true when the output turned on) and may be nil, in which case the
// inhibitor lock is only acquired once at Start.
func New(vis <-chan bool) *Maintainer {
	return &Maintainer{
		runner:         execRunner{},
		vis:            vis,
		jiggleInterval: jiggleInterval,
		respawnDelay:   respawnDelay,
		procs:          make(map[string]Process),
		stop:           make(chan struct{}),
	}
}

// Start brings up all layers. Individual layer failures are logged
// and counted but never abort the rest.
func (m *Maintainer) Start() {
	m.acquireLock()

	m.wg.Add(3)
	go m.simulateInput()
	go m.supervise(layerAudio, "ffplay",
		"-nodisp", "-loglevel", "quiet",
		"-f", "lavfi", "-i", "sine=frequency=440", "-af", "volume=0")
	go m.supervise(layerVideo, "ffmpeg",
		"-loglevel", "quiet",
		"-re", "-f", "lavfi", "-i", "color=c=black:s=16x16:r=5", "-f", "null", "-")

	if m.vis != nil {
		m.wg.Add(1)
		go m.watchVisibility()
	}

	slog.Info("wakefulness maintainer started")
}

// Stop tears every layer down together: children killed, tickers
// stopped, goroutines joined. Safe to call more than once.
func (m *Maintainer) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	close(m.stop)
	if m.lock != nil {
		if err := m.lock.Kill(); err != nil {
			slog.Debug("unable to kill inhibitor process", "error", err)
		}
		m.lock = nil
	}
	for layer, proc := range m.procs {
		if err := proc.Kill(); err != nil {
			slog.Debug("unable to kill wakefulness process", "layer", layer, "error", err)
		}
	}
	m.mu.Unlock()

	m.wg.Wait()
	slog.Info("wakefulness maintainer stopped")
}

// acquireLock starts a systemd-inhibit child holding an idle/sleep
// block, replacing any lock already held. Acquisition failure is
// non-fatal; the remaining layers cover for it.
func (m *Maintainer) acquireLock() {
	m.releaseLock()

	proc, err := m.runner.Start("systemd-inhibit",
		"--what=idle:sleep", "--who=marquee", "--why=unattended signage display",
		"--mode=block", "sleep", "infinity")
	if err != nil {
		slog.Warn("unable to acquire idle inhibitor lock", "error", err)
		metrics.WakefulFailures.WithLabelValues(layerInhibit).Inc()
		return
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		proc.Kill()
		proc.Wait()
		return
	}
	m.lock = proc
	m.mu.Unlock()

	// reap the child once it exits so a released lock does not
	// linger as a zombie
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		proc.Wait()
	}()

	slog.Debug("idle inhibitor lock acquired")
}

// releaseLock kills the inhibitor child, if one is held.
func (m *Maintainer) releaseLock() {
	m.mu.Lock()
	proc := m.lock
	m.lock = nil
	m.mu.Unlock()

	if proc == nil {
		return
	}
	if err := proc.Kill(); err != nil {
		slog.Debug("unable to kill inhibitor process", "error", err)
	}
}

// watchVisibility reacquires the inhibitor lock when the display
// comes back. Compositors drop idle inhibitors held across an output
// power-off, so an off→on transition needs a fresh lock.
func (m *Maintainer) watchVisibility() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stop:
			return
		case visible, ok := <-m.vis:
			if !ok {
				return
			}
			if visible {
				slog.Info("display visible again, reacquiring inhibitor lock")
				m.acquireLock()
			} else {
				m.releaseLock()
			}
		}
	}
}

// simulateInput wiggles the pointer by one pixel and taps left-ctrl
// on a fixed cadence. ydotool failures are routine on hosts without
// its daemon running and stay at debug.
func (m *Maintainer) simulateInput() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.jiggleInterval)
	defer ticker.Stop()

	dx := "1"
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if err := m.runner.Run("ydotool", "mousemove", "-x", dx, "-y", "0"); err != nil {
				slog.Debug("pointer wiggle failed", "error", err)
				metrics.WakefulFailures.WithLabelValues(layerInput).Inc()
			}
			if err := m.runner.Run("ydotool", "key", "29:1", "29:0"); err != nil {
				slog.Debug("key tap failed", "error", err)
				metrics.WakefulFailures.WithLabelValues(layerInput).Inc()
			}
			if dx == "1" {
				dx = "-1"
			} else {
				dx = "1"
			}
		}
	}
}

// supervise keeps one long-running child alive, restarting it after
// a delay whenever it exits unexpectedly.
func (m *Maintainer) supervise(layer, name string, args ...string) {
	defer m.wg.Done()

	for {
		proc, err := m.runner.Start(name, args...)
		if err != nil {
			slog.Warn("unable to start wakefulness process", "layer", layer, "command", name, "error", err)
			metrics.WakefulFailures.WithLabelValues(layer).Inc()
		} else if m.track(layer, proc) {
			slog.Debug("wakefulness process started", "layer", layer, "command", name)
			err = proc.Wait()
			m.untrack(layer)
			if m.isStopped() {
				return
			}
			slog.Warn("wakefulness process exited, restarting", "layer", layer, "command", name, "error", err)
			metrics.WakefulFailures.WithLabelValues(layer).Inc()
		} else {
			// Stop raced the start; track already killed the child.
			proc.Wait()
			return
		}

		select {
		case <-m.stop:
			return
		case <-time.After(m.respawnDelay):
		}
	}
}

// track records a supervised child so Stop can kill it. Returns false
// when the maintainer already stopped, in which case the child is
// killed on the spot and the supervisor must exit.
func (m *Maintainer) track(layer string, proc Process) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		proc.Kill()
		return false
	}
	m.procs[layer] = proc
	return true
}

func (m *Maintainer) untrack(layer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.procs, layer)
}

func (m *Maintainer) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}
