// Package countdown implements the per-attempt answer timer.
//
// A Timer moves idle -> running -> expired -> idle when left alone, or
// running -> cancelled -> idle when Cancel is called. Every tick carries the
// generation it was started with; ticks from an older generation are ignored,
// so a cancelled or restarted timer never expires twice.
package countdown

import (
	"log/slog"
	"sync"
	"time"

	"hirelens/internal/logging"
)

// State is the timer lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateExpired   State = "expired"
	StateCancelled State = "cancelled"
)

// DefaultTick is the countdown resolution.
const DefaultTick = time.Second

// Ticker abstracts time.Ticker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker wraps time.NewTicker.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Options configures a Timer.
type Options struct {
	Tick      time.Duration
	OnTick    func(remaining time.Duration)
	OnExpire  func()
	NewTicker func(time.Duration) Ticker
	Logger    *slog.Logger
}

// Timer counts an attempt down to zero.
type Timer struct {
	tick      time.Duration
	onTick    func(time.Duration)
	onExpire  func()
	newTicker func(time.Duration) Ticker
	logger    *slog.Logger

	mu         sync.Mutex
	state      State
	remaining  time.Duration
	generation uint64
	stop       chan struct{}
}

// New creates an idle timer.
func New(opts Options) *Timer {
	tick := opts.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	newTicker := opts.NewTicker
	if newTicker == nil {
		newTicker = NewRealTicker
	}
	return &Timer{
		tick:      tick,
		onTick:    opts.OnTick,
		onExpire:  opts.OnExpire,
		newTicker: newTicker,
		logger:    logging.NewComponentLogger(opts.Logger, "countdown"),
		state:     StateIdle,
	}
}

// Start resets the remaining time to d and begins ticking. A running timer
// is restarted.
func (t *Timer) Start(d time.Duration) {
	t.mu.Lock()
	if t.stop != nil {
		close(t.stop)
	}
	t.generation++
	gen := t.generation
	t.remaining = d
	t.state = StateRunning
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()

	ticker := t.newTicker(t.tick)
	go t.run(gen, ticker, stop)
	t.logger.Debug("countdown started", logging.Duration("duration", d))
}

// Cancel stops a running timer and suppresses its pending expiry.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateRunning {
		return
	}
	t.generation++
	t.state = StateCancelled
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.logger.Debug("countdown cancelled", logging.Duration("remaining", t.remaining))
	t.state = StateIdle
}

// Remaining returns the time left on the current countdown.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// State returns the current lifecycle state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Timer) run(gen uint64, ticker Ticker, stop <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			if !t.advance(gen) {
				return
			}
		}
	}
}

// advance applies one tick for generation gen and reports whether the
// countdown keeps running.
func (t *Timer) advance(gen uint64) bool {
	t.mu.Lock()
	if gen != t.generation || t.state != StateRunning {
		t.mu.Unlock()
		return false
	}
	t.remaining -= t.tick
	if t.remaining < 0 {
		t.remaining = 0
	}
	remaining := t.remaining
	expired := remaining == 0
	if expired {
		t.state = StateExpired
		t.stop = nil
	}
	t.mu.Unlock()

	if t.onTick != nil && t.current(gen) {
		t.onTick(remaining)
	}
	if !expired {
		return true
	}

	t.logger.Debug("countdown expired")
	if t.onExpire != nil && t.current(gen) {
		t.onExpire()
	}
	t.mu.Lock()
	if gen == t.generation && t.state == StateExpired {
		t.state = StateIdle
	}
	t.mu.Unlock()
	return false
}

func (t *Timer) current(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return gen == t.generation
}
