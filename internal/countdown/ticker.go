package countdown

import (
	"sync"
	"time"
)

// State is the lifecycle state of a Ticker.
type State uint8

const (
	// StateIdle means the ticker has not been started.
	StateIdle State = iota

	// StateRunning means a recomputation is scheduled.
	StateRunning

	// StateStopped means the ticker was stopped and will never publish again.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

type Option func(*Ticker)

func WithClock(clock Clock) Option {
	return func(t *Ticker) {
		t.clock = clock
	}
}

// Ticker recomputes the remaining time to a target on every wall-clock second
// boundary and hands each value to a publish callback.
type Ticker struct {
	mu sync.Mutex

	target  time.Time
	clock   Clock
	publish func(Remaining)

	state State
	timer Timer
}

// NewTicker creates an idle ticker. publish runs with the ticker's lock held,
// so it must not call Stop.
func NewTicker(target time.Time, publish func(Remaining), opts ...Option) *Ticker {
	t := &Ticker{
		target:  target,
		clock:   RealClock,
		publish: publish,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Ticker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Start publishes the current remaining time and begins rescheduling.
// It is a no-op unless the ticker is idle.
func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateIdle {
		return
	}
	t.state = StateRunning
	t.tickLocked()
}

// Stop cancels any pending recomputation. After Stop returns publish is not
// called again.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.state = StateStopped
}

func (t *Ticker) tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	// A callback that lost the race with Stop.
	if t.state != StateRunning {
		return
	}
	t.tickLocked()
}

func (t *Ticker) tickLocked() {
	now := t.clock.Now()
	if t.publish != nil {
		t.publish(Compute(t.target, now))
	}

	next := now.Truncate(time.Second).Add(time.Second)
	t.timer = t.clock.AfterFunc(next.Sub(now), t.tick)
}
