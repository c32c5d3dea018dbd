package countdown

import (
	"context"
	"sync"
	"time"
)

const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
	secondsPerDay    = 24 * secondsPerHour
)

// State is the days/hours/minutes/seconds breakdown of the time left.
type State struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
}

// TotalSeconds reassembles the breakdown into whole seconds.
func (s State) TotalSeconds() int64 {
	return s.Days*secondsPerDay + s.Hours*secondsPerHour + s.Minutes*secondsPerMinute + s.Seconds
}

// Compute returns the time left from now until target.
// The boolean is false once target is reached, in which case State is zero.
func Compute(target, now time.Time) (State, bool) {
	delta := int64(target.Sub(now) / time.Second)
	if delta <= 0 {
		return State{}, false
	}

	return State{
		Days:    delta / secondsPerDay,
		Hours:   (delta / secondsPerHour) % 24,
		Minutes: (delta / secondsPerMinute) % 60,
		Seconds: delta % 60,
	}, true
}

// Engine keeps the last computed State for a fixed target.
// After the target passes the stored state is no longer updated, so it
// freezes at the last non-expired value.
type Engine struct {
	target time.Time
	now    func() time.Time

	mu      sync.RWMutex
	state   State
	expired bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now (used in tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine constructs an Engine counting down to target.
func NewEngine(target time.Time, opts ...Option) *Engine {
	e := &Engine{target: target, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Target returns the fixed target instant.
func (e *Engine) Target() time.Time {
	return e.target
}

// Tick recomputes the state against the current clock.
// It reports false, leaving the previous state in place, when the target has passed.
func (e *Engine) Tick() (State, bool) {
	s, ok := Compute(e.target, e.now())

	e.mu.Lock()
	defer e.mu.Unlock()

	if !ok {
		e.expired = true
		return e.state, false
	}
	e.state = s
	e.expired = false
	return s, true
}

// Snapshot returns the last computed state and whether the target has passed.
func (e *Engine) Snapshot() (State, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state, e.expired
}

// Run ticks once immediately and then every interval until ctx is cancelled.
// onTick, if non-nil, receives every state that was updated.
func (e *Engine) Run(ctx context.Context, interval time.Duration, onTick func(State)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.tickAndNotify(onTick)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tickAndNotify(onTick)
		}
	}
}

func (e *Engine) tickAndNotify(onTick func(State)) {
	s, ok := e.Tick()
	if ok && onTick != nil {
		onTick(s)
	}
}
