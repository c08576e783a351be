// Package timer implements the per-step countdown.
//
// A Timer is advanced one second at a time by Tick. It is not safe for
// concurrent use; the owning runtime serializes access. Drive feeds ticks
// from a wall-clock ticker in production.
package timer

import (
	"context"
	"errors"
	"time"
)

// State is the countdown lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Expired
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Expired:
		return "expired"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidDuration is returned by Start for a non-positive duration.
	ErrInvalidDuration = errors.New("timer: duration must be positive")
	// ErrRunning is returned by Start while a countdown is in progress.
	ErrRunning = errors.New("timer: already running")
)

// Timer is a one-second granularity countdown.
type Timer struct {
	state     State
	duration  int
	remaining int
	starts    int
	onExpire  func()
}

// New returns an idle timer.
func New() *Timer {
	return &Timer{}
}

// OnExpire registers fn to be called when a running countdown reaches zero.
func (t *Timer) OnExpire(fn func()) {
	t.onExpire = fn
}

// Start begins a countdown of seconds. Valid from Idle, Expired or Cancelled.
func (t *Timer) Start(seconds int) error {
	if seconds <= 0 {
		return ErrInvalidDuration
	}
	if t.state == Running {
		return ErrRunning
	}
	t.state = Running
	t.duration = seconds
	t.remaining = seconds
	t.starts++
	return nil
}

// Cancel stops a running countdown. Reports whether anything was cancelled.
func (t *Timer) Cancel() bool {
	if t.state != Running {
		return false
	}
	t.state = Cancelled
	return true
}

// Tick advances the countdown by one second. It returns true exactly once,
// on the tick that moves a running timer to Expired.
func (t *Timer) Tick() bool {
	if t.state != Running {
		return false
	}
	t.remaining--
	if t.remaining > 0 {
		return false
	}
	t.remaining = 0
	t.state = Expired
	if t.onExpire != nil {
		t.onExpire()
	}
	return true
}

// State returns the lifecycle state.
func (t *Timer) State() State { return t.state }

// Remaining returns the seconds left on the current countdown.
func (t *Timer) Remaining() int { return t.remaining }

// Elapsed returns the seconds consumed by the current or last countdown.
func (t *Timer) Elapsed() int { return t.duration - t.remaining }

// Starts counts successful Start calls over the timer's lifetime.
func (t *Timer) Starts() int { return t.starts }

// Drive calls tick every interval until ctx is cancelled.
func Drive(ctx context.Context, interval time.Duration, tick func()) {
	tk := time.NewTicker(interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			tick()
		}
	}
}
