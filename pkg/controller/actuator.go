package controller

import (
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
)

type driveMode int

const (
	driveOff driveMode = iota
	driveSteady
	drivePulse
)

// actuator owns the motor output. The control loop only states what it
// wants; the output level of a pulse train and the keepalive writes come
// from service, which runs on its own periodic task so they do not depend
// on how long a loop pass takes.
type actuator struct {
	mu    sync.Mutex
	io    IO
	clock Clock

	on, off   time.Duration
	keepalive time.Duration

	mode      driveMode
	start     time.Time
	level     bool
	lastWrite time.Time
	failed    bool
}

func newActuator(io IO, clock Clock, opts Options) *actuator {
	return &actuator{
		io:        io,
		clock:     clock,
		on:        opts.PulseOn,
		off:       opts.PulseOff,
		keepalive: opts.ActuatorKeepalive,
	}
}

// set changes the drive mode. A pulse train starts in its on phase.
func (a *actuator) set(mode driveMode) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	if mode == drivePulse && a.mode != drivePulse {
		a.start = now
	}
	a.mode = mode
	return a.apply(now)
}

// forceOff writes the off level unconditionally.
func (a *actuator) forceOff() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.mode = driveOff
	return a.write(a.clock.Now(), false)
}

func (a *actuator) service() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.apply(a.clock.Now())
}

// apply writes the level due at now. An unchanged level is rewritten once
// the keepalive period has passed, so the board can tell a silent host
// from one that still wants the output held.
func (a *actuator) apply(now time.Time) error {
	want := a.levelAt(now)
	if want != a.level || a.failed || (a.keepalive > 0 && now.Sub(a.lastWrite) >= a.keepalive) {
		return a.write(now, want)
	}
	return nil
}

func (a *actuator) write(now time.Time, level bool) error {
	a.level = level
	a.lastWrite = now
	if err := a.io.SetActuator(level); err != nil {
		// retried on the next service
		a.failed = true
		return pkgerrors.Wrap(err, "failed to drive actuator")
	}
	a.failed = false
	return nil
}

func (a *actuator) levelAt(now time.Time) bool {
	switch a.mode {
	case driveSteady:
		return true
	case drivePulse:
		if a.off <= 0 {
			return true
		}
		elapsed := now.Sub(a.start)
		if elapsed < 0 {
			elapsed = 0
		}
		return elapsed%(a.on+a.off) < a.on
	}
	return false
}

// state returns whether the output is wanted and its current level.
func (a *actuator) state() (engaged, level bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode != driveOff, a.level
}
