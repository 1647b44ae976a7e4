// Package encoder decodes a push-button rotary encoder into rotation deltas
// and click/double-click events.
//
// Decoding is split in two halves. Service samples the pins and must be
// called at a fixed rate (1ms) from a dedicated periodic task; it only
// touches the encoder's own state. The consuming side calls GetValue,
// GetButton or Poll from the control loop. The two halves share nothing
// but atomics, so Service never blocks on the control loop.
package encoder

import (
	"sync/atomic"
	"time"
)

// Kind is the type of an encoder Event.
type Kind int

const (
	None Kind = iota
	Rotated
	Clicked
	DoubleClicked
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Rotated:
		return "rotated"
	case Clicked:
		return "clicked"
	case DoubleClicked:
		return "double-clicked"
	default:
		return "unknown"
	}
}

// Event is what the control loop sees from the encoder on one poll.
type Event struct {
	Kind Kind `json:"kind"`
	// Delta is the signed number of detents, set only for Rotated.
	Delta int `json:"delta,omitempty"`
}

// Source delivers encoder events. Poll never blocks and returns an Event
// with Kind None when nothing happened.
type Source interface {
	Poll() Event
}

// Button is the raw state reported by GetButton.
type Button int32

const (
	Open Button = iota
	Held
	Released
	ButtonClicked
	ButtonDoubleClicked
)

// PinState is one sample of the encoder pins, as logical levels where true
// means active.
type PinState struct {
	A       bool
	B       bool
	Pressed bool
}

// Pins samples the encoder hardware.
type Pins interface {
	Sample() PinState
}

type Timing struct {
	// ServiceInterval is the period at which Service is called.
	ServiceInterval time.Duration
	// ButtonInterval is how often the button is evaluated.
	ButtonInterval time.Duration
	// DoubleClick is the window after a release in which a second click
	// counts as a double click.
	DoubleClick time.Duration
	// Hold is how long the button must stay down to count as held.
	Hold time.Duration
	// StepsPerNotch is the number of quadrature steps per detent.
	StepsPerNotch int
}

var DefaultTiming = Timing{
	ServiceInterval: time.Millisecond,
	ButtonInterval:  10 * time.Millisecond,
	DoubleClick:     300 * time.Millisecond,
	Hold:            1200 * time.Millisecond,
	StepsPerNotch:   4,
}

var _ Source = (*ClickEncoder)(nil)

type ClickEncoder struct {
	pins Pins

	// shared with the consumer
	delta  atomic.Int32
	button atomic.Int32

	// owned by Service
	last             int32
	ticks            int
	ticksPerCheck    int
	doubleClickTicks int
	doubleClickLimit int
	holdLimit        int
	keyDownTicks     int
	steps            int32
}

func NewClickEncoder(pins Pins, timing Timing) *ClickEncoder {
	if timing.ServiceInterval <= 0 {
		timing.ServiceInterval = DefaultTiming.ServiceInterval
	}
	if timing.ButtonInterval < timing.ServiceInterval {
		timing.ButtonInterval = timing.ServiceInterval
	}
	if timing.StepsPerNotch <= 0 {
		timing.StepsPerNotch = DefaultTiming.StepsPerNotch
	}

	e := &ClickEncoder{
		pins:             pins,
		ticksPerCheck:    int(timing.ButtonInterval / timing.ServiceInterval),
		doubleClickLimit: int(timing.DoubleClick / timing.ButtonInterval),
		holdLimit:        int(timing.Hold / timing.ButtonInterval),
		steps:            int32(timing.StepsPerNotch),
	}
	e.last = gray(pins.Sample())
	return e
}

func gray(s PinState) int32 {
	var v int32
	if s.A {
		v = 3
	}
	if s.B {
		v ^= 1
	}
	return v
}

// Service samples the pins once. Call it every ServiceInterval.
func (e *ClickEncoder) Service() {
	s := e.pins.Sample()

	curr := gray(s)
	diff := e.last - curr
	if diff&1 != 0 {
		e.last = curr
		e.delta.Add((diff & 2) - 1)
	}

	e.ticks++
	if e.ticks < e.ticksPerCheck {
		return
	}
	e.ticks = 0
	e.serviceButton(s.Pressed)
}

func (e *ClickEncoder) serviceButton(pressed bool) {
	if pressed {
		e.keyDownTicks++
		if e.keyDownTicks > e.holdLimit {
			e.button.Store(int32(Held))
		}
		return
	}

	if e.keyDownTicks > 0 {
		switch {
		case Button(e.button.Load()) == Held:
			e.button.Store(int32(Released))
			e.doubleClickTicks = 0
		case e.doubleClickTicks > 0:
			e.button.Store(int32(ButtonDoubleClicked))
			e.doubleClickTicks = 0
		default:
			e.doubleClickTicks = e.doubleClickLimit
			if e.doubleClickTicks == 0 {
				// double click disabled
				e.button.Store(int32(ButtonClicked))
			}
		}
	} else if e.doubleClickTicks > 0 {
		e.doubleClickTicks--
		if e.doubleClickTicks == 0 {
			e.button.Store(int32(ButtonClicked))
		}
	}
	e.keyDownTicks = 0
}

// GetValue returns the number of whole detents turned since the last call.
// Partial steps are kept for the next call.
func (e *ClickEncoder) GetValue() int {
	for {
		old := e.delta.Load()
		val := old / e.steps
		if val == 0 {
			return 0
		}
		if e.delta.CompareAndSwap(old, old-val*e.steps) {
			return int(val)
		}
	}
}

// GetButton returns and clears the pending button state. Held stays
// reported until the button is released.
func (e *ClickEncoder) GetButton() Button {
	for {
		b := e.button.Load()
		if Button(b) == Held || Button(b) == Open {
			return Button(b)
		}
		if e.button.CompareAndSwap(b, int32(Open)) {
			return Button(b)
		}
	}
}

// Poll reports a pending click first. Rotation that happened alongside it
// stays queued for the next Poll.
func (e *ClickEncoder) Poll() Event {
	switch e.GetButton() {
	case ButtonClicked:
		return Event{Kind: Clicked}
	case ButtonDoubleClicked:
		return Event{Kind: DoubleClicked}
	}
	if v := e.GetValue(); v != 0 {
		return Event{Kind: Rotated, Delta: v}
	}
	return Event{}
}
