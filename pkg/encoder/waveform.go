package encoder

import "sync"

var _ Pins = (*Waveform)(nil)

// Waveform is a Pins implementation that plays back queued pin states,
// one per Sample call. It drives a ClickEncoder from software: simulators
// and tests queue rotations and clicks, and the regular Service task
// decodes them exactly as it would real pins.
type Waveform struct {
	mu    sync.Mutex
	steps []PinState
	rest  PinState
	hold  int
}

// NewWaveform returns an idle waveform. Each quadrature state is held for
// hold samples.
func NewWaveform(hold int) *Waveform {
	if hold <= 0 {
		hold = 1
	}
	return &Waveform{hold: hold}
}

func (w *Waveform) Sample() PinState {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.steps) == 0 {
		return w.rest
	}
	s := w.steps[0]
	w.steps = w.steps[1:]
	return s
}

// Pending returns the number of samples left to play.
func (w *Waveform) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.steps)
}

func (w *Waveform) push(s PinState, n int) {
	for i := 0; i < n; i++ {
		w.steps = append(w.steps, s)
	}
}

// Quadrature sequences for one detent starting and ending at rest.
var (
	forward  = []PinState{{B: true}, {A: true, B: true}, {A: true}, {}}
	backward = []PinState{{A: true}, {A: true, B: true}, {B: true}, {}}
)

// Rotate queues n detents. Negative n turns backward.
func (w *Waveform) Rotate(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	seq := forward
	if n < 0 {
		seq, n = backward, -n
	}
	for i := 0; i < n; i++ {
		for _, s := range seq {
			w.push(s, w.hold)
		}
	}
}

// Press queues the button held down for down samples followed by up
// samples released.
func (w *Waveform) Press(down, up int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.push(PinState{Pressed: true}, down)
	w.push(PinState{}, up)
}
