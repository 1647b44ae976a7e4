package hal

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/h3ct1cl3o/weighgrind/pkg/encoder"
	"github.com/h3ct1cl3o/weighgrind/pkg/scale"
)

type SimOptions struct {
	// Offset is the raw reading of an empty platform.
	Offset int32
	// CountsPerGram is the true sensitivity of the simulated cell.
	CountsPerGram float32
	// Noise is the peak raw noise added to each sample.
	Noise int32
	// GrindRate is how fast grounds land while the motor runs, in g/s.
	GrindRate float32
	// SampleInterval is the conversion time of one sample.
	SampleInterval time.Duration
	// EncoderHold is how many service ticks each quadrature state lasts.
	EncoderHold int
	// Now defaults to time.Now.
	Now func() time.Time
	// Seed seeds the noise generator.
	Seed int64
}

var DefaultSimOptions = SimOptions{
	Offset:         84000,
	CountsPerGram:  1030,
	Noise:          20,
	GrindRate:      1.5,
	SampleInterval: 12500 * time.Microsecond,
	EncoderHold:    2,
}

var (
	_ Board           = (*Simulator)(nil)
	_ EncoderServicer = (*Simulator)(nil)
)

// Simulator is an in-process grinder. Grounds accumulate on the platform
// at GrindRate while the actuator output is on; taking the handle out
// empties it.
type Simulator struct {
	opts SimOptions

	mu          sync.Mutex
	rng         *rand.Rand
	mass        float32
	actuator    bool
	lastAdvance time.Time
	handle      bool
	manual      bool
	fault       bool
	closed      bool

	pins *encoder.Waveform
	enc  *encoder.ClickEncoder
}

func NewSimulator(opts SimOptions) *Simulator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CountsPerGram == 0 {
		opts.CountsPerGram = DefaultSimOptions.CountsPerGram
	}
	if opts.EncoderHold <= 0 {
		opts.EncoderHold = DefaultSimOptions.EncoderHold
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	pins := encoder.NewWaveform(opts.EncoderHold)
	return &Simulator{
		opts:        opts,
		rng:         rand.New(rand.NewSource(opts.Seed)),
		lastAdvance: opts.Now(),
		pins:        pins,
		enc:         encoder.NewClickEncoder(pins, encoder.DefaultTiming),
	}
}

// advance integrates grind flow up to now. Callers hold s.mu.
func (s *Simulator) advance() {
	now := s.opts.Now()
	if s.actuator {
		s.mass += s.opts.GrindRate * float32(now.Sub(s.lastAdvance).Seconds())
	}
	s.lastAdvance = now
}

func (s *Simulator) ReadRaw(ctx context.Context) (int32, error) {
	if s.opts.SampleInterval > 0 {
		t := time.NewTimer(s.opts.SampleInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return 0, ctx.Err()
		case <-t.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	s.advance()
	if s.fault {
		return scale.RawMax, nil
	}

	raw := s.opts.Offset + int32(s.mass*s.opts.CountsPerGram)
	if s.opts.Noise > 0 {
		raw += s.rng.Int31n(2*s.opts.Noise+1) - s.opts.Noise
	}
	return raw, nil
}

func (s *Simulator) HandlePresent() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle, nil
}

func (s *Simulator) ManualPressed() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manual, nil
}

func (s *Simulator) SetActuator(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.advance()
	if s.actuator != on {
		logrus.WithField("on", on).Trace("simulated actuator")
	}
	s.actuator = on
	return nil
}

func (s *Simulator) Encoder() encoder.Source {
	return s.enc
}

func (s *Simulator) ServiceEncoder() {
	s.enc.Service()
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	s.actuator = false
	s.closed = true
	return nil
}

// SetHandle inserts or removes the portafilter. Removing it takes the
// grounds with it.
func (s *Simulator) SetHandle(present bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advance()
	if !present {
		s.mass = 0
	}
	s.handle = present
}

func (s *Simulator) SetManual(pressed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manual = pressed
}

// SetFault makes the load cell report a saturated value.
func (s *Simulator) SetFault(fault bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fault
}

// SetMass places a load on the platform.
func (s *Simulator) SetMass(grams float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	s.mass = grams
}

func (s *Simulator) Mass() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	return s.mass
}

func (s *Simulator) Actuator() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actuator
}

// Rotate turns the encoder by n detents.
func (s *Simulator) Rotate(n int) {
	s.pins.Rotate(n)
}

// Click presses and releases the encoder button once.
func (s *Simulator) Click() {
	s.pins.Press(50, 0)
}

// DoubleClick presses the encoder button twice in quick succession.
func (s *Simulator) DoubleClick() {
	s.pins.Press(50, 100)
	s.pins.Press(50, 0)
}
