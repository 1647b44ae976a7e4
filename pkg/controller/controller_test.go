package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h3ct1cl3o/weighgrind/pkg/display"
	"github.com/h3ct1cl3o/weighgrind/pkg/encoder"
	"github.com/h3ct1cl3o/weighgrind/pkg/events"
	"github.com/h3ct1cl3o/weighgrind/pkg/grinder"
	"github.com/h3ct1cl3o/weighgrind/pkg/scale"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time           { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeScale struct {
	weight  float32
	err     error
	tareErr error
	tares   int
	factor  float32
}

func (s *fakeScale) ReadWeight(context.Context) (scale.Reading, error) {
	return scale.Reading{Grams: s.weight}, s.err
}
func (s *fakeScale) ReadAverage(context.Context, int) (float32, error) { return s.weight, s.err }
func (s *fakeScale) Units(context.Context, int) (float32, error)       { return s.weight, s.err }
func (s *fakeScale) Tare(context.Context, int) error {
	s.tares++
	return s.tareErr
}
func (s *fakeScale) SetFactor(f float32) { s.factor = f }
func (s *fakeScale) Factor() float32     { return s.factor }

type fakeIO struct {
	handle   bool
	manual   bool
	on       bool
	writes   int
	failNext error
}

func (f *fakeIO) HandlePresent() (bool, error) { return f.handle, nil }
func (f *fakeIO) ManualPressed() (bool, error) { return f.manual, nil }
func (f *fakeIO) SetActuator(on bool) error {
	if err := f.failNext; err != nil {
		f.failNext = nil
		return err
	}
	f.on = on
	f.writes++
	return nil
}

type fakeSettings struct {
	doses    []float32
	factors  []float32
	factor   float32
	factorOK bool
	err      error
}

func (s *fakeSettings) SaveDose(d float32) error {
	if s.err != nil {
		return s.err
	}
	s.doses = append(s.doses, d)
	return nil
}

func (s *fakeSettings) SaveCalibration(f float32) error {
	if s.err != nil {
		return s.err
	}
	s.factors = append(s.factors, f)
	s.factor, s.factorOK = f, true
	return nil
}

func (s *fakeSettings) CalibrationFactor() (float32, bool, error) {
	return s.factor, s.factorOK, nil
}

type fakePublisher struct{ names []string }

func (p *fakePublisher) Publish(name string, _ any) { p.names = append(p.names, name) }

// rawCell is a load cell that always reads the same count.
type rawCell struct{ raw int32 }

func (c *rawCell) ReadRaw(context.Context) (int32, error) { return c.raw, nil }

type harness struct {
	c        *Controller
	clock    *fakeClock
	scale    *fakeScale
	io       *fakeIO
	enc      *encoder.Queue
	canvas   *display.Canvas
	settings *fakeSettings
	pub      *fakePublisher
}

func testOptions() Options {
	opts := DefaultOptions
	opts.TareSettle = 0
	return opts
}

func newHarness(t *testing.T, opts Options, sc Scale) *harness {
	t.Helper()
	h := &harness{
		clock:    &fakeClock{t: time.Unix(1000, 0)},
		scale:    &fakeScale{factor: 1030},
		io:       &fakeIO{},
		enc:      encoder.NewQueue(0),
		canvas:   display.NewCanvas(),
		settings: &fakeSettings{factor: 1030, factorOK: true},
		pub:      &fakePublisher{},
	}
	if sc == nil {
		sc = h.scale
	}
	h.c = New(Deps{
		Scale:    sc,
		IO:       h.io,
		Encoder:  h.enc,
		Display:  h.canvas,
		Settings: h.settings,
		Events:   h.pub,
		Clock:    h.clock,
	}, opts, 18)
	return h
}

func (h *harness) step(t *testing.T) grinder.Status {
	t.Helper()
	require.NoError(t, h.c.Step(context.Background()))
	return h.c.Status()
}

func (h *harness) text(p display.Point) string {
	return h.canvas.Snapshot().Text(p)
}

func TestNew_DrawsMain(t *testing.T) {
	h := newHarness(t, testOptions(), nil)

	st := h.c.Status()
	assert.Equal(t, grinder.ScreenMain, st.Screen)
	assert.Equal(t, grinder.DosingIdle, st.Dosing)
	assert.Equal(t, "Weigh Grind", h.text(PosTitle))
	assert.Equal(t, "18.0g", h.text(PosLeftValue))
	assert.Equal(t, "0.0g", h.text(PosWeight))
}

func TestDosing_FillsToTarget(t *testing.T) {
	h := newHarness(t, testOptions(), nil)

	h.scale.weight = 3
	st := h.step(t)
	assert.Equal(t, grinder.DosingIdle, st.Dosing)
	assert.False(t, h.io.on)

	h.io.handle = true
	st = h.step(t)
	assert.Equal(t, 1, h.scale.tares)
	assert.Equal(t, grinder.DosingFilling, st.Dosing)
	assert.Equal(t, grinder.ScreenDosing, st.Screen)
	assert.True(t, st.ActuatorEngaged)
	assert.True(t, h.io.on)

	h.scale.weight = 12.4
	h.clock.Advance(10 * time.Millisecond)
	st = h.step(t)
	assert.Equal(t, grinder.DosingFilling, st.Dosing)
	assert.Equal(t, "12.4g", h.text(PosWeight))

	h.scale.weight = 18
	h.clock.Advance(10 * time.Millisecond)
	st = h.step(t)
	assert.Equal(t, grinder.DosingDone, st.Dosing)
	assert.False(t, st.ActuatorEngaged)
	assert.False(t, h.io.on)

	// handle is still in place: back to idle without a second fill
	st = h.step(t)
	assert.Equal(t, grinder.DosingIdle, st.Dosing)
	assert.Equal(t, grinder.ScreenMain, st.Screen)
	h.scale.weight = 17
	st = h.step(t)
	assert.Equal(t, grinder.DosingIdle, st.Dosing)
	assert.False(t, h.io.on)
	assert.Equal(t, 1, h.scale.tares)

	assert.Contains(t, h.pub.names, events.DosingState)
	assert.Contains(t, h.pub.names, events.ScreenChange)
}

func TestDosing_Pulses(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.io.handle = true
	h.step(t)
	require.True(t, h.io.on)

	tests := []struct {
		advance time.Duration
		on      bool
	}{
		{20 * time.Millisecond, true},
		{30 * time.Millisecond, false},
		{40 * time.Millisecond, false},
		{10 * time.Millisecond, true},
		{50 * time.Millisecond, false},
	}
	for i, tt := range tests {
		h.clock.Advance(tt.advance)
		st := h.step(t)
		assert.True(t, st.ActuatorEngaged, "step %d", i)
		assert.Equal(t, tt.on, h.io.on, "step %d", i)
	}
}

func TestDosing_PulsesIndependentOfPassLength(t *testing.T) {
	for _, pass := range []time.Duration{135 * time.Millisecond, 1010 * time.Millisecond} {
		t.Run(pass.String(), func(t *testing.T) {
			h := newHarness(t, testOptions(), nil)
			h.io.handle = true
			start := h.clock.Now()
			h.step(t)
			require.True(t, h.io.on)

			var ons, offs int
			for p := 0; p < 3; p++ {
				// a blocked pass, the actuator task keeps ticking
				for elapsed := time.Duration(0); elapsed < pass; elapsed += 5 * time.Millisecond {
					h.clock.Advance(5 * time.Millisecond)
					require.NoError(t, h.c.ServiceActuator())
					want := h.clock.Now().Sub(start)%(100*time.Millisecond) < 50*time.Millisecond
					require.Equal(t, want, h.io.on, "at %v", h.clock.Now().Sub(start))
					if h.io.on {
						ons++
					} else {
						offs++
					}
				}
				st := h.step(t)
				assert.Equal(t, grinder.DosingFilling, st.Dosing)
				assert.True(t, st.ActuatorEngaged)
			}
			assert.Greater(t, ons, 0)
			assert.Greater(t, offs, 0)
		})
	}
}

func TestActuator_Keepalive(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.io.manual = true
	h.step(t)
	require.True(t, h.io.on)
	writes := h.io.writes

	h.clock.Advance(100 * time.Millisecond)
	require.NoError(t, h.c.ServiceActuator())
	assert.Equal(t, writes, h.io.writes)

	h.clock.Advance(150 * time.Millisecond)
	require.NoError(t, h.c.ServiceActuator())
	assert.Equal(t, writes+1, h.io.writes)
	assert.True(t, h.io.on)

	// a pass resends the level too
	h.clock.Advance(250 * time.Millisecond)
	h.step(t)
	assert.Equal(t, writes+2, h.io.writes)
	assert.True(t, h.io.on)
}

func TestActuator_NoKeepalive(t *testing.T) {
	opts := testOptions()
	opts.ActuatorKeepalive = 0
	h := newHarness(t, opts, nil)
	h.io.manual = true
	h.step(t)
	writes := h.io.writes

	for i := 0; i < 10; i++ {
		h.clock.Advance(time.Second)
		require.NoError(t, h.c.ServiceActuator())
	}
	assert.Equal(t, writes, h.io.writes)
}

func TestActuator_RetriesFailedWrite(t *testing.T) {
	opts := testOptions()
	opts.ActuatorKeepalive = 0
	h := newHarness(t, opts, nil)
	h.io.failNext = errors.New("port closed")
	h.io.manual = true

	assert.Error(t, h.c.Step(context.Background()))
	require.NoError(t, h.c.ServiceActuator())
	assert.True(t, h.io.on)
}

func TestDosing_Overload(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.io.handle = true
	h.step(t)

	h.scale.weight = 18.3
	st := h.step(t)
	assert.Equal(t, grinder.DosingOverloaded, st.Dosing)
	assert.False(t, h.io.on)
	assert.Equal(t, "OVER!", h.text(PosWeightStatus))

	// falling weight does not restart the motor
	for _, w := range []float32{10, 0, 17.9} {
		h.scale.weight = w
		st = h.step(t)
		assert.Equal(t, grinder.DosingOverloaded, st.Dosing)
		assert.False(t, h.io.on)
		assert.False(t, st.ActuatorEngaged)
	}

	h.io.handle = false
	st = h.step(t)
	assert.Equal(t, grinder.DosingIdle, st.Dosing)
	assert.Empty(t, h.text(PosWeightStatus))
}

func TestDosing_Tolerance(t *testing.T) {
	tests := []struct {
		name      string
		tolerance float32
		margin    float32
		weight    float32
		want      grinder.DosingState
	}{
		{"below", 0, 0, 17.9, grinder.DosingFilling},
		{"exact", 0, 0, 18, grinder.DosingDone},
		{"within tolerance", 0.2, 0, 17.9, grinder.DosingDone},
		{"over", 0, 0, 18.1, grinder.DosingOverloaded},
		{"within margin", 0, 0.3, 18.2, grinder.DosingDone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			opts.Tolerance = tt.tolerance
			opts.OverloadMargin = tt.margin
			h := newHarness(t, opts, nil)
			h.io.handle = true
			h.step(t)

			h.scale.weight = tt.weight
			st := h.step(t)
			assert.Equal(t, tt.want, st.Dosing)
		})
	}
}

func TestDosing_HandleRemovedWhileFilling(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.io.handle = true
	h.step(t)
	require.True(t, h.io.on)

	h.scale.weight = 9
	h.io.handle = false
	st := h.step(t)
	assert.Equal(t, grinder.DosingIdle, st.Dosing)
	assert.False(t, h.io.on)
}

func TestDosing_HandleInsertedAboveTarget(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.scale.weight = 20
	h.io.handle = true

	st := h.step(t)
	assert.Equal(t, grinder.DosingIdle, st.Dosing)
	assert.Equal(t, 0, h.scale.tares)
	assert.False(t, h.io.on)
}

func TestDosing_Settling(t *testing.T) {
	opts := testOptions()
	opts.TareSettle = time.Second
	h := newHarness(t, opts, nil)
	h.io.handle = true

	st := h.step(t)
	assert.Equal(t, grinder.DosingSettling, st.Dosing)
	assert.False(t, h.io.on)

	h.clock.Advance(500 * time.Millisecond)
	st = h.step(t)
	assert.Equal(t, grinder.DosingSettling, st.Dosing)

	h.clock.Advance(500 * time.Millisecond)
	st = h.step(t)
	assert.Equal(t, grinder.DosingFilling, st.Dosing)
	assert.True(t, h.io.on)
}

func TestDosing_ManualOverride(t *testing.T) {
	h := newHarness(t, testOptions(), nil)

	h.io.manual = true
	st := h.step(t)
	assert.True(t, h.io.on)
	assert.True(t, st.ManualPressed)
	assert.Equal(t, grinder.DosingIdle, st.Dosing)

	h.io.manual = false
	h.step(t)
	assert.False(t, h.io.on)
}

func TestDosing_SensorFault(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.io.handle = true
	h.step(t)
	require.True(t, h.io.on)

	h.scale.err = scale.ErrSensorFault
	st := h.step(t)
	assert.Equal(t, grinder.DosingSensorFault, st.Dosing)
	assert.NotEmpty(t, st.Fault)
	assert.False(t, h.io.on)
	assert.Equal(t, "FAULT", h.text(PosWeightStatus))
	assert.Contains(t, h.pub.names, events.SensorFault)

	// the sensor comes back but the handle is still in: stay halted
	h.scale.err = nil
	h.scale.weight = 5
	st = h.step(t)
	assert.Equal(t, grinder.DosingSensorFault, st.Dosing)
	assert.False(t, h.io.on)

	h.io.handle = false
	st = h.step(t)
	assert.Equal(t, grinder.DosingIdle, st.Dosing)
	assert.Empty(t, st.Fault)
}

func TestDosing_TareFailure(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.scale.tareErr = errors.New("no data")
	h.io.handle = true

	st := h.step(t)
	assert.Equal(t, grinder.DosingSensorFault, st.Dosing)
	assert.False(t, h.io.on)
}

func TestMenu_LockedWhileDosing(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.io.handle = true
	h.step(t)

	h.enc.Push(encoder.Event{Kind: encoder.Clicked})
	st := h.step(t)
	assert.Equal(t, grinder.ScreenDosing, st.Screen)
	assert.Equal(t, 0, h.enc.Len())
}

func TestMenu_CalibrationReachableFromSensorFault(t *testing.T) {
	// an uncalibrated factor of 1 puts the raw count far out of range
	cell := &rawCell{raw: 84000}
	sc := scale.New(cell, scale.Options{Samples: 1, MinGrams: -100, MaxGrams: 1000})
	h := newHarness(t, testOptions(), sc)

	st := h.step(t)
	require.Equal(t, grinder.DosingSensorFault, st.Dosing)

	h.enc.Push(encoder.Event{Kind: encoder.DoubleClicked})
	st = h.step(t)
	assert.Equal(t, grinder.ScreenCalibrating, st.Screen)
	assert.Equal(t, grinder.DosingIdle, st.Dosing)
	assert.Empty(t, st.Fault)
	assert.False(t, h.io.on)

	cell.raw = 102000
	h.enc.Push(encoder.Event{Kind: encoder.Rotated, Delta: -30})
	h.step(t)
	h.enc.Push(encoder.Event{Kind: encoder.Clicked})
	st = h.step(t)
	assert.Equal(t, grinder.ScreenMain, st.Screen)
	assert.Equal(t, []float32{1000}, h.settings.factors)

	st = h.step(t)
	assert.Equal(t, grinder.DosingIdle, st.Dosing)
	assert.Equal(t, float32(18), st.Weight)
}

func TestMenu_AdjustReachableFromSensorFault(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.scale.err = scale.ErrSensorFault
	st := h.step(t)
	require.Equal(t, grinder.DosingSensorFault, st.Dosing)

	h.enc.Push(encoder.Event{Kind: encoder.Clicked})
	st = h.step(t)
	assert.Equal(t, grinder.ScreenAdjusting, st.Screen)
}

func TestMenu_LockedInSensorFaultWithHandle(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.io.handle = true
	h.scale.err = scale.ErrSensorFault
	h.step(t)

	h.enc.Push(encoder.Event{Kind: encoder.DoubleClicked})
	st := h.step(t)
	assert.Equal(t, grinder.DosingSensorFault, st.Dosing)
	assert.Equal(t, grinder.ScreenDosing, st.Screen)
	assert.Equal(t, 0, h.enc.Len())
}

func TestAdjust_Commit(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	fills := h.canvas.Fills()

	h.enc.Push(encoder.Event{Kind: encoder.Clicked})
	st := h.step(t)
	assert.Equal(t, grinder.ScreenAdjusting, st.Screen)
	assert.Greater(t, h.canvas.Fills(), fills)
	assert.Equal(t, "Adjusting", h.text(PosNote))

	h.enc.Push(encoder.Event{Kind: encoder.Rotated, Delta: 3})
	h.enc.Push(encoder.Event{Kind: encoder.Rotated, Delta: 2})
	st = h.step(t)
	assert.Equal(t, float32(18.5), st.Candidate)
	assert.Equal(t, "18.5g", h.text(PosLeftValue))
	assert.Equal(t, float32(18), st.Target)

	h.enc.Push(encoder.Event{Kind: encoder.Clicked})
	st = h.step(t)
	assert.Equal(t, grinder.ScreenMain, st.Screen)
	assert.Equal(t, float32(18.5), st.Target)
	assert.Equal(t, []float32{18.5}, h.settings.doses)
	assert.Equal(t, "18.5g", h.text(PosLeftValue))
	assert.Contains(t, h.pub.names, events.DoseChanged)
}

func TestAdjust_Timeout(t *testing.T) {
	opts := testOptions()
	opts.AdjustTimeout = 3
	h := newHarness(t, opts, nil)

	h.enc.Push(encoder.Event{Kind: encoder.Clicked})
	h.step(t)

	h.enc.Push(encoder.Event{Kind: encoder.Rotated, Delta: 4})
	st := h.step(t)
	assert.Equal(t, float32(18.4), st.Candidate)

	for i := 0; i < 3; i++ {
		st = h.step(t)
		assert.Equal(t, grinder.ScreenAdjusting, st.Screen, "step %d", i)
	}
	st = h.step(t)
	assert.Equal(t, grinder.ScreenMain, st.Screen)
	assert.Equal(t, float32(18), st.Target)
	assert.Empty(t, h.settings.doses)
	assert.Equal(t, "18.0g", h.text(PosLeftValue))
}

func TestAdjust_Clamped(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.enc.Push(encoder.Event{Kind: encoder.Clicked})
	h.step(t)

	h.enc.Push(encoder.Event{Kind: encoder.Rotated, Delta: -500})
	st := h.step(t)
	assert.Equal(t, float32(0), st.Candidate)

	h.enc.Push(encoder.Event{Kind: encoder.Rotated, Delta: 5000})
	st = h.step(t)
	assert.Equal(t, float32(100), st.Candidate)
}

func TestAdjust_ActuatorOff(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.io.manual = true
	h.step(t)
	require.True(t, h.io.on)

	h.enc.Push(encoder.Event{Kind: encoder.Clicked})
	h.step(t)
	assert.False(t, h.io.on)
}

func TestCalibration_Save(t *testing.T) {
	cell := &rawCell{raw: 84000}
	sc := scale.New(cell, scale.Options{Samples: 1})
	h := newHarness(t, testOptions(), sc)

	h.enc.Push(encoder.Event{Kind: encoder.DoubleClicked})
	st := h.step(t)
	require.Equal(t, grinder.ScreenCalibrating, st.Screen)
	assert.Equal(t, float32(84000), st.ZeroFactor)
	assert.Equal(t, float32(1030), st.TrialFactor)
	assert.Equal(t, float32(84000), sc.Offset())
	assert.Equal(t, "CALIBRATION", h.text(PosTitle))

	// put 18g on the scale, at 1000 counts per gram
	cell.raw = 102000
	h.enc.Push(encoder.Event{Kind: encoder.Rotated, Delta: -30})
	st = h.step(t)
	assert.Equal(t, float32(1000), st.TrialFactor)
	assert.Equal(t, float32(102000), st.Raw)

	st = h.step(t)
	assert.Equal(t, float32(18), st.Weight)
	assert.Equal(t, "18.000", h.text(PosLeftValue))
	assert.Equal(t, "1000.00", h.text(PosWeight))
	assert.Empty(t, h.settings.factors)

	h.enc.Push(encoder.Event{Kind: encoder.Clicked})
	st = h.step(t)
	assert.Equal(t, grinder.ScreenMain, st.Screen)
	assert.Equal(t, []float32{1000}, h.settings.factors)
	assert.Equal(t, float32(1000), sc.Factor())
	assert.Equal(t, float32(1000), st.CalibrationFactor)
	assert.Contains(t, h.pub.names, events.CalibrationSaved)

	st = h.step(t)
	assert.Equal(t, float32(18), st.Weight)
}

func TestCalibration_DefaultFactor(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.settings.factorOK = false
	h.settings.factor = 0

	h.enc.Push(encoder.Event{Kind: encoder.DoubleClicked})
	st := h.step(t)
	assert.Equal(t, float32(1030), st.TrialFactor)

	h.enc.Push(encoder.Event{Kind: encoder.Rotated, Delta: -5000})
	st = h.step(t)
	assert.Equal(t, float32(1), st.TrialFactor)
}

func TestCalibration_NoTimeoutByDefault(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.enc.Push(encoder.Event{Kind: encoder.DoubleClicked})
	h.step(t)

	for i := 0; i < 500; i++ {
		h.step(t)
	}
	assert.Equal(t, grinder.ScreenCalibrating, h.c.Status().Screen)
}

func TestCalibration_Timeout(t *testing.T) {
	opts := testOptions()
	opts.CalibrationTimeout = 2
	h := newHarness(t, opts, nil)

	h.enc.Push(encoder.Event{Kind: encoder.DoubleClicked})
	h.step(t)
	assert.Equal(t, float32(1), h.scale.factor)

	h.enc.Push(encoder.Event{Kind: encoder.Rotated, Delta: 7})
	h.step(t)
	h.step(t)
	st := h.step(t)
	assert.Equal(t, grinder.ScreenCalibrating, st.Screen)
	st = h.step(t)
	assert.Equal(t, grinder.ScreenMain, st.Screen)
	assert.Equal(t, float32(1030), h.scale.factor)
	assert.Empty(t, h.settings.factors)
}

func TestSetTarget(t *testing.T) {
	h := newHarness(t, testOptions(), nil)

	assert.ErrorIs(t, h.c.SetTarget(-1), ErrInvalidDose)
	assert.ErrorIs(t, h.c.SetTarget(101), ErrInvalidDose)

	require.NoError(t, h.c.SetTarget(20.04))
	assert.Equal(t, float32(20), h.c.Target())
	assert.Equal(t, []float32{20}, h.settings.doses)
	assert.Equal(t, "20.0g", h.text(PosLeftValue))

	h.enc.Push(encoder.Event{Kind: encoder.Clicked})
	h.step(t)
	assert.ErrorIs(t, h.c.SetTarget(19), ErrBusy)
}

func TestTare_BusyWhileDosing(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	require.NoError(t, h.c.Tare(context.Background()))
	assert.Equal(t, 1, h.scale.tares)

	h.io.handle = true
	h.step(t)
	assert.ErrorIs(t, h.c.Tare(context.Background()), ErrBusy)
}

func TestShutdown(t *testing.T) {
	h := newHarness(t, testOptions(), nil)
	h.io.handle = true
	h.step(t)
	require.True(t, h.io.on)

	require.NoError(t, h.c.Shutdown())
	assert.False(t, h.io.on)
}
