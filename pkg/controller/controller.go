// Package controller is the grinder's control loop: a menu navigator over
// the Main, Adjusting, Calibrating and Dosing screens, the dosing state
// machine, and the adjustment and calibration procedures. Everything runs
// from Step, which performs one non-blocking poll-and-dispatch pass.
package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chewxy/math32"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/h3ct1cl3o/weighgrind/pkg/display"
	"github.com/h3ct1cl3o/weighgrind/pkg/encoder"
	"github.com/h3ct1cl3o/weighgrind/pkg/events"
	"github.com/h3ct1cl3o/weighgrind/pkg/grinder"
	"github.com/h3ct1cl3o/weighgrind/pkg/scale"
)

var (
	// ErrBusy is returned by commands that need the Main screen with no
	// dosing cycle in progress.
	ErrBusy = errors.New("controller is busy")
	// ErrInvalidDose is returned by SetTarget for out-of-range doses.
	ErrInvalidDose = errors.New("invalid dose")
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Scale is the sensor reader.
type Scale interface {
	ReadWeight(ctx context.Context) (scale.Reading, error)
	ReadAverage(ctx context.Context, n int) (float32, error)
	Units(ctx context.Context, n int) (float32, error)
	Tare(ctx context.Context, n int) error
	SetFactor(f float32)
	Factor() float32
}

// IO is the digital side of the board.
type IO interface {
	HandlePresent() (bool, error)
	ManualPressed() (bool, error)
	SetActuator(on bool) error
}

type Settings interface {
	SaveDose(dose float32) error
	SaveCalibration(factor float32) error
	CalibrationFactor() (factor float32, ok bool, err error)
}

type Display interface {
	Fill()
	Print(p display.Point, c display.Color, text string)
	Erase(p display.Point)
	Flush()
}

type Publisher interface {
	Publish(name string, payload any)
}

type Options struct {
	AveragingFactor    int
	CalibrationSamples int
	// DefaultCalibrationFactor seeds calibration when none is stored.
	DefaultCalibrationFactor float32
	MaxDose                  float32
	// A fill is done once the weight reaches Target-Tolerance, and
	// overloaded once it passes Target+OverloadMargin.
	Tolerance      float32
	OverloadMargin float32
	PulseOn        time.Duration
	PulseOff       time.Duration
	TareSettle     time.Duration

	// ActuatorKeepalive is how often an unchanged output level is written
	// again. 0 writes only on change.
	ActuatorKeepalive time.Duration

	// AdjustStep is the dose change per encoder detent.
	AdjustStep    float32
	AdjustTimeout int
	// CalibrationTimeout of 0 means calibration never times out.
	CalibrationTimeout int
}

var DefaultOptions = Options{
	AveragingFactor:          10,
	CalibrationSamples:       4,
	DefaultCalibrationFactor: 1030,
	MaxDose:                  100,
	PulseOn:                  50 * time.Millisecond,
	PulseOff:                 50 * time.Millisecond,
	ActuatorKeepalive:        250 * time.Millisecond,
	TareSettle:               time.Second,
	AdjustStep:               0.1,
	AdjustTimeout:            100,
}

type Deps struct {
	Scale    Scale
	IO       IO
	Encoder  encoder.Source
	Display  Display
	Settings Settings
	// Events and Clock are optional.
	Events Publisher
	Clock  Clock
}

type Controller struct {
	d    Deps
	opts Options

	mu     sync.Mutex
	screen grinder.Screen
	dosing grinder.DosingState
	target float32
	weight float32

	handle     bool
	manual     bool
	lastHandle bool
	out        *actuator

	settleUntil time.Time
	fault       string

	adj adjustSession
	cal calibrationSession

	statusMu sync.RWMutex
	status   grinder.Status
}

// New returns a controller showing the Main screen. target is the dose
// loaded from settings.
func New(d Deps, opts Options, target float32) *Controller {
	if d.Clock == nil {
		d.Clock = systemClock{}
	}
	if opts.AveragingFactor <= 0 {
		opts.AveragingFactor = DefaultOptions.AveragingFactor
	}
	if opts.CalibrationSamples <= 0 {
		opts.CalibrationSamples = DefaultOptions.CalibrationSamples
	}
	if opts.AdjustStep <= 0 {
		opts.AdjustStep = DefaultOptions.AdjustStep
	}
	if opts.AdjustTimeout <= 0 {
		opts.AdjustTimeout = DefaultOptions.AdjustTimeout
	}
	if opts.PulseOn <= 0 {
		opts.PulseOn = DefaultOptions.PulseOn
	}
	if opts.DefaultCalibrationFactor <= 0 {
		opts.DefaultCalibrationFactor = DefaultOptions.DefaultCalibrationFactor
	}

	c := &Controller{
		d:      d,
		opts:   opts,
		screen: grinder.ScreenMain,
		dosing: grinder.DosingIdle,
		target: target,
		out:    newActuator(d.IO, d.Clock, opts),
	}
	c.drawMain()
	c.d.Display.Flush()
	c.snapshot()
	return c
}

// Step runs one pass of the control loop. Sensor faults are handled by the
// dosing state machine; the returned error reports hardware or storage
// failures and context cancellation.
func (c *Controller) Step(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	switch c.screen {
	case grinder.ScreenAdjusting:
		err = c.stepAdjust()
	case grinder.ScreenCalibrating:
		err = c.stepCalibrate(ctx)
	default:
		err = c.stepMain(ctx)
	}
	if err == nil {
		err = c.out.service()
	}

	c.d.Display.Flush()
	c.snapshot()
	return err
}

func (c *Controller) stepMain(ctx context.Context) error {
	handle, manual, err := c.readInputs()
	if err != nil {
		return errors.Join(err, c.forceOff())
	}

	// One encoder event per pass. While a cycle runs the menu is locked and
	// events are discarded so they do not fire once it ends. A sensor fault
	// with the handle out keeps the menu open so a bad factor can be
	// recalibrated.
	ev := c.d.Encoder.Poll()
	menuOpen := !c.dosing.Active() || (c.dosing == grinder.DosingSensorFault && !handle)
	if menuOpen {
		switch ev.Kind {
		case encoder.DoubleClicked:
			c.clearFault()
			return c.enterCalibration(ctx)
		case encoder.Clicked:
			c.clearFault()
			return c.enterAdjust()
		}
	} else if ev.Kind != encoder.None {
		logrus.WithField("event", ev.Kind).Debug("ignoring encoder while dosing")
	}

	reading, rerr := c.d.Scale.ReadWeight(ctx)
	if rerr != nil && ctx.Err() != nil {
		return errors.Join(ctx.Err(), c.forceOff())
	}
	return c.stepDosing(ctx, handle, manual, reading, rerr)
}

func (c *Controller) readInputs() (handle, manual bool, err error) {
	handle, err = c.d.IO.HandlePresent()
	if err != nil {
		return false, false, pkgerrors.Wrap(err, "failed to read handle input")
	}
	manual, err = c.d.IO.ManualPressed()
	if err != nil {
		return false, false, pkgerrors.Wrap(err, "failed to read manual input")
	}
	c.handle, c.manual = handle, manual
	return handle, manual, nil
}

// drive sets how the actuator should run.
func (c *Controller) drive(mode driveMode) error {
	return c.out.set(mode)
}

// forceOff writes the off level unconditionally.
func (c *Controller) forceOff() error {
	return pkgerrors.Wrap(c.out.forceOff(), "failed to turn actuator off")
}

// ServiceActuator advances the pulse train and rewrites the output level
// when the keepalive is due. It is called from a periodic task of its own
// and does not wait for a running pass.
func (c *Controller) ServiceActuator() error {
	return c.out.service()
}

func (c *Controller) setScreen(s grinder.Screen) {
	if s == c.screen {
		return
	}
	logrus.WithFields(logrus.Fields{
		"from": c.screen,
		"to":   s,
	}).Debug("screen change")
	c.publish(events.ScreenChange, events.ScreenEvent{
		From: string(c.screen),
		To:   string(s),
		Ts:   c.d.Clock.Now().Unix(),
	})
	c.screen = s
}

func (c *Controller) publish(name string, payload any) {
	if c.d.Events != nil {
		c.d.Events.Publish(name, payload)
	}
}

func (c *Controller) snapshot() {
	engaged, level := c.out.state()
	s := grinder.Status{
		Screen:            c.screen,
		Dosing:            c.dosing,
		Weight:            c.weight,
		Target:            c.target,
		CalibrationFactor: c.d.Scale.Factor(),
		HandlePresent:     c.handle,
		ManualPressed:     c.manual,
		ActuatorEngaged:   engaged,
		ActuatorOn:        level,
		Fault:             c.fault,
		UpdatedAt:         c.d.Clock.Now(),
	}
	switch c.screen {
	case grinder.ScreenAdjusting:
		s.Candidate = c.adj.candidate
	case grinder.ScreenCalibrating:
		s.Weight = c.cal.grams
		s.CalibrationFactor = c.cal.previous
		s.TrialFactor = c.cal.trial
		s.ZeroFactor = c.cal.zero
		s.Raw = c.cal.raw
	}

	c.statusMu.Lock()
	c.status = s
	c.statusMu.Unlock()
}

// Status returns the state at the end of the last pass. It does not wait
// for a running pass.
func (c *Controller) Status() grinder.Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// Target returns the current dose target.
func (c *Controller) Target() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// SetTarget sets and persists a new dose target. It is refused while a
// menu is open or a cycle is running.
func (c *Controller) SetTarget(dose float32) error {
	if math32.IsNaN(dose) || math32.IsInf(dose, 0) || dose < 0 || (c.opts.MaxDose > 0 && dose > c.opts.MaxDose) {
		return pkgerrors.Wrapf(ErrInvalidDose, "dose must be between 0 and %v, got %v", c.opts.MaxDose, dose)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.screen != grinder.ScreenMain || c.dosing.Active() {
		return pkgerrors.Wrapf(ErrBusy, "screen is %s, dosing is %s", c.screen, c.dosing)
	}
	if err := c.commitTarget(roundDose(dose)); err != nil {
		return err
	}
	c.drawMain()
	c.d.Display.Flush()
	c.snapshot()
	return nil
}

func (c *Controller) commitTarget(dose float32) error {
	if err := c.d.Settings.SaveDose(dose); err != nil {
		return pkgerrors.Wrap(err, "failed to persist dose")
	}
	prev := c.target
	c.target = dose
	logrus.WithFields(logrus.Fields{
		"dose":     dose,
		"previous": prev,
	}).Info("dose target set")
	c.publish(events.DoseChanged, events.DoseEvent{Dose: dose, Previous: prev, Ts: c.d.Clock.Now().Unix()})
	return nil
}

// Tare zeroes the scale. Only allowed on an idle Main screen.
func (c *Controller) Tare(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.screen != grinder.ScreenMain || c.dosing.Active() {
		return pkgerrors.Wrapf(ErrBusy, "screen is %s, dosing is %s", c.screen, c.dosing)
	}
	if err := c.d.Scale.Tare(ctx, c.opts.AveragingFactor); err != nil {
		return err
	}
	logrus.Info("scale tared")
	return nil
}

// Shutdown turns the actuator off. The controller must not be stepped
// afterwards.
func (c *Controller) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dosing = grinder.DosingIdle
	return c.forceOff()
}

// roundDose removes float noise from a dose built out of 0.1g steps.
func roundDose(d float32) float32 {
	return math32.Round(d*10) / 10
}
