package controller

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/h3ct1cl3o/weighgrind/pkg/encoder"
	"github.com/h3ct1cl3o/weighgrind/pkg/events"
	"github.com/h3ct1cl3o/weighgrind/pkg/grinder"
)

type calibrationSession struct {
	// previous is the factor in use before calibration started.
	previous float32
	start    float32
	trial    float32
	// zero is the raw average at entry, informational only
	zero  float32
	grams float32
	raw   float32
	value int
	idle  int
	err   error
}

func (c *Controller) enterCalibration(ctx context.Context) error {
	if err := c.forceOff(); err != nil {
		return err
	}

	start, ok, err := c.d.Settings.CalibrationFactor()
	if err != nil {
		logrus.WithError(err).Warn("failed to load calibration factor, using default")
	}
	if err != nil || !ok {
		start = c.opts.DefaultCalibrationFactor
	}

	previous := c.d.Scale.Factor()
	c.d.Scale.SetFactor(1)
	if err := c.d.Scale.Tare(ctx, c.opts.AveragingFactor); err != nil {
		c.d.Scale.SetFactor(previous)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// stay on Main, the dosing state machine reports the fault
		logrus.WithError(err).Warn("cannot calibrate, failed to tare")
		return nil
	}
	zero, err := c.d.Scale.ReadAverage(ctx, c.opts.AveragingFactor)
	if err != nil {
		c.d.Scale.SetFactor(previous)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logrus.WithError(err).Warn("cannot calibrate, failed to read zero")
		return nil
	}

	c.cal = calibrationSession{
		previous: previous,
		start:    start,
		trial:    start,
		zero:     zero,
		raw:      zero,
	}
	logrus.WithFields(logrus.Fields{
		"start": start,
		"zero":  zero,
	}).Info("calibration started")

	c.setScreen(grinder.ScreenCalibrating)
	c.drawCalibration()
	return nil
}

// stepCalibrate runs one pass of the calibration procedure. Rotation moves
// the trial factor one unit per detent and a click saves it.
func (c *Controller) stepCalibrate(ctx context.Context) error {
	c.cal.idle++

	c.d.Scale.SetFactor(c.cal.trial)
	grams, gerr := c.d.Scale.Units(ctx, c.opts.CalibrationSamples)
	raw, rerr := c.d.Scale.ReadAverage(ctx, c.opts.AveragingFactor)
	if ctx.Err() != nil {
		c.d.Scale.SetFactor(c.cal.previous)
		return ctx.Err()
	}
	c.cal.err = errors.Join(gerr, rerr)
	if c.cal.err != nil {
		logrus.WithError(c.cal.err).Debug("calibration reading failed")
	}
	if gerr == nil {
		c.cal.grams = grams
	}
	if rerr == nil {
		c.cal.raw = raw
	}
	c.drawCalibrationValues()

	switch ev := c.d.Encoder.Poll(); ev.Kind {
	case encoder.Rotated:
		c.cal.value += ev.Delta
		trial := c.cal.start + float32(c.cal.value)
		if trial < 1 {
			trial = 1
		}
		if trial != c.cal.trial {
			c.cal.trial = trial
			c.cal.idle = 0
		}
	case encoder.Clicked:
		return c.saveCalibration()
	}

	if c.opts.CalibrationTimeout > 0 && c.cal.idle > c.opts.CalibrationTimeout {
		logrus.WithField("factor", c.cal.previous).Info("calibration timed out, keeping factor")
		c.d.Scale.SetFactor(c.cal.previous)
		c.exitToMain()
	}
	return nil
}

func (c *Controller) saveCalibration() error {
	factor := c.cal.trial
	if err := c.d.Settings.SaveCalibration(factor); err != nil {
		logrus.WithError(err).Error("failed to save calibration")
		c.cal.idle = 0
		return err
	}
	c.d.Scale.SetFactor(factor)
	logrus.WithFields(logrus.Fields{
		"factor":   factor,
		"previous": c.cal.previous,
	}).Info("calibration saved")
	c.publish(events.CalibrationSaved, events.CalibrationEvent{
		Factor:   factor,
		Previous: c.cal.previous,
		Ts:       c.d.Clock.Now().Unix(),
	})
	c.exitToMain()
	return nil
}
