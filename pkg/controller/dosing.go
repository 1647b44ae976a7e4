package controller

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/h3ct1cl3o/weighgrind/pkg/events"
	"github.com/h3ct1cl3o/weighgrind/pkg/grinder"
	"github.com/h3ct1cl3o/weighgrind/pkg/scale"
)

// stepDosing advances the dosing state machine with this pass's inputs and
// weight reading. rerr is the sensor error, if any.
func (c *Controller) stepDosing(ctx context.Context, handle, manual bool, reading scale.Reading, rerr error) error {
	now := c.d.Clock.Now()
	rising := handle && !c.lastHandle
	c.lastHandle = handle

	if rerr != nil {
		if err := c.forceOff(); err != nil {
			return err
		}
		c.enterFault(rerr)
		return nil
	}

	c.weight = reading.Grams

	switch c.dosing {
	case grinder.DosingSensorFault:
		if handle {
			c.drawFault()
			return c.drive(driveOff)
		}
		logrus.Info("sensor recovered")
		c.fault = ""
		c.setDosing(grinder.DosingIdle)

	case grinder.DosingIdle:
		if rising && c.weight <= c.target {
			if err := c.d.Scale.Tare(ctx, c.opts.AveragingFactor); err != nil {
				if ctx.Err() != nil {
					return errors.Join(ctx.Err(), c.forceOff())
				}
				if err := c.forceOff(); err != nil {
					return err
				}
				c.enterFault(err)
				return nil
			}
			logrus.WithField("weight", c.weight).Debug("tared before filling")
			c.weight = 0
			c.settleUntil = now.Add(c.opts.TareSettle)
			c.setDosing(grinder.DosingSettling)
			if c.opts.TareSettle > 0 {
				c.drawWeight(false)
				return c.drive(driveOff)
			}
			return c.startFilling()
		}
		if rising {
			logrus.WithFields(logrus.Fields{
				"weight": c.weight,
				"target": c.target,
			}).Info("handle inserted above target, not filling")
		}
		c.drawWeight(false)
		// manual override only applies while idle
		if manual {
			return c.drive(driveSteady)
		}
		return c.drive(driveOff)

	case grinder.DosingSettling:
		if !handle {
			c.setDosing(grinder.DosingIdle)
			break
		}
		if !now.Before(c.settleUntil) {
			return c.startFilling()
		}
		c.drawWeight(false)
		return c.drive(driveOff)

	case grinder.DosingFilling:
		return c.fill(handle)

	case grinder.DosingOverloaded:
		if err := c.drive(driveOff); err != nil {
			return err
		}
		if handle {
			c.drawWeight(true)
			return nil
		}
		c.setDosing(grinder.DosingIdle)

	case grinder.DosingDone:
		c.setDosing(grinder.DosingIdle)
	}

	c.drawWeight(false)
	return c.drive(driveOff)
}

func (c *Controller) startFilling() error {
	c.setDosing(grinder.DosingFilling)
	return c.fill(true)
}

// fill evaluates one pass in Filling. It runs right after the weight was
// read, so a fill never continues on a stale reading.
func (c *Controller) fill(handle bool) error {
	switch {
	case !handle:
		logrus.WithField("weight", c.weight).Info("handle removed while filling")
		c.setDosing(grinder.DosingIdle)
	case c.weight > c.target+c.opts.OverloadMargin:
		logrus.WithFields(logrus.Fields{
			"weight": c.weight,
			"target": c.target,
		}).Warn("dose overloaded")
		c.setDosing(grinder.DosingOverloaded)
		if err := c.forceOff(); err != nil {
			return err
		}
		c.drawWeight(true)
		return nil
	case c.weight >= c.target-c.opts.Tolerance:
		logrus.WithFields(logrus.Fields{
			"weight": c.weight,
			"target": c.target,
		}).Info("dose done")
		c.setDosing(grinder.DosingDone)
	default:
		c.drawWeight(false)
		return c.drive(drivePulse)
	}

	c.drawWeight(false)
	return c.forceOff()
}

func (c *Controller) enterFault(err error) {
	msg := err.Error()
	if c.dosing != grinder.DosingSensorFault || c.fault != msg {
		logrus.WithError(err).Warn("sensor fault, dosing halted")
		c.publish(events.SensorFault, events.SensorFaultEvent{Message: msg, Ts: c.d.Clock.Now().Unix()})
	}
	c.fault = msg
	c.setDosing(grinder.DosingSensorFault)
	c.drawFault()
}

// clearFault leaves SensorFault for Idle. The next pass reports the fault
// again if it persists.
func (c *Controller) clearFault() {
	if c.dosing != grinder.DosingSensorFault {
		return
	}
	c.fault = ""
	c.setDosing(grinder.DosingIdle)
}

func (c *Controller) setDosing(s grinder.DosingState) {
	if s == c.dosing {
		return
	}
	logrus.WithFields(logrus.Fields{
		"from":   c.dosing,
		"to":     s,
		"weight": c.weight,
		"target": c.target,
	}).Debug("dosing state change")
	c.publish(events.DosingState, events.DosingStateEvent{
		From:   string(c.dosing),
		To:     string(s),
		Weight: c.weight,
		Target: c.target,
		Ts:     c.d.Clock.Now().Unix(),
	})
	c.dosing = s

	// Main and Dosing share a layout, so switching between them repaints
	// without changing what is drawn.
	next := grinder.ScreenMain
	if s.Active() {
		next = grinder.ScreenDosing
	}
	if next != c.screen {
		c.setScreen(next)
		c.drawMain()
	}
}
