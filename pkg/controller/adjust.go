package controller

import (
	"github.com/sirupsen/logrus"

	"github.com/h3ct1cl3o/weighgrind/pkg/encoder"
	"github.com/h3ct1cl3o/weighgrind/pkg/grinder"
)

type adjustSession struct {
	original  float32
	candidate float32
	// detents turned since the session started
	value int
	idle  int
}

func (c *Controller) enterAdjust() error {
	if err := c.forceOff(); err != nil {
		return err
	}
	c.adj = adjustSession{original: c.target, candidate: c.target}
	c.setScreen(grinder.ScreenAdjusting)
	c.drawAdjust()
	logrus.WithField("dose", c.target).Debug("adjusting dose")
	return nil
}

// stepAdjust runs one pass of the adjustment procedure. The session ends
// on a click, which commits, or after AdjustTimeout passes without the
// candidate changing, which reverts.
func (c *Controller) stepAdjust() error {
	c.adj.idle++

	switch ev := c.d.Encoder.Poll(); ev.Kind {
	case encoder.Rotated:
		c.adj.value += ev.Delta
		candidate := c.clampDose(roundDose(c.adj.original + float32(c.adj.value)*c.opts.AdjustStep))
		if candidate != c.adj.candidate {
			c.adj.candidate = candidate
			c.adj.idle = 0
			logrus.WithField("candidate", candidate).Trace("new dose")
		}
	case encoder.Clicked:
		if err := c.commitTarget(c.adj.candidate); err != nil {
			// stay on the screen so the user can retry
			logrus.WithError(err).Error("failed to save dose")
			c.adj.idle = 0
			return err
		}
		logrus.WithField("dose", c.target).Info("adjustment saved")
		c.exitToMain()
		return nil
	}

	if c.adj.idle > c.opts.AdjustTimeout {
		logrus.WithField("dose", c.adj.original).Debug("adjustment timed out, keeping dose")
		c.exitToMain()
		return nil
	}

	c.drawAdjustValue()
	return nil
}

func (c *Controller) clampDose(d float32) float32 {
	if d < 0 {
		return 0
	}
	if c.opts.MaxDose > 0 && d > c.opts.MaxDose {
		return c.opts.MaxDose
	}
	return d
}

func (c *Controller) exitToMain() {
	c.adj = adjustSession{}
	c.cal = calibrationSession{}
	c.setScreen(grinder.ScreenMain)
	c.drawMain()
}
