package controller

import (
	"fmt"

	"github.com/h3ct1cl3o/weighgrind/pkg/display"
	"github.com/h3ct1cl3o/weighgrind/pkg/grinder"
	"github.com/h3ct1cl3o/weighgrind/pkg/scale"
)

// Cell positions on the panel.
var (
	PosTitle        = display.Point{X: 15, Y: 2}
	PosLeftLabel    = display.Point{X: 2, Y: 30}
	PosRightLabel   = display.Point{X: 80, Y: 30}
	PosLeftValue    = display.Point{X: 2, Y: 50}
	PosRightValue   = display.Point{X: 80, Y: 50}
	PosNote         = display.Point{X: 2, Y: 66}
	PosWeightLabel  = display.Point{X: 2, Y: 80}
	PosWeight       = display.Point{X: 2, Y: 98}
	PosWeightStatus = display.Point{X: 80, Y: 98}
)

func grams(g float32) string {
	return fmt.Sprintf("%.1fg", g)
}

func (c *Controller) drawMain() {
	d := c.d.Display
	d.Fill()
	d.Print(PosTitle, display.Red, "Weigh Grind")
	d.Print(PosLeftLabel, display.Red, "Dose")
	d.Print(PosRightLabel, display.Green, "Set")
	d.Print(PosLeftValue, display.Blue, grams(c.target))
	d.Print(PosRightValue, display.Blue, grams(c.target))
	d.Print(PosWeightLabel, display.Cyan, "Weight")
	if c.fault != "" {
		c.drawFault()
		return
	}
	c.drawWeight(c.dosing == grinder.DosingOverloaded)
}

// drawWeight repaints the live weight. An overloaded dose is shown in red
// with a marker next to it.
func (c *Controller) drawWeight(overloaded bool) {
	d := c.d.Display
	w := scale.Clamp(c.weight)
	if overloaded {
		d.Print(PosWeight, display.Red, grams(w))
		d.Print(PosWeightStatus, display.Red, "OVER!")
		return
	}
	d.Print(PosWeight, display.Magenta, grams(w))
	d.Erase(PosWeightStatus)
}

func (c *Controller) drawFault() {
	d := c.d.Display
	d.Print(PosWeight, display.Red, "--.-g")
	d.Print(PosWeightStatus, display.Red, "FAULT")
}

func (c *Controller) drawAdjust() {
	d := c.d.Display
	d.Fill()
	d.Print(PosTitle, display.Red, "Weigh Grind")
	d.Print(PosLeftLabel, display.Red, "Dose")
	d.Print(PosRightLabel, display.Green, "Set")
	d.Print(PosRightValue, display.Blue, grams(c.adj.original))
	d.Print(PosNote, display.White, "Adjusting")
	c.drawAdjustValue()
}

func (c *Controller) drawAdjustValue() {
	c.d.Display.Print(PosLeftValue, display.White, grams(c.adj.candidate))
}

func (c *Controller) drawCalibration() {
	d := c.d.Display
	d.Fill()
	d.Print(PosTitle, display.Red, "CALIBRATION")
	d.Print(PosLeftLabel, display.Red, "grams")
	d.Print(PosRightLabel, display.Green, "raw")
	d.Print(PosWeightLabel, display.Cyan, "cal factor")
	c.drawCalibrationValues()
}

func (c *Controller) drawCalibrationValues() {
	d := c.d.Display
	if c.cal.err != nil {
		d.Print(PosLeftValue, display.Red, "---")
	} else {
		d.Print(PosLeftValue, display.White, fmt.Sprintf("%.3f", c.cal.grams))
	}
	d.Print(PosRightValue, display.White, fmt.Sprintf("%.1f", c.cal.raw))
	d.Print(PosWeight, display.White, fmt.Sprintf("%.2f", c.cal.trial))
}
