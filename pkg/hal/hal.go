// Package hal holds the boards the controller can run on. A board owns the
// physical I/O: the load cell, the handle and manual-grind inputs, the
// grinder actuator and the rotary encoder.
package hal

import (
	"errors"

	"github.com/h3ct1cl3o/weighgrind/pkg/encoder"
	"github.com/h3ct1cl3o/weighgrind/pkg/scale"
)

const (
	BackendSim    = "sim"
	BackendSerial = "serial"
)

// ErrClosed is returned by a board after Close.
var ErrClosed = errors.New("board closed")

type Board interface {
	scale.LoadCell

	// HandlePresent reports whether the portafilter is in the fork.
	HandlePresent() (bool, error)
	// ManualPressed reports whether the manual grind button is held.
	ManualPressed() (bool, error)
	// SetActuator drives the grinder motor output.
	SetActuator(on bool) error
	Encoder() encoder.Source
	Close() error
}

// EncoderServicer is implemented by boards whose encoder pins are sampled
// by the host. The daemon runs ServiceEncoder from its periodic task.
type EncoderServicer interface {
	ServiceEncoder()
}
