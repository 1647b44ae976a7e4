//go:build tinygo

package main

import (
	"machine"
	"time"
)

// hx711 reads a HX711 load cell amplifier by bit-banging its clock line.
// Channel A with gain 128 is selected by one extra clock pulse after the
// 24 data bits.
type hx711 struct {
	dout machine.Pin
	sck  machine.Pin
}

func newHX711(dout, sck machine.Pin) *hx711 {
	dout.Configure(machine.PinConfig{Mode: machine.PinInput})
	sck.Configure(machine.PinConfig{Mode: machine.PinOutput})
	sck.Low()
	return &hx711{dout: dout, sck: sck}
}

// ready reports whether a conversion is waiting. DOUT goes low when it is.
func (h *hx711) ready() bool {
	return !h.dout.Get()
}

// read clocks out one sample. Call it only when ready returns true.
func (h *hx711) read() int32 {
	var v uint32
	for i := 0; i < 24; i++ {
		h.sck.High()
		time.Sleep(time.Microsecond)
		v = v<<1 | b2u(h.dout.Get())
		h.sck.Low()
		time.Sleep(time.Microsecond)
	}
	// gain 128 on channel A for the next conversion
	h.sck.High()
	time.Sleep(time.Microsecond)
	h.sck.Low()

	// sign-extend 24 bit two's complement
	if v&0x800000 != 0 {
		v |= 0xFF000000
	}
	return int32(v)
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
