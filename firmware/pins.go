//go:build tinygo

package main

import "machine"

const (
	// Load cell amplifier
	PIN_HX711_DOUT = machine.A3
	PIN_HX711_SCK  = machine.A4

	// Portafilter switch and manual grind button, active high
	PIN_HANDLE = machine.D2
	PIN_MANUAL = machine.D3

	// Rotary encoder with push button, active low
	PIN_ENC_A   = machine.D5
	PIN_ENC_B   = machine.D6
	PIN_ENC_BTN = machine.D7

	// Solid state relay driving the grinder motor
	PIN_ACTUATOR = machine.LED

	UART_BAUD_RATE = 115200

	// Input levels are resent at least this often even if unchanged.
	INPUT_REPORT_MS = 100

	// The actuator drops if no A line arrives for this long.
	ACTUATOR_TIMEOUT_MS = 1000
)
