//go:build tinygo

//go:generate tinygo flash -target=arduino-nano33

// Command firmware is the microcontroller side of the serial board. It
// streams load cell samples, input levels and encoder events to the host
// and drives the motor relay on request.
package main

import (
	"machine"
	"time"

	"github.com/h3ct1cl3o/weighgrind/pkg/encoder"
	"github.com/h3ct1cl3o/weighgrind/pkg/wire"
)

var (
	uart = machine.Serial

	out []byte

	// Serial buffer for reading lines
	serialBuffer [16]byte
	serialPos    int
	serialSkip   bool

	lastHandle, lastManual bool
	lastInputs             time.Time

	watchdog = wire.Watchdog{Timeout: ACTUATOR_TIMEOUT_MS * time.Millisecond}
)

// encoderPins samples the encoder. The encoder pulls its lines low when
// active.
type encoderPins struct{}

func (encoderPins) Sample() encoder.PinState {
	return encoder.PinState{
		A:       !PIN_ENC_A.Get(),
		B:       !PIN_ENC_B.Get(),
		Pressed: !PIN_ENC_BTN.Get(),
	}
}

func main() {
	PIN_ACTUATOR.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_ACTUATOR.Low()

	PIN_HANDLE.Configure(machine.PinConfig{Mode: machine.PinInput})
	PIN_MANUAL.Configure(machine.PinConfig{Mode: machine.PinInput})
	for _, p := range []machine.Pin{PIN_ENC_A, PIN_ENC_B, PIN_ENC_BTN} {
		p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	}

	uart.Configure(machine.UARTConfig{BaudRate: UART_BAUD_RATE})

	cell := newHX711(PIN_HX711_DOUT, PIN_HX711_SCK)
	enc := encoder.NewClickEncoder(encoderPins{}, encoder.DefaultTiming)

	// 1ms encoder service task
	go func() {
		for {
			enc.Service()
			time.Sleep(encoder.DefaultTiming.ServiceInterval)
		}
	}()

	for {
		processSerial()

		if cell.ready() {
			send(wire.Message{Type: wire.Sample, Raw: cell.read()})
		}

		reportInputs()
		PIN_ACTUATOR.Set(watchdog.Output(time.Now(), PIN_HANDLE.Get(), PIN_MANUAL.Get()))

		switch ev := enc.Poll(); ev.Kind {
		case encoder.Rotated:
			send(wire.Message{Type: wire.Rotation, Delta: ev.Delta})
		case encoder.Clicked:
			send(wire.Message{Type: wire.Button})
		case encoder.DoubleClicked:
			send(wire.Message{Type: wire.Button, Double: true})
		}

		time.Sleep(100 * time.Microsecond)
	}
}

func send(m wire.Message) {
	out = wire.Append(out[:0], m)
	_, _ = uart.Write(out)
}

// reportInputs sends input levels when they change, and periodically so a
// host that connects late catches up.
func reportInputs() {
	handle, manual := PIN_HANDLE.Get(), PIN_MANUAL.Get()
	now := time.Now()
	if handle == lastHandle && manual == lastManual && now.Sub(lastInputs) < INPUT_REPORT_MS*time.Millisecond {
		return
	}
	lastHandle, lastManual, lastInputs = handle, manual, now
	send(wire.Message{Type: wire.Inputs, Handle: handle, Manual: manual})
}

func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if serialPos > 0 && !serialSkip {
				applyLine(string(serialBuffer[:serialPos]))
			}
			serialPos, serialSkip = 0, false
			continue
		}

		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		} else {
			// overlong line, drop it up to the newline
			serialSkip = true
		}
	}
}

func applyLine(line string) {
	m, err := wire.Parse(line)
	if err != nil || m.Type != wire.Actuator {
		return
	}
	watchdog.Command(m.On, time.Now())
	PIN_ACTUATOR.Set(watchdog.Output(time.Now(), PIN_HANDLE.Get(), PIN_MANUAL.Get()))
}
