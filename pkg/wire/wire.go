// Package wire is the line protocol between the grinder microcontroller and
// the host. Every message is one comma-separated ASCII line.
//
// MCU to host:
//
//	W,<raw>             one raw load-cell sample (signed 24-bit)
//	I,<handle>,<manual> input levels, 0 or 1
//	E,<delta>           encoder rotation in detents
//	B,C                 encoder click
//	B,D                 encoder double click
//
// Host to MCU:
//
//	A,<0|1>             actuator output
//
// The host resends A lines while it wants the output held. The board drops
// the output when they stop, see Watchdog.
package wire

import (
	"errors"
	"strconv"
	"strings"
)

type Type byte

const (
	Sample   Type = 'W'
	Inputs   Type = 'I'
	Rotation Type = 'E'
	Button   Type = 'B'
	Actuator Type = 'A'
)

// Button payloads.
const (
	Click       = 'C'
	DoubleClick = 'D'
)

var ErrMalformed = errors.New("malformed line")

// Message is a decoded line. Only the fields of its Type are meaningful.
type Message struct {
	Type   Type
	Raw    int32
	Handle bool
	Manual bool
	Delta  int
	Double bool
	On     bool
}

func malformed(line, reason string) error {
	return &lineError{line: line, reason: reason}
}

type lineError struct {
	line   string
	reason string
}

func (e *lineError) Error() string {
	return "malformed line " + strconv.Quote(e.line) + ": " + e.reason
}

func (e *lineError) Unwrap() error { return ErrMalformed }

func parseBit(s string) (bool, bool) {
	switch s {
	case "0":
		return false, true
	case "1":
		return true, true
	}
	return false, false
}

// Parse decodes one line without its terminator.
func Parse(line string) (Message, error) {
	line = strings.TrimSpace(line)
	parts := strings.Split(line, ",")
	if len(parts[0]) != 1 {
		return Message{}, malformed(line, "missing type")
	}

	m := Message{Type: Type(parts[0][0])}
	args := parts[1:]

	switch m.Type {
	case Sample:
		if len(args) != 1 {
			return Message{}, malformed(line, "expected 1 field")
		}
		v, err := strconv.ParseInt(args[0], 10, 32)
		if err != nil {
			return Message{}, malformed(line, "invalid raw sample")
		}
		m.Raw = int32(v)
	case Inputs:
		if len(args) != 2 {
			return Message{}, malformed(line, "expected 2 fields")
		}
		var ok1, ok2 bool
		m.Handle, ok1 = parseBit(args[0])
		m.Manual, ok2 = parseBit(args[1])
		if !ok1 || !ok2 {
			return Message{}, malformed(line, "input levels must be 0 or 1")
		}
	case Rotation:
		if len(args) != 1 {
			return Message{}, malformed(line, "expected 1 field")
		}
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return Message{}, malformed(line, "invalid delta")
		}
		m.Delta = v
	case Button:
		if len(args) != 1 || len(args[0]) != 1 {
			return Message{}, malformed(line, "expected C or D")
		}
		switch args[0][0] {
		case Click:
		case DoubleClick:
			m.Double = true
		default:
			return Message{}, malformed(line, "expected C or D")
		}
	case Actuator:
		if len(args) != 1 {
			return Message{}, malformed(line, "expected 1 field")
		}
		on, ok := parseBit(args[0])
		if !ok {
			return Message{}, malformed(line, "actuator level must be 0 or 1")
		}
		m.On = on
	default:
		return Message{}, malformed(line, "unknown type")
	}

	return m, nil
}

func bit(b bool) byte {
	if b {
		return '1'
	}
	return '0'
}

// Append appends the encoded message and a newline to dst.
func Append(dst []byte, m Message) []byte {
	dst = append(dst, byte(m.Type), ',')
	switch m.Type {
	case Sample:
		dst = strconv.AppendInt(dst, int64(m.Raw), 10)
	case Inputs:
		dst = append(dst, bit(m.Handle), ',', bit(m.Manual))
	case Rotation:
		dst = strconv.AppendInt(dst, int64(m.Delta), 10)
	case Button:
		if m.Double {
			dst = append(dst, DoubleClick)
		} else {
			dst = append(dst, Click)
		}
	case Actuator:
		dst = append(dst, bit(m.On))
	}
	return append(dst, '\n')
}

// Format returns the encoded line including its newline.
func Format(m Message) string {
	return string(Append(nil, m))
}
