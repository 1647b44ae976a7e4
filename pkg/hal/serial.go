package hal

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/h3ct1cl3o/weighgrind/pkg/encoder"
	"github.com/h3ct1cl3o/weighgrind/pkg/scale"
	"github.com/h3ct1cl3o/weighgrind/pkg/wire"
)

const (
	DefaultBaudRate      = 115200
	DefaultSampleTimeout = 500 * time.Millisecond
	defaultSampleBuffer  = 16
)

type SerialOptions struct {
	Port     string
	BaudRate int
	// SampleTimeout bounds how long ReadRaw waits for the next sample.
	SampleTimeout time.Duration
}

var _ Board = (*Serial)(nil)

// Serial is a board reached through the microcontroller bridge in
// firmware/. The bridge streams samples, input levels and decoded encoder
// events; the host only sends actuator commands.
type Serial struct {
	opts SerialOptions
	conn io.ReadWriteCloser

	writeMu sync.Mutex
	samples chan int32
	handle  atomic.Bool
	manual  atomic.Bool
	events  *encoder.Queue

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// OpenSerial opens the serial port and starts reading from it.
func OpenSerial(opts SerialOptions) (*Serial, error) {
	if opts.BaudRate == 0 {
		opts.BaudRate = DefaultBaudRate
	}
	port, err := serial.Open(opts.Port, &serial.Mode{BaudRate: opts.BaudRate})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open serial port %s", opts.Port)
	}
	logrus.WithFields(logrus.Fields{
		"port":     opts.Port,
		"baudRate": opts.BaudRate,
	}).Info("serial board connected")
	return newSerial(port, opts), nil
}

// Ports lists the serial ports present on the host.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list serial ports")
	}
	return ports, nil
}

func newSerial(conn io.ReadWriteCloser, opts SerialOptions) *Serial {
	if opts.SampleTimeout <= 0 {
		opts.SampleTimeout = DefaultSampleTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Serial{
		opts:    opts,
		conn:    conn,
		samples: make(chan int32, defaultSampleBuffer),
		events:  encoder.NewQueue(32),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.readLines()
	return s
}

func (s *Serial) readLines() {
	defer close(s.done)

	scanner := bufio.NewScanner(s.conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		m, err := wire.Parse(line)
		if err != nil {
			logrus.WithError(err).Warn("dropping line from board")
			continue
		}
		s.dispatch(m)
	}

	if err := scanner.Err(); err != nil && s.ctx.Err() == nil {
		logrus.WithError(err).Error("serial board read failed")
	}
}

func (s *Serial) dispatch(m wire.Message) {
	switch m.Type {
	case wire.Sample:
		select {
		case s.samples <- m.Raw:
		default:
			// drop the oldest so readers see fresh data
			select {
			case <-s.samples:
			default:
			}
			select {
			case s.samples <- m.Raw:
			default:
			}
		}
	case wire.Inputs:
		s.handle.Store(m.Handle)
		s.manual.Store(m.Manual)
	case wire.Rotation:
		s.events.Push(encoder.Event{Kind: encoder.Rotated, Delta: m.Delta})
	case wire.Button:
		if m.Double {
			s.events.Push(encoder.Event{Kind: encoder.DoubleClicked})
		} else {
			s.events.Push(encoder.Event{Kind: encoder.Clicked})
		}
	default:
		logrus.WithField("type", string(m.Type)).Warn("unexpected message from board")
	}
}

func (s *Serial) ReadRaw(ctx context.Context) (int32, error) {
	t := time.NewTimer(s.opts.SampleTimeout)
	defer t.Stop()

	select {
	case raw := <-s.samples:
		return raw, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.done:
		return 0, pkgerrors.Wrap(scale.ErrSensorFault, ErrClosed.Error())
	case <-t.C:
		return 0, pkgerrors.Wrapf(scale.ErrSensorFault, "no sample within %s", s.opts.SampleTimeout)
	}
}

func (s *Serial) HandlePresent() (bool, error) {
	return s.handle.Load(), nil
}

func (s *Serial) ManualPressed() (bool, error) {
	return s.manual.Load(), nil
}

func (s *Serial) SetActuator(on bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.ctx.Err() != nil {
		return ErrClosed
	}
	_, err := io.WriteString(s.conn, wire.Format(wire.Message{Type: wire.Actuator, On: on}))
	if err != nil {
		return pkgerrors.Wrap(err, "failed to send actuator command")
	}
	return nil
}

func (s *Serial) Encoder() encoder.Source {
	return s.events
}

// Close turns the actuator off and closes the port.
func (s *Serial) Close() error {
	if s.ctx.Err() != nil {
		return nil
	}
	if err := s.SetActuator(false); err != nil {
		logrus.WithError(err).Warn("failed to turn actuator off before closing")
	}

	s.writeMu.Lock()
	s.cancel()
	err := s.conn.Close()
	s.writeMu.Unlock()

	<-s.done
	if err != nil {
		return pkgerrors.Wrap(err, "failed to close serial port")
	}
	return nil
}
