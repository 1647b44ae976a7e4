// Package scale turns raw load-cell samples into grams. It follows the
// HX711 driver model: a tare offset subtracted from averaged raw counts,
// divided by a calibration factor.
package scale

import (
	"context"
	"errors"
	"sync"

	"github.com/chewxy/math32"
	pkgerrors "github.com/pkg/errors"
)

const (
	// Raw limits of the 24-bit two's complement HX711 output.
	RawMax int32 = 0x7FFFFF
	RawMin int32 = -0x800000

	// DisplayMax is the largest weight the display shows.
	DisplayMax float32 = 1000
)

// ErrSensorFault is wrapped by every error caused by a bad or missing
// sample, as opposed to a cancelled context.
var ErrSensorFault = errors.New("sensor fault")

// LoadCell yields raw samples. ReadRaw blocks until a sample is available.
type LoadCell interface {
	ReadRaw(ctx context.Context) (int32, error)
}

type Options struct {
	// Samples is the averaging factor for ReadWeight.
	Samples int
	// Readings outside [MinGrams, MaxGrams] are faults. Both zero disables
	// the check.
	MinGrams float32
	MaxGrams float32
}

// Reading is one averaged weight measurement.
type Reading struct {
	// Grams is truncated to one decimal.
	Grams float32 `json:"grams"`
	Raw   float32 `json:"raw"`
}

type Scale struct {
	cell LoadCell
	opts Options

	mu     sync.Mutex
	offset float32
	factor float32
}

func New(cell LoadCell, opts Options) *Scale {
	if opts.Samples <= 0 {
		opts.Samples = 10
	}
	return &Scale{cell: cell, opts: opts, factor: 1}
}

// SetFactor sets the calibration factor in raw counts per gram.
func (s *Scale) SetFactor(f float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factor = f
}

func (s *Scale) Factor() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.factor
}

func (s *Scale) Offset() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// ReadAverage returns the mean of n raw samples.
func (s *Scale) ReadAverage(ctx context.Context, n int) (float32, error) {
	if n <= 0 {
		n = 1
	}
	var sum int64
	for i := 0; i < n; i++ {
		raw, err := s.cell.ReadRaw(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			if errors.Is(err, ErrSensorFault) {
				return 0, err
			}
			return 0, pkgerrors.Wrapf(ErrSensorFault, "failed to read load cell: %v", err)
		}
		if raw >= RawMax || raw <= RawMin {
			return 0, pkgerrors.Wrapf(ErrSensorFault, "load cell saturated at %d", raw)
		}
		sum += int64(raw)
	}
	return float32(float64(sum) / float64(n)), nil
}

// Value returns the averaged raw reading minus the tare offset.
func (s *Scale) Value(ctx context.Context, n int) (float32, error) {
	avg, err := s.ReadAverage(ctx, n)
	if err != nil {
		return 0, err
	}
	return avg - s.Offset(), nil
}

// Units returns the averaged reading in grams, untruncated.
func (s *Scale) Units(ctx context.Context, n int) (float32, error) {
	v, err := s.Value(ctx, n)
	if err != nil {
		return 0, err
	}
	f := s.Factor()
	if f == 0 {
		return 0, pkgerrors.Wrap(ErrSensorFault, "calibration factor is zero")
	}
	return v / f, nil
}

// Tare sets the offset to the current averaged raw reading.
func (s *Scale) Tare(ctx context.Context, n int) error {
	avg, err := s.ReadAverage(ctx, n)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to tare")
	}
	s.mu.Lock()
	s.offset = avg
	s.mu.Unlock()
	return nil
}

// ReadWeight takes one averaged measurement and validates it.
func (s *Scale) ReadWeight(ctx context.Context) (Reading, error) {
	avg, err := s.ReadAverage(ctx, s.opts.Samples)
	if err != nil {
		return Reading{}, err
	}

	s.mu.Lock()
	offset, factor := s.offset, s.factor
	s.mu.Unlock()

	if factor == 0 {
		return Reading{Raw: avg}, pkgerrors.Wrap(ErrSensorFault, "calibration factor is zero")
	}

	g := (avg - offset) / factor
	if math32.IsNaN(g) || math32.IsInf(g, 0) {
		return Reading{Raw: avg}, pkgerrors.Wrapf(ErrSensorFault, "weight is not a number: %v", g)
	}
	if (s.opts.MinGrams != 0 || s.opts.MaxGrams != 0) && (g < s.opts.MinGrams || g > s.opts.MaxGrams) {
		return Reading{Raw: avg}, pkgerrors.Wrapf(ErrSensorFault, "implausible weight %.1fg", g)
	}

	return Reading{Grams: Truncate(g), Raw: avg}, nil
}

// Truncate cuts g to one decimal place, toward zero.
func Truncate(g float32) float32 {
	return math32.Trunc(g*10) / 10
}

// Clamp limits a weight to what the display can show. NaN shows as 0.
func Clamp(g float32) float32 {
	if math32.IsNaN(g) || g < 0 {
		return 0
	}
	if g > DisplayMax {
		return DisplayMax
	}
	return g
}
