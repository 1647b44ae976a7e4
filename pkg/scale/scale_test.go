package scale

import (
	"context"
	"errors"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCell struct {
	samples []int32
	err     error
	i       int
}

func (f *fakeCell) ReadRaw(_ context.Context) (int32, error) {
	if f.err != nil {
		return 0, f.err
	}
	s := f.samples[f.i%len(f.samples)]
	f.i++
	return s, nil
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   float32
		want float32
	}{
		{18.07, 18.0},
		{18.19, 18.1},
		{0.09, 0},
		{-0.05, 0},
		{-0.15, -0.1},
		{999.99, 999.9},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Truncate(tt.in), 1e-5, "Truncate(%v)", tt.in)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, float32(0), Clamp(-4))
	assert.Equal(t, float32(12.3), Clamp(12.3))
	assert.Equal(t, DisplayMax, Clamp(1500))
	assert.Equal(t, float32(0), Clamp(math32.NaN()))
}

func TestReadWeight(t *testing.T) {
	// offset 1000 counts, 100 counts per gram, 18.25g on the platform
	cell := &fakeCell{samples: []int32{1000}}
	s := New(cell, Options{Samples: 4})

	require.NoError(t, s.Tare(context.Background(), 4))
	assert.Equal(t, float32(1000), s.Offset())

	s.SetFactor(100)
	cell.samples = []int32{2825}

	r, err := s.ReadWeight(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 18.2, r.Grams, 1e-4)
	assert.Equal(t, float32(2825), r.Raw)
}

func TestReadAverage(t *testing.T) {
	s := New(&fakeCell{samples: []int32{10, 20, 30, 40}}, Options{})
	avg, err := s.ReadAverage(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, float32(25), avg)
}

func TestReadAverage_LargeSum(t *testing.T) {
	// 100 samples near full scale sum past float32's exact integer range
	samples := make([]int32, 100)
	for i := range samples {
		samples[i] = 8000000
		if i < 26 {
			samples[i] = 8000001
		}
	}
	s := New(&fakeCell{samples: samples}, Options{})
	avg, err := s.ReadAverage(context.Background(), len(samples))
	require.NoError(t, err)
	// mean 8000000.26, nearest float32 is 8000000.5
	assert.Equal(t, float32(8000000.5), avg)
}

func TestUnitsWithUnitFactorIsRawValue(t *testing.T) {
	s := New(&fakeCell{samples: []int32{5000}}, Options{})
	u, err := s.Units(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, float32(5000), u)
}

func TestReadWeight_Faults(t *testing.T) {
	tests := []struct {
		name   string
		cell   *fakeCell
		factor float32
		opts   Options
	}{
		{"saturated high", &fakeCell{samples: []int32{RawMax}}, 1, Options{}},
		{"saturated low", &fakeCell{samples: []int32{RawMin}}, 1, Options{}},
		{"read error", &fakeCell{err: errors.New("no sample")}, 1, Options{}},
		{"zero factor", &fakeCell{samples: []int32{5}}, 0, Options{}},
		{"implausible", &fakeCell{samples: []int32{500000}}, 100, Options{MinGrams: -500, MaxGrams: 3000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.cell, tt.opts)
			s.SetFactor(tt.factor)
			_, err := s.ReadWeight(context.Background())
			assert.True(t, errors.Is(err, ErrSensorFault), "got %v", err)
		})
	}
}

func TestReadAverage_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(&fakeCell{err: context.Canceled}, Options{})

	_, err := s.ReadAverage(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrSensorFault))
}
