package daemon

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/h3ct1cl3o/weighgrind/pkg/grinder"
)

// PassRecorder records the timing of the last N control loop passes.
type PassRecorder struct {
	MaxRecordCount int
	// StallThreshold is how long a pass may take before it counts as a
	// stall.
	StallThreshold time.Duration
	LastPasses     []PassRecord
	total          int
	stalls         int
	mu             *sync.Mutex
}

type PassRecord struct {
	Start time.Time     `json:"start"`
	Took  time.Duration `json:"took"`
}

// NewPassRecorder returns a new PassRecorder.
func NewPassRecorder(maxRecordCount int, stallThreshold time.Duration) *PassRecorder {
	return &PassRecorder{
		MaxRecordCount: maxRecordCount,
		StallThreshold: stallThreshold,
		LastPasses:     make([]PassRecord, 0),
		mu:             &sync.Mutex{},
	}
}

// AddRecord adds a pass that started at start and took took. It reports
// whether the pass stalled.
func (r *PassRecorder) AddRecord(start time.Time, took time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Strip monotonic clock reading.
	start = start.Round(0)

	if len(r.LastPasses) >= r.MaxRecordCount {
		r.LastPasses = r.LastPasses[1:]
	}
	r.LastPasses = append(r.LastPasses, PassRecord{Start: start, Took: took})
	r.total++

	stalled := r.StallThreshold > 0 && took > r.StallThreshold
	if stalled {
		r.stalls++
	}
	return stalled
}

// ClearRecords clears all records.
func (r *PassRecorder) ClearRecords() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.LastPasses = make([]PassRecord, 0)
	r.total = 0
	r.stalls = 0
}

// GetRecords returns a copy of the records.
func (r *PassRecorder) GetRecords() []PassRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]PassRecord(nil), r.LastPasses...)
}

// GetRecordsIn returns the number of passes that started within last
// before now.
func (r *PassRecorder) GetRecordsIn(now time.Time, last time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for i := len(r.LastPasses) - 1; i >= 0; i-- {
		if now.Sub(r.LastPasses[i].Start) > last {
			break
		}
		count++
	}
	return count
}

// Stats summarises the recorded passes.
func (r *PassRecorder) Stats() grinder.LoopStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := grinder.LoopStats{
		Passes:   r.total,
		Stalls:   r.stalls,
		Recorded: len(r.LastPasses),
	}
	if len(r.LastPasses) == 0 {
		return s
	}

	var sum time.Duration
	for _, p := range r.LastPasses {
		sum += p.Took
		if p.Took > s.MaxTook {
			s.MaxTook = p.Took
		}
	}
	s.AvgTook = sum / time.Duration(len(r.LastPasses))
	s.LastPassAt = r.LastPasses[len(r.LastPasses)-1].Start
	return s
}

// runLoop drives the controller until ctx is done. Each pass is followed
// by a fixed pause, so a slow pass delays the next one instead of
// queueing behind it.
func (d *Daemon) runLoop(ctx context.Context, interval time.Duration) {
	logrus.Debugln("control loop starts")
	defer logrus.Debugln("control loop stopped")

	t := time.NewTimer(0)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		start := time.Now()
		err := d.ctrl.Step(ctx)
		took := time.Since(start)

		if d.recorder.AddRecord(start, took) {
			logrus.WithFields(logrus.Fields{
				"took":      took,
				"threshold": d.recorder.StallThreshold,
			}).Warn("control loop stalled")
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			logrus.WithError(err).Error("control loop pass failed")
		}

		d.printStatus(d.ctrl.Status())
		t.Reset(interval)
	}
}

// serviceEncoder is the periodic encoder task. It only touches the
// board's encoder state.
func serviceEncoder(ctx context.Context, s interface{ ServiceEncoder() }, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.ServiceEncoder()
		}
	}
}

// serviceActuator is the periodic actuator task. It keeps the pulse train
// and the keepalive going while a pass is blocked on the scale.
func serviceActuator(ctx context.Context, s interface{ ServiceActuator() error }, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			err := s.ServiceActuator()
			switch {
			case err != nil && err.Error() != last:
				logrus.WithError(err).Error("actuator task failed")
				last = err.Error()
			case err == nil && last != "":
				logrus.Info("actuator task recovered")
				last = ""
			}
		}
	}
}

type loopStatus struct {
	screen  grinder.Screen
	dosing  grinder.DosingState
	weight  float32
	target  float32
	handle  bool
	engaged bool
	fault   string
}

// printStatus logs the loop status at Debug when it changes, and at Trace
// otherwise.
func (d *Daemon) printStatus(st grinder.Status) {
	current := loopStatus{
		screen:  st.Screen,
		dosing:  st.Dosing,
		weight:  st.Weight,
		target:  st.Target,
		handle:  st.HandlePresent,
		engaged: st.ActuatorEngaged,
		fault:   st.Fault,
	}

	fields := logrus.Fields{
		"screen":  st.Screen,
		"dosing":  st.Dosing,
		"weight":  st.Weight,
		"target":  st.Target,
		"handle":  st.HandlePresent,
		"engaged": st.ActuatorEngaged,
	}

	if reflect.DeepEqual(d.lastStatus, current) {
		logrus.WithFields(fields).Trace("control loop status")
		return
	}

	logrus.WithFields(fields).Debug("control loop status")
	d.lastStatus = current
}
