package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h3ct1cl3o/weighgrind/pkg/config"
	"github.com/h3ct1cl3o/weighgrind/pkg/display"
	"github.com/h3ct1cl3o/weighgrind/pkg/encoder"
	"github.com/h3ct1cl3o/weighgrind/pkg/events"
	"github.com/h3ct1cl3o/weighgrind/pkg/grinder"
	"github.com/h3ct1cl3o/weighgrind/pkg/hal"
	"github.com/h3ct1cl3o/weighgrind/pkg/nvram"
	"github.com/h3ct1cl3o/weighgrind/pkg/utils/ptr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.File {
	return config.NewFileFromConfig(&config.RawFileConfig{
		TareSettle:   ptr.To(time.Duration(0)),
		LoopInterval: ptr.To(time.Millisecond),
	}, "")
}

func newTestSimulator() *hal.Simulator {
	return hal.NewSimulator(hal.SimOptions{
		Offset:        84000,
		CountsPerGram: 1030,
		GrindRate:     20,
		Seed:          1,
	})
}

func newTestDaemon(t *testing.T, board hal.Board) (*Daemon, *nvram.Memory) {
	t.Helper()
	dev := nvram.NewMemory(nvram.DefaultSize)
	d, err := newDaemon(testConfig(), board, dev)
	require.NoError(t, err)
	return d, dev
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

// stubBoard is a board that is not simulated.
type stubBoard struct{}

func (stubBoard) ReadRaw(context.Context) (int32, error) { return 0, nil }
func (stubBoard) HandlePresent() (bool, error)           { return false, nil }
func (stubBoard) ManualPressed() (bool, error)           { return false, nil }
func (stubBoard) SetActuator(bool) error                 { return nil }
func (stubBoard) Encoder() encoder.Source                { return encoder.NewQueue(0) }
func (stubBoard) Close() error                           { return nil }

func TestHandlers_Status(t *testing.T) {
	d, _ := newTestDaemon(t, newTestSimulator())
	r := d.Router()

	w := do(t, r, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[grinder.Status](t, w)
	assert.Equal(t, grinder.ScreenMain, st.Screen)
	assert.Equal(t, grinder.DosingIdle, st.Dosing)
	assert.Equal(t, float32(18), st.Target)
	assert.Equal(t, float32(1030), st.CalibrationFactor)

	w = do(t, r, http.MethodGet, "/display", "")
	require.Equal(t, http.StatusOK, w.Code)
	f := decode[display.Frame](t, w)
	assert.Equal(t, "Weigh Grind", f.Text(display.Point{X: 15, Y: 2}))

	w = do(t, r, http.MethodGet, "/version", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandlers_Dose(t *testing.T) {
	d, _ := newTestDaemon(t, newTestSimulator())
	r := d.Router()

	tests := []struct {
		name string
		body string
		code int
	}{
		{"valid", "20.5", http.StatusCreated},
		{"negative", "-1", http.StatusBadRequest},
		{"too large", "1000", http.StatusBadRequest},
		{"not a number", `"lots"`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPut, "/dose", tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}

	w := do(t, r, http.MethodGet, "/dose", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float32(20.5), decode[float32](t, w))

	dose, ok, err := d.store.Dose()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, float32(20.5), dose)
}

func TestHandlers_BusyWhileAdjusting(t *testing.T) {
	sim := newTestSimulator()
	d, _ := newTestDaemon(t, sim)
	r := d.Router()

	sim.Click()
	for i := 0; i < 1000; i++ {
		sim.ServiceEncoder()
	}
	require.NoError(t, d.ctrl.Step(context.Background()))
	require.Equal(t, grinder.ScreenAdjusting, d.ctrl.Status().Screen)

	w := do(t, r, http.MethodPut, "/dose", "19")
	assert.Equal(t, http.StatusConflict, w.Code)
	w = do(t, r, http.MethodPost, "/tare", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandlers_Calibration(t *testing.T) {
	d, _ := newTestDaemon(t, newTestSimulator())
	r := d.Router()

	w := do(t, r, http.MethodPost, "/tare", "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, r, http.MethodGet, "/calibration", "")
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[grinder.CalibrationInfo](t, w)
	assert.Equal(t, float32(1030), info.Factor)
	assert.Equal(t, float32(84000), info.Offset)
	assert.False(t, info.StoredValid)
}

func TestHandlers_SimFill(t *testing.T) {
	sim := newTestSimulator()
	d, _ := newTestDaemon(t, sim)
	r := d.Router()
	ctx := context.Background()
	require.NoError(t, d.scale.Tare(ctx, 1))

	w := do(t, r, http.MethodPut, "/sim/handle", "true")
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, d.ctrl.Step(ctx))

	st := d.ctrl.Status()
	assert.True(t, st.HandlePresent)
	assert.Equal(t, grinder.DosingFilling, st.Dosing)
	assert.True(t, sim.Actuator())

	w = do(t, r, http.MethodPut, "/sim/fault", "true")
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, d.ctrl.Step(ctx))
	assert.Equal(t, grinder.DosingSensorFault, d.ctrl.Status().Dosing)
	assert.False(t, sim.Actuator())

	w = do(t, r, http.MethodPut, "/sim/handle", "maybe")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, r, http.MethodPut, "/sim/mass", "-3")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_SimRotateBounded(t *testing.T) {
	d, _ := newTestDaemon(t, newTestSimulator())
	r := d.Router()

	tests := []struct {
		body string
		code int
	}{
		{"3", http.StatusCreated},
		{"-1000", http.StatusCreated},
		{"1000", http.StatusCreated},
		{"1001", http.StatusBadRequest},
		{"-1001", http.StatusBadRequest},
		{"2147483647", http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := do(t, r, http.MethodPost, "/sim/encoder/rotate", tt.body)
		assert.Equal(t, tt.code, w.Code, tt.body)
	}
}

func TestHandlers_SimRequiresSimulator(t *testing.T) {
	d, _ := newTestDaemon(t, stubBoard{})
	r := d.Router()

	for _, path := range []string{"/sim/encoder/click", "/sim/encoder/double-click"} {
		w := do(t, r, http.MethodPost, path, "")
		assert.Equal(t, http.StatusConflict, w.Code, path)
	}
	w := do(t, r, http.MethodPut, "/sim/handle", "true")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandlers_Events(t *testing.T) {
	d, _ := newTestDaemon(t, newTestSimulator())
	srv := httptest.NewServer(d.Router())
	defer srv.Close()
	defer d.stopStreams()

	resp, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool { return d.hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, d.ctrl.SetTarget(19))

	sc := bufio.NewScanner(resp.Body)
	var name, data string
	for sc.Scan() {
		line := sc.Text()
		if v, ok := strings.CutPrefix(line, "event:"); ok {
			name = strings.TrimSpace(v)
		}
		if v, ok := strings.CutPrefix(line, "data:"); ok {
			data = strings.TrimSpace(v)
			break
		}
	}
	assert.Equal(t, events.DoseChanged, name)
	p, err := events.DecodeAs[events.DoseEvent](events.Event{Name: name, Data: json.RawMessage(data)})
	require.NoError(t, err)
	assert.Equal(t, float32(19), p.Dose)
	assert.Equal(t, float32(18), p.Previous)
}

func TestDaemon_RunsLoop(t *testing.T) {
	sim := newTestSimulator()
	dev := nvram.NewMemory(nvram.DefaultSize)
	conf := config.NewFileFromConfig(&config.RawFileConfig{
		TareSettle:   ptr.To(time.Duration(0)),
		LoopInterval: ptr.To(time.Millisecond),
		DefaultDose:  ptr.To[float32](2),
	}, "")
	d, err := newDaemon(conf, sim, dev)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	require.Eventually(t, func() bool { return d.recorder.Stats().Passes > 0 }, 2*time.Second, 5*time.Millisecond)
	sim.SetHandle(true)
	require.Eventually(t, func() bool {
		return sim.Mass() >= 2 && !sim.Actuator()
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, d.Close())
	assert.False(t, sim.Actuator())

	_, err = sim.ReadRaw(context.Background())
	assert.ErrorIs(t, err, hal.ErrClosed)
}

func TestHandlers_LoopStats(t *testing.T) {
	d, _ := newTestDaemon(t, newTestSimulator())
	d.recorder.AddRecord(time.Now(), 2*time.Millisecond)

	w := do(t, d.Router(), http.MethodGet, "/loop-stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[grinder.LoopStats](t, w)
	assert.Equal(t, 1, st.Passes)
	assert.Equal(t, 2*time.Millisecond, st.AvgTook)
	assert.Zero(t, st.DroppedEvents)
}

func TestHandlers_EventsAfterShutdown(t *testing.T) {
	d, _ := newTestDaemon(t, newTestSimulator())
	srv := httptest.NewServer(d.Router())
	defer srv.Close()
	d.stopStreams()

	resp, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// the stream ends at once instead of waiting for events
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, b)
}
