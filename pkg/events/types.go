package events

import "encoding/json"

// Event name constants
const (
	DosingState      = "dosing.state"
	ScreenChange     = "screen.change"
	DoseChanged      = "settings.dose"
	CalibrationSaved = "settings.calibration"
	SensorFault      = "sensor.fault"
)

// Event is a generic SSE event from daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// DosingStateEvent is the typed payload for dosing.state.
type DosingStateEvent struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Weight float32 `json:"weight"`
	Target float32 `json:"target"`
	Ts     int64   `json:"ts"`
}

// ScreenEvent is the typed payload for screen.change.
type ScreenEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
	Ts   int64  `json:"ts"`
}

// DoseEvent is the typed payload for settings.dose.
type DoseEvent struct {
	Dose     float32 `json:"dose"`
	Previous float32 `json:"previous"`
	Ts       int64   `json:"ts"`
}

// CalibrationEvent is the typed payload for settings.calibration.
type CalibrationEvent struct {
	Factor   float32 `json:"factor"`
	Previous float32 `json:"previous"`
	Ts       int64   `json:"ts"`
}

// SensorFaultEvent is the typed payload for sensor.fault.
type SensorFaultEvent struct {
	Message string `json:"message"`
	Ts      int64  `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.DosingStateEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.From, payload.To)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
