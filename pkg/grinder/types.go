package grinder

import "time"

// Screen is the menu screen being shown.
type Screen string

const (
	ScreenMain        Screen = "Main"
	ScreenAdjusting   Screen = "Adjusting"
	ScreenCalibrating Screen = "Calibrating"
	ScreenDosing      Screen = "Dosing"
)

// DosingState defines the states of a dosing cycle.
type DosingState string

const (
	DosingIdle        DosingState = "Idle"
	DosingSettling    DosingState = "Settling"
	DosingFilling     DosingState = "Filling"
	DosingOverloaded  DosingState = "Overloaded"
	DosingDone        DosingState = "Done"
	DosingSensorFault DosingState = "SensorFault"
)

// Active reports whether a dosing cycle is in progress, i.e. the menu is
// locked out.
func (s DosingState) Active() bool {
	return s != DosingIdle && s != ""
}

// Status is a snapshot of the controller, taken at the end of a loop pass.
type Status struct {
	Screen Screen      `json:"screen"`
	Dosing DosingState `json:"dosing"`

	// Weight is the last good reading, truncated to one decimal.
	Weight float32 `json:"weight"`
	// Target is the persisted dose target in grams.
	Target float32 `json:"target"`
	// Candidate is the dose being dialled in on the Adjusting screen.
	Candidate float32 `json:"candidate,omitempty"`

	CalibrationFactor float32 `json:"calibrationFactor"`
	// TrialFactor, ZeroFactor and Raw are reported while calibrating.
	TrialFactor float32 `json:"trialFactor,omitempty"`
	ZeroFactor  float32 `json:"zeroFactor,omitempty"`
	Raw         float32 `json:"raw,omitempty"`

	HandlePresent bool `json:"handlePresent"`
	ManualPressed bool `json:"manualPressed"`
	// ActuatorEngaged is true while the controller wants the motor to run;
	// ActuatorOn is the output level, which pulses while filling.
	ActuatorEngaged bool `json:"actuatorEngaged"`
	ActuatorOn      bool `json:"actuatorOn"`

	Fault     string    `json:"fault,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CalibrationInfo describes the calibration in use and what is stored.
type CalibrationInfo struct {
	// Factor is the factor the scale is using, in raw counts per gram.
	Factor float32 `json:"factor"`
	Offset float32 `json:"offset"`
	// Stored is the persisted factor, or the default when StoredValid is
	// false.
	Stored      float32 `json:"stored"`
	StoredValid bool    `json:"storedValid"`
	// Legacy is the integer copy kept for older firmware.
	Legacy int32 `json:"legacy"`
}

// LoopStats summarises recent control loop passes.
type LoopStats struct {
	Passes     int           `json:"passes"`
	Stalls     int           `json:"stalls"`
	Recorded   int           `json:"recorded"`
	AvgTook    time.Duration `json:"avgTook"`
	MaxTook    time.Duration `json:"maxTook"`
	LastPassAt time.Time     `json:"lastPassAt"`
	// DroppedEvents counts events that slow subscribers missed.
	DroppedEvents uint64 `json:"droppedEvents"`
}
