package config

import "time"

type Config interface {
	// Backend selects the board: "sim" or "serial".
	Backend() string
	SerialPort() string
	BaudRate() int
	// StoragePath is the nvram image holding the dose and calibration.
	StoragePath() string
	TerminalDisplay() bool
	AllowNonRootAccess() bool

	AveragingFactor() int
	CalibrationSamples() int
	DefaultCalibrationFactor() float32
	MinPlausibleGrams() float32
	MaxPlausibleGrams() float32
	SampleTimeout() time.Duration

	DefaultDose() float32
	MaxDose() float32
	DoseTolerance() float32
	OverloadMargin() float32
	PulseOn() time.Duration
	PulseOff() time.Duration
	TareSettle() time.Duration

	AdjustStep() float32
	AdjustTimeoutIterations() int
	CalibrationTimeoutIterations() int

	LoopInterval() time.Duration
	EncoderServiceInterval() time.Duration
	ActuatorServiceInterval() time.Duration
	ActuatorKeepalive() time.Duration

	SimGrindRate() float32
	SimNoise() int

	SetBackend(string)
	SetSerialPort(string)
	SetAllowNonRootAccess(bool)
	SetTerminalDisplay(bool)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
