package config

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/h3ct1cl3o/weighgrind/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		Backend:            ptr.To("sim"),
		SerialPort:         ptr.To("/dev/ttyACM0"),
		BaudRate:           ptr.To(115200),
		StoragePath:        ptr.To("/var/lib/weighgrind/eeprom.bin"),
		TerminalDisplay:    ptr.To(false),
		AllowNonRootAccess: ptr.To(false),

		AveragingFactor:          ptr.To(10),
		CalibrationSamples:       ptr.To(4),
		DefaultCalibrationFactor: ptr.To[float32](1030),
		MinPlausibleGrams:        ptr.To[float32](-500),
		MaxPlausibleGrams:        ptr.To[float32](3000),
		SampleTimeout:            ptr.To(500 * time.Millisecond),

		DefaultDose:    ptr.To[float32](18),
		MaxDose:        ptr.To[float32](100),
		DoseTolerance:  ptr.To[float32](0),
		OverloadMargin: ptr.To[float32](0),
		PulseOn:        ptr.To(50 * time.Millisecond),
		PulseOff:       ptr.To(50 * time.Millisecond),
		TareSettle:     ptr.To(time.Second),

		AdjustStep:                   ptr.To[float32](0.1),
		AdjustTimeoutIterations:      ptr.To(100),
		CalibrationTimeoutIterations: ptr.To(0),

		LoopInterval:           ptr.To(10 * time.Millisecond),
		EncoderServiceInterval: ptr.To(time.Millisecond),

		ActuatorServiceInterval: ptr.To(5 * time.Millisecond),
		ActuatorKeepalive:       ptr.To(250 * time.Millisecond),

		SimGrindRate: ptr.To[float32](1.5),
		SimNoise:     ptr.To(20),
	}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

// RawFileConfig is the on-disk form. Unset fields fall back to defaults.
type RawFileConfig struct {
	Backend            *string `yaml:"backend,omitempty" json:"backend,omitempty"`
	SerialPort         *string `yaml:"serialPort,omitempty" json:"serialPort,omitempty"`
	BaudRate           *int    `yaml:"baudRate,omitempty" json:"baudRate,omitempty"`
	StoragePath        *string `yaml:"storagePath,omitempty" json:"storagePath,omitempty"`
	TerminalDisplay    *bool   `yaml:"terminalDisplay,omitempty" json:"terminalDisplay,omitempty"`
	AllowNonRootAccess *bool   `yaml:"allowNonRootAccess,omitempty" json:"allowNonRootAccess,omitempty"`

	AveragingFactor          *int           `yaml:"averagingFactor,omitempty" json:"averagingFactor,omitempty"`
	CalibrationSamples       *int           `yaml:"calibrationSamples,omitempty" json:"calibrationSamples,omitempty"`
	DefaultCalibrationFactor *float32       `yaml:"defaultCalibrationFactor,omitempty" json:"defaultCalibrationFactor,omitempty"`
	MinPlausibleGrams        *float32       `yaml:"minPlausibleGrams,omitempty" json:"minPlausibleGrams,omitempty"`
	MaxPlausibleGrams        *float32       `yaml:"maxPlausibleGrams,omitempty" json:"maxPlausibleGrams,omitempty"`
	SampleTimeout            *time.Duration `yaml:"sampleTimeout,omitempty" json:"sampleTimeout,omitempty"`

	DefaultDose    *float32       `yaml:"defaultDose,omitempty" json:"defaultDose,omitempty"`
	MaxDose        *float32       `yaml:"maxDose,omitempty" json:"maxDose,omitempty"`
	DoseTolerance  *float32       `yaml:"doseTolerance,omitempty" json:"doseTolerance,omitempty"`
	OverloadMargin *float32       `yaml:"overloadMargin,omitempty" json:"overloadMargin,omitempty"`
	PulseOn        *time.Duration `yaml:"pulseOn,omitempty" json:"pulseOn,omitempty"`
	PulseOff       *time.Duration `yaml:"pulseOff,omitempty" json:"pulseOff,omitempty"`
	TareSettle     *time.Duration `yaml:"tareSettle,omitempty" json:"tareSettle,omitempty"`

	AdjustStep                   *float32 `yaml:"adjustStep,omitempty" json:"adjustStep,omitempty"`
	AdjustTimeoutIterations      *int     `yaml:"adjustTimeoutIterations,omitempty" json:"adjustTimeoutIterations,omitempty"`
	CalibrationTimeoutIterations *int     `yaml:"calibrationTimeoutIterations,omitempty" json:"calibrationTimeoutIterations,omitempty"`

	LoopInterval           *time.Duration `yaml:"loopInterval,omitempty" json:"loopInterval,omitempty"`
	EncoderServiceInterval *time.Duration `yaml:"encoderServiceInterval,omitempty" json:"encoderServiceInterval,omitempty"`

	ActuatorServiceInterval *time.Duration `yaml:"actuatorServiceInterval,omitempty" json:"actuatorServiceInterval,omitempty"`
	// ActuatorKeepalive is how often the output level is resent to the
	// board. 0 sends only changes.
	ActuatorKeepalive *time.Duration `yaml:"actuatorKeepalive,omitempty" json:"actuatorKeepalive,omitempty"`

	SimGrindRate *float32 `yaml:"simGrindRate,omitempty" json:"simGrindRate,omitempty"`
	SimNoise     *int     `yaml:"simNoise,omitempty" json:"simNoise,omitempty"`
}

// get returns the field picked from the loaded config, or its default.
func get[T any](f *File, pick func(*RawFileConfig) *T) T {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if v := pick(f.c); v != nil {
		return *v
	}
	return *pick(defaultFileConfig)
}

func set[T any](f *File, field func(*RawFileConfig) **T, v T) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	*field(f.c) = &v
}

func (f *File) Backend() string {
	return get(f, func(c *RawFileConfig) *string { return c.Backend })
}

func (f *File) SerialPort() string {
	return get(f, func(c *RawFileConfig) *string { return c.SerialPort })
}

func (f *File) BaudRate() int {
	return get(f, func(c *RawFileConfig) *int { return c.BaudRate })
}

func (f *File) StoragePath() string {
	return get(f, func(c *RawFileConfig) *string { return c.StoragePath })
}

func (f *File) TerminalDisplay() bool {
	return get(f, func(c *RawFileConfig) *bool { return c.TerminalDisplay })
}

func (f *File) AllowNonRootAccess() bool {
	return get(f, func(c *RawFileConfig) *bool { return c.AllowNonRootAccess })
}

func (f *File) AveragingFactor() int {
	return get(f, func(c *RawFileConfig) *int { return c.AveragingFactor })
}

func (f *File) CalibrationSamples() int {
	return get(f, func(c *RawFileConfig) *int { return c.CalibrationSamples })
}

func (f *File) DefaultCalibrationFactor() float32 {
	return get(f, func(c *RawFileConfig) *float32 { return c.DefaultCalibrationFactor })
}

func (f *File) MinPlausibleGrams() float32 {
	return get(f, func(c *RawFileConfig) *float32 { return c.MinPlausibleGrams })
}

func (f *File) MaxPlausibleGrams() float32 {
	return get(f, func(c *RawFileConfig) *float32 { return c.MaxPlausibleGrams })
}

func (f *File) SampleTimeout() time.Duration {
	return get(f, func(c *RawFileConfig) *time.Duration { return c.SampleTimeout })
}

func (f *File) DefaultDose() float32 {
	return get(f, func(c *RawFileConfig) *float32 { return c.DefaultDose })
}

func (f *File) MaxDose() float32 {
	return get(f, func(c *RawFileConfig) *float32 { return c.MaxDose })
}

func (f *File) DoseTolerance() float32 {
	return get(f, func(c *RawFileConfig) *float32 { return c.DoseTolerance })
}

func (f *File) OverloadMargin() float32 {
	return get(f, func(c *RawFileConfig) *float32 { return c.OverloadMargin })
}

func (f *File) PulseOn() time.Duration {
	return get(f, func(c *RawFileConfig) *time.Duration { return c.PulseOn })
}

func (f *File) PulseOff() time.Duration {
	return get(f, func(c *RawFileConfig) *time.Duration { return c.PulseOff })
}

func (f *File) TareSettle() time.Duration {
	return get(f, func(c *RawFileConfig) *time.Duration { return c.TareSettle })
}

func (f *File) AdjustStep() float32 {
	return get(f, func(c *RawFileConfig) *float32 { return c.AdjustStep })
}

func (f *File) AdjustTimeoutIterations() int {
	return get(f, func(c *RawFileConfig) *int { return c.AdjustTimeoutIterations })
}

func (f *File) CalibrationTimeoutIterations() int {
	return get(f, func(c *RawFileConfig) *int { return c.CalibrationTimeoutIterations })
}

func (f *File) LoopInterval() time.Duration {
	return get(f, func(c *RawFileConfig) *time.Duration { return c.LoopInterval })
}

func (f *File) EncoderServiceInterval() time.Duration {
	return get(f, func(c *RawFileConfig) *time.Duration { return c.EncoderServiceInterval })
}

func (f *File) ActuatorServiceInterval() time.Duration {
	return get(f, func(c *RawFileConfig) *time.Duration { return c.ActuatorServiceInterval })
}

func (f *File) ActuatorKeepalive() time.Duration {
	return get(f, func(c *RawFileConfig) *time.Duration { return c.ActuatorKeepalive })
}

func (f *File) SimGrindRate() float32 {
	return get(f, func(c *RawFileConfig) *float32 { return c.SimGrindRate })
}

func (f *File) SimNoise() int {
	return get(f, func(c *RawFileConfig) *int { return c.SimNoise })
}

func (f *File) SetBackend(s string) {
	if s != "sim" && s != "serial" {
		panic("backend must be sim or serial")
	}
	set(f, func(c *RawFileConfig) **string { return &c.Backend }, s)
}

func (f *File) SetSerialPort(s string) {
	set(f, func(c *RawFileConfig) **string { return &c.SerialPort }, s)
}

func (f *File) SetAllowNonRootAccess(b bool) {
	set(f, func(c *RawFileConfig) **bool { return &c.AllowNonRootAccess }, b)
}

func (f *File) SetTerminalDisplay(b bool) {
	set(f, func(c *RawFileConfig) **bool { return &c.TerminalDisplay }, b)
}

// Raw returns a copy of the loaded config, without defaults applied.
func (f *File) Raw() RawFileConfig {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	return *f.c
}

// Validate checks the effective values.
func (f *File) Validate() error {
	switch f.Backend() {
	case "sim", "serial":
	default:
		return pkgerrors.Errorf("unknown backend %q", f.Backend())
	}
	if f.AveragingFactor() < 1 || f.CalibrationSamples() < 1 {
		return pkgerrors.New("averagingFactor and calibrationSamples must be at least 1")
	}
	if f.DefaultCalibrationFactor() <= 0 {
		return pkgerrors.New("defaultCalibrationFactor must be positive")
	}
	if f.MinPlausibleGrams() >= f.MaxPlausibleGrams() {
		return pkgerrors.New("minPlausibleGrams must be below maxPlausibleGrams")
	}
	if f.DefaultDose() < 0 || f.DefaultDose() > f.MaxDose() {
		return pkgerrors.Errorf("defaultDose must be between 0 and maxDose (%v)", f.MaxDose())
	}
	if f.DoseTolerance() < 0 || f.OverloadMargin() < 0 {
		return pkgerrors.New("doseTolerance and overloadMargin must not be negative")
	}
	if f.PulseOn() <= 0 || f.PulseOff() < 0 {
		return pkgerrors.New("pulseOn must be positive and pulseOff must not be negative")
	}
	if f.AdjustStep() <= 0 || f.AdjustTimeoutIterations() < 1 {
		return pkgerrors.New("adjustStep and adjustTimeoutIterations must be positive")
	}
	if f.CalibrationTimeoutIterations() < 0 {
		return pkgerrors.New("calibrationTimeoutIterations must not be negative")
	}
	if f.LoopInterval() <= 0 || f.EncoderServiceInterval() <= 0 {
		return pkgerrors.New("loopInterval and encoderServiceInterval must be positive")
	}
	if f.ActuatorServiceInterval() <= 0 {
		return pkgerrors.New("actuatorServiceInterval must be positive")
	}
	if f.ActuatorKeepalive() < 0 {
		return pkgerrors.New("actuatorKeepalive must not be negative")
	}
	return nil
}

func (f *File) Load() error {
	f.mu.Lock()
	err := f.load()
	f.mu.Unlock()
	if err != nil {
		return err
	}

	return pkgerrors.Wrapf(f.Validate(), "invalid config in %s", f.filepath)
}

func (f *File) load() error {
	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, use the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = yaml.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	b, err := yaml.Marshal(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to marshal config")
	}

	err = os.WriteFile(f.filepath, b, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to write file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"backend":                      f.Backend(),
		"serialPort":                   f.SerialPort(),
		"baudRate":                     f.BaudRate(),
		"storagePath":                  f.StoragePath(),
		"terminalDisplay":              f.TerminalDisplay(),
		"allowNonRootAccess":           f.AllowNonRootAccess(),
		"averagingFactor":              f.AveragingFactor(),
		"defaultCalibrationFactor":     f.DefaultCalibrationFactor(),
		"plausibleGrams":               []float32{f.MinPlausibleGrams(), f.MaxPlausibleGrams()},
		"defaultDose":                  f.DefaultDose(),
		"maxDose":                      f.MaxDose(),
		"doseTolerance":                f.DoseTolerance(),
		"overloadMargin":               f.OverloadMargin(),
		"pulse":                        f.PulseOn().String() + "/" + f.PulseOff().String(),
		"tareSettle":                   f.TareSettle().String(),
		"adjustTimeoutIterations":      f.AdjustTimeoutIterations(),
		"calibrationTimeoutIterations": f.CalibrationTimeoutIterations(),
		"loopInterval":                 f.LoopInterval().String(),
	}
}
