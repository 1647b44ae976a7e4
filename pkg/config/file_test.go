package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFile_MissingFileUsesDefaults(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sim", f.Backend())
	assert.Equal(t, float32(18), f.DefaultDose())
	assert.Equal(t, float32(1030), f.DefaultCalibrationFactor())
	assert.Equal(t, 10, f.AveragingFactor())
	assert.Equal(t, 100, f.AdjustTimeoutIterations())
	assert.Equal(t, 0, f.CalibrationTimeoutIterations())
	assert.Equal(t, 50*time.Millisecond, f.PulseOn())
	assert.Equal(t, time.Millisecond, f.EncoderServiceInterval())
	assert.Equal(t, 5*time.Millisecond, f.ActuatorServiceInterval())
	assert.Equal(t, 250*time.Millisecond, f.ActuatorKeepalive())
}

func TestNewFile_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0644))

	f, err := NewFile(path)
	require.NoError(t, err)
	assert.Equal(t, RawFileConfig{}, f.Raw())
}

func TestNewFile_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weighgrind.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend: serial
serialPort: /dev/ttyUSB1
doseTolerance: 0.2
pulseOn: 80ms
tareSettle: 0s
calibrationTimeoutIterations: 500
`), 0644))

	f, err := NewFile(path)
	require.NoError(t, err)

	assert.Equal(t, "serial", f.Backend())
	assert.Equal(t, "/dev/ttyUSB1", f.SerialPort())
	assert.Equal(t, float32(0.2), f.DoseTolerance())
	assert.Equal(t, 80*time.Millisecond, f.PulseOn())
	assert.Equal(t, time.Duration(0), f.TareSettle())
	assert.Equal(t, 500, f.CalibrationTimeoutIterations())
	// untouched fields keep their defaults
	assert.Equal(t, 50*time.Millisecond, f.PulseOff())
}

func TestNewFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "backend: [sim"},
		{"unknown backend", "backend: usb"},
		{"zero averaging", "averagingFactor: 0"},
		{"dose above max", "defaultDose: 200"},
		{"negative tolerance", "doseTolerance: -1"},
		{"inverted range", "minPlausibleGrams: 10\nmaxPlausibleGrams: 5"},
		{"zero actuator interval", "actuatorServiceInterval: 0s"},
		{"negative keepalive", "actuatorKeepalive: -1s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "weighgrind.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := NewFile(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weighgrind.yaml")
	f := NewFileFromConfig(nil, path)
	f.SetBackend("serial")
	f.SetSerialPort("/dev/ttyACM3")
	f.SetAllowNonRootAccess(true)
	require.NoError(t, f.Save())

	g, err := NewFile(path)
	require.NoError(t, err)
	assert.Equal(t, "serial", g.Backend())
	assert.Equal(t, "/dev/ttyACM3", g.SerialPort())
	assert.True(t, g.AllowNonRootAccess())
	assert.False(t, g.TerminalDisplay())
}

func TestSetBackend_PanicsOnUnknown(t *testing.T) {
	f := NewFileFromConfig(nil, "")
	assert.Panics(t, func() { f.SetBackend("usb") })
}

func TestLogrusFields(t *testing.T) {
	f := NewFileFromConfig(nil, "")
	fields := f.LogrusFields()
	assert.Equal(t, "sim", fields["backend"])
	assert.Equal(t, "50ms/50ms", fields["pulse"])
}
