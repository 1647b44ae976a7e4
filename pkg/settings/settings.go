// Package settings persists the two user settings of the grinder, the dose
// target and the scale calibration factor, on an nvram.Device.
package settings

import (
	"github.com/chewxy/math32"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/h3ct1cl3o/weighgrind/pkg/nvram"
)

// Layout of the settings on the device.
const (
	AddrDose              int64 = 0
	AddrDoseFlag          int64 = 8
	AddrCalibrationFlag   int64 = 9
	AddrLegacyCalibration int64 = 10
	AddrCalibration       int64 = 64
)

// Valid marks a presence flag as set.
const Valid byte = 128

var (
	ErrInvalidDose   = pkgerrors.New("dose must be a finite, non-negative number of grams")
	ErrInvalidFactor = pkgerrors.New("calibration factor must be a finite, positive number")
)

// Defaults are used for values that were never stored or are corrupt.
type Defaults struct {
	Dose              float32
	CalibrationFactor float32
	// MaxDose bounds a stored dose. Zero means no bound.
	MaxDose float32
}

// Values is a snapshot of the persisted settings.
type Values struct {
	Dose              float32 `json:"dose"`
	DoseStored        bool    `json:"doseStored"`
	CalibrationFactor float32 `json:"calibrationFactor"`
	CalibrationStored bool    `json:"calibrationStored"`
}

// Store reads and writes settings. It does no caching: every call goes to
// the device.
type Store struct {
	dev      nvram.Device
	defaults Defaults
}

func New(dev nvram.Device, defaults Defaults) *Store {
	return &Store{dev: dev, defaults: defaults}
}

func (s *Store) Load() (Values, error) {
	dose, doseOK, err := s.Dose()
	if err != nil {
		return Values{}, err
	}
	factor, factorOK, err := s.CalibrationFactor()
	if err != nil {
		return Values{}, err
	}
	return Values{
		Dose:              dose,
		DoseStored:        doseOK,
		CalibrationFactor: factor,
		CalibrationStored: factorOK,
	}, nil
}

// Dose returns the stored dose target, or the default with ok=false.
func (s *Store) Dose() (dose float32, ok bool, err error) {
	flag, err := nvram.ReadByteAt(s.dev, AddrDoseFlag)
	if err != nil {
		return 0, false, pkgerrors.Wrapf(err, "failed to read dose flag")
	}
	if flag != Valid {
		return s.defaults.Dose, false, nil
	}

	dose, err = nvram.ReadFloat(s.dev, AddrDose)
	if err != nil {
		return 0, false, pkgerrors.Wrapf(err, "failed to read dose")
	}
	if s.validDose(dose) != nil {
		logrus.WithField("stored", dose).Warn("stored dose is invalid, using default")
		return s.defaults.Dose, false, nil
	}

	return dose, true, nil
}

// CalibrationFactor returns the stored factor, or the default with ok=false.
func (s *Store) CalibrationFactor() (factor float32, ok bool, err error) {
	flag, err := nvram.ReadByteAt(s.dev, AddrCalibrationFlag)
	if err != nil {
		return 0, false, pkgerrors.Wrapf(err, "failed to read calibration flag")
	}
	if flag != Valid {
		return s.defaults.CalibrationFactor, false, nil
	}

	factor, err = nvram.ReadFloat(s.dev, AddrCalibration)
	if err != nil {
		return 0, false, pkgerrors.Wrapf(err, "failed to read calibration factor")
	}
	if validFactor(factor) != nil {
		logrus.WithField("stored", factor).Warn("stored calibration factor is invalid, using default")
		return s.defaults.CalibrationFactor, false, nil
	}

	return factor, true, nil
}

// LegacyCalibrationFactor returns the integer copy kept for older readers.
func (s *Store) LegacyCalibrationFactor() (int32, error) {
	v, err := nvram.ReadLong(s.dev, AddrLegacyCalibration)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to read legacy calibration factor")
	}
	return v, nil
}

// SaveDose persists the dose target. The flag is written after the value.
func (s *Store) SaveDose(dose float32) error {
	if err := s.validDose(dose); err != nil {
		return pkgerrors.Wrapf(err, "refusing to save dose %v", dose)
	}
	if err := nvram.UpdateFloat(s.dev, AddrDose, dose); err != nil {
		return pkgerrors.Wrapf(err, "failed to save dose")
	}
	if err := nvram.UpdateByte(s.dev, AddrDoseFlag, Valid); err != nil {
		return pkgerrors.Wrapf(err, "failed to save dose flag")
	}
	logrus.WithField("dose", dose).Debug("dose saved")
	return nil
}

// SaveCalibration persists the factor both as a float and as the legacy
// truncated integer, then sets the flag.
func (s *Store) SaveCalibration(factor float32) error {
	if err := validFactor(factor); err != nil {
		return pkgerrors.Wrapf(err, "refusing to save calibration factor %v", factor)
	}
	if err := nvram.UpdateLong(s.dev, AddrLegacyCalibration, int32(factor)); err != nil {
		return pkgerrors.Wrapf(err, "failed to save legacy calibration factor")
	}
	if err := nvram.UpdateFloat(s.dev, AddrCalibration, factor); err != nil {
		return pkgerrors.Wrapf(err, "failed to save calibration factor")
	}
	if err := nvram.UpdateByte(s.dev, AddrCalibrationFlag, Valid); err != nil {
		return pkgerrors.Wrapf(err, "failed to save calibration flag")
	}
	logrus.WithField("calibrationFactor", factor).Debug("calibration factor saved")
	return nil
}

func (s *Store) validDose(dose float32) error {
	if math32.IsNaN(dose) || math32.IsInf(dose, 0) || dose < 0 {
		return ErrInvalidDose
	}
	if s.defaults.MaxDose > 0 && dose > s.defaults.MaxDose {
		return pkgerrors.Wrapf(ErrInvalidDose, "dose exceeds maximum of %v", s.defaults.MaxDose)
	}
	return nil
}

func validFactor(f float32) error {
	if math32.IsNaN(f) || math32.IsInf(f, 0) || f <= 0 {
		return ErrInvalidFactor
	}
	return nil
}
