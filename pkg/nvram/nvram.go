// Package nvram provides byte-addressable non-volatile storage with EEPROM
// semantics: a fixed size, factory-fresh cells read as 0xFF, and "update"
// writes that only touch bytes whose value changes.
package nvram

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/chewxy/math32"
	pkgerrors "github.com/pkg/errors"
)

// DefaultSize matches the 1 KiB EEPROM of an ATmega328P.
const DefaultSize = 1024

// Erased is the value of a never-written cell.
const Erased byte = 0xFF

// ErrOutOfRange is returned when an access falls outside the device.
var ErrOutOfRange = errors.New("address out of range")

// Device is a fixed-size byte-addressable store.
type Device interface {
	io.ReaderAt
	io.WriterAt
	Size() int64
}

func checkRange(d Device, off int64, n int) error {
	if off < 0 || off+int64(n) > d.Size() {
		return pkgerrors.Wrapf(ErrOutOfRange, "access [%d, %d) on device of size %d", off, off+int64(n), d.Size())
	}
	return nil
}

func read(d Device, off int64, n int) ([]byte, error) {
	if err := checkRange(d, off, n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := d.ReadAt(buf, off); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read %d bytes at %d", n, off)
	}
	return buf, nil
}

// update writes b at off, skipping bytes that already hold the same value.
func update(d Device, off int64, b []byte) error {
	cur, err := read(d, off, len(b))
	if err != nil {
		return err
	}
	for i := range b {
		if cur[i] == b[i] {
			continue
		}
		if _, err := d.WriteAt(b[i:i+1], off+int64(i)); err != nil {
			return pkgerrors.Wrapf(err, "failed to write byte at %d", off+int64(i))
		}
	}
	return nil
}

// ReadByteAt reads a single byte.
func ReadByteAt(d Device, off int64) (byte, error) {
	b, err := read(d, off, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// UpdateByte writes a single byte if it differs from the stored one.
func UpdateByte(d Device, off int64, v byte) error {
	return update(d, off, []byte{v})
}

// ReadFloat reads a little-endian IEEE-754 float32.
func ReadFloat(d Device, off int64) (float32, error) {
	b, err := read(d, off, 4)
	if err != nil {
		return 0, err
	}
	return math32.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

// UpdateFloat writes a little-endian IEEE-754 float32.
func UpdateFloat(d Device, off int64, v float32) error {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math32.Float32bits(v))
	return update(d, off, b)
}

// ReadLong reads a little-endian int32.
func ReadLong(d Device, off int64) (int32, error) {
	b, err := read(d, off, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

// UpdateLong writes a little-endian int32.
func UpdateLong(d Device, off int64, v int32) error {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return update(d, off, b)
}
