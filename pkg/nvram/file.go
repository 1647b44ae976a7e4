package nvram

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var _ Device = (*File)(nil)

// File is a Device backed by a fixed-size image file on disk.
type File struct {
	mu   sync.Mutex
	f    *os.File
	size int64
}

// OpenFile opens the image at path, creating it (erased) if it does not
// exist. A short image is padded with erased cells.
func OpenFile(path string, size int64) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to create directory for %s", path)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open nvram image %s", path)
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, pkgerrors.Wrapf(err, "failed to stat nvram image %s", path)
	}

	if st.Size() < size {
		pad := bytes.Repeat([]byte{Erased}, int(size-st.Size()))
		if _, err := f.WriteAt(pad, st.Size()); err != nil {
			_ = f.Close()
			return nil, pkgerrors.Wrapf(err, "failed to initialize nvram image %s", path)
		}
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return nil, pkgerrors.Wrapf(err, "failed to sync nvram image %s", path)
		}
		logrus.WithFields(logrus.Fields{
			"path":    path,
			"size":    size,
			"oldSize": st.Size(),
		}).Info("initialized nvram image")
	}

	return &File{f: f, size: size}, nil
}

func (d *File) ReadAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if off < 0 || off+int64(len(p)) > d.size {
		return 0, ErrOutOfRange
	}
	return d.f.ReadAt(p, off)
}

// WriteAt writes and syncs, so a power cut after return keeps the data.
func (d *File) WriteAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if off < 0 || off+int64(len(p)) > d.size {
		return 0, ErrOutOfRange
	}
	n, err := d.f.WriteAt(p, off)
	if err != nil {
		return n, err
	}
	return n, d.f.Sync()
}

func (d *File) Size() int64 {
	return d.size
}

func (d *File) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.f.Close()
}
