package nvram

import "sync"

var _ Device = (*Memory)(nil)

// Memory is a volatile Device. Useful for tests and throwaway runs.
type Memory struct {
	mu     sync.RWMutex
	cells  []byte
	writes int
}

// NewMemory returns an erased device of the given size.
func NewMemory(size int) *Memory {
	cells := make([]byte, size)
	for i := range cells {
		cells[i] = Erased
	}
	return &Memory{cells: cells}
}

func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if off < 0 || off+int64(len(p)) > int64(len(m.cells)) {
		return 0, ErrOutOfRange
	}
	return copy(p, m.cells[off:]), nil
}

func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off < 0 || off+int64(len(p)) > int64(len(m.cells)) {
		return 0, ErrOutOfRange
	}
	m.writes += len(p)
	return copy(m.cells[off:], p), nil
}

func (m *Memory) Size() int64 {
	return int64(len(m.cells))
}

// Writes returns how many bytes have been physically written so far.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}
