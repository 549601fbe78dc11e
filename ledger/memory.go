package ledger

import (
	"context"
	"sync"
)

// MemoryBackend keeps the ledger in process memory. Useful for tests and dry runs.
type MemoryBackend struct {
	data     []byte
	writeErr error
	writes   int
	mu       sync.Mutex
}

// NewMemoryBackend returns a backend holding data, or nothing if data is nil.
func NewMemoryBackend(data []byte) *MemoryBackend {
	return &MemoryBackend{data: data}
}

// Read returns a copy of the stored document.
func (m *MemoryBackend) Read(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrNotExist
	}
	return append([]byte(nil), m.data...), nil
}

// Write stores a copy of data unless a write error was injected.
func (m *MemoryBackend) Write(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.writeErr != nil {
		return m.writeErr
	}
	m.data = append([]byte(nil), data...)
	return nil
}

// FailWrites makes every following Write return err; nil restores normal behaviour.
func (m *MemoryBackend) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Writes returns how many writes were attempted.
func (m *MemoryBackend) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Bytes returns a copy of the last successfully written document.
func (m *MemoryBackend) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}
