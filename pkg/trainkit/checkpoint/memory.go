package checkpoint

import (
	"sort"

	tkerrors "github.com/randalmurphal/trainkit/pkg/trainkit/errors"
)

// MemoryBackend keeps entries in process memory.
// Data is lost when the process exits. Useful for tests and dry runs.
type MemoryBackend struct {
	entries map[string][]byte
	writes  int
}

// Compile-time interface check.
var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Root implements Backend.
func (m *MemoryBackend) Root() string {
	return "memory"
}

// Locate implements Backend.
func (m *MemoryBackend) Locate(name string) string {
	return name
}

// Names implements Backend.
func (m *MemoryBackend) Names() ([]string, error) {
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Exists implements Backend.
func (m *MemoryBackend) Exists(loc string) (bool, error) {
	_, ok := m.entries[loc]
	return ok, nil
}

// Ensure implements Backend. Storage is allocated on first call.
func (m *MemoryBackend) Ensure() (bool, error) {
	if m.entries != nil {
		return false, nil
	}
	m.entries = make(map[string][]byte)
	return true, nil
}

// Read implements Backend.
func (m *MemoryBackend) Read(loc string) ([]byte, error) {
	data, ok := m.entries[loc]
	if !ok {
		return nil, tkerrors.ErrNotFound
	}
	// Return a copy to prevent modification
	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// Write implements Backend.
func (m *MemoryBackend) Write(loc string, data []byte) error {
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	// Copy data to avoid retaining caller's slice
	stored := make([]byte, len(data))
	copy(stored, data)
	m.entries[loc] = stored
	m.writes++
	return nil
}

// Delete removes an entry. Useful for simulating lost checkpoints in tests.
func (m *MemoryBackend) Delete(loc string) {
	delete(m.entries, loc)
}

// Put stores raw bytes under loc without going through a Store.
// Put does not count towards Writes.
func (m *MemoryBackend) Put(loc string, data []byte) {
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	m.entries[loc] = append([]byte(nil), data...)
}

// Writes returns the number of writes performed.
func (m *MemoryBackend) Writes() int {
	return m.writes
}
