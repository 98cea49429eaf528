package schunk

import (
	"sync"

	"github.com/blosc2/b2go/errs"
	"github.com/blosc2/b2go/format"
)

// Meta is the fixed-metalayer registry: at most
// format.MaxFixedMetalayers entries, each a name (≤31 bytes) paired
// with byte content whose size may shrink or stay the same on update
// but never grow beyond what Add originally allocated.
type Meta struct {
	mu       sync.RWMutex
	order    []string
	data     map[string][]byte
	original map[string]int
}

func newMeta() *Meta {
	return &Meta{
		data:     make(map[string][]byte),
		original: make(map[string]int),
	}
}

// Add implements meta_add: name uniqueness is enforced and the
// registry is capped at format.MaxFixedMetalayers entries.
func (m *Meta) Add(name string, content []byte) error {
	if len(name) == 0 || len(name) > format.MaxMetalayerNameLen {
		return errs.New(errs.InvalidParam, "metalayer name must be 1..31 bytes")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.data[name]; exists {
		return errs.New(errs.InvalidParam, "metalayer name already exists")
	}
	if len(m.order) >= format.MaxFixedMetalayers {
		return errs.New(errs.InvalidParam, "fixed metalayer table is full")
	}

	m.order = append(m.order, name)
	m.data[name] = append([]byte(nil), content...)
	m.original[name] = len(content)

	return nil
}

// Get implements meta_get.
func (m *Meta) Get(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[name]
	if !ok {
		return nil, false
	}

	return append([]byte(nil), v...), true
}

// Update implements meta_update: content may shrink or keep its
// original size, never grow beyond it.
func (m *Meta) Update(name string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[name]; !ok {
		return errs.New(errs.NotFound, "unknown metalayer")
	}
	if len(content) > m.original[name] {
		return errs.New(errs.InvalidParam, "metalayer content must not grow beyond its original size")
	}

	m.data[name] = append([]byte(nil), content...)

	return nil
}

// Exists implements meta_exists.
func (m *Meta) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[name]

	return ok
}

// Names returns the metalayer names in insertion order.
func (m *Meta) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]string(nil), m.order...)
}
