package tags

import (
	"sort"
	"sync"
)

// MemoryBackend keeps tags in process memory for the lifetime of a build.
type MemoryBackend struct {
	mu   sync.RWMutex
	tags map[string]map[string]Value // path → tag → value
}

// NewMemoryBackend creates an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{tags: make(map[string]map[string]Value)}
}

func (m *MemoryBackend) Set(path, tag string, v Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tags[path]
	if !ok {
		t = make(map[string]Value)
		m.tags[path] = t
	}
	t[tag] = v
	return nil
}

func (m *MemoryBackend) Clear(path, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tags[path]; ok {
		delete(t, tag)
		if len(t) == 0 {
			delete(m.tags, path)
		}
	}
	return nil
}

func (m *MemoryBackend) Get(path, tag string) (Value, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.tags[path][tag]
	return v, ok, nil
}

func (m *MemoryBackend) Paths(tag string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for p, t := range m.tags {
		if _, ok := t[tag]; ok {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

var _ Backend = (*MemoryBackend)(nil)
