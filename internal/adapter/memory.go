package adapter

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/agentic-research/resfs/internal/resource"
)

// Memory keeps resources in process memory. Reads and writes copy content
// at the boundary, so a caller never observes a stream another caller has
// already drained, and a write never disturbs a read in flight.
type Memory struct {
	base

	mu    sync.RWMutex
	files map[string]*resource.Resource // virtual path → stored resource
	dirs  map[string]time.Time          // virtual directory → creation time
}

// NewMemory creates an empty in-memory adapter.
func NewMemory(p Params) (*Memory, error) {
	b, err := newBase(p)
	if err != nil {
		return nil, err
	}
	return &Memory{
		base:  b,
		files: make(map[string]*resource.Resource),
		dirs:  map[string]time.Time{b.virRoot: time.Now()},
	}, nil
}

// ByGlob implements resource.Reader.
func (m *Memory) ByGlob(ctx context.Context, patterns []string, opts resource.GlobOptions) ([]*resource.Resource, error) {
	m.trace(ctx)
	set, err := m.compile(patterns)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	var matched []*resource.Resource
	for p, r := range m.files {
		if m.accept(p, false, set, opts) {
			matched = append(matched, r)
		}
	}
	var dirs []*resource.Resource
	for p, t := range m.dirs {
		if m.accept(p, true, set, opts) {
			dirs = append(dirs, m.dirResource(p, t))
		}
	}
	m.mu.RUnlock()

	out := make([]*resource.Resource, 0, len(matched)+len(dirs))
	for _, r := range matched {
		c, err := r.Clone()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	out = append(out, dirs...)
	out = append(out, m.ancestorDirs(set, opts)...)
	resource.SortByPath(out)
	m.finish(out...)
	return out, nil
}

// ByPath implements resource.Reader.
func (m *Memory) ByPath(ctx context.Context, p string, opts resource.GlobOptions) (*resource.Resource, error) {
	m.trace(ctx)
	if m.excluded(p) {
		return nil, nil
	}
	if _, ok := m.relative(p); !ok {
		return nil, nil
	}

	m.mu.RLock()
	r, ok := m.files[p]
	dirTime, isDir := m.dirs[p]
	m.mu.RUnlock()

	switch {
	case ok:
		c, err := r.Clone()
		if err != nil {
			return nil, err
		}
		m.finish(c)
		return c, nil
	case isDir && opts.Dirs:
		d := m.dirResource(p, dirTime)
		m.finish(d)
		return d, nil
	}
	return nil, nil
}

// Write implements resource.Writer. A plain write stores a copy, a read-only
// write aliases the content and a drain write takes it over.
func (m *Memory) Write(ctx context.Context, r *resource.Resource, opts resource.WriteOptions) error {
	if _, err := m.checkWrite(r, opts); err != nil {
		return err
	}
	p := r.Path()

	var stored *resource.Resource
	var err error
	switch {
	case opts.Drain && r.HasContent():
		var b []byte
		if b, err = r.DrainBuffer(); err == nil {
			stored, err = resource.New(resource.Options{Path: p, Buffer: b, Stat: r.StatInfo(), Project: r.Project()})
		}
	case opts.ReadOnly:
		stored, err = r.Shared()
	default:
		stored, err = r.Clone()
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[p] = stored
	now := time.Now()
	for dir := path.Dir(p); dir != m.virRoot && dir != "/"; dir = path.Dir(dir) {
		if _, ok := m.dirs[dir]; !ok {
			m.dirs[dir] = now
		}
	}
	return nil
}

// Len returns the number of stored resources.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// Paths lists the stored virtual paths in order.
func (m *Memory) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

var _ resource.ReaderWriter = (*Memory)(nil)
