package collection

import (
	"context"

	"github.com/agentic-research/resfs/internal/resource"
)

// FilterFunc decides whether a resource stays visible.
type FilterFunc func(*resource.Resource) bool

// ReaderFilter hides the resources of a reader that a callback rejects.
type ReaderFilter struct {
	name   string
	reader resource.Reader
	keep   FilterFunc
}

// NewReaderFilter wraps reader. A nil callback keeps everything.
func NewReaderFilter(name string, reader resource.Reader, keep FilterFunc) *ReaderFilter {
	if keep == nil {
		keep = func(*resource.Resource) bool { return true }
	}
	return &ReaderFilter{name: name, reader: reader, keep: keep}
}

// Name returns the filter name.
func (f *ReaderFilter) Name() string { return f.name }

// ByGlob implements resource.Reader.
func (f *ReaderFilter) ByGlob(ctx context.Context, patterns []string, opts resource.GlobOptions) ([]*resource.Resource, error) {
	if t := resource.TraceFrom(ctx); t != nil {
		t.Collection(f.name)
	}
	rs, err := f.reader.ByGlob(ctx, patterns, opts)
	if err != nil {
		return nil, err
	}
	out := rs[:0]
	for _, r := range rs {
		if f.keep(r) {
			f.stamp(r)
			out = append(out, r)
		}
	}
	return out, nil
}

// ByPath implements resource.Reader.
func (f *ReaderFilter) ByPath(ctx context.Context, p string, opts resource.GlobOptions) (*resource.Resource, error) {
	if t := resource.TraceFrom(ctx); t != nil {
		t.Collection(f.name)
	}
	r, err := f.reader.ByPath(ctx, p, opts)
	if err != nil || r == nil {
		return nil, err
	}
	if !f.keep(r) {
		return nil, nil
	}
	f.stamp(r)
	return r, nil
}

func (f *ReaderFilter) stamp(r *resource.Resource) {
	if f.name != "" {
		r.PushCollection(f.name)
	}
}

var _ resource.Reader = (*ReaderFilter)(nil)
