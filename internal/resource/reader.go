package resource

import (
	"context"
	"sort"
)

// GlobOptions tune a lookup. The zero value skips directory entries.
type GlobOptions struct {
	// Dirs includes directory entries in results. ByPath on a path that only
	// denotes a directory resolves to nothing unless Dirs is set.
	Dirs bool
}

// WriteOptions tune a write. ReadOnly and Drain are mutually exclusive.
type WriteOptions struct {
	// ReadOnly promises that the written content is never modified again, so
	// the writer may alias it instead of copying.
	ReadOnly bool
	// Drain transfers the content to the writer and leaves the resource
	// empty. Meant for the last write of a pipeline.
	Drain bool
}

// Validate rejects contradicting options.
func (o WriteOptions) Validate() error {
	if o.ReadOnly && o.Drain {
		return &InvalidOptionsError{Op: "write", Reason: "readOnly and drain cannot be combined"}
	}
	return nil
}

// Reader locates resources by glob or exact path.
type Reader interface {
	// ByGlob returns every resource matched by the pattern union.
	ByGlob(ctx context.Context, patterns []string, opts GlobOptions) ([]*Resource, error)
	// ByPath returns the resource at p, or nil when there is none.
	ByPath(ctx context.Context, p string, opts GlobOptions) (*Resource, error)
}

// Writer stores resources.
type Writer interface {
	Write(ctx context.Context, r *Resource, opts WriteOptions) error
}

// ReaderWriter is a Reader that can also store resources.
type ReaderWriter interface {
	Reader
	Writer
}

// Named is implemented by readers that carry a collection name.
type Named interface {
	Name() string
}

// SortByPath orders resources by virtual path.
func SortByPath(rs []*Resource) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].Path() < rs[j].Path() })
}

// Paths lists the virtual paths of rs.
func Paths(rs []*Resource) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Path()
	}
	return out
}
