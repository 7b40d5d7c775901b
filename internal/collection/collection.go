// Package collection composes resource readers into single readers.
//
// A ReaderCollection queries all of its members and merges the results in
// member order. A ReaderCollectionPrioritized does the same for globs but
// answers path lookups from the first member that holds the path. A Duplex
// pairs a source reader with a writable overlay and is what build tasks
// operate on.
package collection

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/resfs/internal/resource"
)

// Params configure a reader collection.
type Params struct {
	// Name is pushed onto the provenance of every resource returned.
	Name string
	// Readers are queried in this order. Nil entries are skipped.
	Readers []resource.Reader
	Logger  *slog.Logger
}

type members struct {
	name    string
	readers []resource.Reader
	logger  *slog.Logger
}

func newMembers(p Params) members {
	readers := make([]resource.Reader, 0, len(p.Readers))
	for _, r := range p.Readers {
		if r != nil {
			readers = append(readers, r)
		}
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return members{name: p.Name, readers: readers, logger: logger}
}

// Name returns the collection name.
func (m *members) Name() string { return m.name }

// byGlob fans the query out to every member and merges the answers in member
// order. A path returned by more than one member is taken from the first.
func (m *members) byGlob(ctx context.Context, patterns []string, opts resource.GlobOptions) ([]*resource.Resource, error) {
	ctx, tr, owner := resource.StartTrace(ctx, m.logger, "byGlob", patterns...)
	tr.Collection(m.name)

	results := make([][]*resource.Resource, len(m.readers))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range m.readers {
		g.Go(func() error {
			rs, err := r.ByGlob(gctx, patterns, opts)
			if err != nil {
				return err
			}
			results[i] = rs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []*resource.Resource
	seen := make(map[string]bool)
	for _, rs := range results {
		for _, r := range rs {
			p := r.Path()
			if seen[p] {
				continue
			}
			seen[p] = true
			m.stamp(r)
			out = append(out, r)
		}
	}
	if owner {
		tr.Finish(ctx, len(out))
	}
	return out, nil
}

// byPathAll asks every member concurrently and keeps the answer of the first
// member, in list order, that has the path.
func (m *members) byPathAll(ctx context.Context, p string, opts resource.GlobOptions) (*resource.Resource, error) {
	ctx, tr, owner := resource.StartTrace(ctx, m.logger, "byPath", p)
	tr.Collection(m.name)

	results := make([]*resource.Resource, len(m.readers))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range m.readers {
		g.Go(func() error {
			res, err := r.ByPath(gctx, p, opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var found *resource.Resource
	for _, res := range results {
		if res != nil {
			found = res
			break
		}
	}
	return m.done(ctx, tr, owner, found), nil
}

// byPathFirst asks the members one after another and stops at the first hit.
func (m *members) byPathFirst(ctx context.Context, p string, opts resource.GlobOptions) (*resource.Resource, error) {
	ctx, tr, owner := resource.StartTrace(ctx, m.logger, "byPath", p)
	tr.Collection(m.name)

	var found *resource.Resource
	for _, r := range m.readers {
		res, err := r.ByPath(ctx, p, opts)
		if err != nil {
			return nil, err
		}
		if res != nil {
			found = res
			break
		}
	}
	return m.done(ctx, tr, owner, found), nil
}

func (m *members) done(ctx context.Context, tr *resource.Trace, owner bool, found *resource.Resource) *resource.Resource {
	n := 0
	if found != nil {
		m.stamp(found)
		n = 1
	}
	if owner {
		tr.Finish(ctx, n)
	}
	return found
}

func (m *members) stamp(r *resource.Resource) {
	if m.name != "" {
		r.PushCollection(m.name)
	}
}

// ReaderCollection is a union of readers. Lookups query all members
// concurrently; on duplicate paths the member listed first wins.
type ReaderCollection struct {
	members
}

// NewReaderCollection creates a ReaderCollection.
func NewReaderCollection(p Params) *ReaderCollection {
	return &ReaderCollection{members: newMembers(p)}
}

// ByGlob implements resource.Reader.
func (c *ReaderCollection) ByGlob(ctx context.Context, patterns []string, opts resource.GlobOptions) ([]*resource.Resource, error) {
	return c.byGlob(ctx, patterns, opts)
}

// ByPath implements resource.Reader.
func (c *ReaderCollection) ByPath(ctx context.Context, p string, opts resource.GlobOptions) (*resource.Resource, error) {
	return c.byPathAll(ctx, p, opts)
}

// ReaderCollectionPrioritized is an ordered overlay of readers: a member
// shadows the paths of every member listed after it.
type ReaderCollectionPrioritized struct {
	members
}

// NewReaderCollectionPrioritized creates a ReaderCollectionPrioritized.
func NewReaderCollectionPrioritized(p Params) *ReaderCollectionPrioritized {
	return &ReaderCollectionPrioritized{members: newMembers(p)}
}

// ByGlob implements resource.Reader.
func (c *ReaderCollectionPrioritized) ByGlob(ctx context.Context, patterns []string, opts resource.GlobOptions) ([]*resource.Resource, error) {
	return c.byGlob(ctx, patterns, opts)
}

// ByPath implements resource.Reader. Members are asked in order and the
// first hit ends the lookup.
func (c *ReaderCollectionPrioritized) ByPath(ctx context.Context, p string, opts resource.GlobOptions) (*resource.Resource, error) {
	return c.byPathFirst(ctx, p, opts)
}

var (
	_ resource.Reader = (*ReaderCollection)(nil)
	_ resource.Reader = (*ReaderCollectionPrioritized)(nil)
	_ resource.Named  = (*ReaderCollection)(nil)
)
