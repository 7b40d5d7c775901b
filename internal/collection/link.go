package collection

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentic-research/resfs/internal/glob"
	"github.com/agentic-research/resfs/internal/resource"
)

// LinkParams configure a Link.
type LinkParams struct {
	Name   string
	Reader resource.Reader
	// LinkPath is where the target's resources appear, e.g. "/app/".
	LinkPath string
	// TargetPath is where they live in Reader, e.g. "/resources/my/app/".
	TargetPath string
}

// Link re-mounts the subtree of a reader below another virtual directory.
type Link struct {
	name       string
	reader     resource.Reader
	linkRoot   string
	targetRoot string
}

// NewLink creates a Link. Both paths must start and end with "/".
func NewLink(p LinkParams) (*Link, error) {
	linkRoot, err := dirRoot(p.LinkPath)
	if err != nil {
		return nil, err
	}
	targetRoot, err := dirRoot(p.TargetPath)
	if err != nil {
		return nil, err
	}
	return &Link{name: p.Name, reader: p.Reader, linkRoot: linkRoot, targetRoot: targetRoot}, nil
}

func dirRoot(p string) (string, error) {
	if !strings.HasPrefix(p, "/") || !strings.HasSuffix(p, "/") {
		return "", &resource.InvalidOptionsError{Op: "link", Reason: fmt.Sprintf("path %q must start and end with /", p)}
	}
	if p == "/" {
		return p, nil
	}
	return strings.TrimSuffix(p, "/"), nil
}

// Name returns the link name.
func (l *Link) Name() string { return l.name }

// ByGlob implements resource.Reader. The static part of every pattern is
// translated into the target namespace; the matched paths are mapped back
// and checked against the original patterns.
func (l *Link) ByGlob(ctx context.Context, patterns []string, opts resource.GlobOptions) ([]*resource.Resource, error) {
	if t := resource.TraceFrom(ctx); t != nil {
		t.Collection(l.name)
	}
	set, err := glob.Compile(patterns)
	if err != nil {
		return nil, &resource.InvalidOptionsError{Op: "byGlob", Reason: err.Error(), Err: err}
	}

	var query []string
	for _, b := range set.Bases() {
		switch {
		case glob.Within(b, l.linkRoot):
			t, _ := remap(b, l.linkRoot, l.targetRoot)
			query = append(query, strings.TrimSuffix(t, "/")+"/**")
		case glob.Within(l.linkRoot, b):
			query = append(query, strings.TrimSuffix(l.targetRoot, "/")+"/**")
		}
	}
	if len(query) == 0 {
		return nil, nil
	}

	rs, err := l.reader.ByGlob(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	out := rs[:0]
	for _, r := range rs {
		p, ok := remap(r.Path(), l.targetRoot, l.linkRoot)
		if !ok || !set.Match(p) {
			continue
		}
		if err := r.SetPath(p); err != nil {
			return nil, err
		}
		l.stamp(r)
		out = append(out, r)
	}
	return out, nil
}

// ByPath implements resource.Reader.
func (l *Link) ByPath(ctx context.Context, p string, opts resource.GlobOptions) (*resource.Resource, error) {
	if t := resource.TraceFrom(ctx); t != nil {
		t.Collection(l.name)
	}
	target, ok := remap(p, l.linkRoot, l.targetRoot)
	if !ok {
		return nil, nil
	}
	r, err := l.reader.ByPath(ctx, target, opts)
	if err != nil || r == nil {
		return nil, err
	}
	if err := r.SetPath(p); err != nil {
		return nil, err
	}
	l.stamp(r)
	return r, nil
}

func (l *Link) stamp(r *resource.Resource) {
	if l.name != "" {
		r.PushCollection(l.name)
	}
}

// remap moves p from below root from to below root to.
func remap(p, from, to string) (string, bool) {
	if !glob.Within(p, from) {
		return "", false
	}
	rest := strings.TrimPrefix(p, from)
	if from == "/" {
		rest = strings.TrimSuffix(p, "/")
	}
	out := strings.TrimSuffix(to, "/") + rest
	if out == "" {
		out = "/"
	}
	return out, true
}

var _ resource.Reader = (*Link)(nil)
