// Package adapter provides the leaf readers/writers of the resource layer:
// a disk (or any billy filesystem) backed adapter, an in-memory adapter and
// an S3-compatible object store adapter.
//
// Every adapter serves the resources below a virtual base path and hides
// paths matched by its exclude list from reads and writes alike.
package adapter

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/agentic-research/resfs/internal/glob"
	"github.com/agentic-research/resfs/internal/resource"
)

// Params are shared by all adapters.
type Params struct {
	// Name is pushed onto the provenance of every resource the adapter returns.
	Name string
	// VirBasePath is the virtual directory the adapter is mounted at. It must
	// start and end with "/". Empty means "/".
	VirBasePath string
	// Excludes are glob patterns of virtual paths that never surface.
	Excludes []string
	// Project is an opaque handle attached to created resources.
	Project any
	Logger  *slog.Logger
}

type base struct {
	name        string
	virBasePath string // always ends with "/"
	virRoot     string // virBasePath without trailing slash, "/" for the root
	exclude     glob.Exclude
	project     any
	logger      *slog.Logger
}

func newBase(p Params) (base, error) {
	vb := p.VirBasePath
	if vb == "" {
		vb = "/"
	}
	if !strings.HasPrefix(vb, "/") || !strings.HasSuffix(vb, "/") {
		return base{}, &resource.InvalidOptionsError{
			Op:     "adapter",
			Reason: fmt.Sprintf("virtual base path %q must start and end with /", vb),
		}
	}
	root := strings.TrimSuffix(vb, "/")
	if root == "" {
		root = "/"
	}
	if err := resource.ValidatePath(root); err != nil {
		return base{}, err
	}
	ex, err := glob.NewExclude(p.Excludes)
	if err != nil {
		return base{}, &resource.InvalidOptionsError{Op: "adapter", Reason: err.Error(), Err: err}
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return base{
		name:        p.Name,
		virBasePath: vb,
		virRoot:     root,
		exclude:     ex,
		project:     p.Project,
		logger:      logger,
	}, nil
}

// Name returns the adapter name.
func (b *base) Name() string { return b.name }

// relative maps a virtual path to a slash-separated path relative to the
// virtual base path. ok is false for paths outside of it.
func (b *base) relative(virPath string) (rel string, ok bool) {
	if !glob.Within(virPath, b.virRoot) {
		return "", false
	}
	return strings.TrimPrefix(strings.TrimPrefix(virPath, b.virRoot), "/"), true
}

// virtual maps a path relative to the base back into the virtual namespace.
func (b *base) virtual(rel string) string {
	return path.Join(b.virRoot, "/", rel)
}

func (b *base) excluded(virPath string) bool {
	return b.exclude.Excluded(virPath)
}

// checkWrite validates a write before any I/O happens.
func (b *base) checkWrite(r *resource.Resource, opts resource.WriteOptions) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}
	p := r.Path()
	if b.excluded(p) {
		return "", &resource.ExcludedPathError{Path: p}
	}
	rel, ok := b.relative(p)
	if !ok || rel == "" {
		return "", fmt.Errorf("write %s: %w %s", p, resource.ErrOutsideBasePath, b.virBasePath)
	}
	return rel, nil
}

// compile turns a lookup into a pattern set.
func (b *base) compile(patterns []string) (*glob.Set, error) {
	set, err := glob.Compile(patterns)
	if err != nil {
		return nil, &resource.InvalidOptionsError{Op: "byGlob", Reason: err.Error(), Err: err}
	}
	return set, nil
}

// walkRoots translates the static bases of set into directories relative to
// the adapter root. Bases that cannot contain any of the adapter's paths are
// dropped.
func (b *base) walkRoots(set *glob.Set) []string {
	seen := make(map[string]bool)
	var roots []string
	for _, vb := range set.Bases() {
		var rel string
		switch {
		case glob.Within(vb, b.virRoot):
			rel, _ = b.relative(vb)
		case glob.Within(b.virRoot, vb):
			rel = ""
		default:
			continue
		}
		if !seen[rel] {
			seen[rel] = true
			roots = append(roots, rel)
		}
	}
	return roots
}

// ancestorDirs returns directory resources for the virtual directories above
// the adapter root that match set. They only surface when directories were
// asked for.
func (b *base) ancestorDirs(set *glob.Set, opts resource.GlobOptions) []*resource.Resource {
	if !opts.Dirs || b.virRoot == "/" {
		return nil
	}
	var out []*resource.Resource
	for dir := path.Dir(b.virRoot); ; dir = path.Dir(dir) {
		if set.Match(dir) && !b.excluded(dir) {
			out = append(out, b.dirResource(dir, time.Time{}))
		}
		if dir == "/" {
			break
		}
	}
	return out
}

// accept decides whether an entry found in the backing store is returned.
func (b *base) accept(virPath string, isDir bool, set *glob.Set, opts resource.GlobOptions) bool {
	if isDir && !opts.Dirs {
		return false
	}
	return set.Match(virPath) && !b.excluded(virPath)
}

func (b *base) dirResource(virPath string, modTime time.Time) *resource.Resource {
	if modTime.IsZero() {
		modTime = time.Now()
	}
	r, _ := resource.New(resource.Options{
		Path: virPath,
		Stat: &resource.FileInfo{
			FileName:    path.Base(virPath),
			FileMode:    fs.ModeDir | 0o755,
			FileModTime: modTime,
		},
		Project: b.project,
	})
	return r
}

// finish stamps provenance and project on resources leaving the adapter.
func (b *base) finish(rs ...*resource.Resource) {
	for _, r := range rs {
		if b.name != "" {
			r.PushCollection(b.name)
		}
		if r.Project() == nil && b.project != nil {
			r.SetProject(b.project)
		}
	}
}

func (b *base) trace(ctx context.Context) {
	if t := resource.TraceFrom(ctx); t != nil {
		t.Collection(b.name)
	}
}
