// Package factory assembles adapters and collections for common setups:
// single readers, workspaces and the readers of a whole project tree.
package factory

import (
	"fmt"
	"log/slog"
	"path"
	"strings"

	billy "github.com/go-git/go-billy/v5"

	"github.com/agentic-research/resfs/api"
	"github.com/agentic-research/resfs/internal/adapter"
	"github.com/agentic-research/resfs/internal/collection"
	"github.com/agentic-research/resfs/internal/resource"
)

// AdapterParams select and configure an adapter.
type AdapterParams struct {
	Name        string
	VirBasePath string
	// FsBasePath selects a FileSystem adapter. Without it a Memory adapter is
	// created.
	FsBasePath string
	// Filesystem overrides the backing filesystem of a FileSystem adapter.
	Filesystem billy.Filesystem
	Excludes   []string
	Project    any
	Logger     *slog.Logger
}

// CreateAdapter returns a FileSystem adapter when a physical base path or
// filesystem is given, a Memory adapter otherwise.
func CreateAdapter(p AdapterParams) (resource.ReaderWriter, error) {
	base := adapter.Params{
		Name:        p.Name,
		VirBasePath: p.VirBasePath,
		Excludes:    p.Excludes,
		Project:     p.Project,
		Logger:      p.Logger,
	}
	if p.FsBasePath != "" || p.Filesystem != nil {
		return adapter.NewFileSystem(adapter.FileSystemParams{
			Params:     base,
			FsBasePath: p.FsBasePath,
			Filesystem: p.Filesystem,
		})
	}
	return adapter.NewMemory(base)
}

// ReaderParams configure CreateReader.
type ReaderParams struct {
	AdapterParams
	// Filter hides resources from the reader. Optional.
	Filter collection.FilterFunc
}

// CreateReader creates an adapter and wraps it so that it can be used as a
// plain reader. Filter callbacks are applied on top of the adapter's
// excludes.
func CreateReader(p ReaderParams) (resource.Reader, error) {
	name := p.Name
	p.Name = name + " (adapter)"
	a, err := CreateAdapter(p.AdapterParams)
	if err != nil {
		return nil, err
	}
	return collection.NewReaderFilter(name, a, p.Filter), nil
}

// CreateReaderCollection builds a ReaderCollection.
func CreateReaderCollection(name string, readers ...resource.Reader) *collection.ReaderCollection {
	return collection.NewReaderCollection(collection.Params{Name: name, Readers: readers})
}

// CreateReaderCollectionPrioritized builds a ReaderCollectionPrioritized.
// Earlier readers take precedence.
func CreateReaderCollectionPrioritized(name string, readers ...resource.Reader) *collection.ReaderCollectionPrioritized {
	return collection.NewReaderCollectionPrioritized(collection.Params{Name: name, Readers: readers})
}

// WorkspaceParams configure CreateWorkspace.
type WorkspaceParams struct {
	Name   string
	Reader resource.Reader
	// Writer is the overlay. Defaults to a Memory adapter at VirBasePath.
	Writer      resource.ReaderWriter
	VirBasePath string
	Logger      *slog.Logger
}

// CreateWorkspace pairs a reader with a writable overlay.
func CreateWorkspace(p WorkspaceParams) (*collection.Duplex, error) {
	w := p.Writer
	if w == nil {
		m, err := adapter.NewMemory(adapter.Params{
			Name:        p.Name + " (overlay)",
			VirBasePath: p.VirBasePath,
			Logger:      p.Logger,
		})
		if err != nil {
			return nil, err
		}
		w = m
	}
	return collection.NewDuplex(collection.DuplexParams{
		Name:   p.Name,
		Reader: p.Reader,
		Writer: w,
		Logger: p.Logger,
	})
}

// CreateLink re-mounts a reader's subtree at another virtual path.
func CreateLink(p collection.LinkParams) (*collection.Link, error) {
	return collection.NewLink(p)
}

// CreateResource is a shorthand for resource.New.
func CreateResource(opts resource.Options) (*resource.Resource, error) {
	return resource.New(opts)
}

// TreeParams tune CreateCollectionsForTree.
type TreeParams struct {
	// GetProjectExcludes adds exclude patterns for a project. Optional.
	GetProjectExcludes func(*api.Node) []string
	// GetVirtualBasePathPrefix returns a directory the project's virtual path
	// is moved below, e.g. "/test-resources/". Optional.
	GetVirtualBasePathPrefix func(*api.Node) string
	// Filesystem replaces the OS filesystem; project paths are then resolved
	// inside it. Optional.
	Filesystem func(*api.Node) (billy.Filesystem, error)
	Logger     *slog.Logger
}

// Collections are the readers of a project tree.
type Collections struct {
	// Source reads the root project.
	Source resource.Reader
	// Dependencies reads all transitive dependencies of the root project.
	Dependencies resource.Reader
	// All reads the root project first, then its dependencies.
	All resource.Reader
}

// CreateCollectionsForTree creates one reader for the root project and one
// merged reader for all of its transitive dependencies. Every project gets a
// single reader even if several projects depend on it.
func CreateCollectionsForTree(tree *api.Tree, p TreeParams) (*Collections, error) {
	if tree == nil || tree.Root == nil {
		return nil, &resource.InvalidOptionsError{Op: "createCollectionsForTree", Reason: "no root project"}
	}
	source, err := projectReader(tree.Root, p)
	if err != nil {
		return nil, err
	}

	deps := tree.TransitiveDependencies()
	depReaders := make([]resource.Reader, 0, len(deps))
	for _, n := range deps {
		r, err := projectReader(n, p)
		if err != nil {
			return nil, err
		}
		depReaders = append(depReaders, r)
	}

	c := &Collections{
		Source: CreateReaderCollection("source: "+tree.Root.Name, source),
		Dependencies: collection.NewReaderCollection(collection.Params{
			Name:    "dependencies of " + tree.Root.Name,
			Readers: depReaders,
			Logger:  p.Logger,
		}),
	}
	c.All = collection.NewReaderCollectionPrioritized(collection.Params{
		Name:    "all",
		Readers: []resource.Reader{c.Source, c.Dependencies},
		Logger:  p.Logger,
	})
	return c, nil
}

func projectReader(n *api.Node, p TreeParams) (resource.Reader, error) {
	vb := n.VirtualPath
	if p.GetVirtualBasePathPrefix != nil {
		if prefix := p.GetVirtualBasePathPrefix(n); prefix != "" {
			vb = strings.TrimSuffix(path.Join(prefix, vb), "/") + "/"
		}
	}
	excludes := append([]string(nil), n.Excludes...)
	if p.GetProjectExcludes != nil {
		excludes = append(excludes, p.GetProjectExcludes(n)...)
	}

	ap := AdapterParams{
		Name:        n.Name,
		VirBasePath: vb,
		FsBasePath:  n.Path,
		Excludes:    excludes,
		Project:     n,
		Logger:      p.Logger,
	}
	if p.Filesystem != nil {
		fs, err := p.Filesystem(n)
		if err != nil {
			return nil, fmt.Errorf("filesystem for project %s: %w", n.Name, err)
		}
		ap.Filesystem = fs
	}
	if ap.FsBasePath == "" && ap.Filesystem == nil {
		return nil, &resource.InvalidOptionsError{
			Op:     "createCollectionsForTree",
			Reason: fmt.Sprintf("project %s has no path", n.Name),
		}
	}
	return CreateReader(ReaderParams{AdapterParams: ap})
}
