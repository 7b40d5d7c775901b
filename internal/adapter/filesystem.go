package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/resfs/internal/resource"
)

const (
	fileMode     = 0o644
	readOnlyMode = 0o444
)

// FileSystemParams configure a FileSystem adapter.
type FileSystemParams struct {
	Params
	// FsBasePath is the physical directory mapped to the virtual base path.
	FsBasePath string
	// Filesystem overrides the backing store. Defaults to the OS filesystem
	// rooted at FsBasePath.
	Filesystem billy.Filesystem
}

// FileSystem maps a virtual base path onto a directory of a billy
// filesystem, the physical disk by default. Content is read lazily: the
// backing file is only opened when a consumer asks for the content.
type FileSystem struct {
	base
	fs billy.Filesystem
}

// NewFileSystem creates a FileSystem adapter.
func NewFileSystem(p FileSystemParams) (*FileSystem, error) {
	b, err := newBase(p.Params)
	if err != nil {
		return nil, err
	}
	bfs := p.Filesystem
	if bfs == nil {
		if p.FsBasePath == "" {
			return nil, &resource.InvalidOptionsError{Op: "adapter", Reason: "filesystem adapter needs a physical base path"}
		}
		bfs = osfs.New(p.FsBasePath)
	}
	return &FileSystem{base: b, fs: bfs}, nil
}

// ByGlob implements resource.Reader. Only the static directories of the
// patterns are walked.
func (a *FileSystem) ByGlob(ctx context.Context, patterns []string, opts resource.GlobOptions) ([]*resource.Resource, error) {
	a.trace(ctx)
	set, err := a.compile(patterns)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []*resource.Resource
	for _, root := range a.walkRoots(set) {
		err := util.Walk(a.fs, "/"+root, func(fsPath string, info os.FileInfo, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			virPath := a.virtual(filepath.ToSlash(fsPath))
			if err := resource.ValidatePath(virPath); err != nil {
				a.logger.DebugContext(ctx, "skipping entry", "fsPath", fsPath, "error", err)
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if seen[virPath] || !a.accept(virPath, info.IsDir(), set, opts) {
				return nil
			}
			seen[virPath] = true
			r, err := a.createResource(virPath, fsPath, info)
			if err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", a.virBasePath, err)
		}
	}

	out = append(out, a.ancestorDirs(set, opts)...)
	resource.SortByPath(out)
	a.finish(out...)
	return out, nil
}

// ByPath implements resource.Reader.
func (a *FileSystem) ByPath(ctx context.Context, p string, opts resource.GlobOptions) (*resource.Resource, error) {
	a.trace(ctx)
	if a.excluded(p) {
		return nil, nil
	}
	rel, ok := a.relative(p)
	if !ok {
		return nil, nil
	}
	fsPath := "/" + rel
	info, err := a.fs.Stat(fsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}
	if info.IsDir() && !opts.Dirs {
		return nil, nil
	}
	r, err := a.createResource(p, fsPath, info)
	if err != nil {
		return nil, err
	}
	a.finish(r)
	return r, nil
}

// Write implements resource.Writer. Content goes to a temporary file that is
// renamed over the target, so writing a resource back onto the file it was
// streamed from is safe.
func (a *FileSystem) Write(_ context.Context, r *resource.Resource, opts resource.WriteOptions) error {
	rel, err := a.checkWrite(r, opts)
	if err != nil {
		return err
	}
	fsPath := "/" + rel
	dir := path.Dir(fsPath)
	if err := a.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write %s: %w", r.Path(), err)
	}

	var src io.ReadCloser
	if opts.Drain {
		src, err = r.DrainStream()
	} else {
		var b []byte
		if b, err = r.Buffer(); err == nil {
			src = io.NopCloser(bytes.NewReader(b))
		}
	}
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	tmp, err := a.fs.TempFile(dir, ".resfs-")
	if err != nil {
		return fmt.Errorf("write %s: %w", r.Path(), err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = a.fs.Remove(tmpName)
		return fmt.Errorf("write %s: %w", r.Path(), err)
	}
	if err := tmp.Close(); err != nil {
		_ = a.fs.Remove(tmpName)
		return fmt.Errorf("write %s: %w", r.Path(), err)
	}

	// A previous read-only write leaves a file we may not be able to replace.
	if info, err := a.fs.Stat(fsPath); err == nil && info.Mode().Perm()&0o200 == 0 {
		_ = a.fs.Remove(fsPath)
	}
	if err := a.fs.Rename(tmpName, fsPath); err != nil {
		_ = a.fs.Remove(tmpName)
		return fmt.Errorf("write %s: %w", r.Path(), err)
	}

	// Temporary files are created 0600.
	mode := os.FileMode(fileMode)
	if opts.ReadOnly {
		mode = readOnlyMode
	}
	if ch, ok := a.fs.(billy.Chmod); ok {
		if err := ch.Chmod(fsPath, mode); err != nil {
			return fmt.Errorf("write %s: %w", r.Path(), err)
		}
	}
	if opts.ReadOnly {
		// The written file becomes the source of the resource's content.
		r.SetStreamFunc(a.opener(fsPath))
	}
	return nil
}

func (a *FileSystem) createResource(virPath, fsPath string, info os.FileInfo) (*resource.Resource, error) {
	opts := resource.Options{Path: virPath, Stat: info, Project: a.project}
	if !info.IsDir() {
		opts.StreamFunc = a.opener(fsPath)
	}
	return resource.New(opts)
}

func (a *FileSystem) opener(fsPath string) resource.StreamFunc {
	return func() (io.ReadCloser, error) {
		return a.fs.Open(fsPath)
	}
}

var _ resource.ReaderWriter = (*FileSystem)(nil)
