// Package nfsmount serves a resource reader as an NFS export. ReaderFS
// adapts resource.Reader to billy.Filesystem for use with willscott/go-nfs.
package nfsmount

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/agentic-research/resfs/internal/resource"
)

var errReadOnly = errors.New("read-only filesystem")

// ReaderFS exposes a resource.Reader as a billy.Filesystem. Directories are
// derived from resource paths. With a writer set, files written through the
// filesystem are stored as resources when they are closed.
type ReaderFS struct {
	ctx       context.Context
	reader    resource.Reader
	writer    resource.Writer
	mountTime time.Time
}

// NewReaderFS creates a read-only view of r. ctx bounds every lookup.
func NewReaderFS(ctx context.Context, r resource.Reader) *ReaderFS {
	return &ReaderFS{ctx: ctx, reader: r, mountTime: time.Now()}
}

// SetWriter enables write support. Closed files are written to w.
func (fs *ReaderFS) SetWriter(w resource.Writer) {
	fs.writer = w
}

// --- billy.Basic ---

// Create starts a new file. Its content is stored when it is closed.
func (fs *ReaderFS) Create(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
}

func (fs *ReaderFS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *ReaderFS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	filename = cleanPath(filename)

	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0 {
		if fs.writer == nil {
			return nil, errReadOnly
		}
		return fs.openWritable(filename, flag)
	}

	r, err := fs.reader.ByPath(fs.ctx, filename, resource.GlobOptions{})
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: err}
	}
	if r == nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}
	return &resourceFile{name: filename, res: r}, nil
}

// openWritable returns a file buffering writes until Close.
func (fs *ReaderFS) openWritable(filename string, flag int) (billy.File, error) {
	r, err := fs.reader.ByPath(fs.ctx, filename, resource.GlobOptions{Dirs: true})
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: err}
	}
	if r != nil && r.IsDir() {
		return nil, &os.PathError{Op: "open", Path: filename, Err: fmt.Errorf("is a directory")}
	}
	if r == nil && flag&os.O_CREATE == 0 {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}

	f := &writeFile{ctx: fs.ctx, name: filename, writer: fs.writer}
	if r != nil && flag&os.O_TRUNC == 0 {
		f.prev = r
	}
	return f, nil
}

func (fs *ReaderFS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

func (fs *ReaderFS) Rename(oldpath, newpath string) error {
	return errReadOnly
}

func (fs *ReaderFS) Remove(filename string) error {
	return errReadOnly
}

func (fs *ReaderFS) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// --- billy.TempFile ---

func (fs *ReaderFS) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

// ReadDir lists the direct children of dir, including directories that are
// only implied by deeper resource paths.
func (fs *ReaderFS) ReadDir(dir string) ([]os.FileInfo, error) {
	dir = cleanPath(dir)

	if dir != "/" {
		info, err := fs.Lstat(dir)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, &os.PathError{Op: "readdir", Path: dir, Err: fmt.Errorf("not a directory")}
		}
	}

	rs, err := fs.reader.ByGlob(fs.ctx, []string{subtree(dir)}, resource.GlobOptions{Dirs: true})
	if err != nil {
		return nil, &os.PathError{Op: "readdir", Path: dir, Err: err}
	}

	entries := make(map[string]os.FileInfo)
	prefix := strings.TrimSuffix(dir, "/") + "/"
	for _, r := range rs {
		rel := strings.TrimPrefix(r.Path(), prefix)
		if rel == r.Path() || rel == "" {
			continue
		}
		name, deeper, _ := strings.Cut(rel, "/")
		if deeper != "" || r.IsDir() {
			if _, ok := entries[name]; !ok {
				entries[name] = fs.dirInfo(name)
			}
			continue
		}
		entries[name] = resourceInfo(r)
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	infos := make([]os.FileInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, entries[name])
	}
	return infos, nil
}

func (fs *ReaderFS) MkdirAll(filename string, perm os.FileMode) error {
	return errReadOnly
}

// --- billy.Symlink ---

func (fs *ReaderFS) Lstat(filename string) (os.FileInfo, error) {
	filename = cleanPath(filename)

	if filename == "/" {
		return &staticFileInfo{name: "/", mode: os.ModeDir | 0o555, modTime: fs.mountTime}, nil
	}

	r, err := fs.reader.ByPath(fs.ctx, filename, resource.GlobOptions{Dirs: true})
	if err != nil {
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: err}
	}
	if r != nil {
		if r.IsDir() {
			return fs.dirInfo(path.Base(filename)), nil
		}
		return resourceInfo(r), nil
	}

	// Readers that do not report directories still imply them.
	rs, err := fs.reader.ByGlob(fs.ctx, []string{subtree(filename)}, resource.GlobOptions{})
	if err != nil {
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: err}
	}
	if len(rs) > 0 {
		return fs.dirInfo(path.Base(filename)), nil
	}
	return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
}

func (fs *ReaderFS) Symlink(target, link string) error {
	return billy.ErrNotSupported
}

func (fs *ReaderFS) Readlink(link string) (string, error) {
	return "", billy.ErrNotSupported
}

// --- billy.Chroot ---

func (fs *ReaderFS) Chroot(path string) (billy.Filesystem, error) {
	return chroot.New(fs, path), nil
}

func (fs *ReaderFS) Root() string {
	return "/"
}

// --- billy.Capable ---

func (fs *ReaderFS) Capabilities() billy.Capability {
	caps := billy.ReadCapability | billy.SeekCapability
	if fs.writer != nil {
		caps |= billy.WriteCapability
	}
	return caps
}

// --- internals ---

func (fs *ReaderFS) dirInfo(name string) os.FileInfo {
	return &staticFileInfo{name: name, mode: os.ModeDir | 0o555, modTime: fs.mountTime}
}

func subtree(dir string) string {
	return strings.TrimSuffix(dir, "/") + "/**"
}

// cleanPath normalizes a billy path to a clean absolute path.
func cleanPath(p string) string {
	return path.Clean("/" + filepath.ToSlash(p))
}

// resourceInfo never reads content. Buffered content reports its current
// length, which may differ from the size captured when the resource was
// created; anything else reports the stat size.
func resourceInfo(r *resource.Resource) os.FileInfo {
	st := r.StatInfo()
	mode := os.FileMode(0o444)
	modTime := time.Now()
	if st != nil {
		if st.Mode().Perm()&0o200 != 0 {
			mode = 0o644
		}
		if !st.ModTime().IsZero() {
			modTime = st.ModTime()
		}
	}
	size, ok := r.BufferedSize()
	if !ok && st != nil {
		size = st.Size()
	}
	return &staticFileInfo{name: r.Name(), size: size, mode: mode, modTime: modTime}
}

// staticFileInfo implements os.FileInfo with static values.
type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() interface{}   { return nil }

var (
	_ billy.Filesystem = (*ReaderFS)(nil)
	_ billy.Capable    = (*ReaderFS)(nil)
)
