// Package resource defines the content-bearing entity of the virtual
// resource layer and the reader/writer capabilities that locate and store it.
package resource

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"
)

// StreamFunc lazily produces a content stream. It is only invoked when the
// content is requested.
type StreamFunc func() (io.ReadCloser, error)

type contentState uint8

const (
	contentEmpty contentState = iota
	contentBuffered
	contentStreamed
)

// Options configure a new Resource. At most one of Buffer, Text, Stream and
// StreamFunc may be set.
type Options struct {
	Path       string
	Stat       fs.FileInfo
	Buffer     []byte
	Text       *string
	Stream     io.Reader
	StreamFunc StreamFunc
	// Project is an opaque handle; the resource layer never looks into it.
	Project any
}

// Resource is a single addressable piece of content identified by a virtual
// path.
//
// Content is held in exactly one form at a time. A stream handed out by
// Stream can be consumed once; any further raw read fails until new content
// is set.
type Resource struct {
	mu sync.Mutex

	path        string
	stat        fs.FileInfo
	project     any
	collections []string

	state   contentState
	buffer  []byte
	stream  io.Reader
	open    StreamFunc
	drained bool
}

// New creates a resource from opts.
func New(opts Options) (*Resource, error) {
	if err := ValidatePath(opts.Path); err != nil {
		return nil, err
	}
	forms := 0
	for _, set := range []bool{opts.Buffer != nil, opts.Text != nil, opts.Stream != nil, opts.StreamFunc != nil} {
		if set {
			forms++
		}
	}
	if forms > 1 {
		return nil, &ContentStateError{Path: opts.Path, Op: "create", Err: ErrConflictingContent}
	}

	r := &Resource{path: opts.Path, project: opts.Project}
	switch {
	case opts.Buffer != nil:
		r.setBuffer(opts.Buffer)
	case opts.Text != nil:
		r.setBuffer([]byte(*opts.Text))
	case opts.Stream != nil:
		r.setStream(opts.Stream, nil)
	case opts.StreamFunc != nil:
		r.setStream(nil, opts.StreamFunc)
	}

	r.stat = opts.Stat
	if r.stat == nil {
		r.stat = &FileInfo{
			FileName:    path.Base(opts.Path),
			FileSize:    int64(len(r.buffer)),
			FileMode:    0o644,
			FileModTime: time.Now(),
		}
	}
	return r, nil
}

// NewString is a shorthand for a buffered resource.
func NewString(p, content string) (*Resource, error) {
	return New(Options{Path: p, Text: &content})
}

// ValidatePath checks that p is a clean, absolute POSIX path free of host
// separators.
func ValidatePath(p string) error {
	switch {
	case !strings.HasPrefix(p, "/"):
		return fmt.Errorf("%w %q: must start with /", ErrInvalidPath, p)
	case strings.ContainsRune(p, '\\'):
		return fmt.Errorf("%w %q: contains a host separator", ErrInvalidPath, p)
	case path.Clean(p) != p:
		return fmt.Errorf("%w %q: not clean", ErrInvalidPath, p)
	}
	return nil
}

// Path returns the virtual path.
func (r *Resource) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// SetPath renames the resource. Cached content and path-keyed metadata stay
// where they are.
func (r *Resource) SetPath(p string) error {
	if err := ValidatePath(p); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.path = p
	return nil
}

// Name returns the last element of the virtual path.
func (r *Resource) Name() string {
	return path.Base(r.Path())
}

// StatInfo returns the stat information captured at creation. It is not
// updated when the content changes.
func (r *Resource) StatInfo() fs.FileInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stat
}

// IsDir reports whether the resource denotes a directory.
func (r *Resource) IsDir() bool {
	st := r.StatInfo()
	return st != nil && st.IsDir()
}

// Project returns the opaque project handle.
func (r *Resource) Project() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.project
}

// SetProject attaches an opaque project handle.
func (r *Resource) SetProject(p any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.project = p
}

// Buffer returns the content, reading and caching a stream if that is the
// current form. The returned slice must not be modified.
func (r *Resource) Buffer() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.materialize("buffer")
}

// Text returns the content as a string.
func (r *Resource) Text() (string, error) {
	b, err := r.Buffer()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SetBuffer replaces the content with b.
func (r *Resource) SetBuffer(b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setBuffer(b)
}

// SetText replaces the content with s.
func (r *Resource) SetText(s string) {
	r.SetBuffer([]byte(s))
}

// SetStream replaces the content with a stream. The stream is read at most
// once.
func (r *Resource) SetStream(s io.Reader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setStream(s, nil)
}

// SetStreamFunc replaces the content with a lazily created stream.
func (r *Resource) SetStreamFunc(fn StreamFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setStream(nil, fn)
}

// Stream returns a reader over the content. Calling it again without setting
// new content in between fails with a ContentStateError.
func (r *Resource) Stream() (io.ReadCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.drained {
		return nil, r.stateErr("stream", ErrContentDrained)
	}
	var rc io.ReadCloser
	switch r.state {
	case contentEmpty:
		return nil, r.stateErr("stream", ErrNoContent)
	case contentBuffered:
		rc = io.NopCloser(bytes.NewReader(r.buffer))
	default:
		var err error
		if rc, err = r.openStream(); err != nil {
			return nil, err
		}
	}
	r.drained = true
	return rc, nil
}

// Size returns the byte length of the content, 0 when there is none.
func (r *Resource) Size() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == contentEmpty && !r.drained {
		return 0, nil
	}
	b, err := r.materialize("size")
	if err != nil {
		return 0, err
	}
	return int64(len(b)), nil
}

// BufferedSize returns the content length if the content is held in memory.
// ok is false for empty and for not yet read streamed content.
func (r *Resource) BufferedSize() (n int64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != contentBuffered {
		return 0, false
	}
	return int64(len(r.buffer)), true
}

// HasContent reports whether any content is set.
func (r *Resource) HasContent() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state != contentEmpty
}

// DrainBuffer hands the content over as a byte slice and leaves the resource
// empty.
func (r *Resource) DrainBuffer() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.materialize("drain")
	if err != nil {
		return nil, err
	}
	r.reset()
	return b, nil
}

// DrainStream hands the content over as a stream and leaves the resource
// empty. The caller owns and must close the stream.
func (r *Resource) DrainStream() (io.ReadCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.drained {
		return nil, r.stateErr("drain", ErrContentDrained)
	}
	var rc io.ReadCloser
	switch r.state {
	case contentEmpty:
		return nil, r.stateErr("drain", ErrNoContent)
	case contentBuffered:
		rc = io.NopCloser(bytes.NewReader(r.buffer))
	default:
		var err error
		if rc, err = r.openStream(); err != nil {
			return nil, err
		}
	}
	r.reset()
	return rc, nil
}

// PushCollection records a collection that took part in locating the
// resource.
func (r *Resource) PushCollection(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections = append(r.collections, name)
}

// Collections returns the provenance in the order names were pushed.
func (r *Resource) Collections() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.collections))
	copy(out, r.collections)
	return out
}

// PathTree is a nested trace of how a resource was located.
type PathTree map[string]PathTree

// PathTree returns the path as root with the provenance nested beneath it,
// most recent collection first.
func (r *Resource) PathTree() PathTree {
	r.mu.Lock()
	defer r.mu.Unlock()

	node := PathTree{}
	tree := PathTree{r.path: node}
	for i := len(r.collections) - 1; i >= 0; i-- {
		next := PathTree{}
		node[r.collections[i]] = next
		node = next
	}
	return tree
}

// Clone returns a resource with an independent copy of the content. A
// streamed original is read into a buffer first and keeps that buffer.
// Provenance is not copied.
func (r *Resource) Clone() (*Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &Resource{path: r.path, stat: r.stat, project: r.project}
	if r.state == contentEmpty && !r.drained {
		return c, nil
	}
	b, err := r.materialize("clone")
	if err != nil {
		return nil, err
	}
	c.setBuffer(bytes.Clone(b))
	return c, nil
}

// Shared returns a resource that aliases the original's buffer instead of
// copying it. Used by writers honouring a read-only write; neither side may
// modify the buffer afterwards.
func (r *Resource) Shared() (*Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &Resource{path: r.path, stat: r.stat, project: r.project}
	if r.state == contentEmpty && !r.drained {
		return c, nil
	}
	b, err := r.materialize("share")
	if err != nil {
		return nil, err
	}
	c.setBuffer(b)
	return c, nil
}

func (r *Resource) setBuffer(b []byte) {
	r.state = contentBuffered
	r.buffer = b
	r.stream = nil
	r.open = nil
	r.drained = false
}

func (r *Resource) setStream(s io.Reader, fn StreamFunc) {
	r.state = contentStreamed
	r.buffer = nil
	r.stream = s
	r.open = fn
	r.drained = false
}

func (r *Resource) reset() {
	r.state = contentEmpty
	r.buffer = nil
	r.stream = nil
	r.open = nil
	r.drained = false
}

// materialize must be called with r.mu held.
func (r *Resource) materialize(op string) ([]byte, error) {
	if r.drained {
		return nil, r.stateErr(op, ErrContentDrained)
	}
	switch r.state {
	case contentEmpty:
		return nil, r.stateErr(op, ErrNoContent)
	case contentBuffered:
		return r.buffer, nil
	}

	rc, err := r.openStream()
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(rc)
	closeErr := rc.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		if r.open == nil {
			// A plain stream is gone once read from.
			r.drained = true
		}
		return nil, fmt.Errorf("read content of %s: %w", r.path, err)
	}
	r.setBuffer(data)
	return data, nil
}

// openStream must be called with r.mu held.
func (r *Resource) openStream() (io.ReadCloser, error) {
	if r.open != nil {
		rc, err := r.open()
		if err != nil {
			return nil, fmt.Errorf("open content of %s: %w", r.path, err)
		}
		return rc, nil
	}
	if rc, ok := r.stream.(io.ReadCloser); ok {
		return rc, nil
	}
	return io.NopCloser(r.stream), nil
}

func (r *Resource) stateErr(op string, err error) error {
	return &ContentStateError{Path: r.path, Op: op, Err: err}
}

// FileInfo is the stat information of resources that do not come from a
// physical file.
type FileInfo struct {
	FileName    string
	FileSize    int64
	FileMode    fs.FileMode
	FileModTime time.Time
}

func (fi *FileInfo) Name() string       { return fi.FileName }
func (fi *FileInfo) Size() int64        { return fi.FileSize }
func (fi *FileInfo) Mode() fs.FileMode  { return fi.FileMode }
func (fi *FileInfo) ModTime() time.Time { return fi.FileModTime }
func (fi *FileInfo) IsDir() bool        { return fi.FileMode.IsDir() }
func (fi *FileInfo) Sys() any           { return nil }

var _ fs.FileInfo = (*FileInfo)(nil)
