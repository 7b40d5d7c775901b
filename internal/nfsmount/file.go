package nfsmount

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	billy "github.com/go-git/go-billy/v5"

	"github.com/agentic-research/resfs/internal/resource"
)

var errNegativeOffset = errors.New("negative offset")

// seek computes a new offset; end is only evaluated for io.SeekEnd.
func seek(pos, offset int64, whence int, end func() (int64, error)) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += pos
	case io.SeekEnd:
		size, err := end()
		if err != nil {
			return pos, err
		}
		offset += size
	default:
		return pos, fmt.Errorf("invalid whence %d", whence)
	}
	if offset < 0 {
		return pos, errNegativeOffset
	}
	return offset, nil
}

func readAt(data, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errNegativeOffset
	}
	if off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// resourceFile is a read-only view of a resource. The content is fetched on
// the first read, so opening a file is as cheap as a lookup.
type resourceFile struct {
	name string
	res  *resource.Resource

	mu   sync.Mutex
	data []byte
	read bool
	pos  int64
}

func (f *resourceFile) Name() string { return f.name }

// content must be called with f.mu held.
func (f *resourceFile) content() ([]byte, error) {
	if !f.read {
		b, err := f.res.Buffer()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.name, err)
		}
		f.data, f.read = b, true
	}
	return f.data, nil
}

func (f *resourceFile) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.content()
	if err != nil {
		return 0, err
	}
	return readAt(data, p, off)
}

func (f *resourceFile) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.content()
	if err != nil {
		return 0, err
	}
	n, err := readAt(data, p, f.pos)
	f.pos += int64(n)
	return n, err
}

func (f *resourceFile) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pos, err := seek(f.pos, offset, whence, func() (int64, error) {
		data, err := f.content()
		return int64(len(data)), err
	})
	f.pos = pos
	return pos, err
}

func (f *resourceFile) Write([]byte) (int, error) { return 0, errReadOnly }
func (f *resourceFile) Truncate(int64) error      { return errReadOnly }
func (f *resourceFile) Lock() error               { return nil }
func (f *resourceFile) Unlock() error             { return nil }
func (f *resourceFile) Close() error              { return nil }

// writeFile collects the WRITE calls of one open file and writes the result
// as a resource on Close. The previous content, if kept, is only read once
// the file is touched.
type writeFile struct {
	ctx    context.Context
	name   string
	writer resource.Writer
	prev   *resource.Resource // nil for new or truncated files

	buf     []byte
	loaded  bool
	pos     int64
	written bool
}

func (f *writeFile) Name() string { return f.name }

func (f *writeFile) load() error {
	if f.loaded {
		return nil
	}
	f.loaded = true
	if f.prev == nil {
		return nil
	}
	b, err := f.prev.Buffer()
	if err != nil {
		return fmt.Errorf("read %s: %w", f.name, err)
	}
	f.buf = append([]byte(nil), b...)
	return nil
}

func (f *writeFile) Read(p []byte) (int, error) {
	if err := f.load(); err != nil {
		return 0, err
	}
	n, err := readAt(f.buf, p, f.pos)
	f.pos += int64(n)
	return n, err
}

func (f *writeFile) ReadAt(p []byte, off int64) (int, error) {
	if err := f.load(); err != nil {
		return 0, err
	}
	return readAt(f.buf, p, off)
}

func (f *writeFile) Write(p []byte) (int, error) {
	if err := f.load(); err != nil {
		return 0, err
	}
	if end := f.pos + int64(len(p)); end > int64(len(f.buf)) {
		f.buf = append(f.buf, make([]byte, end-int64(len(f.buf)))...)
	}
	n := copy(f.buf[f.pos:], p)
	f.pos += int64(n)
	f.written = true
	return n, nil
}

func (f *writeFile) Seek(offset int64, whence int) (int64, error) {
	pos, err := seek(f.pos, offset, whence, func() (int64, error) {
		err := f.load()
		return int64(len(f.buf)), err
	})
	f.pos = pos
	return pos, err
}

// Truncate alone does not mark the file written: NFS truncates and closes
// before the first WRITE of an overwrite.
func (f *writeFile) Truncate(size int64) error {
	if size < 0 {
		return errNegativeOffset
	}
	if err := f.load(); err != nil {
		return err
	}
	if size <= int64(len(f.buf)) {
		f.buf = f.buf[:size]
	} else {
		f.buf = append(f.buf, make([]byte, size-int64(len(f.buf)))...)
	}
	return nil
}

// Close writes the content if Write was called.
func (f *writeFile) Close() error {
	if !f.written {
		return nil
	}
	opts := resource.Options{Path: f.name, Buffer: f.buf}
	if f.prev != nil {
		opts.Project = f.prev.Project()
	}
	r, err := resource.New(opts)
	if err != nil {
		return err
	}
	if err := f.writer.Write(f.ctx, r, resource.WriteOptions{Drain: true}); err != nil {
		return fmt.Errorf("write %s: %w", f.name, err)
	}
	f.written = false
	return nil
}

func (f *writeFile) Lock() error   { return nil }
func (f *writeFile) Unlock() error { return nil }

var (
	_ billy.File = (*resourceFile)(nil)
	_ billy.File = (*writeFile)(nil)
)
