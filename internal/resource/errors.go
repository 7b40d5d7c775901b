package resource

import (
	"errors"
	"fmt"
)

var (
	// ErrContentDrained is returned when content is read after its stream was
	// already handed out and no new content has been set since.
	ErrContentDrained = errors.New("content has been drained")

	// ErrNoContent is returned when content is requested from an empty resource.
	ErrNoContent = errors.New("resource has no content")

	// ErrConflictingContent is returned when more than one content form is
	// supplied at construction.
	ErrConflictingContent = errors.New("more than one content form supplied")

	// ErrInvalidPath is returned for virtual paths that are not clean,
	// absolute POSIX paths.
	ErrInvalidPath = errors.New("invalid virtual path")

	// ErrOutsideBasePath is returned when a writer is asked to store a path
	// that does not live under its virtual base path.
	ErrOutsideBasePath = errors.New("path outside virtual base path")

	// ErrUnknownTag is returned for tag names outside the allow-list.
	ErrUnknownTag = errors.New("unknown tag")
)

// ContentStateError reports an operation that is illegal in the resource's
// current content state.
type ContentStateError struct {
	Path string
	Op   string
	Err  error
}

func (e *ContentStateError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ContentStateError) Unwrap() error { return e.Err }

// InvalidOptionsError reports a rejected option combination or argument.
// It is always returned before any I/O happens.
type InvalidOptionsError struct {
	Op     string
	Reason string
	Err    error
}

func (e *InvalidOptionsError) Error() string {
	return fmt.Sprintf("%s: invalid options: %s", e.Op, e.Reason)
}

func (e *InvalidOptionsError) Unwrap() error { return e.Err }

// ExcludedPathError reports a write against a path hidden by an adapter's
// exclude list.
type ExcludedPathError struct {
	Path string
}

func (e *ExcludedPathError) Error() string {
	return fmt.Sprintf("write %s: path is excluded", e.Path)
}
