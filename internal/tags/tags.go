// Package tags keeps primitive metadata about resources in a side table
// keyed by virtual path.
//
// Tags are bound to the path a resource had when the tag was set, not to
// the resource value: a resource replaced by another one at the same path
// inherits the tags, and a renamed resource loses them.
package tags

import (
	"fmt"
	"slices"

	"github.com/agentic-research/resfs/internal/resource"
)

// Standard tags understood by the build.
const (
	OmitFromBuildResult = "OmitFromBuildResult"
	IsBundle            = "IsBundle"
	IsDebugVariant      = "IsDebugVariant"
	HasDebugVariant     = "HasDebugVariant"
)

// StandardTags lists the tags every collection accepts.
var StandardTags = []string{OmitFromBuildResult, IsBundle, IsDebugVariant, HasDebugVariant}

// Value is a tag value: a bool, a string, an int64 or a float64.
type Value any

// Backend stores tag values.
type Backend interface {
	Set(path, tag string, v Value) error
	Clear(path, tag string) error
	Get(path, tag string) (Value, bool, error)
	// Paths lists the paths that carry tag.
	Paths(tag string) ([]string, error)
}

// Option configures a Collection.
type Option func(*Collection)

// WithAllowedTags accepts tags beyond the standard set.
func WithAllowedTags(tags ...string) Option {
	return func(c *Collection) {
		c.allowed = append(c.allowed, tags...)
	}
}

// WithBackend replaces the in-memory store.
func WithBackend(b Backend) Option {
	return func(c *Collection) {
		c.backend = b
	}
}

// Collection validates tag operations against an allow-list and hands them
// to a backend.
type Collection struct {
	allowed []string
	backend Backend
}

// NewCollection creates a collection accepting the standard tags.
func NewCollection(opts ...Option) *Collection {
	c := &Collection{allowed: slices.Clone(StandardTags)}
	for _, opt := range opts {
		opt(c)
	}
	if c.backend == nil {
		c.backend = NewMemoryBackend()
	}
	return c
}

// AllowedTags returns the accepted tag names.
func (c *Collection) AllowedTags() []string {
	return slices.Clone(c.allowed)
}

// SetTag sets tag on the current path of r. Without a value the tag is set to
// true.
func (c *Collection) SetTag(r *resource.Resource, tag string, value ...Value) error {
	if err := c.checkTag("setTag", tag); err != nil {
		return err
	}
	var v Value = true
	switch len(value) {
	case 0:
	case 1:
		nv, err := normalize(value[0])
		if err != nil {
			return err
		}
		v = nv
	default:
		return &resource.InvalidOptionsError{Op: "setTag", Reason: "at most one value"}
	}
	return c.backend.Set(r.Path(), tag, v)
}

// ClearTag removes tag from the current path of r.
func (c *Collection) ClearTag(r *resource.Resource, tag string) error {
	if err := c.checkTag("clearTag", tag); err != nil {
		return err
	}
	return c.backend.Clear(r.Path(), tag)
}

// GetTag returns the value of tag at the current path of r. ok is false when
// the tag is absent.
func (c *Collection) GetTag(r *resource.Resource, tag string) (v Value, ok bool, err error) {
	if err := c.checkTag("getTag", tag); err != nil {
		return nil, false, err
	}
	return c.backend.Get(r.Path(), tag)
}

// IsSet reports whether tag is present and not false.
func (c *Collection) IsSet(r *resource.Resource, tag string) (bool, error) {
	v, ok, err := c.GetTag(r, tag)
	if err != nil || !ok {
		return false, err
	}
	b, isBool := v.(bool)
	return !isBool || b, nil
}

// PathsWithTag lists every path carrying tag, in order.
func (c *Collection) PathsWithTag(tag string) ([]string, error) {
	if err := c.checkTag("pathsWithTag", tag); err != nil {
		return nil, err
	}
	return c.backend.Paths(tag)
}

func (c *Collection) checkTag(op, tag string) error {
	if !slices.Contains(c.allowed, tag) {
		return &resource.InvalidOptionsError{
			Op:     op,
			Reason: fmt.Sprintf("tag %q is not allowed", tag),
			Err:    resource.ErrUnknownTag,
		}
	}
	return nil
}

// normalize accepts primitive values only and widens integers to int64 so
// values read back from any backend compare equal.
func normalize(v Value) (Value, error) {
	switch x := v.(type) {
	case bool, string, int64, float64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	}
	return nil, &resource.InvalidOptionsError{
		Op:     "setTag",
		Reason: fmt.Sprintf("tag value of type %T is not a primitive", v),
	}
}
