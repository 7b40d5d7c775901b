// Package tasks holds build tasks shipped with resfs.
package tasks

import (
	"context"
	"fmt"

	"mvdan.cc/gofumpt/format"

	"github.com/agentic-research/resfs/internal/build"
	"github.com/agentic-research/resfs/internal/resource"
	"github.com/agentic-research/resfs/internal/tags"
)

// FormatGoBuffer formats Go source with gofumpt. Unparseable input is
// returned unchanged.
func FormatGoBuffer(content []byte) []byte {
	formatted, err := format.Source(content, format.Options{})
	if err != nil {
		return content
	}
	return formatted
}

// FormatGo rewrites every Go file of the project through gofumpt. Files that
// do not parse are left alone.
func FormatGo() build.Task {
	return build.Task{Name: "formatGo", Run: func(ctx context.Context, p build.TaskParams) error {
		rs, err := p.Workspace.ByGlob(ctx, []string{"/**/*.go"}, resource.GlobOptions{})
		if err != nil {
			return err
		}
		for _, r := range rs {
			src, err := r.Buffer()
			if err != nil {
				return err
			}
			out := FormatGoBuffer(src)
			if string(out) == string(src) {
				continue
			}
			r.SetBuffer(out)
			if err := p.Workspace.Write(ctx, r, resource.WriteOptions{}); err != nil {
				return fmt.Errorf("format %s: %w", r.Path(), err)
			}
		}
		return nil
	}}
}

// OmitFromResult tags every resource matched by patterns so that it is not
// written to the build destination.
func OmitFromResult(patterns ...string) build.Task {
	return build.Task{Name: "omitFromResult", Run: func(ctx context.Context, p build.TaskParams) error {
		if len(patterns) == 0 {
			return nil
		}
		rs, err := p.Workspace.ByGlob(ctx, patterns, resource.GlobOptions{})
		if err != nil {
			return err
		}
		for _, r := range rs {
			if err := p.TaskUtil.SetTag(r, tags.OmitFromBuildResult); err != nil {
				return err
			}
		}
		return nil
	}}
}
