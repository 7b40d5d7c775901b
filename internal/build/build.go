// Package build runs build tasks against a project workspace and writes the
// result to a destination.
//
// Scheduling, caching and task discovery are out of scope: tasks run in the
// order given, each receiving the workspace, the dependency reader and a
// TaskUtil.
package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/agentic-research/resfs/internal/collection"
	"github.com/agentic-research/resfs/internal/resource"
	"github.com/agentic-research/resfs/internal/tags"
)

// TaskOptions describe the project a task runs for.
type TaskOptions struct {
	ProjectName      string
	ProjectNamespace string
	Configuration    any
}

// TaskParams are handed to every task.
type TaskParams struct {
	Workspace    *collection.Duplex
	Dependencies resource.Reader
	Options      TaskOptions
	TaskUtil     *TaskUtil
}

// TaskFunc is a build step.
type TaskFunc func(ctx context.Context, p TaskParams) error

// Task is a named build step.
type Task struct {
	Name string
	Run  TaskFunc
}

// CleanupFunc runs after the build, also when it failed.
type CleanupFunc func(ctx context.Context) error

// TaskUtil exposes build-wide services to tasks.
type TaskUtil struct {
	tags        *tags.Collection
	rootProject string

	mu      sync.Mutex
	cleanup []CleanupFunc
}

// NewTaskUtil creates a TaskUtil for a build of rootProject.
func NewTaskUtil(tc *tags.Collection, rootProject string) *TaskUtil {
	if tc == nil {
		tc = tags.NewCollection()
	}
	return &TaskUtil{tags: tc, rootProject: rootProject}
}

func (u *TaskUtil) SetTag(r *resource.Resource, tag string, value ...tags.Value) error {
	return u.tags.SetTag(r, tag, value...)
}

func (u *TaskUtil) ClearTag(r *resource.Resource, tag string) error {
	return u.tags.ClearTag(r, tag)
}

func (u *TaskUtil) GetTag(r *resource.Resource, tag string) (tags.Value, bool, error) {
	return u.tags.GetTag(r, tag)
}

// StandardTags returns the tag names every build understands.
func (u *TaskUtil) StandardTags() []string {
	return slices.Clone(tags.StandardTags)
}

// IsRootProject reports whether name is the project being built.
func (u *TaskUtil) IsRootProject(name string) bool {
	return name == u.rootProject
}

// RegisterCleanupTask schedules fn to run once the build finished.
func (u *TaskUtil) RegisterCleanupTask(fn CleanupFunc) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.cleanup = append(u.cleanup, fn)
}

// RunCleanup runs the registered cleanup tasks in reverse order of
// registration. All of them run; their errors are joined.
func (u *TaskUtil) RunCleanup(ctx context.Context) error {
	u.mu.Lock()
	fns := u.cleanup
	u.cleanup = nil
	u.mu.Unlock()

	var errs []error
	for i := len(fns) - 1; i >= 0; i-- {
		if err := fns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunParams configure Run.
type RunParams struct {
	Workspace    *collection.Duplex
	Dependencies resource.Reader
	// Destination receives every resource of the workspace that is not tagged
	// OmitFromBuildResult.
	Destination resource.Writer
	Tasks       []Task
	Options     TaskOptions
	// Tags defaults to an in-memory collection.
	Tags   *tags.Collection
	Logger *slog.Logger
}

// Result summarises a build.
type Result struct {
	Written []string
	Omitted []string
}

// Run executes the tasks in order and writes the build result. Cleanup tasks
// always run.
func Run(ctx context.Context, p RunParams) (res *Result, err error) {
	if p.Workspace == nil || p.Destination == nil {
		return nil, &resource.InvalidOptionsError{Op: "build", Reason: "workspace and destination are required"}
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	util := NewTaskUtil(p.Tags, p.Options.ProjectName)
	defer func() {
		if cerr := util.RunCleanup(context.WithoutCancel(ctx)); cerr != nil {
			err = errors.Join(err, fmt.Errorf("cleanup: %w", cerr))
		}
	}()

	params := TaskParams{
		Workspace:    p.Workspace,
		Dependencies: p.Dependencies,
		Options:      p.Options,
		TaskUtil:     util,
	}
	for _, t := range p.Tasks {
		start := time.Now()
		logger.Info("running task", "task", t.Name, "project", p.Options.ProjectName)
		if err := t.Run(ctx, params); err != nil {
			return nil, fmt.Errorf("task %s: %w", t.Name, err)
		}
		logger.Debug("task done", "task", t.Name, "elapsed", time.Since(start))
	}

	rs, err := p.Workspace.ByGlob(ctx, []string{"/**"}, resource.GlobOptions{})
	if err != nil {
		return nil, fmt.Errorf("collect build result: %w", err)
	}
	res = &Result{}
	for _, r := range rs {
		omit, err := util.tags.IsSet(r, tags.OmitFromBuildResult)
		if err != nil {
			return nil, err
		}
		if omit {
			res.Omitted = append(res.Omitted, r.Path())
			continue
		}
		if err := p.Destination.Write(ctx, r, resource.WriteOptions{Drain: true}); err != nil {
			return nil, fmt.Errorf("write build result: %w", err)
		}
		res.Written = append(res.Written, r.Path())
	}
	logger.Info("build finished", "project", p.Options.ProjectName, "written", len(res.Written), "omitted", len(res.Omitted))
	return res, nil
}
