package factory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/resfs/api"
	"github.com/agentic-research/resfs/internal/adapter"
	"github.com/agentic-research/resfs/internal/resource"
)

func text(t *testing.T, r *resource.Resource) string {
	t.Helper()
	require.NotNil(t, r)
	s, err := r.Text()
	require.NoError(t, err)
	return s
}

func TestCreateAdapter_Selects(t *testing.T) {
	a, err := CreateAdapter(AdapterParams{Name: "mem"})
	require.NoError(t, err)
	assert.IsType(t, &adapter.Memory{}, a)

	a, err = CreateAdapter(AdapterParams{Name: "disk", FsBasePath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &adapter.FileSystem{}, a)

	_, err = CreateAdapter(AdapterParams{VirBasePath: "no-slash"})
	var ioe *resource.InvalidOptionsError
	assert.ErrorAs(t, err, &ioe)
}

func TestCreateReader_AppliesFilter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.js"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.js"), []byte("b"), 0o644))

	r, err := CreateReader(ReaderParams{
		AdapterParams: AdapterParams{Name: "app", FsBasePath: dir, VirBasePath: "/app/"},
		Filter:        func(r *resource.Resource) bool { return r.Name() != "b.js" },
	})
	require.NoError(t, err)

	rs, err := r.ByGlob(context.Background(), []string{"/app/*.js"}, resource.GlobOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"/app/a.js"}, resource.Paths(rs))
	assert.Equal(t, []string{"app (adapter)", "app"}, rs[0].Collections())
}

func TestCreateWorkspace_DefaultOverlay(t *testing.T) {
	src, err := CreateAdapter(AdapterParams{Name: "src"})
	require.NoError(t, err)
	a, err := resource.NewString("/a.js", "source")
	require.NoError(t, err)
	require.NoError(t, src.Write(context.Background(), a, resource.WriteOptions{}))

	ws, err := CreateWorkspace(WorkspaceParams{Name: "ws", Reader: src})
	require.NoError(t, err)
	ctx := context.Background()

	r, err := ws.ByPath(ctx, "/a.js", resource.GlobOptions{})
	require.NoError(t, err)
	r.SetText("changed")
	require.NoError(t, ws.Write(ctx, r, resource.WriteOptions{}))

	r, err = ws.ByPath(ctx, "/a.js", resource.GlobOptions{})
	require.NoError(t, err)
	assert.Equal(t, "changed", text(t, r))

	orig, err := src.ByPath(ctx, "/a.js", resource.GlobOptions{})
	require.NoError(t, err)
	assert.Equal(t, "source", text(t, orig))
}

func TestCreateResource(t *testing.T) {
	s := "x"
	r, err := CreateResource(resource.Options{Path: "/x", Text: &s})
	require.NoError(t, err)
	assert.Equal(t, "x", text(t, r))
}

func TestCreateCollectionsForTree(t *testing.T) {
	file := api.TreeFile{
		Root: "app",
		Projects: []api.Project{
			{Name: "app", VirtualPath: "/resources/app/", Dependencies: []string{"lib", "base"}, Excludes: []string{"**/*.map"}},
			{Name: "lib", VirtualPath: "/resources/lib/", Dependencies: []string{"base"}},
			{Name: "base", VirtualPath: "/resources/"},
		},
	}
	tree, err := file.Link()
	require.NoError(t, err)

	disks := map[string]billy.Filesystem{
		"app":  memfs.New(),
		"lib":  memfs.New(),
		"base": memfs.New(),
	}
	put := func(project, p, content string) {
		require.NoError(t, util.WriteFile(disks[project], p, []byte(content), 0o644))
	}
	put("app", "/Component.js", "app component")
	put("app", "/Component.js.map", "{}")
	put("app", "/test.html", "test")
	put("lib", "/library.js", "lib")
	put("base", "/app/Component.js", "shadowed")
	put("base", "/core.js", "core")

	var created []string
	c, err := CreateCollectionsForTree(tree, TreeParams{
		Filesystem: func(n *api.Node) (billy.Filesystem, error) {
			created = append(created, n.Name)
			return disks[n.Name], nil
		},
		GetProjectExcludes: func(n *api.Node) []string {
			if n.Name == "app" {
				return []string{"/resources/app/test.html"}
			}
			return nil
		},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"app", "lib", "base"}, created)
	ctx := context.Background()

	rs, err := c.Source.ByGlob(ctx, []string{"/**"}, resource.GlobOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"/resources/app/Component.js"}, resource.Paths(rs))
	assert.Same(t, tree.Root, rs[0].Project())

	rs, err = c.Dependencies.ByGlob(ctx, []string{"/**/*.js"}, resource.GlobOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"/resources/lib/library.js", "/resources/app/Component.js", "/resources/core.js"}, resource.Paths(rs))

	r, err := c.All.ByPath(ctx, "/resources/app/Component.js", resource.GlobOptions{})
	require.NoError(t, err)
	assert.Equal(t, "app component", text(t, r))

	r, err = c.All.ByPath(ctx, "/resources/core.js", resource.GlobOptions{})
	require.NoError(t, err)
	assert.Equal(t, "core", text(t, r))
}

func TestCreateCollectionsForTree_VirtualPrefix(t *testing.T) {
	file := api.TreeFile{Root: "app", Projects: []api.Project{{Name: "app", VirtualPath: "/app/"}}}
	tree, err := file.Link()
	require.NoError(t, err)

	disk := memfs.New()
	require.NoError(t, util.WriteFile(disk, "/a.js", []byte("a"), 0o644))

	c, err := CreateCollectionsForTree(tree, TreeParams{
		Filesystem:               func(*api.Node) (billy.Filesystem, error) { return disk, nil },
		GetVirtualBasePathPrefix: func(*api.Node) string { return "/test-resources/" },
	})
	require.NoError(t, err)

	r, err := c.All.ByPath(context.Background(), "/test-resources/app/a.js", resource.GlobOptions{})
	require.NoError(t, err)
	assert.Equal(t, "a", text(t, r))
}

func TestCreateCollectionsForTree_NoPath(t *testing.T) {
	file := api.TreeFile{Root: "app", Projects: []api.Project{{Name: "app"}}}
	tree, err := file.Link()
	require.NoError(t, err)

	_, err = CreateCollectionsForTree(tree, TreeParams{})
	var ioe *resource.InvalidOptionsError
	assert.ErrorAs(t, err, &ioe)
}
