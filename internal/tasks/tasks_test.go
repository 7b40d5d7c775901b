package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/resfs/internal/adapter"
	"github.com/agentic-research/resfs/internal/build"
	"github.com/agentic-research/resfs/internal/collection"
	"github.com/agentic-research/resfs/internal/resource"
	"github.com/agentic-research/resfs/internal/tags"
)

func TestFormatGoBuffer_FormatsGo(t *testing.T) {
	input := []byte("package main\n\nfunc A()  {\nreturn\n}\n")
	got := FormatGoBuffer(input)
	assert.Equal(t, "package main\n\nfunc A() {\n\treturn\n}\n", string(got))
}

func TestFormatGoBuffer_InvalidGoPassthrough(t *testing.T) {
	input := []byte("func broken {{{")
	assert.Equal(t, input, FormatGoBuffer(input))
}

func newWorkspace(t *testing.T, files map[string]string) (*collection.Duplex, *adapter.Memory) {
	t.Helper()
	src, err := adapter.NewMemory(adapter.Params{Name: "src"})
	require.NoError(t, err)
	for p, c := range files {
		r, err := resource.NewString(p, c)
		require.NoError(t, err)
		require.NoError(t, src.Write(context.Background(), r, resource.WriteOptions{}))
	}
	overlay, err := adapter.NewMemory(adapter.Params{Name: "overlay"})
	require.NoError(t, err)
	ws, err := collection.NewDuplex(collection.DuplexParams{Name: "ws", Reader: src, Writer: overlay})
	require.NoError(t, err)
	return ws, overlay
}

func TestFormatGo_WritesOnlyChangedFiles(t *testing.T) {
	ws, overlay := newWorkspace(t, map[string]string{
		"/main.go":   "package main\n\nfunc A()  {\nreturn\n}\n",
		"/clean.go":  "package main\n",
		"/README.md": "# readme\n",
	})

	err := FormatGo().Run(context.Background(), build.TaskParams{Workspace: ws, TaskUtil: build.NewTaskUtil(nil, "app")})
	require.NoError(t, err)
	assert.Equal(t, []string{"/main.go"}, overlay.Paths())

	r, err := ws.ByPath(context.Background(), "/main.go", resource.GlobOptions{})
	require.NoError(t, err)
	s, err := r.Text()
	require.NoError(t, err)
	assert.Equal(t, "package main\n\nfunc A() {\n\treturn\n}\n", s)
}

func TestOmitFromResult_Tags(t *testing.T) {
	ws, _ := newWorkspace(t, map[string]string{"/a.js": "a", "/a.test.js": "t"})
	tc := tags.NewCollection()
	util := build.NewTaskUtil(tc, "app")

	err := OmitFromResult("/**/*.test.js").Run(context.Background(), build.TaskParams{Workspace: ws, TaskUtil: util})
	require.NoError(t, err)

	paths, err := tc.PathsWithTag(tags.OmitFromBuildResult)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a.test.js"}, paths)
}
