package api

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const treeHCL = `
root = "my.app"

project "my.app" {
  path         = "webapp"
  virtual_path = "/resources/my/app/"
  namespace    = "my/app"
  dependencies = ["my.lib", "third.party"]
  excludes     = ["**/*.map"]
  configuration = {
    minify = "true"
  }
}

project "my.lib" {
  path         = "/abs/lib"
  dependencies = ["third.party"]
}

project "third.party" {
  path = "vendor/third"
}
`

func writeTree(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadTree_HCL(t *testing.T) {
	file := writeTree(t, "resfs.hcl", treeHCL)

	tree, err := LoadTree(file)
	require.NoError(t, err)

	root := tree.Root
	assert.Equal(t, "my.app", root.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(file), "webapp"), root.Path)
	assert.Equal(t, "/resources/my/app/", root.VirtualPath)
	assert.Equal(t, "my/app", root.Namespace)
	assert.Equal(t, []string{"**/*.map"}, root.Excludes)
	assert.Equal(t, map[string]string{"minify": "true"}, root.Configuration)
	require.Len(t, root.Dependencies, 2)

	lib, ok := tree.Project("my.lib")
	require.True(t, ok)
	assert.Equal(t, "/abs/lib", lib.Path)
	assert.Equal(t, "/", lib.VirtualPath)

	var names []string
	for _, n := range tree.TransitiveDependencies() {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"my.lib", "third.party"}, names)
}

func TestLoadTree_JSON(t *testing.T) {
	file := writeTree(t, "resfs.json", `{
  "root": "a",
  "project": {
    "a": {"path": "a", "dependencies": ["b"]},
    "b": {"path": "b"}
  }
}`)

	tree, err := LoadTree(file)
	require.NoError(t, err)
	assert.Equal(t, "a", tree.Root.Name)
	require.Len(t, tree.Root.Dependencies, 1)
	assert.Equal(t, "b", tree.Root.Dependencies[0].Name)
}

func TestTreeFile_LinkErrors(t *testing.T) {
	tests := []struct {
		name string
		file TreeFile
		want string
	}{
		{
			name: "unknown dependency",
			file: TreeFile{Root: "a", Projects: []Project{{Name: "a", Dependencies: []string{"x"}}}},
			want: "unknown project",
		},
		{
			name: "missing root",
			file: TreeFile{Root: "z", Projects: []Project{{Name: "a"}}},
			want: "root project",
		},
		{
			name: "duplicate",
			file: TreeFile{Root: "a", Projects: []Project{{Name: "a"}, {Name: "a"}}},
			want: "duplicate",
		},
		{
			name: "cycle",
			file: TreeFile{Root: "a", Projects: []Project{
				{Name: "a", Dependencies: []string{"b"}},
				{Name: "b", Dependencies: []string{"a"}},
			}},
			want: "cycle",
		},
		{
			name: "bad virtual path",
			file: TreeFile{Root: "a", Projects: []Project{{Name: "a", VirtualPath: "/x"}}},
			want: "must start and end with /",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.file.Link()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadTree_DecodeError(t *testing.T) {
	file := writeTree(t, "resfs.hcl", `root = `)
	_, err := LoadTree(file)
	assert.Error(t, err)
}
