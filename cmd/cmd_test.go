package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTree = `
root = "app"

project "app" {
  path         = "app"
  dependencies = ["lib"]
}

project "lib" {
  path     = "lib"
  excludes = ["/**/*.tmp"]
}
`

func setupTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"app/index.html":  "<html>app</html>",
		"app/main.go":     "package main\n\nfunc main()  {\n}\n",
		"lib/index.html":  "<html>lib</html>",
		"lib/lib.js":      "export default 1;",
		"lib/scratch.tmp": "x",
	}
	for p, c := range files {
		full := filepath.Join(dir, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(c), 0o644))
	}
	tree := filepath.Join(dir, "resfs.hcl")
	require.NoError(t, os.WriteFile(tree, []byte(testTree), 0o644))
	return tree
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Flag values survive between executions of the shared root command.
	excludes, verbose = nil, false
	lsDirs, lsScope, traceScope = false, "all", "all"
	buildFormatGo, buildCheck, buildOmit, buildTagsDB = false, false, nil, ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestLs_ListsAllProjects(t *testing.T) {
	tree := setupTree(t)

	out, err := run(t, "--tree", tree, "ls")
	require.NoError(t, err)
	assert.Regexp(t, `/index.html\s+16\s+app`, out)
	assert.Regexp(t, `/lib.js\s+17\s+lib`, out)
	assert.NotContains(t, out, "scratch.tmp")
	assert.Equal(t, 1, strings.Count(out, "/index.html"))
}

func TestLs_Scope(t *testing.T) {
	tree := setupTree(t)

	out, err := run(t, "--tree", tree, "ls", "--scope", "dependencies", "/*.html")
	require.NoError(t, err)
	assert.Regexp(t, `/index.html\s+16\s+lib`, out)
	assert.NotContains(t, out, "main.go")

	_, err = run(t, "--tree", tree, "ls", "--scope", "nope")
	assert.ErrorContains(t, err, "unknown scope")
}

func TestTrace_ReportsProvenance(t *testing.T) {
	tree := setupTree(t)

	out, err := run(t, "--tree", tree, "trace", "/lib.js")
	require.NoError(t, err)

	v, err := oj.ParseString(out)
	require.NoError(t, err)
	report, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/lib.js", report["path"])
	assert.Equal(t, "lib", report["project"])
	assert.Contains(t, report["collections"], "all")
	assert.Contains(t, report["tree"], "/lib.js")

	_, err = run(t, "--tree", tree, "trace", "/missing.js")
	assert.ErrorContains(t, err, "not found")
}

func TestBuild_WritesSourceProject(t *testing.T) {
	tree := setupTree(t)
	dest := filepath.Join(t.TempDir(), "dist")
	require.NoError(t, os.Mkdir(dest, 0o755))
	tagsDB := filepath.Join(t.TempDir(), "tags.db")

	out, err := run(t, "--tree", tree, "build", dest, "--format-go", "--check-syntax", "--omit", "/**/*.html", "--tags-db", tagsDB)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 1 resources")

	got, err := os.ReadFile(filepath.Join(dest, "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main\n\nfunc main() {\n}\n", string(got))

	_, err = os.Stat(filepath.Join(dest, "index.html"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(filepath.Join(dest, "lib.js"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(tagsDB)
	assert.NoError(t, err)
}

func TestBuild_S3NeedsEndpoint(t *testing.T) {
	tree := setupTree(t)
	t.Setenv("RESFS_S3_ENDPOINT", "")

	_, err := run(t, "--tree", tree, "build", "s3://bucket/prefix")
	assert.ErrorContains(t, err, "RESFS_S3_ENDPOINT")
}

func TestMount_RequiresMountpoint(t *testing.T) {
	tree := setupTree(t)
	mountNoMount = false

	_, err := run(t, "--tree", tree, "mount")
	assert.ErrorContains(t, err, "mountpoint required")
}
