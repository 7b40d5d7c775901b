package tasks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/resfs/internal/build"
)

func TestSyntaxErrors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		path    string
		content string
		broken  bool
	}{
		{"valid go", "/a.go", "package main\n\nfunc hello() string {\n\treturn \"world\"\n}\n", false},
		{"broken go", "/a.go", "package main\n\nfunc hello() string {\n\treturn \"world\"\n", true},
		{"valid js", "/a.js", `function hello() { return "world"; }`, false},
		{"broken python", "/a.py", "def hello(\n    return \"world\"\n", true},
		{"unknown extension", "/a.txt", "not code {{{", false},
		{"empty go", "/a.go", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs, err := SyntaxErrors(ctx, tt.path, []byte(tt.content))
			require.NoError(t, err)
			if tt.broken {
				require.NotEmpty(t, errs)
				assert.Equal(t, tt.path, errs[0].Path)
				assert.GreaterOrEqual(t, errs[0].Line, 1)
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func TestCheckSyntax_ReportsBrokenResources(t *testing.T) {
	ws, _ := newWorkspace(t, map[string]string{
		"/ok.js":     "export const a = 1;",
		"/broken.go": "package main\n\nfunc f() {\n\tx :=\n}\n",
		"/notes.txt": "{{{",
	})

	err := CheckSyntax().Run(context.Background(), build.TaskParams{Workspace: ws, TaskUtil: build.NewTaskUtil(nil, "app")})
	require.Error(t, err)
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "/broken.go", se.Path)
}

func TestCheckSyntax_PassesCleanWorkspace(t *testing.T) {
	ws, _ := newWorkspace(t, map[string]string{"/ok.js": "export const a = 1;", "/main.go": "package main\n"})

	err := CheckSyntax().Run(context.Background(), build.TaskParams{Workspace: ws, TaskUtil: build.NewTaskUtil(nil, "app")})
	assert.NoError(t, err)
}
