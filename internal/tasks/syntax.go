package tasks

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	sqllang "github.com/smacker/go-tree-sitter/sql"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/agentic-research/resfs/internal/build"
	"github.com/agentic-research/resfs/internal/resource"
)

// SyntaxError locates the first syntax error of a resource. Line and Column
// are 1-based.
type SyntaxError struct {
	Path   string
	Line   int
	Column int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: syntax error", e.Path, e.Line, e.Column)
}

// syntaxPatterns select the resources CheckSyntax parses.
var syntaxPatterns = []string{"/**/*.{go,js,mjs,ts,tsx,py,sql}"}

func languageFor(p string) *sitter.Language {
	switch strings.ToLower(path.Ext(p)) {
	case ".go":
		return golang.GetLanguage()
	case ".js", ".mjs":
		return javascript.GetLanguage()
	case ".ts", ".tsx":
		return typescript.GetLanguage()
	case ".py":
		return python.GetLanguage()
	case ".sql":
		return sqllang.GetLanguage()
	}
	return nil
}

// SyntaxErrors parses content as the language implied by p and returns every
// error or missing node. Unknown extensions yield nil.
func SyntaxErrors(ctx context.Context, p string, content []byte) ([]SyntaxError, error) {
	lang := languageFor(p)
	if lang == nil {
		return nil, nil
	}
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", p, err)
	}
	root := tree.RootNode()
	if root == nil || !root.HasError() {
		return nil, nil
	}
	var out []SyntaxError
	collectSyntaxErrors(root, p, &out)
	if len(out) == 0 {
		// HasError without a located node.
		out = append(out, SyntaxError{Path: p, Line: 1, Column: 1})
	}
	return out, nil
}

func collectSyntaxErrors(n *sitter.Node, p string, out *[]SyntaxError) {
	if n.IsError() || n.IsMissing() {
		pt := n.StartPoint()
		*out = append(*out, SyntaxError{Path: p, Line: int(pt.Row) + 1, Column: int(pt.Column) + 1})
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.HasError() || child.IsError() || child.IsMissing() {
			collectSyntaxErrors(child, p, out)
		}
	}
}

// CheckSyntax fails the build when a source resource does not parse. The
// first error of every broken resource is reported.
func CheckSyntax() build.Task {
	return build.Task{Name: "checkSyntax", Run: func(ctx context.Context, p build.TaskParams) error {
		rs, err := p.Workspace.ByGlob(ctx, syntaxPatterns, resource.GlobOptions{})
		if err != nil {
			return err
		}
		var errs []error
		for _, r := range rs {
			content, err := r.Buffer()
			if err != nil {
				return err
			}
			found, err := SyntaxErrors(ctx, r.Path(), content)
			if err != nil {
				return err
			}
			if len(found) > 0 {
				errs = append(errs, &found[0])
			}
		}
		return errors.Join(errs...)
	}}
}
