package api

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Node is a project linked to the nodes of its dependencies.
type Node struct {
	Project
	Dependencies []*Node
}

// Tree is a linked project tree.
type Tree struct {
	Root *Node
	// nodes by project name
	nodes map[string]*Node
}

// LoadTree decodes a tree file and links it. Relative project paths are
// resolved against the directory of the file.
func LoadTree(filename string) (*Tree, error) {
	var f TreeFile
	if err := hclsimple.DecodeFile(filename, nil, &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	dir := filepath.Dir(filename)
	for i := range f.Projects {
		if p := f.Projects[i].Path; p != "" && !filepath.IsAbs(p) {
			f.Projects[i].Path = filepath.Join(dir, p)
		}
	}
	return f.Link()
}

// Link resolves dependency names into a tree. Unknown dependencies,
// duplicate project names and dependency cycles are rejected.
func (f *TreeFile) Link() (*Tree, error) {
	nodes := make(map[string]*Node, len(f.Projects))
	for _, p := range f.Projects {
		if p.Name == "" {
			return nil, errors.New("project without a name")
		}
		if _, dup := nodes[p.Name]; dup {
			return nil, fmt.Errorf("duplicate project %q", p.Name)
		}
		if p.VirtualPath == "" {
			p.VirtualPath = "/"
		}
		if !strings.HasPrefix(p.VirtualPath, "/") || !strings.HasSuffix(p.VirtualPath, "/") {
			return nil, fmt.Errorf("project %q: virtual path %q must start and end with /", p.Name, p.VirtualPath)
		}
		nodes[p.Name] = &Node{Project: p}
	}
	for _, n := range nodes {
		for _, dep := range n.Project.Dependencies {
			d, ok := nodes[dep]
			if !ok {
				return nil, fmt.Errorf("project %q depends on unknown project %q", n.Name, dep)
			}
			n.Dependencies = append(n.Dependencies, d)
		}
	}

	root, ok := nodes[f.Root]
	if !ok {
		return nil, fmt.Errorf("root project %q not found", f.Root)
	}
	if err := checkCycles(root, map[string]int{}, nil); err != nil {
		return nil, err
	}
	return &Tree{Root: root, nodes: nodes}, nil
}

const (
	visiting = 1
	visited  = 2
)

func checkCycles(n *Node, state map[string]int, stack []string) error {
	switch state[n.Name] {
	case visiting:
		return fmt.Errorf("dependency cycle: %s -> %s", strings.Join(stack, " -> "), n.Name)
	case visited:
		return nil
	}
	state[n.Name] = visiting
	stack = append(stack, n.Name)
	for _, d := range n.Dependencies {
		if err := checkCycles(d, state, stack); err != nil {
			return err
		}
	}
	state[n.Name] = visited
	return nil
}

// Project returns the node of the named project.
func (t *Tree) Project(name string) (*Node, bool) {
	n, ok := t.nodes[name]
	return n, ok
}

// TransitiveDependencies lists every project the root depends on, directly
// or not, in breadth-first order. Each project appears once.
func (t *Tree) TransitiveDependencies() []*Node {
	seen := map[string]bool{t.Root.Name: true}
	var out []*Node
	queue := []*Node{t.Root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, d := range n.Dependencies {
			if seen[d.Name] {
				continue
			}
			seen[d.Name] = true
			out = append(out, d)
			queue = append(queue, d)
		}
	}
	return out
}
