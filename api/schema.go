package api

// TreeFile is the on-disk description of a project tree. It is read from
// HCL (".hcl") or HCL JSON (".json").
//
//	root = "my.app"
//
//	project "my.app" {
//	  path         = "webapp"
//	  virtual_path = "/resources/my/app/"
//	  dependencies = ["my.lib"]
//	}
type TreeFile struct {
	// Root names the project the build is run for.
	Root string `hcl:"root" json:"root"`
	// Projects lists the root project and all of its dependencies.
	Projects []Project `hcl:"project,block" json:"project,omitempty"`
}

// Project describes one project of the tree.
type Project struct {
	// Name identifies the project. Dependencies refer to it by name.
	Name string `hcl:"name,label" json:"name"`
	// Path is the project's source directory, relative to the tree file.
	Path string `hcl:"path" json:"path"`
	// VirtualPath is where the sources appear in the virtual namespace.
	// Defaults to "/".
	VirtualPath string `hcl:"virtual_path,optional" json:"virtual_path,omitempty"`
	// Namespace is the project's module namespace, e.g. "my/app".
	Namespace string `hcl:"namespace,optional" json:"namespace,omitempty"`
	// Dependencies names the projects this one depends on.
	Dependencies []string `hcl:"dependencies,optional" json:"dependencies,omitempty"`
	// Excludes are glob patterns hidden from the project's readers.
	Excludes []string `hcl:"excludes,optional" json:"excludes,omitempty"`
	// Configuration is handed to build tasks and middleware untouched.
	Configuration map[string]string `hcl:"configuration,optional" json:"configuration,omitempty"`
}
