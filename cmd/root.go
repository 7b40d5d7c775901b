// Package cmd implements the resfs command line.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/resfs/api"
	"github.com/agentic-research/resfs/internal/factory"
	"github.com/agentic-research/resfs/internal/resource"
)

var (
	treePath string
	excludes []string
	verbose  bool

	logger = slog.Default()
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&treePath, "tree", "t", "resfs.hcl", "Path to the project tree (.hcl or .json)")
	rootCmd.PersistentFlags().StringSliceVarP(&excludes, "exclude", "x", nil, "Glob patterns hidden in every project")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
}

var rootCmd = &cobra.Command{
	Use:           "resfs",
	Short:         "resfs: virtual resource layer over project trees",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "resfs:", err)
		os.Exit(1)
	}
}

// loadTree reads the project tree and builds its collections.
func loadTree() (*api.Tree, *factory.Collections, error) {
	tree, err := api.LoadTree(treePath)
	if err != nil {
		return nil, nil, err
	}
	c, err := factory.CreateCollectionsForTree(tree, factory.TreeParams{
		GetProjectExcludes: func(*api.Node) []string { return excludes },
		Logger:             logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return tree, c, nil
}

// scopeReader picks one of the tree collections by name.
func scopeReader(c *factory.Collections, scope string) (resource.Reader, error) {
	switch scope {
	case "", "all":
		return c.All, nil
	case "source":
		return c.Source, nil
	case "dependencies":
		return c.Dependencies, nil
	}
	return nil, fmt.Errorf("unknown scope %q (want all, source or dependencies)", scope)
}

func projectName(r *resource.Resource) string {
	if n, ok := r.Project().(*api.Node); ok {
		return n.Name
	}
	return "-"
}
