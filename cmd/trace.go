package cmd

import (
	"fmt"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/agentic-research/resfs/internal/resource"
)

var traceScope string

func init() {
	traceCmd.Flags().StringVarP(&traceScope, "scope", "s", "all", "Reader to query: all, source or dependencies")
	rootCmd.AddCommand(traceCmd)
}

var traceCmd = &cobra.Command{
	Use:   "trace <path>",
	Short: "Show which collections located a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, c, err := loadTree()
		if err != nil {
			return err
		}
		reader, err := scopeReader(c, traceScope)
		if err != nil {
			return err
		}

		ctx, tr, _ := resource.StartTrace(cmd.Context(), logger, "byPath", args[0])
		r, err := reader.ByPath(ctx, args[0], resource.GlobOptions{Dirs: true})
		if err != nil {
			return err
		}
		if r == nil {
			tr.Finish(ctx, 0)
			return fmt.Errorf("%s: not found", args[0])
		}
		tr.Finish(ctx, 1)

		fmt.Fprintln(cmd.OutOrStdout(), oj.JSON(traceReport(r, tr), &oj.Options{Indent: 2, Sort: true}))
		return nil
	},
}

// traceReport converts a located resource into plain JSON values.
func traceReport(r *resource.Resource, tr *resource.Trace) map[string]any {
	collections := make([]any, 0)
	for _, name := range r.Collections() {
		collections = append(collections, name)
	}
	consulted := make(map[string]any)
	for name, n := range tr.Counts() {
		consulted[name] = int64(n)
	}
	return map[string]any{
		"path":        r.Path(),
		"project":     projectName(r),
		"collections": collections,
		"consulted":   consulted,
		"tree":        pathTree(r.PathTree()),
	}
}

func pathTree(t resource.PathTree) map[string]any {
	out := make(map[string]any, len(t))
	for k, v := range t {
		out[k] = pathTree(v)
	}
	return out
}
