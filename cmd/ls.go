package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentic-research/resfs/internal/resource"
)

var (
	lsDirs  bool
	lsScope string
)

func init() {
	lsCmd.Flags().BoolVarP(&lsDirs, "dirs", "d", false, "Include directories")
	lsCmd.Flags().StringVarP(&lsScope, "scope", "s", "all", "Reader to query: all, source or dependencies")
	rootCmd.AddCommand(lsCmd)
}

var lsCmd = &cobra.Command{
	Use:   "ls [pattern...]",
	Short: "List the resources matching glob patterns",
	RunE: func(cmd *cobra.Command, args []string) error {
		patterns := args
		if len(patterns) == 0 {
			patterns = []string{"/**"}
		}
		_, c, err := loadTree()
		if err != nil {
			return err
		}
		reader, err := scopeReader(c, lsScope)
		if err != nil {
			return err
		}
		rs, err := reader.ByGlob(cmd.Context(), patterns, resource.GlobOptions{Dirs: lsDirs})
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, r := range rs {
			if r.IsDir() {
				fmt.Fprintf(tw, "%s/\t-\t%s\n", r.Path(), projectName(r))
				continue
			}
			var size int64
			if st := r.StatInfo(); st != nil {
				size = st.Size()
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\n", r.Path(), size, projectName(r))
		}
		return tw.Flush()
	},
}
