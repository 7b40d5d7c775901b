package cmd

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"

	"github.com/agentic-research/resfs/api"
	"github.com/agentic-research/resfs/internal/adapter"
	"github.com/agentic-research/resfs/internal/build"
	"github.com/agentic-research/resfs/internal/factory"
	"github.com/agentic-research/resfs/internal/resource"
	"github.com/agentic-research/resfs/internal/tags"
	"github.com/agentic-research/resfs/internal/tasks"
)

var (
	buildFormatGo bool
	buildCheck    bool
	buildOmit     []string
	buildTagsDB   string
	buildInsecure bool
)

func init() {
	buildCmd.Flags().BoolVar(&buildFormatGo, "format-go", false, "Format Go files with gofumpt")
	buildCmd.Flags().BoolVar(&buildCheck, "check-syntax", false, "Fail when a source file does not parse")
	buildCmd.Flags().StringSliceVar(&buildOmit, "omit", nil, "Glob patterns left out of the result")
	buildCmd.Flags().StringVar(&buildTagsDB, "tags-db", "", "Persist resource tags in this SQLite database")
	buildCmd.Flags().BoolVar(&buildInsecure, "s3-insecure", false, "Use plain HTTP for s3:// destinations")
	rootCmd.AddCommand(buildCmd)
}

var buildCmd = &cobra.Command{
	Use:   "build <destination>",
	Short: "Run the build tasks of the root project and write the result",
	Long: `Run the build tasks of the root project and write the result.

The destination is a directory or s3://bucket/prefix. S3 destinations read
RESFS_S3_ENDPOINT, RESFS_S3_ACCESS_KEY and RESFS_S3_SECRET_KEY.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, c, err := loadTree()
		if err != nil {
			return err
		}
		root := tree.Root

		ws, err := factory.CreateWorkspace(factory.WorkspaceParams{
			Name:   root.Name,
			Reader: c.Source,
			Logger: logger,
		})
		if err != nil {
			return err
		}
		dest, err := destination(args[0])
		if err != nil {
			return err
		}

		tc := tags.NewCollection()
		if buildTagsDB != "" {
			backend, err := tags.OpenSQLiteBackend(buildTagsDB)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()
			tc = tags.NewCollection(tags.WithBackend(backend))
		}

		var steps []build.Task
		if buildCheck {
			steps = append(steps, tasks.CheckSyntax())
		}
		if len(buildOmit) > 0 {
			steps = append(steps, tasks.OmitFromResult(buildOmit...))
		}
		if buildFormatGo {
			steps = append(steps, tasks.FormatGo())
		}

		res, err := build.Run(cmd.Context(), build.RunParams{
			Workspace:    ws,
			Dependencies: c.Dependencies,
			Destination:  dest,
			Tasks:        steps,
			Options:      taskOptions(root),
			Tags:         tc,
			Logger:       logger,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d resources to %s (%d omitted)\n", len(res.Written), args[0], len(res.Omitted))
		return nil
	},
}

func taskOptions(n *api.Node) build.TaskOptions {
	return build.TaskOptions{
		ProjectName:      n.Name,
		ProjectNamespace: n.Namespace,
		Configuration:    n.Configuration,
	}
}

// destination opens the writer a build result goes to.
func destination(target string) (resource.Writer, error) {
	if !strings.HasPrefix(target, "s3://") {
		a, err := factory.CreateAdapter(factory.AdapterParams{Name: "destination", FsBasePath: target, Logger: logger})
		if err != nil {
			return nil, err
		}
		return a, nil
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse destination: %w", err)
	}
	endpoint := os.Getenv("RESFS_S3_ENDPOINT")
	if endpoint == "" {
		return nil, fmt.Errorf("RESFS_S3_ENDPOINT is required for %s", target)
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(os.Getenv("RESFS_S3_ACCESS_KEY"), os.Getenv("RESFS_S3_SECRET_KEY"), ""),
		Secure: !buildInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	store, err := adapter.NewObjectStore(adapter.ObjectStoreParams{
		Params: adapter.Params{Name: "destination", Logger: logger},
		Client: client,
		Bucket: u.Host,
		Prefix: u.Path,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}
