package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentic-research/resfs/internal/factory"
	"github.com/agentic-research/resfs/internal/nfsmount"
)

var (
	mountWritable bool
	mountAddr     string
	mountNoMount  bool
)

func init() {
	mountCmd.Flags().BoolVarP(&mountWritable, "writable", "w", false, "Accept writes into an in-memory overlay")
	mountCmd.Flags().StringVar(&mountAddr, "addr", "127.0.0.1:0", "NFS listen address")
	mountCmd.Flags().BoolVar(&mountNoMount, "no-mount", false, "Only run the NFS server")
	rootCmd.AddCommand(mountCmd)
}

var mountCmd = &cobra.Command{
	Use:   "mount [mountpoint]",
	Short: "Export the project tree over NFS and mount it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !mountNoMount && len(args) == 0 {
			return fmt.Errorf("mountpoint required unless --no-mount is set")
		}
		tree, c, err := loadTree()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fs := nfsmount.NewReaderFS(ctx, c.All)
		if mountWritable {
			ws, err := factory.CreateWorkspace(factory.WorkspaceParams{
				Name:   tree.Root.Name,
				Reader: c.All,
				Logger: logger,
			})
			if err != nil {
				return err
			}
			fs = nfsmount.NewReaderFS(ctx, ws)
			fs.SetWriter(ws)
		}

		srv, err := nfsmount.NewServer(fs, nfsmount.ServerOptions{Addr: mountAddr, Logger: logger})
		if err != nil {
			return err
		}
		defer func() { _ = srv.Close() }()

		if !mountNoMount {
			mountpoint := args[0]
			if err := nfsmount.Mount(srv.Port(), mountpoint, mountWritable); err != nil {
				return err
			}
			logger.Info("mounted", "project", tree.Root.Name, "mountpoint", mountpoint)
			defer func() {
				if err := nfsmount.Unmount(mountpoint); err != nil {
					logger.Error("unmount failed", "mountpoint", mountpoint, "error", err)
				}
			}()
		}

		<-ctx.Done()
		return nil
	},
}
