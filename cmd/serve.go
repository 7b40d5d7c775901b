package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/resfs/internal/server"
)

var serveAddr string

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "127.0.0.1:8080", "Listen address")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the project tree over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, c, err := loadTree()
		if err != nil {
			return err
		}
		params := server.MiddlewareParams{
			Resources: server.Resources{
				All:          c.All,
				RootProject:  c.Source,
				Dependencies: c.Dependencies,
			},
			Options: server.Options{Configuration: tree.Root.Configuration},
			Logger:  logger,
		}
		srv := &http.Server{
			Addr:              serveAddr,
			Handler:           server.Chain(params, server.Serve),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errc := make(chan error, 1)
		go func() {
			logger.Info("serving", "project", tree.Root.Name, "addr", serveAddr)
			errc <- srv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}
