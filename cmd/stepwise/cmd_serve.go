package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"stepwise/internal/logging"
	"stepwise/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve progress reports over HTTP",
		Long: `Serves GET /result and GET /health until interrupted.

/result accepts ?mode=declared|executed and ?forcePass=true|false to
override the configured defaults for a single request.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			svc, err := a.service()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.NewServer(server.SettingsFromConfig(a.cfg, version), svc)
			return serve(ctx, srv)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "bind host (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "bind port (overrides server.port)")
	return cmd
}

// serve runs srv until ctx is done or serving fails, then shuts it down.
func serve(ctx context.Context, srv *server.Server) error {
	if err := srv.Start(ctx); err != nil {
		return err
	}
	logging.Boot("Serving progress on %s", srv.BaseURL())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case err, ok := <-srv.Done():
			if ok {
				return err
			}
			return nil
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logging.Boot("Shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.BootWarn("Shutdown incomplete: %v", err)
			return err
		}
		return nil
	})
	return g.Wait()
}
