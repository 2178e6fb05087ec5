package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/interpose/pkg/cli"
	"mercator-hq/interpose/pkg/config"
	"mercator-hq/interpose/pkg/interpose"
	"mercator-hq/interpose/pkg/telemetry/health"
)

var serveFlags struct {
	manifest        string
	adminAddr       string
	noWatch         bool
	shutdownTimeout time.Duration
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the long-lived admin mode",
	Long: `Load a manifest and keep it current until interrupted.

The manifest file is watched and reloaded on change; every successful
reload clears the dispatch and type caches. When manifest.git.repository
is configured the manifest is cloned from Git and the branch is polled
every manifest.git.poll_interval instead. The maintenance schedule
(dispatch.clear_schedule) clears the dispatch cache and checkpoints and
prunes the state store. An admin HTTP listener serves:

  /metrics   Prometheus metrics
  /healthz   liveness
  /readyz    readiness (manifest loaded, state store and clone reachable)
  /version   build information

Examples:
  # Serve with hot reload on the default admin address
  interpose serve --manifest recipes.yaml

  # Custom admin address, no file watching
  interpose serve --manifest recipes.yaml --admin-addr 127.0.0.1:9191 --no-watch`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.manifest, "manifest", "m", "", "manifest file (defaults to manifest.path from config)")
	serveCmd.Flags().StringVar(&serveFlags.adminAddr, "admin-addr", ":9090", "admin HTTP listen address")
	serveCmd.Flags().BoolVar(&serveFlags.noWatch, "no-watch", false, "do not reload the manifest on file changes")
	serveCmd.Flags().DurationVar(&serveFlags.shutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	watch := !serveFlags.noWatch
	rt, err := newRuntime(serveFlags.manifest, func(cfg *config.Config) {
		cfg.Manifest.Watch = watch
	})
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	if err := serve(ctx, rt, serveFlags.adminAddr, serveFlags.shutdownTimeout, func(addr string) {
		out := cmd.OutOrStdout()
		if git := rt.Config().Manifest.Git; git.Repository != "" {
			fmt.Fprintf(out, "✓ Manifest loaded from %s (%s:%s)\n", git.Repository, git.Branch, git.File)
		} else {
			fmt.Fprintf(out, "✓ Manifest loaded from %s\n", rt.Config().Manifest.Path)
		}
		fmt.Fprintf(out, "✓ Admin endpoints on http://%s\n", addr)
		fmt.Fprintln(out, "\nPress Ctrl+C to stop")
	}); err != nil {
		return cli.NewCommandError("serve", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Stopped")
	return nil
}

// serve runs the admin mode until ctx is cancelled. ready is called once the
// manifest is loaded and the listener is about to accept connections.
func serve(ctx context.Context, rt *interpose.Runtime, addr string, shutdownTimeout time.Duration, ready func(addr string)) error {
	if err := rt.LoadManifest(); err != nil {
		return err
	}
	if rt.Config().State.Path != "" {
		if _, err := rt.OpenState(); err != nil {
			return err
		}
	}

	scheduler := rt.Maintenance()
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()
	if next := scheduler.NextRun(); next != nil {
		rt.Logger().Info("maintenance scheduled", "next_run", next)
	}

	srv := newAdminServer(addr, rt, true)
	g, gctx := errgroup.WithContext(ctx)
	if rt.Config().Manifest.Watch {
		g.Go(func() error {
			return rt.Watch(gctx)
		})
	}
	g.Go(func() error {
		rt.Logger().Info("admin server starting", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		rt.Logger().Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if ready != nil {
		ready(addr)
	}
	return g.Wait()
}

// newAdminServer builds the admin listener. Health endpoints are included
// when withHealth is set; /metrics is always served.
func newAdminServer(addr string, rt *interpose.Runtime, withHealth bool) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rt.Metrics().Handler())
	if withHealth {
		health.Register(mux, rt.Health(), health.NewVersionInfo(Version, GitCommit, BuildDate))
	}
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
