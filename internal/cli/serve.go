package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rshade/batchengine/internal/api"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the management HTTP API",
		Long: `Runs the job-execution scheduler and the HTTP API until interrupted.

Incomplete batches found in the store are recovered on start and the store
is rescanned every engine.recovery_interval, so batches created by other
batchengine processes sharing the store are picked up.`,
		Example: `  # Serve on the configured address
  batchengine serve

  # Serve on another port with a postgres store
  BATCHENGINE_STORE_DRIVER=postgres BATCHENGINE_STORE_DSN=postgres://localhost/batches batchengine serve --addr :9090`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return withRuntime(ctx, func(r *runtime) error {
				if addr == "" {
					addr = r.cfg.API.Addr
				}
				return serve(ctx, r, addr)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from api.addr)")

	return cmd
}

// serve recovers incomplete batches, then runs the engine and the API until
// ctx is done.
func serve(ctx context.Context, r *runtime, addr string) error {
	recovered, err := r.engine.Recover(ctx)
	if err != nil {
		return err
	}
	logger.Info().Ctx(ctx).Int("batches", recovered).Msg("recovered incomplete batches")

	router := api.NewRouter(r.engine, api.Options{
		AllowedOrigins: r.cfg.API.AllowedOrigins,
		Mode:           r.cfg.API.Mode,
		Logger:         baseLogger,
	})

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.engine.Run(gCtx)
	})
	g.Go(func() error {
		return api.ListenAndServe(gCtx, addr, router, logger)
	})

	if err = g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Ctx(ctx).Msg("shut down")
	return nil
}
