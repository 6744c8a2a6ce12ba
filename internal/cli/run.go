package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rshade/batchengine/internal/batch"
	"github.com/rshade/batchengine/internal/logging"
)

func newRunCmd() *cobra.Command {
	var (
		flags    batchParamFlags
		output   string
		interval time.Duration
		plain    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create a batch and execute it in this process",
		Long: `Creates a batch and runs the scheduler in this process until the batch
completes, then prints its statistics.

Interrupting the command leaves the batch incomplete in the store; a later
"batchengine serve" sharing the store recovers and finishes it.`,
		Example: `  # Run 1,000 sleep items, 10 per batch job
  batchengine run --type sleep --items 1000 --invocations 10

  # Same, printing progress lines and JSON statistics
  batchengine run --type sleep --items 1000 --invocations 10 --plain -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(output); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return withRuntime(ctx, func(r *runtime) error {
				p, err := runBatch(ctx, cmd, r, flags.params(), interval, !plain && isTerminal(os.Stdout))
				if err != nil {
					return err
				}
				return renderProgress(cmd.OutOrStdout(), output, p)
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&interval, "interval", defaultWatchInterval, "progress poll interval")
	cmd.Flags().BoolVar(&plain, "plain", false, "print progress lines instead of the interactive view")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format of the final statistics: table, json or yaml")
	return cmd
}

// runBatch creates a batch, runs the engine and follows the batch until it
// completes. It returns the final statistics.
func runBatch(
	ctx context.Context,
	cmd *cobra.Command,
	r *runtime,
	params batch.Params,
	interval time.Duration,
	interactive bool,
) (batch.Progress, error) {
	b, err := r.engine.CreateBatch(ctx, params)
	if err != nil {
		return batch.Progress{}, err
	}
	logger.Info().Ctx(ctx).Str(logging.FieldBatchID, b.ID).Int("items", b.Size).Msg("running batch")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return r.engine.Run(gCtx)
	})
	g.Go(func() error {
		defer cancel()
		fetch := func(ctx context.Context) (batch.Progress, error) {
			return r.engine.Statistics(ctx, b.ID)
		}
		if watchErr := watchBatch(gCtx, cmd.ErrOrStderr(), fetch, interval, interactive); watchErr != nil {
			return watchErr
		}
		// All items may be processed before the monitor job completes the batch.
		_, waitErr := r.engine.WaitForCompletion(gCtx, b.ID, interval)
		return waitErr
	})

	if err = g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return batch.Progress{}, fmt.Errorf("batch %s: %w", b.ID, err)
	}
	if ctx.Err() != nil {
		return batch.Progress{}, fmt.Errorf("batch %s: %w", b.ID, ctx.Err())
	}

	return r.engine.Statistics(ctx, b.ID)
}
