package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rshade/batchengine/internal/batch"
	"github.com/rshade/batchengine/internal/tui"
)

const defaultWatchInterval = time.Second

// errWatchStopped is returned when the user leaves the watch view before
// the batch completes.
var errWatchStopped = errors.New("stopped watching before the batch completed")

func newBatchWatchCmd() *cobra.Command {
	var (
		interval time.Duration
		plain    bool
	)

	cmd := &cobra.Command{
		Use:   "watch BATCH_ID",
		Short: "Follow a batch until it completes",
		Long: `Polls the statistics of a batch until it completes.

On a terminal a progress view is shown; otherwise, or with --plain, one
progress line is printed per poll.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(r *runtime) error {
				if _, err := r.engine.GetBatch(cmd.Context(), args[0]); err != nil {
					return err
				}
				fetch := func(ctx context.Context) (batch.Progress, error) {
					return r.engine.Statistics(ctx, args[0])
				}

				err := watchBatch(cmd.Context(), cmd.OutOrStdout(), fetch, interval, !plain && isTerminal(os.Stdout))
				if errors.Is(err, errWatchStopped) {
					return nil
				}
				return err
			})
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", defaultWatchInterval, "poll interval")
	cmd.Flags().BoolVar(&plain, "plain", false, "print progress lines instead of the interactive view")
	return cmd
}

// watchBatch follows a batch with the TUI or with plain progress lines.
func watchBatch(ctx context.Context, w io.Writer, fetch tui.StatsFunc, interval time.Duration, interactive bool) error {
	if interactive {
		return watchInteractive(ctx, fetch, interval)
	}
	return watchPlain(ctx, w, fetch, interval)
}

func watchInteractive(ctx context.Context, fetch tui.StatsFunc, interval time.Duration) error {
	p := tea.NewProgram(tui.NewWatchModel(ctx, fetch, interval), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("running watch view: %w", err)
	}

	m, ok := final.(tui.WatchModel)
	if !ok {
		return nil
	}
	if m.Err() != nil {
		return m.Err()
	}
	if !m.Done() {
		return errWatchStopped
	}
	return nil
}

func watchPlain(ctx context.Context, w io.Writer, fetch tui.StatsFunc, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		p, err := fetch(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "%s  %-10s %5.1f%%  %s/%s items  %s failing\n",
			time.Now().Format(time.TimeOnly), p.State, p.PercentComplete(),
			tui.FormatNumber(p.CompletedItems), tui.FormatNumber(p.TotalItems),
			tui.FormatNumber(p.FailedJobs))

		if p.IsComplete() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
