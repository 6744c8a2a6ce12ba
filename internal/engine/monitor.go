package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rshade/batchengine/internal/batch"
	"github.com/rshade/batchengine/internal/jobexec"
	"github.com/rshade/batchengine/internal/logging"
)

// errAlreadyCompleted aborts the completing update when another monitor
// activation got there first.
var errAlreadyCompleted = errors.New("batch already completed")

// runMonitor completes the batch once seeding is finished and no batch job
// is left uncompleted. Otherwise it reschedules itself.
func (e *Engine) runMonitor(ctx context.Context, def jobexec.Definition, _ jobexec.Task) (jobexec.Decision, error) {
	b, found, err := e.store.GetBatch(ctx, def.BatchID)
	if err != nil {
		return jobexec.Done(), fmt.Errorf("loading batch: %w", err)
	}
	if !found {
		e.forgetBatch(def.BatchID)
		return jobexec.Done(), nil
	}
	if b.Completed {
		e.deleteDefinitions(b)
		return jobexec.Done(), nil
	}

	if !b.SeedingDone() || b.State == batch.StateSeeding {
		return jobexec.RunAfter(e.opts.MonitorInterval), nil
	}

	pending, err := e.store.CountJobs(ctx, b.ID, true)
	if err != nil {
		return jobexec.Done(), fmt.Errorf("counting pending batch jobs: %w", err)
	}

	if pending > 0 {
		if b.State == batch.StateExecuting {
			if _, err = e.store.UpdateBatch(ctx, b.ID, func(cur *batch.Batch) error {
				if cur.State == batch.StateExecuting {
					cur.Transition(batch.StateMonitoring)
				}
				return nil
			}); err != nil {
				return jobexec.Done(), fmt.Errorf("updating batch state: %w", err)
			}
		}
		return jobexec.RunAfter(e.opts.MonitorInterval), nil
	}

	return jobexec.Done(), e.complete(ctx, b)
}

// complete marks the batch completed, drops its definitions and notifies
// listeners. Only the activation that flips the flag notifies.
func (e *Engine) complete(ctx context.Context, b batch.Batch) error {
	now := e.opts.Clock()
	done, err := e.store.UpdateBatch(ctx, b.ID, func(cur *batch.Batch) error {
		if cur.Completed {
			return errAlreadyCompleted
		}
		cur.Completed = true
		cur.CompletedAt = now
		cur.Transition(batch.StateCompleted)
		return nil
	})
	if errors.Is(err, errAlreadyCompleted) || errors.Is(err, batch.ErrNotFound) {
		e.deleteDefinitions(b)
		return nil
	}
	if err != nil {
		return fmt.Errorf("completing batch: %w", err)
	}

	e.deleteDefinitions(done)
	e.log.Info().
		Str(logging.FieldBatchID, done.ID).
		Int("jobs", done.JobsCreated).
		Dur("elapsed", done.CompletedAt.Sub(done.CreatedAt)).
		Msg("batch completed")

	e.notifyCompletion(done)
	return nil
}
