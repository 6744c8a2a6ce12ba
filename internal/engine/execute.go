package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rshade/batchengine/internal/batch"
	"github.com/rshade/batchengine/internal/jobexec"
	"github.com/rshade/batchengine/internal/logging"
)

// runBatchJob executes one batch job. A job whose batch is gone, or that
// already completed, is a no-op.
func (e *Engine) runBatchJob(ctx context.Context, def jobexec.Definition, task jobexec.Task) (jobexec.Decision, error) {
	b, found, err := e.store.GetBatch(ctx, def.BatchID)
	if err != nil {
		return jobexec.Done(), fmt.Errorf("loading batch: %w", err)
	}
	if !found {
		e.forgetBatch(def.BatchID)
		return jobexec.Done(), nil
	}

	j, found, err := e.store.GetJob(ctx, task.Ref)
	if err != nil {
		return jobexec.Done(), fmt.Errorf("loading batch job: %w", err)
	}
	if !found || j.Completed {
		return jobexec.Done(), nil
	}

	log := e.log.With().
		Str(logging.FieldBatchID, b.ID).
		Str(logging.FieldJobID, j.ID).
		Logger()

	if execErr := e.execute(ctx, b, j); execErr != nil {
		// Interrupted by shutdown; not recorded against the job.
		if errors.Is(execErr, context.Canceled) && ctx.Err() != nil {
			log.Debug().Msg("batch job interrupted")
			return jobexec.Done(), fmt.Errorf("batch job %s interrupted: %w", j.ID, execErr)
		}
		if recErr := e.store.RecordJobFailure(ctx, j.ID, execErr.Error()); recErr != nil {
			log.Warn().Err(recErr).Msg("failed to record batch job failure")
		}
		log.Warn().Err(execErr).Int("attempt", task.Attempts+1).Msg("batch job failed")
		return jobexec.Done(), fmt.Errorf("%w: batch job %s: %w", batch.ErrExecutionFailure, j.ID, execErr)
	}

	completed, err := e.store.CompleteJob(ctx, j.ID, e.opts.Clock())
	if err != nil {
		return jobexec.Done(), fmt.Errorf("completing batch job: %w", err)
	}
	if completed {
		log.Debug().Int("start", j.Start).Int("end", j.End).Msg("batch job completed")
	}
	return jobexec.Done(), nil
}

// execute runs the operation registered for the batch type, turning a
// missing operation or a panic into an error.
func (e *Engine) execute(ctx context.Context, b batch.Batch, j batch.Job) (err error) {
	op, ok := e.operation(b.Type)
	if !ok {
		return fmt.Errorf("no operation registered for batch type %q", b.Type)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return op.Execute(ctx, b, j)
}
