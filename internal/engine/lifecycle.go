package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rshade/batchengine/internal/batch"
	"github.com/rshade/batchengine/internal/jobexec"
	"github.com/rshade/batchengine/internal/logging"
)

// DeleteBatch removes a batch with its definitions and batch jobs.
// Without cascade it fails with ErrBatchJobsRemain while uncompleted batch
// jobs exist. Executions already running finish against the deleted batch
// as no-ops.
func (e *Engine) DeleteBatch(ctx context.Context, id string, cascade bool) error {
	b, err := e.GetBatch(ctx, id)
	if err != nil {
		return err
	}

	if !cascade {
		pending, countErr := e.store.CountJobs(ctx, id, true)
		if countErr != nil {
			return fmt.Errorf("counting batch jobs: %w", countErr)
		}
		if pending > 0 {
			return &batch.Error{
				Kind:    batch.ErrBatchJobsRemain,
				Message: fmt.Sprintf("batch %s still has %d uncompleted batch jobs; delete with cascade", id, pending),
			}
		}
	}

	e.deleteDefinitions(b)
	if err = e.store.DeleteBatch(ctx, id); err != nil {
		return fmt.Errorf("deleting batch: %w", err)
	}

	log := logging.FromContext(ctx)
	log.Info().
		Str(logging.FieldBatchID, id).
		Bool("cascade", cascade).
		Msg("batch deleted")
	return nil
}

// SuspendBatch stops dispatching the batch's seed, monitor and batch-job tasks.
func (e *Engine) SuspendBatch(ctx context.Context, id string) error {
	return e.setSuspended(ctx, id, true)
}

// ActivateBatch resumes a suspended batch.
func (e *Engine) ActivateBatch(ctx context.Context, id string) error {
	return e.setSuspended(ctx, id, false)
}

func (e *Engine) setSuspended(ctx context.Context, id string, suspended bool) error {
	if id == "" {
		return batch.NullValue("Batch id is null")
	}

	b, err := e.store.UpdateBatch(ctx, id, func(cur *batch.Batch) error {
		if cur.Completed {
			return batch.InvalidArgument(fmt.Sprintf("batch %s is completed", id))
		}
		cur.Suspended = suspended
		return nil
	})
	if err != nil {
		return err
	}

	if err = e.syncSuspension(b); err != nil {
		return err
	}

	log := logging.FromContext(ctx)
	log.Info().
		Str(logging.FieldBatchID, id).
		Bool("suspended", suspended).
		Msg("batch suspension changed")
	return nil
}

// syncSuspension applies the batch's suspension flag to its definitions.
func (e *Engine) syncSuspension(b batch.Batch) error {
	for _, defID := range []string{b.SeedJobDefinitionID, b.MonitorJobDefinitionID, b.BatchJobDefinitionID} {
		var err error
		if b.Suspended {
			err = e.sched.SuspendDefinition(defID)
		} else {
			err = e.sched.ActivateDefinition(defID)
		}
		// The seed definition is gone once seeding finished.
		if err != nil && !errors.Is(err, jobexec.ErrUnknownDefinition) {
			return err
		}
	}
	return nil
}

// Recover rebuilds scheduler state for every incomplete batch in the store:
// definitions, the seed task while seeding is unfinished, the monitor task
// and one task per uncompleted batch job. Tasks already pending or running
// are left alone, as are batch jobs that exhausted their attempts in this
// process. It returns the number of batches recovered.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	incomplete := false
	batches, err := e.store.QueryBatches(ctx, batch.QuerySpec{Completed: &incomplete})
	if err != nil {
		return 0, fmt.Errorf("listing incomplete batches: %w", err)
	}

	dead := make(map[string]bool)
	for _, d := range e.sched.DeadLetters() {
		dead[d.Task.ID] = true
	}

	for _, b := range batches {
		jobs, listErr := e.store.ListJobs(ctx, b.ID)
		if listErr != nil {
			return 0, fmt.Errorf("listing batch jobs of %s: %w", b.ID, listErr)
		}

		pending := make([]batch.Job, 0, len(jobs))
		for _, j := range jobs {
			if !j.Completed && !dead[j.ID] {
				pending = append(pending, j)
			}
		}

		if err = e.schedule(b, pending); err != nil {
			return 0, fmt.Errorf("recovering batch %s: %w", b.ID, err)
		}
	}

	if len(batches) > 0 {
		e.log.Debug().Int("batches", len(batches)).Msg("recovered incomplete batches")
	}
	return len(batches), nil
}
