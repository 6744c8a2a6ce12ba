package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rshade/batchengine/internal/batch"
	"github.com/rshade/batchengine/internal/jobexec"
	"github.com/rshade/batchengine/internal/logging"
)

// runSeed creates the next slice of batch jobs and reschedules itself until
// every work item is claimed. Job ids derive from JobsCreated, so an
// activation retried after a partial failure recreates the same jobs and
// submits the same tasks instead of duplicating them.
func (e *Engine) runSeed(ctx context.Context, def jobexec.Definition, _ jobexec.Task) (jobexec.Decision, error) {
	log := e.log.With().Str(logging.FieldBatchID, def.BatchID).Logger()

	b, found, err := e.store.GetBatch(ctx, def.BatchID)
	if err != nil {
		return jobexec.Done(), fmt.Errorf("loading batch: %w", err)
	}
	if !found {
		e.forgetBatch(def.BatchID)
		return jobexec.Done(), nil
	}
	if b.Completed {
		e.sched.DeleteDefinition(def.ID)
		return jobexec.Done(), nil
	}

	ranges := batch.PlanSeed(b)
	if len(ranges) > 0 {
		jobs := batch.JobsForRanges(b, ranges, e.opts.Clock())
		created, createErr := e.store.CreateJobs(ctx, jobs)
		if errors.Is(createErr, batch.ErrNotFound) {
			e.forgetBatch(b.ID)
			return jobexec.Done(), nil
		}
		if createErr != nil {
			return jobexec.Done(), fmt.Errorf("creating batch jobs: %w", createErr)
		}
		if err = e.submitJobs(b, jobs); err != nil {
			return jobexec.Done(), err
		}

		seeded := ranges[len(ranges)-1].End
		jobsCreated := b.JobsCreated + len(jobs)
		b, err = e.store.UpdateBatch(ctx, b.ID, func(cur *batch.Batch) error {
			cur.SeededItems = max(cur.SeededItems, seeded)
			cur.JobsCreated = max(cur.JobsCreated, jobsCreated)
			return nil
		})
		if err != nil {
			return jobexec.Done(), fmt.Errorf("advancing seed position: %w", err)
		}

		log.Debug().
			Int("jobs", len(jobs)).
			Int("created", created).
			Int("seeded_items", b.SeededItems).
			Int("size", b.Size).
			Msg("seeded batch jobs")
	}

	if !b.SeedingDone() {
		return jobexec.RunAfter(e.opts.SeedInterval), nil
	}

	if _, err = e.store.UpdateBatch(ctx, b.ID, func(cur *batch.Batch) error {
		if cur.State == batch.StateSeeding {
			cur.Transition(batch.StateExecuting)
		}
		return nil
	}); err != nil {
		return jobexec.Done(), fmt.Errorf("finishing seeding: %w", err)
	}

	e.sched.DeleteDefinition(def.ID)
	log.Info().Int("jobs", b.JobsCreated).Msg("seeding finished")
	return jobexec.Done(), nil
}
