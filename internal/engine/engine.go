// Package engine drives batches through their lifecycle.
//
// A batch owns three job definitions on the job-execution facility:
//
//   - the seed definition (exclusive) whose task creates batch jobs from the
//     remaining work items and reschedules itself until everything is claimed,
//   - the batch-job definition with one task per batch job, running the
//     Operation registered for the batch type,
//   - the monitor definition (exclusive) whose task completes the batch once
//     seeding is done and no batch job is left uncompleted.
//
// All bookkeeping lives in the store; the scheduler only holds definitions
// and pending tasks, which Recover rebuilds after a restart.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rshade/batchengine/internal/batch"
	"github.com/rshade/batchengine/internal/jobexec"
	"github.com/rshade/batchengine/internal/logging"
	"github.com/rshade/batchengine/internal/store"
)

// Job kinds registered on the scheduler.
const (
	KindSeed     jobexec.Kind = "batch-seed"
	KindMonitor  jobexec.Kind = "batch-monitor"
	KindBatchJob jobexec.Kind = "batch-job"
)

// Default engine timings.
const (
	DefaultSeedInterval     = 0
	DefaultMonitorInterval  = time.Second
	DefaultRecoveryInterval = 30 * time.Second
)

// Operation executes the work items [job.Start, job.End) of one batch job.
// Returning an error marks the attempt failed; the scheduler retries it.
type Operation interface {
	Execute(ctx context.Context, b batch.Batch, job batch.Job) error
}

// OperationFunc adapts a function to the Operation interface.
type OperationFunc func(ctx context.Context, b batch.Batch, job batch.Job) error

// Execute calls f.
func (f OperationFunc) Execute(ctx context.Context, b batch.Batch, job batch.Job) error {
	return f(ctx, b, job)
}

// CompletionListener is notified once per batch when the monitor completes it.
type CompletionListener func(b batch.Batch)

// Options configures an Engine. Zero values take the defaults.
type Options struct {
	// BatchJobsPerSeed is used when batch params leave it at zero.
	BatchJobsPerSeed int

	// InvocationsPerBatchJob is used when batch params leave it at zero.
	InvocationsPerBatchJob int

	// SeedInterval is the delay between seed activations. Zero reseeds on the next poll.
	SeedInterval time.Duration

	// MonitorInterval is the delay between monitor activations.
	MonitorInterval time.Duration

	// RecoveryInterval is how often Run rescans the store for batches created
	// by other processes. Zero disables the rescan.
	RecoveryInterval time.Duration

	Clock  func() time.Time
	Logger zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.BatchJobsPerSeed <= 0 {
		o.BatchJobsPerSeed = batch.DefaultBatchJobsPerSeed
	}
	if o.InvocationsPerBatchJob <= 0 {
		o.InvocationsPerBatchJob = batch.DefaultInvocationsPerBatchJob
	}
	if o.SeedInterval < 0 {
		o.SeedInterval = DefaultSeedInterval
	}
	if o.MonitorInterval <= 0 {
		o.MonitorInterval = DefaultMonitorInterval
	}
	if o.RecoveryInterval < 0 {
		o.RecoveryInterval = 0
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Engine creates, executes, monitors and queries batches.
type Engine struct {
	store store.Store
	sched *jobexec.Scheduler
	opts  Options
	log   zerolog.Logger

	mu         sync.RWMutex
	operations map[string]Operation
	listeners  []CompletionListener
}

// New builds an engine on top of st and registers its job kinds on sched.
func New(st store.Store, sched *jobexec.Scheduler, opts Options) *Engine {
	opts = opts.withDefaults()
	e := &Engine{
		store:      st,
		sched:      sched,
		opts:       opts,
		log:        logging.ComponentLogger(opts.Logger, "engine"),
		operations: make(map[string]Operation),
	}

	sched.Register(KindSeed, e.runSeed)
	sched.Register(KindMonitor, e.runMonitor)
	sched.Register(KindBatchJob, e.runBatchJob)
	return e
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store {
	return e.store
}

// Scheduler returns the job-execution facility the engine submits to.
func (e *Engine) Scheduler() *jobexec.Scheduler {
	return e.sched
}

// RegisterOperation installs the operation executed by batch jobs of batchType.
func (e *Engine) RegisterOperation(batchType string, op Operation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.operations[batchType] = op
}

// OperationTypes returns the registered batch types.
func (e *Engine) OperationTypes() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	types := make([]string, 0, len(e.operations))
	for t := range e.operations {
		types = append(types, t)
	}
	return types
}

func (e *Engine) operation(batchType string) (Operation, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	op, ok := e.operations[batchType]
	return op, ok
}

// OnCompletion registers a listener called after a batch completes.
func (e *Engine) OnCompletion(l CompletionListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

func (e *Engine) notifyCompletion(b batch.Batch) {
	e.mu.RLock()
	listeners := make([]CompletionListener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.RUnlock()

	for _, l := range listeners {
		l(b)
	}
}

// CreateBatch persists a new batch, defines its seed, monitor and batch-job
// definitions and schedules the seed task now and the monitor task after
// the monitor interval.
func (e *Engine) CreateBatch(ctx context.Context, p batch.Params) (batch.Batch, error) {
	p = p.WithDefaults(e.opts.BatchJobsPerSeed, e.opts.InvocationsPerBatchJob)
	if err := p.Validate(); err != nil {
		return batch.Batch{}, err
	}
	if _, ok := e.operation(p.Type); !ok {
		return batch.Batch{}, batch.InvalidArgument(fmt.Sprintf("no operation registered for batch type %q", p.Type))
	}

	b := batch.New(p, e.opts.Clock())
	b.SeedJobDefinitionID = seedDefinitionID(b.ID)
	b.MonitorJobDefinitionID = monitorDefinitionID(b.ID)
	b.BatchJobDefinitionID = batchJobDefinitionID(b.ID)

	if err := e.store.CreateBatch(ctx, b); err != nil {
		return batch.Batch{}, fmt.Errorf("creating batch: %w", err)
	}
	if err := e.schedule(b, nil); err != nil {
		return batch.Batch{}, err
	}

	log := logging.FromContext(ctx)
	log.Info().
		Str(logging.FieldBatchID, b.ID).
		Str("type", b.Type).
		Int("size", b.Size).
		Int("batch_jobs_per_seed", b.BatchJobsPerSeed).
		Int("invocations_per_batch_job", b.InvocationsPerBatchJob).
		Msg("batch created")
	return b, nil
}

// schedule defines the batch's job definitions and submits its seed and
// monitor tasks plus a task for every job in pending. Everything it does is
// idempotent, so it serves both creation and recovery.
func (e *Engine) schedule(b batch.Batch, pending []batch.Job) error {
	defs := []jobexec.Definition{
		{ID: b.BatchJobDefinitionID, Kind: KindBatchJob, BatchID: b.ID, Suspended: b.Suspended},
		{ID: b.MonitorJobDefinitionID, Kind: KindMonitor, BatchID: b.ID, Exclusive: true, Suspended: b.Suspended},
	}
	if !b.SeedingDone() || b.State == batch.StateSeeding {
		defs = append(defs, jobexec.Definition{
			ID: b.SeedJobDefinitionID, Kind: KindSeed, BatchID: b.ID, Exclusive: true, Suspended: b.Suspended,
		})
	}
	for _, def := range defs {
		if err := e.sched.Define(def); err != nil {
			return fmt.Errorf("defining %s: %w", def.ID, err)
		}
	}
	// Definitions may predate a suspension changed by another process.
	if err := e.syncSuspension(b); err != nil {
		return err
	}

	now := e.opts.Clock()
	if e.sched.HasDefinition(b.SeedJobDefinitionID) {
		if _, err := e.sched.Submit(jobexec.Task{
			ID: b.SeedJobDefinitionID, DefinitionID: b.SeedJobDefinitionID, Ref: b.ID, RunAt: now,
		}); err != nil {
			return fmt.Errorf("submitting seed task: %w", err)
		}
	}
	if _, err := e.sched.Submit(jobexec.Task{
		ID: b.MonitorJobDefinitionID, DefinitionID: b.MonitorJobDefinitionID, Ref: b.ID,
		RunAt: now.Add(e.opts.MonitorInterval),
	}); err != nil {
		return fmt.Errorf("submitting monitor task: %w", err)
	}
	return e.submitJobs(b, pending)
}

func (e *Engine) submitJobs(b batch.Batch, jobs []batch.Job) error {
	for _, j := range jobs {
		if _, err := e.sched.Submit(jobexec.Task{
			ID:           j.ID,
			DefinitionID: b.BatchJobDefinitionID,
			Ref:          j.ID,
		}); err != nil {
			return fmt.Errorf("submitting batch job %s: %w", j.ID, err)
		}
	}
	return nil
}

func seedDefinitionID(batchID string) string     { return batchID + "-seed" }
func monitorDefinitionID(batchID string) string  { return batchID + "-monitor" }
func batchJobDefinitionID(batchID string) string { return batchID + "-jobs" }

// deleteDefinitions removes the batch's definitions and their pending tasks.
func (e *Engine) deleteDefinitions(b batch.Batch) {
	e.sched.DeleteDefinition(b.SeedJobDefinitionID)
	e.sched.DeleteDefinition(b.MonitorJobDefinitionID)
	e.sched.DeleteDefinition(b.BatchJobDefinitionID)
}

// forgetBatch removes the definitions of a batch that is no longer in the
// store, for instance because another process deleted it.
func (e *Engine) forgetBatch(batchID string) {
	e.deleteDefinitions(batch.Batch{
		SeedJobDefinitionID:    seedDefinitionID(batchID),
		MonitorJobDefinitionID: monitorDefinitionID(batchID),
		BatchJobDefinitionID:   batchJobDefinitionID(batchID),
	})
	e.log.Debug().Str(logging.FieldBatchID, batchID).Msg("batch gone from store, definitions removed")
}

// CreateBatchQuery returns an empty query over the engine's store.
func (e *Engine) CreateBatchQuery() batch.Query {
	return batch.NewQuery(e.store)
}

// GetBatch returns the batch with the given id or an ErrNotFound error.
func (e *Engine) GetBatch(ctx context.Context, id string) (batch.Batch, error) {
	if id == "" {
		return batch.Batch{}, batch.NullValue("Batch id is null")
	}
	b, found, err := e.store.GetBatch(ctx, id)
	if err != nil {
		return batch.Batch{}, err
	}
	if !found {
		return batch.Batch{}, &batch.Error{Kind: batch.ErrNotFound, Message: fmt.Sprintf("batch %s not found", id)}
	}
	return b, nil
}

// ListJobs returns the batch jobs of a batch ordered by ordinal.
func (e *Engine) ListJobs(ctx context.Context, batchID string) ([]batch.Job, error) {
	if _, err := e.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	return e.store.ListJobs(ctx, batchID)
}

// Statistics returns a progress snapshot of a batch.
func (e *Engine) Statistics(ctx context.Context, id string) (batch.Progress, error) {
	b, err := e.GetBatch(ctx, id)
	if err != nil {
		return batch.Progress{}, err
	}
	jobs, err := e.store.ListJobs(ctx, id)
	if err != nil {
		return batch.Progress{}, err
	}
	return batch.NewProgress(b, jobs, e.opts.Clock()), nil
}

// Run runs the scheduler until ctx is cancelled. When a recovery interval
// is configured it also rescans the store for batches other processes
// created.
func (e *Engine) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.sched.Run(gCtx)
	})

	if e.opts.RecoveryInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(e.opts.RecoveryInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gCtx.Done():
					return nil
				case <-ticker.C:
					if _, err := e.Recover(gCtx); err != nil && !errors.Is(err, context.Canceled) {
						e.log.Warn().Err(err).Msg("periodic recovery failed")
					}
				}
			}
		})
	}

	return g.Wait()
}

// WaitForCompletion polls the store every interval until the batch is
// completed or ctx is done. Something else must be running the scheduler.
func (e *Engine) WaitForCompletion(ctx context.Context, id string, interval time.Duration) (batch.Batch, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		b, err := e.GetBatch(ctx, id)
		if err != nil || b.Completed {
			return b, err
		}

		select {
		case <-ctx.Done():
			return b, ctx.Err()
		case <-ticker.C:
		}
	}
}
