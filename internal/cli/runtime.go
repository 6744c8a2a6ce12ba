package cli

import (
	"context"
	"fmt"

	"github.com/rshade/batchengine/internal/config"
	"github.com/rshade/batchengine/internal/engine"
	"github.com/rshade/batchengine/internal/jobexec"
	"github.com/rshade/batchengine/internal/logging"
	"github.com/rshade/batchengine/internal/store"
)

// runtime is the engine stack a command works with.
type runtime struct {
	cfg    *config.Config
	store  store.Store
	engine *engine.Engine
}

// newRuntime opens the configured store and builds a scheduler and an
// engine with the built-in operations registered. The scheduler is not
// started; serve and run do that.
func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	st, err := store.Open(ctx, store.Options{
		Driver:    cfg.Store.Driver,
		Directory: cfg.Store.Directory,
		DSN:       cfg.Store.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}

	sched := jobexec.New(jobexec.Options{
		Workers:      cfg.JobExec.Workers,
		PollInterval: cfg.JobExec.PollInterval,
		MaxAttempts:  cfg.JobExec.MaxAttempts,
		RetryBackoff: cfg.JobExec.RetryBackoff,
		MaxBackoff:   cfg.JobExec.MaxBackoff,
		Logger:       logging.ComponentLogger(baseLogger, "jobexec"),
	})

	e := engine.New(st, sched, engine.Options{
		BatchJobsPerSeed:       cfg.Engine.BatchJobsPerSeed,
		InvocationsPerBatchJob: cfg.Engine.InvocationsPerBatchJob,
		SeedInterval:           cfg.Engine.SeedInterval,
		MonitorInterval:        cfg.Engine.MonitorInterval,
		RecoveryInterval:       cfg.Engine.RecoveryInterval,
		Logger:                 baseLogger,
	})
	engine.RegisterBuiltinOperations(e, cfg.Engine.SleepPerItem)

	return &runtime{cfg: cfg, store: st, engine: e}, nil
}

// Close releases the store.
func (r *runtime) Close() error {
	return r.store.Close()
}

// withRuntime runs fn against a runtime built from the global config.
func withRuntime(ctx context.Context, fn func(r *runtime) error) error {
	r, err := newRuntime(ctx, config.GetGlobalConfig())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil {
			logger.Warn().Err(closeErr).Msg("closing store")
		}
	}()
	return fn(r)
}
