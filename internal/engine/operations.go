package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rshade/batchengine/internal/batch"
	"github.com/rshade/batchengine/internal/logging"
)

// Batch types served by the built-in operations.
const (
	TypeNoop  = "noop"
	TypeLog   = "log"
	TypeSleep = "sleep"
)

// NoopOperation completes every batch job immediately.
func NoopOperation() Operation {
	return OperationFunc(func(context.Context, batch.Batch, batch.Job) error { return nil })
}

// LogOperation writes one debug line per work item.
func LogOperation(log zerolog.Logger) Operation {
	return OperationFunc(func(_ context.Context, b batch.Batch, j batch.Job) error {
		for item := j.Start; item < j.End; item++ {
			log.Debug().
				Str(logging.FieldBatchID, b.ID).
				Str(logging.FieldJobID, j.ID).
				Int("item", item).
				Msg("processing work item")
		}
		return nil
	})
}

// SleepOperation spends perItem on every work item, honouring cancellation.
func SleepOperation(perItem time.Duration) Operation {
	return OperationFunc(func(ctx context.Context, _ batch.Batch, j batch.Job) error {
		timer := time.NewTimer(perItem * time.Duration(j.Invocations()))
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	})
}

// RegisterBuiltinOperations installs the noop, log and sleep operations.
func RegisterBuiltinOperations(e *Engine, sleepPerItem time.Duration) {
	e.RegisterOperation(TypeNoop, NoopOperation())
	e.RegisterOperation(TypeLog, LogOperation(logging.ComponentLogger(e.opts.Logger, "operation")))
	e.RegisterOperation(TypeSleep, SleepOperation(sleepPerItem))
}
