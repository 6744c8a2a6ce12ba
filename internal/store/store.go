// Package store persists batches and batch jobs.
//
// Three implementations share the Store contract: MemoryStore for tests and
// single-process runs, FileStore for the CLI (one JSON document per record),
// and PostgresStore for shared deployments.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rshade/batchengine/internal/batch"
)

// Common store errors.
var (
	ErrBatchExists  = errors.New("batch already exists")
	ErrInvalidID    = errors.New("id cannot be empty")
	ErrUnknownStore = errors.New("unknown store driver")
	ErrStoreClosed  = errors.New("store is closed")
)

// MutateFunc changes a batch inside UpdateBatch. Returning an error aborts the update.
type MutateFunc func(b *batch.Batch) error

// Store is the persistence contract of the engine.
type Store interface {
	batch.Reader

	// CreateBatch inserts a new batch. It fails with ErrBatchExists on duplicate ids.
	CreateBatch(ctx context.Context, b batch.Batch) error

	// GetBatch returns the batch and whether it exists.
	GetBatch(ctx context.Context, id string) (batch.Batch, bool, error)

	// UpdateBatch atomically reads, mutates and writes a batch.
	// It fails with batch.ErrNotFound when the batch does not exist.
	UpdateBatch(ctx context.Context, id string, mutate MutateFunc) (batch.Batch, error)

	// DeleteBatch removes a batch and all of its jobs. Missing batches are ignored.
	DeleteBatch(ctx context.Context, id string) error

	// CreateJobs inserts batch jobs, skipping ids that already exist.
	// It returns the number of jobs actually inserted.
	CreateJobs(ctx context.Context, jobs []batch.Job) (int, error)

	// GetJob returns the job and whether it exists.
	GetJob(ctx context.Context, id string) (batch.Job, bool, error)

	// ListJobs returns the jobs of a batch ordered by ordinal.
	ListJobs(ctx context.Context, batchID string) ([]batch.Job, error)

	// CountJobs counts the jobs of a batch, only uncompleted ones when pendingOnly is set.
	CountJobs(ctx context.Context, batchID string, pendingOnly bool) (int, error)

	// CompleteJob marks a job completed. It reports false when the job was
	// already completed or does not exist.
	CompleteJob(ctx context.Context, id string, at time.Time) (bool, error)

	// RecordJobFailure increments the attempt counter and stores the failure message.
	RecordJobFailure(ctx context.Context, id, message string) error

	// Close releases resources held by the store.
	Close() error
}

// Options configures Open.
type Options struct {
	// Driver is one of "memory", "file" or "postgres".
	Driver string

	// Directory is the data directory of the file store.
	Directory string

	// DSN is the postgres connection string.
	DSN string
}

// Open creates the store selected by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(opts.Directory)
	case "postgres":
		return NewPostgresStore(ctx, opts.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, opts.Driver)
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, batch.ErrNotFound)
}
