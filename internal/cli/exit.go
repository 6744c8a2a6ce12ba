package cli

import (
	"errors"

	"github.com/rshade/batchengine/internal/batch"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitUsage    = 2
	ExitNotFound = 3
	ExitConflict = 4
)

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, batch.ErrNullValue),
		errors.Is(err, batch.ErrInvalidQuery),
		errors.Is(err, batch.ErrInvalidArgument):
		return ExitUsage
	case errors.Is(err, batch.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, batch.ErrBatchJobsRemain), errors.Is(err, batch.ErrNonUnique):
		return ExitConflict
	default:
		return ExitFailure
	}
}
