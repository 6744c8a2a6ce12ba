// Package jobexec is the job-execution facility of the batch engine.
//
// A Definition names a recurring or ad-hoc job and the handler kind that
// executes it. Tasks are individual activations of a definition with a due
// time. The Scheduler polls due tasks, runs them on a bounded worker pool and
// applies the handler's Decision: finish, or run again after a delay. Failed
// tasks are retried with exponential backoff and dead-lettered once they
// exhaust their attempts.
package jobexec

import (
	"context"
	"time"
)

// Kind selects the handler of a definition.
type Kind string

// Definition is a job definition owned by a batch.
type Definition struct {
	ID      string
	Kind    Kind
	BatchID string

	// Exclusive definitions never run two tasks at the same time.
	Exclusive bool

	// Suspended definitions keep their tasks but are not dispatched.
	Suspended bool
}

// Task is one activation of a definition.
type Task struct {
	ID           string
	DefinitionID string

	// Ref points at the work the task acts on, e.g. a batch job id.
	Ref string

	RunAt     time.Time
	Attempts  int
	LastError string
}

// Decision tells the scheduler what to do after a successful activation.
type Decision struct {
	Reschedule bool
	Delay      time.Duration
}

// Done finishes the task.
func Done() Decision {
	return Decision{}
}

// RunAfter reschedules the task to run again after d. Zero means the next poll.
func RunAfter(d time.Duration) Decision {
	return Decision{Reschedule: true, Delay: d}
}

// Handler executes one task of a definition.
type Handler func(ctx context.Context, def Definition, task Task) (Decision, error)

// DeadLetter is a task that exhausted its attempts.
type DeadLetter struct {
	Task     Task
	Kind     Kind
	FailedAt time.Time
}
