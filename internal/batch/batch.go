package batch

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Default fan-out configuration applied when Params leave a value at zero.
const (
	// DefaultBatchJobsPerSeed is the number of batch jobs one seed activation creates.
	DefaultBatchJobsPerSeed = 100

	// DefaultInvocationsPerBatchJob is the number of work items one batch job processes.
	DefaultInvocationsPerBatchJob = 1
)

// State is the lifecycle phase of a batch.
type State string

const (
	// StateSeeding means the seed job is still creating batch jobs.
	StateSeeding State = "seeding"

	// StateExecuting means every batch job exists and some are still running.
	StateExecuting State = "executing"

	// StateMonitoring means the monitor job is polling for the remaining jobs.
	StateMonitoring State = "monitoring"

	// StateCompleted is terminal.
	StateCompleted State = "completed"
)

// CanTransition reports whether a batch in state s may move to next.
// Nothing leaves StateCompleted.
func (s State) CanTransition(next State) bool {
	if s == StateCompleted {
		return next == StateCompleted
	}
	return true
}

// Batch is the aggregate describing one decomposed operation.
type Batch struct {
	ID                     string    `json:"id" yaml:"id"`
	Type                   string    `json:"type" yaml:"type"`
	Size                   int       `json:"size" yaml:"size"`
	BatchJobsPerSeed       int       `json:"batchJobsPerSeed" yaml:"batchJobsPerSeed"`
	InvocationsPerBatchJob int       `json:"invocationsPerBatchJob" yaml:"invocationsPerBatchJob"`
	SeedJobDefinitionID    string    `json:"seedJobDefinitionId" yaml:"seedJobDefinitionId"`
	MonitorJobDefinitionID string    `json:"monitorJobDefinitionId" yaml:"monitorJobDefinitionId"`
	BatchJobDefinitionID   string    `json:"batchJobDefinitionId" yaml:"batchJobDefinitionId"`
	TenantID               string    `json:"tenantId,omitempty" yaml:"tenantId,omitempty"`
	SeededItems            int       `json:"seededItems" yaml:"seededItems"`
	JobsCreated            int       `json:"jobsCreated" yaml:"jobsCreated"`
	State                  State     `json:"state" yaml:"state"`
	Suspended              bool      `json:"suspended" yaml:"suspended"`
	Completed              bool      `json:"completed" yaml:"completed"`
	CreatedAt              time.Time `json:"createdAt" yaml:"createdAt"`
	CompletedAt            time.Time `json:"completedAt,omitzero" yaml:"completedAt,omitempty"`
}

// Params are the caller supplied values for a new batch.
type Params struct {
	Type                   string
	TotalWorkItems         int
	BatchJobsPerSeed       int
	InvocationsPerBatchJob int
	TenantID               string
}

// WithDefaults returns a copy of p with zero fan-out values replaced.
func (p Params) WithDefaults(jobsPerSeed, invocationsPerJob int) Params {
	if p.BatchJobsPerSeed == 0 {
		p.BatchJobsPerSeed = jobsPerSeed
	}
	if p.InvocationsPerBatchJob == 0 {
		p.InvocationsPerBatchJob = invocationsPerJob
	}
	return p
}

// Validate checks the creation constraints.
func (p Params) Validate() error {
	if strings.TrimSpace(p.Type) == "" {
		return InvalidArgument("Batch type is null or empty")
	}
	if p.TotalWorkItems < 0 {
		return InvalidArgument(fmt.Sprintf("total work items must be >= 0, got %d", p.TotalWorkItems))
	}
	if p.BatchJobsPerSeed <= 0 {
		return InvalidArgument(fmt.Sprintf("batch jobs per seed must be > 0, got %d", p.BatchJobsPerSeed))
	}
	if p.InvocationsPerBatchJob <= 0 {
		return InvalidArgument(
			fmt.Sprintf("invocations per batch job must be > 0, got %d", p.InvocationsPerBatchJob))
	}
	return nil
}

// New builds a batch from validated params. Definition ids are left for the caller.
func New(p Params, now time.Time) Batch {
	return Batch{
		ID:                     NewID(),
		Type:                   p.Type,
		Size:                   p.TotalWorkItems,
		BatchJobsPerSeed:       p.BatchJobsPerSeed,
		InvocationsPerBatchJob: p.InvocationsPerBatchJob,
		TenantID:               p.TenantID,
		State:                  StateSeeding,
		CreatedAt:              now,
	}
}

// NewID returns a new lexicographically sortable identifier.
func NewID() string {
	return ulid.Make().String()
}

// RemainingItems returns the number of work items not yet claimed by a batch job.
func (b Batch) RemainingItems() int {
	return b.Size - b.SeededItems
}

// SeedingDone reports whether every work item has been claimed.
func (b Batch) SeedingDone() bool {
	return b.SeededItems >= b.Size
}

// TotalJobs returns the number of batch jobs the batch will have once fully seeded.
func (b Batch) TotalJobs() int {
	if b.InvocationsPerBatchJob <= 0 {
		return 0
	}
	return ceilDiv(b.Size, b.InvocationsPerBatchJob)
}

// Transition moves the batch to next if allowed and reports whether it did.
func (b *Batch) Transition(next State) bool {
	if !b.State.CanTransition(next) {
		return false
	}
	b.State = next
	return true
}
