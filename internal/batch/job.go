package batch

import (
	"fmt"
	"time"
)

// Job is one bounded unit of execution within a batch.
// It owns the work item range [Start, End).
type Job struct {
	ID          string    `json:"id"`
	BatchID     string    `json:"batchId"`
	Ordinal     int       `json:"ordinal"`
	Start       int       `json:"start"`
	End         int       `json:"end"`
	Completed   bool      `json:"completed"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"lastError,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	CompletedAt time.Time `json:"completedAt,omitzero"`
}

// JobID returns the deterministic id of the batch job with the given ordinal.
func JobID(batchID string, ordinal int) string {
	return fmt.Sprintf("%s-%06d", batchID, ordinal)
}

// Invocations returns the number of work items the job processes.
func (j Job) Invocations() int {
	return j.End - j.Start
}

// Failed reports whether the job has a recorded failure and is not yet completed.
func (j Job) Failed() bool {
	return !j.Completed && j.LastError != ""
}
