package batch

import "time"

// percentMultiplier is used to convert a ratio to percentage (0-100).
const percentMultiplier = 100

// Progress is an immutable snapshot of a batch's execution statistics.
type Progress struct {
	// BatchID identifies the batch.
	BatchID string `json:"batchId" yaml:"batchId"`

	// TotalItems is the batch size.
	TotalItems int `json:"totalItems" yaml:"totalItems"`

	// SeededItems is the number of work items already claimed by batch jobs.
	SeededItems int `json:"seededItems" yaml:"seededItems"`

	// TotalJobs is the number of batch jobs once seeding is finished.
	TotalJobs int `json:"totalJobs" yaml:"totalJobs"`

	// CreatedJobs is the number of batch jobs created so far.
	CreatedJobs int `json:"createdJobs" yaml:"createdJobs"`

	// CompletedJobs is the number of batch jobs that finished successfully.
	CompletedJobs int `json:"completedJobs" yaml:"completedJobs"`

	// FailedJobs is the number of uncompleted batch jobs with a recorded failure.
	FailedJobs int `json:"failedJobs" yaml:"failedJobs"`

	// RemainingJobs counts batch jobs not completed yet, including ones not seeded.
	RemainingJobs int `json:"remainingJobs" yaml:"remainingJobs"`

	// CompletedItems is the number of work items processed by completed jobs.
	CompletedItems int `json:"completedItems" yaml:"completedItems"`

	// State is the batch lifecycle state.
	State State `json:"state" yaml:"state"`

	// StartTime is when the batch was created.
	StartTime time.Time `json:"startTime" yaml:"startTime"`

	// ElapsedTime is the time since creation, or until completion for finished batches.
	ElapsedTime time.Duration `json:"elapsedTime" yaml:"elapsedTime"`
}

// NewProgress computes the progress of b from its batch jobs.
func NewProgress(b Batch, jobs []Job, now time.Time) Progress {
	p := Progress{
		BatchID:     b.ID,
		TotalItems:  b.Size,
		SeededItems: b.SeededItems,
		TotalJobs:   b.TotalJobs(),
		CreatedJobs: len(jobs),
		State:       b.State,
		StartTime:   b.CreatedAt,
	}

	for _, j := range jobs {
		switch {
		case j.Completed:
			p.CompletedJobs++
			p.CompletedItems += j.Invocations()
		case j.Failed():
			p.FailedJobs++
		}
	}

	p.RemainingJobs = p.TotalJobs - p.CompletedJobs
	if p.RemainingJobs < 0 {
		p.RemainingJobs = 0
	}

	end := now
	if b.Completed && !b.CompletedAt.IsZero() {
		end = b.CompletedAt
	}
	p.ElapsedTime = end.Sub(b.CreatedAt)

	return p
}

// PercentComplete returns the completion percentage (0-100).
// An empty batch counts as complete once its state says so.
func (p Progress) PercentComplete() float64 {
	if p.TotalItems == 0 {
		if p.State == StateCompleted {
			return percentMultiplier
		}
		return 0
	}
	return (float64(p.CompletedItems) / float64(p.TotalItems)) * percentMultiplier
}

// IsComplete returns true if all items have been processed.
func (p Progress) IsComplete() bool {
	return p.State == StateCompleted || (p.TotalItems > 0 && p.CompletedItems >= p.TotalItems)
}

// ItemsPerSecond returns the processing rate in items per second.
func (p Progress) ItemsPerSecond() float64 {
	elapsed := p.ElapsedTime.Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(p.CompletedItems) / elapsed
}

// EstimatedTimeRemaining estimates the remaining processing time based on current progress.
// Returns 0 if no items have been processed yet.
func (p Progress) EstimatedTimeRemaining() time.Duration {
	if p.CompletedItems == 0 {
		return 0
	}
	avgTimePerItem := p.ElapsedTime / time.Duration(p.CompletedItems)
	return avgTimePerItem * time.Duration(p.TotalItems-p.CompletedItems)
}
