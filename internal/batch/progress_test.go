package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewProgress(t *testing.T) {
	start := time.Now().Add(-10 * time.Second)
	b := Batch{ID: "b", Size: 10, SeededItems: 10, InvocationsPerBatchJob: 3, State: StateMonitoring, CreatedAt: start}
	jobs := []Job{
		{Start: 0, End: 3, Completed: true},
		{Start: 3, End: 6, Completed: true},
		{Start: 6, End: 9, LastError: "boom", Attempts: 1},
		{Start: 9, End: 10},
	}

	p := NewProgress(b, jobs, start.Add(10*time.Second))

	assert.Equal(t, 4, p.TotalJobs)
	assert.Equal(t, 4, p.CreatedJobs)
	assert.Equal(t, 2, p.CompletedJobs)
	assert.Equal(t, 1, p.FailedJobs)
	assert.Equal(t, 2, p.RemainingJobs)
	assert.Equal(t, 6, p.CompletedItems)
	assert.InDelta(t, 60.0, p.PercentComplete(), 0.001)
	assert.InDelta(t, 0.6, p.ItemsPerSecond(), 0.001)
	assert.Equal(t, 10*time.Second, p.ElapsedTime)
	assert.InDelta(t, 6.67, p.EstimatedTimeRemaining().Seconds(), 0.01)
	assert.False(t, p.IsComplete())
}

func TestNewProgress_EmptyBatch(t *testing.T) {
	now := time.Now()
	b := Batch{ID: "b", InvocationsPerBatchJob: 1, State: StateCompleted, Completed: true, CreatedAt: now, CompletedAt: now}

	p := NewProgress(b, nil, now.Add(time.Hour))

	assert.Equal(t, 0, p.TotalJobs)
	assert.Equal(t, 0, p.RemainingJobs)
	assert.InDelta(t, 100.0, p.PercentComplete(), 0.001)
	assert.True(t, p.IsComplete())
	assert.Equal(t, time.Duration(0), p.ElapsedTime)
	assert.Equal(t, time.Duration(0), p.EstimatedTimeRemaining())
}
