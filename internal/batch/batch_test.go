package batch

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{"valid", Params{Type: "t", TotalWorkItems: 10, BatchJobsPerSeed: 1, InvocationsPerBatchJob: 1}, false},
		{"empty batch", Params{Type: "t", BatchJobsPerSeed: 1, InvocationsPerBatchJob: 1}, false},
		{"empty type", Params{TotalWorkItems: 1, BatchJobsPerSeed: 1, InvocationsPerBatchJob: 1}, true},
		{"blank type", Params{Type: "  ", BatchJobsPerSeed: 1, InvocationsPerBatchJob: 1}, true},
		{"negative size", Params{Type: "t", TotalWorkItems: -1, BatchJobsPerSeed: 1, InvocationsPerBatchJob: 1}, true},
		{"zero jobs per seed", Params{Type: "t", TotalWorkItems: 1, InvocationsPerBatchJob: 1}, true},
		{"zero invocations", Params{Type: "t", TotalWorkItems: 1, BatchJobsPerSeed: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestParamsWithDefaults(t *testing.T) {
	p := Params{Type: "t", InvocationsPerBatchJob: 4}.WithDefaults(DefaultBatchJobsPerSeed, DefaultInvocationsPerBatchJob)
	assert.Equal(t, DefaultBatchJobsPerSeed, p.BatchJobsPerSeed)
	assert.Equal(t, 4, p.InvocationsPerBatchJob)
}

func TestNew(t *testing.T) {
	now := time.Now()
	b := New(Params{Type: "t", TotalWorkItems: 7, BatchJobsPerSeed: 2, InvocationsPerBatchJob: 3, TenantID: "acme"}, now)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, StateSeeding, b.State)
	assert.Equal(t, 7, b.RemainingItems())
	assert.Equal(t, 3, b.TotalJobs())
	assert.Equal(t, "acme", b.TenantID)
	assert.False(t, b.SeedingDone())
}

func TestNewID_Sortable(t *testing.T) {
	prev := NewID()
	for range 100 {
		next := NewID()
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestTransition(t *testing.T) {
	b := Batch{State: StateSeeding}
	assert.True(t, b.Transition(StateExecuting))
	assert.True(t, b.Transition(StateMonitoring))
	assert.True(t, b.Transition(StateCompleted))
	assert.False(t, b.Transition(StateExecuting))
	assert.Equal(t, StateCompleted, b.State)
}

func TestErrorKinds(t *testing.T) {
	err := NullValue("Batch id is null")
	assert.ErrorIs(t, err, ErrNullValue)
	assert.NotErrorIs(t, err, ErrInvalidQuery)
	assert.Equal(t, "Batch id is null", err.Error())

	var batchErr *Error
	require.True(t, errors.As(InvalidQuery("x"), &batchErr))
	assert.Equal(t, "Invalid query: x", batchErr.Message)
}
