package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/batchengine/internal/batch"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestConfirmCascadeDelete(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		interactive bool
		want        PromptResult
	}{
		{name: "non-interactive", input: "y\n", interactive: false, want: PromptResult{}},
		{name: "yes", input: "y\n", interactive: true, want: PromptResult{Accepted: true}},
		{name: "YES", input: "YES\n", interactive: true, want: PromptResult{Accepted: true}},
		{name: "no", input: "n\n", interactive: true, want: PromptResult{}},
		{name: "empty", input: "\n", interactive: true, want: PromptResult{}},
		{name: "eof", input: "", interactive: true, want: PromptResult{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got := ConfirmCascadeDelete(&out, strings.NewReader(tt.input), tt.interactive, "b-1", 3)
			assert.Equal(t, tt.want, got)
			if tt.interactive {
				assert.Contains(t, out.String(), "3 uncompleted batch jobs")
			} else {
				assert.Empty(t, out.String())
			}
		})
	}

	got := ConfirmCascadeDelete(&bytes.Buffer{}, failingReader{}, true, "b-1", 1)
	assert.True(t, got.Cancelled)
}

func TestBatchDelete_PendingJobs(t *testing.T) {
	cfgPath := setupTestConfig(t)
	b := createBatch(t, cfgPath, "--type", "noop", "--items", "2")

	cfg, err := loadConfig(cfgPath, nil)
	require.NoError(t, err)
	r, err := newRuntime(context.Background(), cfg)
	require.NoError(t, err)
	_, err = r.store.CreateJobs(context.Background(), []batch.Job{
		{ID: batch.JobID(b.ID, 0), BatchID: b.ID, Ordinal: 0, Start: 0, End: 2, CreatedAt: time.Now()},
	})
	require.NoError(t, err)
	require.NoError(t, r.Close())

	_, err = execute(t, cfgPath, "batch", "delete", b.ID)
	require.ErrorIs(t, err, batch.ErrBatchJobsRemain)

	_, err = execute(t, cfgPath, "batch", "delete", b.ID, "--cascade")
	require.ErrorIs(t, err, errDeleteDeclined)

	out, err := execute(t, cfgPath, "batch", "delete", b.ID, "--cascade", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted batch "+b.ID)

	_, err = execute(t, cfgPath, "batch", "get", b.ID)
	require.ErrorIs(t, err, batch.ErrNotFound)
}
