package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/batchengine/internal/batch"
)

func runningProgress() batch.Progress {
	return batch.Progress{
		BatchID:        "b-1",
		TotalItems:     1000,
		SeededItems:    1000,
		TotalJobs:      10,
		CreatedJobs:    10,
		CompletedJobs:  4,
		RemainingJobs:  6,
		CompletedItems: 400,
		State:          batch.StateMonitoring,
		ElapsedTime:    4 * time.Second,
	}
}

func staticFetch(p batch.Progress, err error) StatsFunc {
	return func(context.Context) (batch.Progress, error) { return p, err }
}

func TestWatchModel_InitLoadsStats(t *testing.T) {
	p := runningProgress()
	m := NewWatchModel(context.Background(), staticFetch(p, nil), time.Second)

	cmd := m.Init()
	require.NotNil(t, cmd)

	msg := cmd()
	loaded, ok := msg.(StatsLoadedMsg)
	require.True(t, ok, "expected StatsLoadedMsg, got %T", msg)
	assert.Equal(t, p, loaded.Progress)
}

func TestWatchModel_InitReportsError(t *testing.T) {
	m := NewWatchModel(context.Background(), staticFetch(batch.Progress{}, errors.New("store down")), time.Second)

	msg := m.Init()()
	failed, ok := msg.(StatsErrorMsg)
	require.True(t, ok)
	assert.EqualError(t, failed.Err, "store down")
}

func TestWatchModel_Update(t *testing.T) {
	completed := runningProgress()
	completed.CompletedJobs = 10
	completed.RemainingJobs = 0
	completed.CompletedItems = 1000
	completed.State = batch.StateCompleted

	tests := []struct {
		name         string
		msg          tea.Msg
		wantCmd      bool
		wantDone     bool
		wantLoaded   bool
		wantErr      bool
		wantQuitting bool
	}{
		{name: "running stats schedule refresh", msg: StatsLoadedMsg{Progress: runningProgress()}, wantCmd: true, wantLoaded: true},
		{name: "completed stats quit", msg: StatsLoadedMsg{Progress: completed}, wantCmd: true, wantLoaded: true, wantDone: true},
		{name: "error quits", msg: StatsErrorMsg{Err: errors.New("boom")}, wantCmd: true, wantErr: true},
		{name: "q quits", msg: tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}, wantCmd: true, wantQuitting: true},
		{name: "ctrl+c quits", msg: tea.KeyMsg{Type: tea.KeyCtrlC}, wantCmd: true, wantQuitting: true},
		{name: "esc quits", msg: tea.KeyMsg{Type: tea.KeyEsc}, wantCmd: true, wantQuitting: true},
		{name: "other key ignored", msg: tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}}},
		{name: "refresh reloads", msg: refreshMsg(time.Now()), wantCmd: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewWatchModel(context.Background(), staticFetch(runningProgress(), nil), time.Second)

			updated, cmd := m.Update(tt.msg)
			got, ok := updated.(WatchModel)
			require.True(t, ok)

			assert.Equal(t, tt.wantCmd, cmd != nil)
			assert.Equal(t, tt.wantDone, got.Done())
			assert.Equal(t, tt.wantLoaded, got.loaded)
			assert.Equal(t, tt.wantErr, got.Err() != nil)
			assert.Equal(t, tt.wantQuitting, got.quitting)
		})
	}
}

func TestWatchModel_RefreshFetchesAgain(t *testing.T) {
	calls := 0
	fetch := func(context.Context) (batch.Progress, error) {
		calls++
		return runningProgress(), nil
	}
	m := NewWatchModel(context.Background(), fetch, time.Second)

	_, cmd := m.Update(refreshMsg(time.Now()))
	require.NotNil(t, cmd)
	_, ok := cmd().(StatsLoadedMsg)
	assert.True(t, ok)
	assert.Equal(t, 1, calls)
}

func TestWatchModel_WindowSize(t *testing.T) {
	m := NewWatchModel(context.Background(), staticFetch(runningProgress(), nil), time.Second)

	updated, cmd := m.Update(tea.WindowSizeMsg{Width: 40, Height: 20})
	assert.Nil(t, cmd)
	got := updated.(WatchModel)
	assert.Equal(t, 40, got.width)
	assert.Equal(t, 36, got.bar.Width)

	updated, _ = got.Update(tea.WindowSizeMsg{Width: 200, Height: 20})
	assert.Equal(t, maxBarWidth, updated.(WatchModel).bar.Width)

	updated, _ = got.Update(tea.WindowSizeMsg{Width: 5, Height: 20})
	assert.Equal(t, 10, updated.(WatchModel).bar.Width)
}

func TestWatchModel_View(t *testing.T) {
	m := NewWatchModel(context.Background(), staticFetch(runningProgress(), nil), time.Second)
	assert.Contains(t, m.View(), "Loading")

	updated, _ := m.Update(StatsLoadedMsg{Progress: runningProgress()})
	view := updated.(WatchModel).View()
	assert.Contains(t, view, "Batch b-1")
	assert.Contains(t, view, "400 / 1,000")
	assert.Contains(t, view, "monitoring")
	assert.Contains(t, view, "100.0/s")
	assert.Contains(t, view, "Remaining")
	assert.Contains(t, view, "Press q")
	assert.NotContains(t, view, "Failing jobs")

	failing := runningProgress()
	failing.FailedJobs = 2
	updated, _ = m.Update(StatsLoadedMsg{Progress: failing})
	assert.Contains(t, updated.(WatchModel).View(), "Failing jobs")

	updated, _ = m.Update(StatsErrorMsg{Err: errors.New("store down")})
	assert.Contains(t, updated.(WatchModel).View(), "Error: store down")
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "18,248", FormatNumber(18248))
	assert.Equal(t, "0", FormatNumber(0))
	assert.Equal(t, "12.5/s", FormatRate(12.5))
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "1m5s", FormatDuration(65*time.Second+300*time.Millisecond))
}

func TestStateStyle(t *testing.T) {
	assert.Equal(t, ColorWarning, StateStyle("executing", true).GetForeground())
	assert.Equal(t, ColorOK, StateStyle("completed", false).GetForeground())
	assert.Equal(t, ColorHighlight, StateStyle("executing", false).GetForeground())
}
