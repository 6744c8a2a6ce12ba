package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/batchengine/internal/batch"
)

// StatsFunc loads the current statistics of the watched batch.
type StatsFunc func(ctx context.Context) (batch.Progress, error)

// StatsLoadedMsg carries a fresh statistics snapshot.
type StatsLoadedMsg struct {
	Progress batch.Progress
}

// StatsErrorMsg reports a failed statistics load.
type StatsErrorMsg struct {
	Err error
}

// refreshMsg triggers the next load.
type refreshMsg time.Time

// WatchModel is the Bubble Tea model that follows one batch until it
// completes or the user quits.
//
//nolint:recvcheck // Bubble Tea requires value receivers for Init/Update/View interface methods.
type WatchModel struct {
	ctx      context.Context
	fetch    StatsFunc
	interval time.Duration

	bar   progress.Model
	width int

	stats    batch.Progress
	loaded   bool
	done     bool
	quitting bool
	err      error
}

// NewWatchModel creates a watch model polling fetch every interval.
func NewWatchModel(ctx context.Context, fetch StatsFunc, interval time.Duration) WatchModel {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = min(defaultWidth-barPadding, maxBarWidth)

	return WatchModel{
		ctx:      ctx,
		fetch:    fetch,
		interval: interval,
		bar:      bar,
		width:    defaultWidth,
	}
}

// Init loads the first snapshot (Bubble Tea interface).
func (m WatchModel) Init() tea.Cmd {
	return m.load()
}

func (m WatchModel) load() tea.Cmd {
	return func() tea.Msg {
		p, err := m.fetch(m.ctx)
		if err != nil {
			return StatsErrorMsg{Err: err}
		}
		return StatsLoadedMsg{Progress: p}
	}
}

func (m WatchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// Update handles messages (Bubble Tea interface).
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case keyQuit, keyCtrlC, keyEsc:
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(min(msg.Width-barPadding, maxBarWidth), 10) //nolint:mnd // Minimum usable bar width.
		return m, nil

	case StatsLoadedMsg:
		m.stats = msg.Progress
		m.loaded = true
		if m.stats.IsComplete() {
			m.done = true
			return m, tea.Quit
		}
		return m, m.tick()

	case StatsErrorMsg:
		m.err = msg.Err
		return m, tea.Quit

	case refreshMsg:
		return m, m.load()
	}

	return m, nil
}

// View renders the batch statistics (Bubble Tea interface).
func (m WatchModel) View() string {
	if m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}
	if !m.loaded {
		return mutedStyle.Render("Loading batch statistics...") + "\n"
	}

	var sb strings.Builder
	p := m.stats

	sb.WriteString(titleStyle.Render("Batch " + p.BatchID))
	sb.WriteString("\n\n")

	sb.WriteString(m.bar.ViewAs(p.PercentComplete() / 100)) //nolint:mnd // Percentage to ratio.
	sb.WriteString("\n\n")

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(label))
		sb.WriteString(valueStyle.Render(value))
		sb.WriteString("\n")
	}

	row("State", StateStyle(string(p.State), false).Render(string(p.State)))
	row("Work items", fmt.Sprintf("%s / %s", FormatNumber(p.CompletedItems), FormatNumber(p.TotalItems)))
	row("Seeded items", FormatNumber(p.SeededItems))
	row("Batch jobs", fmt.Sprintf("%s created, %s completed, %s remaining",
		FormatNumber(p.CreatedJobs), FormatNumber(p.CompletedJobs), FormatNumber(p.RemainingJobs)))
	if p.FailedJobs > 0 {
		row("Failing jobs", errorStyle.Render(FormatNumber(p.FailedJobs)))
	}
	row("Elapsed", FormatDuration(p.ElapsedTime))
	row("Rate", FormatRate(p.ItemsPerSecond()))
	if eta := p.EstimatedTimeRemaining(); eta > 0 && !m.done {
		row("Remaining", FormatDuration(eta))
	}

	sb.WriteString("\n")
	switch {
	case m.done:
		sb.WriteString(StateStyle("completed", false).Render("Batch completed."))
	case m.quitting:
		sb.WriteString(mutedStyle.Render("Stopped watching; the batch keeps running."))
	default:
		sb.WriteString(mutedStyle.Render("Press q to stop watching."))
	}
	sb.WriteString("\n")

	return sb.String()
}

// Done reports whether the watched batch completed.
func (m WatchModel) Done() bool {
	return m.done
}

// Err returns the error that ended the watch, if any.
func (m WatchModel) Err() error {
	return m.err
}
