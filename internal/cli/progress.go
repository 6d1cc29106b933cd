package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
)

const pollInterval = time.Second

// Theme colors the wait display.
type Theme struct {
	Running lipgloss.Color
	Done    lipgloss.Color
	Failed  lipgloss.Color
	Muted   lipgloss.Color
}

var defaultTheme = Theme{
	Running: lipgloss.Color("#5FAFD7"),
	Done:    lipgloss.Color("#00D787"),
	Failed:  lipgloss.Color("#FF005F"),
	Muted:   lipgloss.Color("#6C6C6C"),
}

func (t Theme) runningStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Running)
}

func (t Theme) doneStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Done).Bold(true)
}

func (t Theme) failedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Failed).Bold(true)
}

func (t Theme) mutedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Muted).Italic(true)
}

// tickMsg triggers polling the job status
type tickMsg time.Time

// pendingMsg carries the jobs still without a result
type pendingMsg struct {
	pending []string
	err     error
}

// progressModel is the bubbletea model for waiting on a set of jobs.
type progressModel struct {
	ctx      context.Context
	poller   jobPoller
	total    int
	pending  []string
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

// newProgressModel creates a new progress model.
func newProgressModel(ctx context.Context, p jobPoller, jobIDs []string) progressModel {
	// Create progress bar with color blend
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		ctx:      ctx,
		poller:   p,
		total:    len(jobIDs),
		pending:  jobIDs,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command (poll right away).
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		m.fetchPending(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchPending()

	case pendingMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch job status: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}

		m.pending = msg.pending
		if len(m.pending) == 0 {
			m.done = true
			return m, tea.Quit
		}

		// Continue polling while jobs are running
		return m, tickCmd()

	case progress.FrameMsg:
		// Update progress bar animation
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	finished := m.total - len(m.pending)
	var pct float64
	if m.total > 0 {
		pct = float64(finished) / float64(m.total)
	}

	status := m.theme.runningStyle().Render("[running]")
	progressBar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d jobs", finished, m.total)
	hint := m.theme.mutedStyle().Render("Press Ctrl+C to stop waiting")

	return fmt.Sprintf("%s %s %s\n%s\n", status, progressBar, counts, hint)
}

// finalView renders the completion message.
func (m progressModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nStopped waiting; %d job(s) still running: %s\nUse 'nutristat result <job-id>' to check later.\n",
			len(m.pending), strings.Join(m.pending, ", "))
		return m.theme.mutedStyle().Render(msg)
	}

	if m.err != nil {
		return m.theme.failedStyle().Render(fmt.Sprintf("\n✗ %s\n", m.err))
	}

	return m.theme.doneStyle().Render(fmt.Sprintf("✓ %d/%d jobs done\n", m.total, m.total))
}

// fetchPending polls the jobs still pending.
// Runs in a separate goroutine (command) to avoid blocking Update().
func (m progressModel) fetchPending() tea.Cmd {
	pending := m.pending
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
		defer cancel()

		still, err := pollPending(ctx, m.poller, pending)
		return pendingMsg{pending: still, err: err}
	}
}

// tickCmd returns a command that sends a tick after the poll interval.
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunJobProgress runs the interactive progress UI until every job is done.
// It reports false without error when the user stops waiting with Ctrl+C.
func RunJobProgress(ctx context.Context, p jobPoller, jobIDs []string) (bool, error) {
	model := newProgressModel(ctx, p, jobIDs)
	prog := tea.NewProgram(model)

	finalModel, err := prog.Run()
	if err != nil {
		return false, fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		// Jobs keep running on the server - not an error
		if m.quitting {
			return false, nil
		}
		if m.err != nil {
			return false, m.err
		}
	}

	return true, nil
}
