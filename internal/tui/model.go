package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docembed/internal/domain"
)

// PipelinePort is the TUI-facing subset of the pipeline controller.
type PipelinePort interface {
	SubmitDocument(name, text string) error
	StartEmbedding(ctx context.Context, onProgress func(float64)) error
	Export() (domain.ExportableDocument, error)
	Snapshot() domain.PipelineState
}

// ExportFunc persists a completed document and returns the written paths.
type ExportFunc func(ctx context.Context, doc domain.ExportableDocument, runID string) ([]string, error)

// Options configures the model.
type Options struct {
	Source string
	Text   string
	Export ExportFunc
	// SubmitErr is the error from the initial SubmitDocument call, if any.
	SubmitErr error
}

type progressMsg struct {
	ch      chan float64
	percent float64
}

type embedDoneMsg struct{ err error }

type exportDoneMsg struct {
	paths []string
	err   error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	port     PipelinePort
	opts     Options
	bar      progress.Model
	spinner  spinner.Model
	viewport viewport.Model

	state      domain.PipelineState
	percent    float64
	running    bool
	cancel     context.CancelFunc
	progressCh chan float64
	status     string
	ready      bool
}

// New creates a new TUI model over a pipeline whose document has already
// been submitted.
func New(port PipelinePort, opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	m := Model{
		port:     port,
		opts:     opts,
		bar:      progress.New(progress.WithDefaultGradient()),
		spinner:  sp,
		viewport: viewport.New(0, 0),
	}
	m.refresh()
	switch {
	case opts.SubmitErr != nil:
		m.status = "Error: " + opts.SubmitErr.Error() + ". Press r to resubmit."
	case m.state.Phase != domain.PhaseChunked:
		m.status = "Press r to submit the document."
	default:
		m.status = "Press enter to start embedding."
	}
	return m
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd { return m.spinner.Tick }

// Update handles key, window and pipeline events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.bar.Width = max(20, msg.Width-4)
		_, bh := previewBoxStyle.GetFrameSize()
		reserved := 6 + bh // header, phase, bar, status, help, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.viewport.SetContent(m.renderPreview())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case "enter":
			return m.startEmbedding()
		case "esc":
			if m.running && m.cancel != nil {
				m.cancel()
				m.status = "Cancelling after the current chunk..."
			}
			return m, nil
		case "r":
			return m.resubmit(), nil
		case "e":
			return m.export()
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case progressMsg:
		if !m.running || msg.ch != m.progressCh {
			return m, nil
		}
		if msg.percent > m.percent {
			m.percent = msg.percent
		}
		return m, waitForProgress(msg.ch)

	case embedDoneMsg:
		m.running = false
		m.cancel = nil
		m.progressCh = nil
		m.refresh()
		m.percent = m.state.Progress
		switch {
		case msg.err == nil:
			m.status = fmt.Sprintf("Embedded %d chunks. Press e to export.", len(m.state.Results))
		case m.state.Phase == domain.PhaseChunked:
			m.status = "Embedding cancelled. Press enter to start again."
		default:
			m.status = failureStatus(msg.err)
		}
		m.viewport.SetContent(m.renderPreview())
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			m.status = "Export failed: " + msg.err.Error()
		} else {
			m.status = "Exported " + strings.Join(msg.paths, ", ")
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) startEmbedding() (tea.Model, tea.Cmd) {
	if m.running || m.port.Snapshot().Phase != domain.PhaseChunked {
		return m, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan float64, 1)
	m.running = true
	m.cancel = cancel
	m.progressCh = ch
	m.percent = 0
	m.status = "Loading model..."
	port := m.port
	run := func() tea.Msg {
		defer cancel()
		err := port.StartEmbedding(ctx, func(p float64) { sendLatest(ch, p) })
		close(ch)
		return embedDoneMsg{err: err}
	}
	return m, tea.Batch(run, waitForProgress(ch))
}

func (m Model) resubmit() Model {
	if m.running {
		m.status = "Embedding in progress. Press esc to cancel first."
		return m
	}
	if err := m.port.SubmitDocument(m.opts.Source, m.opts.Text); err != nil {
		m.status = "Error: " + err.Error()
	} else {
		m.status = "Document resubmitted. Press enter to start embedding."
	}
	m.refresh()
	m.percent = 0
	m.viewport.SetContent(m.renderPreview())
	return m
}

func (m Model) export() (tea.Model, tea.Cmd) {
	if m.state.Phase != domain.PhaseComplete || m.opts.Export == nil {
		return m, nil
	}
	m.status = "Exporting..."
	port, exportFn, runID := m.port, m.opts.Export, m.state.RunID
	return m, func() tea.Msg {
		doc, err := port.Export()
		if err != nil {
			return exportDoneMsg{err: err}
		}
		paths, err := exportFn(context.Background(), doc, runID)
		return exportDoneMsg{paths: paths, err: err}
	}
}

func (m *Model) refresh() { m.state = m.port.Snapshot() }

// sendLatest replaces any unread value in ch with p without blocking.
// ch must have a buffer of at least one and a single sender.
func sendLatest(ch chan float64, p float64) {
	for {
		select {
		case ch <- p:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func waitForProgress(ch chan float64) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return progressMsg{ch: ch, percent: p}
	}
}

func failureStatus(err error) string {
	var ef *domain.EmbeddingFailedError
	if errors.As(err, &ef) {
		return fmt.Sprintf("Failed at chunk %d: %v. Press r to resubmit.", ef.ChunkID, ef.Cause)
	}
	return "Failed: " + err.Error() + ". Press r to resubmit."
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("docembed  " + m.opts.Source)
	phase := fmt.Sprintf("Phase: %s   Chunks: %d", m.phaseLabel(), len(m.state.Chunks))
	if m.running && m.percent == 0 {
		phase += "   " + m.spinner.View() + " loading model"
	}
	bar := m.bar.ViewAs(m.percent / 100)
	status := statusStyle.Render(m.status)
	if m.state.Phase == domain.PhaseFailed && !m.running {
		status = errorStyle.Render(m.status)
	}
	help := helpStyle.Render("enter start  esc cancel  r resubmit  e export  q quit")
	return header + "\n" + phase + "\n" + bar + "\n" + previewBoxStyle.Render(m.viewport.View()) + "\n" + status + "\n" + help
}

func (m Model) phaseLabel() string {
	if m.running {
		return domain.PhaseEmbedding.String()
	}
	return m.state.Phase.String()
}

func (m Model) renderPreview() string {
	if len(m.state.Chunks) == 0 {
		return "No chunks."
	}
	var b strings.Builder
	for i, c := range m.state.Chunks {
		line := fmt.Sprintf("#%d  %d words  %s", c.ID, len(strings.Fields(c.Text)), excerpt(c.Text, 60))
		if i < len(m.state.Results) {
			line += dimStyle.Render(fmt.Sprintf("  [%d dims]", len(m.state.Results[i].Embedding)))
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	previewBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
