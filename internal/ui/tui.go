package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// maxShownErrors bounds the error list in the interactive view.
const maxShownErrors = 5

// TUIRenderer renders progress with bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *batchModel
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates an interactive renderer. It fails when the
// output is not a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	model := newBatchModel(cfg.Title)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:   cfg,
		model: model,
		done:  make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	ctx, r.cancel = context.WithCancel(ctx)

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.send(progressMsg(event))
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.send(errorMsg(event))
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.send(completeMsg(stats))
}

// Stop implements Renderer. It waits briefly for the final frame.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	program := r.program
	r.mu.Unlock()

	if program == nil {
		return nil
	}

	select {
	case <-r.done:
	case <-time.After(500 * time.Millisecond):
		program.Quit()
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
		}
	}
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	program := r.program
	r.mu.Unlock()
	if program != nil {
		program.Send(msg)
	}
}

type progressMsg ProgressEvent
type errorMsg ErrorEvent
type completeMsg CompletionStats

// batchModel is the bubbletea model for a batch operation.
type batchModel struct {
	title    string
	width    int
	event    ProgressEvent
	errors   []ErrorEvent
	started  time.Time
	complete bool
	quitting bool
	stats    CompletionStats

	spinner     spinner.Model
	progressBar progress.Model
	styles      Styles
}

func newBatchModel(title string) *batchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent))

	p := progress.New(
		progress.WithSolidFill(ColorAccent),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &batchModel{
		title:       title,
		width:       80,
		started:     time.Now(),
		spinner:     s,
		progressBar: p,
		styles:      DefaultStyles(),
	}
}

// Init implements tea.Model.
func (m *batchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *batchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = max(msg.Width-30, 20)

	case progressMsg:
		m.event = ProgressEvent(msg)

	case errorMsg:
		m.errors = append(m.errors, ErrorEvent(msg))

	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *batchModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	var b strings.Builder
	b.WriteString(m.styles.Header.Render(m.title))
	b.WriteString("\n\n")
	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(m.styles.Active.Render(m.event.Stage.String()))

	if m.event.Total > 0 {
		ratio := float64(m.event.Current) / float64(m.event.Total)
		fmt.Fprintf(&b, "  %s %d/%d", m.progressBar.ViewAs(ratio), m.event.Current, m.event.Total)
	}
	b.WriteString("\n")

	if name := m.event.CurrentFile; name != "" {
		b.WriteString(m.styles.Label.Render("  " + truncate(name, m.width-4)))
		b.WriteString("\n")
	}
	b.WriteString(m.renderErrors())
	b.WriteString(m.styles.Dim.Render(fmt.Sprintf("  elapsed %s", formatDuration(time.Since(m.started)))))
	b.WriteString("\n")
	return b.String()
}

func (m *batchModel) renderErrors() string {
	if len(m.errors) == 0 {
		return ""
	}
	var b strings.Builder
	start := max(len(m.errors)-maxShownErrors, 0)
	for _, e := range m.errors[start:] {
		b.WriteString(m.styles.Error.Render(fmt.Sprintf("  ✗ %s: %v", e.File, e.Err)))
		b.WriteString("\n")
	}
	if start > 0 {
		b.WriteString(m.styles.Dim.Render(fmt.Sprintf("  ... and %d more", start)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *batchModel) renderComplete() string {
	var b strings.Builder
	b.WriteString(m.styles.Success.Render("✓ " + summary(m.stats)))
	b.WriteString(m.styles.Dim.Render(" in " + formatDuration(m.stats.Duration)))
	b.WriteString("\n")
	if m.stats.Errors > 0 {
		b.WriteString(m.styles.Warning.Render(fmt.Sprintf("  %d files failed", m.stats.Errors)))
		b.WriteString("\n")
		b.WriteString(m.renderErrors())
	}
	return b.String()
}

// formatDuration renders d as 1.2s or 3m04s.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%02ds", m, s)
}

// truncate shortens s to width runes, keeping the tail.
func truncate(s string, width int) string {
	r := []rune(s)
	if width < 4 || len(r) <= width {
		return s
	}
	return "..." + string(r[len(r)-width+3:])
}

var _ Renderer = (*TUIRenderer)(nil)
