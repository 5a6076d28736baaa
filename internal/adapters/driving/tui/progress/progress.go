// Package progress renders live ingestion progress in the terminal.
package progress

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/contextkb/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/contextkb/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driving"
)

// stageLabels are the user-facing names of each stage.
var stageLabels = map[domain.Stage]string{
	domain.StageReceived:          "Received",
	domain.StageExtracted:         "Extracted text",
	domain.StageChunked:           "Chunked",
	domain.StageSanitized:         "Sanitised metadata",
	domain.StageEmbeddedAndStored: "Embedded and stored",
	domain.StageIngested:          "Ingested",
}

// Model shows one line per completed stage and a spinner for the stage
// in progress.
type Model struct {
	styles  *styles.Styles
	spinner spinner.Model
	docID   string

	completed []domain.StageEvent
	current   domain.Stage

	result *domain.IngestResult
	err    error
	done   bool
}

// New creates a progress model for one document.
func New(docID string, s *styles.Styles) Model {
	if s == nil {
		s = styles.DefaultStyles()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Spinner

	return Model{
		styles:  s,
		spinner: sp,
		docID:   docID,
		current: domain.StageReceived,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles stage transitions and spinner ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case messages.StageChanged:
		ev := msg.Event
		if ev.Stage == domain.StageFailed {
			m.err = ev.Err
			return m, nil
		}
		m.completed = append(m.completed, ev)
		m.current = ev.Stage.Next()
		return m, nil

	case messages.IngestCompleted:
		m.result = msg.Result
		m.err = msg.Err
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.err = context.Canceled
			m.done = true
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the stage list.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Ingesting " + m.docID))
	b.WriteString("\n")

	for _, ev := range m.completed {
		line := "✓ " + label(ev.Stage)
		if ev.Detail != "" {
			line += " (" + ev.Detail + ")"
		}
		b.WriteString(m.styles.Muted.Render(line))
		b.WriteString("\n")
	}

	switch {
	case m.err != nil:
		b.WriteString(m.styles.Error.Render("✗ " + domain.PublicMessage(m.err)))
		b.WriteString("\n")
	case m.done && m.result != nil:
		b.WriteString(m.styles.Success.Render(fmt.Sprintf("Done: %d pages, %d chunks in %s",
			m.result.PageCount, m.result.ChunkCount, m.result.Duration.Round(time.Millisecond))))
		b.WriteString("\n")
	case !m.current.IsTerminal():
		b.WriteString(m.spinner.View() + " " + m.styles.Normal.Render(label(m.current)+"..."))
		b.WriteString("\n")
	}
	return b.String()
}

// Outcome returns the ingestion result once the model is done.
func (m Model) Outcome() (*domain.IngestResult, error) {
	return m.result, m.err
}

// Done reports whether the ingestion finished.
func (m Model) Done() bool {
	return m.done
}

// Run drives ingest while rendering progress to out. ingest receives an
// observer that forwards stage events to the view.
func Run(
	ctx context.Context,
	out io.Writer,
	docID string,
	ingest func(observer driving.StageObserver) (*domain.IngestResult, error),
) (*domain.IngestResult, error) {
	p := tea.NewProgram(New(docID, nil),
		tea.WithContext(ctx),
		tea.WithOutput(out),
		tea.WithInput(nil),
	)

	go func() {
		result, err := ingest(func(ev domain.StageEvent) {
			p.Send(messages.StageChanged{Event: ev})
		})
		p.Send(messages.IngestCompleted{Result: result, Err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress display: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return nil, fmt.Errorf("progress display: unexpected model %T", final)
	}
	return m.Outcome()
}

func label(s domain.Stage) string {
	if l, ok := stageLabels[s]; ok {
		return l
	}
	return string(s)
}
