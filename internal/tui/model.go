package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"metaredact/internal/queue"
)

// maxRows bounds how many file rows the live view shows.
const maxRows = 12

type fileRow struct {
	id       string
	name     string
	status   queue.Status
	progress int
	err      string
}

// Model renders queue events as a live progress view. It quits once done
// yields, after folding in any events still buffered.
type Model struct {
	events   <-chan queue.Event
	done     <-chan error
	started  time.Time
	width    int
	rows     []fileRow
	index    map[string]int
	err      error
	drained  bool
	quitting bool
}

type eventMsg queue.Event

type drainedMsg struct{ err error }

func NewModel(events <-chan queue.Event, done <-chan error) Model {
	return Model{
		events:  events,
		done:    done,
		started: time.Now(),
		index:   make(map[string]int),
	}
}

// Drained reports whether the model saw the drain finish, as opposed to
// being quit by the user first.
func (m Model) Drained() bool {
	return m.drained
}

// Err reports the error the drain finished with, if any.
func (m Model) Err() error {
	return m.err
}

func (m Model) Init() tea.Cmd {
	return listen(m.events, m.done)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.apply(queue.Event(msg))
		return m, listen(m.events, m.done)
	case drainedMsg:
		for pending := true; pending; {
			select {
			case ev := <-m.events:
				m.apply(ev)
			default:
				pending = false
			}
		}
		m.err = msg.err
		m.drained = true
		m.quitting = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	default:
		return m, nil
	}
}

func (m *Model) apply(ev queue.Event) {
	i, known := m.index[ev.File.ID]
	switch ev.Type {
	case queue.EventRemoved:
		if !known {
			return
		}
		m.rows = append(m.rows[:i], m.rows[i+1:]...)
		delete(m.index, ev.File.ID)
		for j := i; j < len(m.rows); j++ {
			m.index[m.rows[j].id] = j
		}
		return
	default:
		if !known {
			i = len(m.rows)
			m.rows = append(m.rows, fileRow{id: ev.File.ID})
			m.index[ev.File.ID] = i
		}
	}
	m.rows[i].name = ev.File.Name
	m.rows[i].status = ev.File.Status
	m.rows[i].progress = ev.File.Progress
	m.rows[i].err = ev.File.Error
}

func (m Model) counts() queue.Counts {
	c := queue.Counts{Total: len(m.rows)}
	for _, r := range m.rows {
		switch r.status {
		case queue.StatusQueued:
			c.Queued++
		case queue.StatusProcessing:
			c.Processing++
		case queue.StatusDone:
			c.Done++
		case queue.StatusError:
			c.Error++
		}
	}
	return c
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = int(math.Min(60, float64(m.width-10)))
		if barWidth < 20 {
			barWidth = 20
		}
	}

	c := m.counts()
	ratio := 0.0
	if c.Total > 0 {
		ratio = float64(c.Finished()) / float64(c.Total)
	}
	elapsed := time.Since(m.started).Round(time.Millisecond)

	lines := []string{
		titleStyle.Render("metaredact"),
		labelStyle.Render(fmt.Sprintf("Files: %d/%d", c.Finished(), c.Total)) +
			dimStyle.Render(fmt.Sprintf("  queued:%d  errors:%d", c.Queued, c.Error)),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed)),
		barStyle.Render(renderBar(barWidth, ratio)),
	}

	start := 0
	if len(m.rows) > maxRows {
		start = len(m.rows) - maxRows
		lines = append(lines, dimStyle.Render(fmt.Sprintf("… %d earlier files", start)))
	}
	for _, r := range m.rows[start:] {
		lines = append(lines, renderRow(r))
	}

	return strings.Join(lines, "\n")
}

func renderRow(r fileRow) string {
	badge := statusStyle(r.status).Render(padRight(string(r.status), len(queue.StatusProcessing)))
	line := fmt.Sprintf("%s %3d%% %s", badge, r.progress, labelStyle.Render(r.name))
	if r.err != "" {
		line += " " + errorStyle.Render(r.err)
	}
	return line
}

func listen(events <-chan queue.Event, done <-chan error) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-events:
			return eventMsg(ev)
		case err := <-done:
			return drainedMsg{err: err}
		}
	}
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}
