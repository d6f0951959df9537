package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ldi/pbltrack/internal/timeline"
	"github.com/ldi/pbltrack/internal/ui/components"
	"github.com/ldi/pbltrack/pkg/models"
)

var (
	headerTextStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238"))
)

// ProjectSource is the read side of the store the timeline view needs.
type ProjectSource interface {
	Timeline(ctx context.Context, projectID string, today time.Time) (*timeline.Grid, error)
	ListEvaluatedTasks(ctx context.Context, projectID string) ([]*models.Task, error)
	ListFeedback(ctx context.Context, taskID string) ([]*models.FeedbackEntry, error)
}

type projectLoadedMsg struct {
	grid  *timeline.Grid
	tasks []*models.Task
}

type feedbackLoadedMsg struct {
	taskID  string
	entries []*models.FeedbackEntry
}

type loadErrorMsg struct{ err error }

type timelineMode int

const (
	modeGantt timelineMode = iota
	modeBoard
)

// TimelineModel is a read-only project view: a scrollable Gantt chart with
// the selected task's critiques, or a status board.
type TimelineModel struct {
	source    ProjectSource
	projectID string
	title     string
	now       func() time.Time

	gantt    *components.Gantt
	board    *components.StatusBoard
	critique *components.CritiquePane

	taskIDs  []string
	cursor   int
	mode     timelineMode
	width    int
	height   int
	ready    bool
	loaded   bool
	quitting bool
	err      error
}

func NewTimelineModel(source ProjectSource, project *models.Project, now func() time.Time) *TimelineModel {
	if now == nil {
		now = time.Now
	}
	return &TimelineModel{
		source:    source,
		projectID: project.ID,
		title:     project.Title,
		now:       now,
		gantt:     components.NewGantt(timeline.Grid{}, 80),
		board:     components.NewStatusBoard(80),
		critique:  components.NewCritiquePane(80, 8),
	}
}

func (m *TimelineModel) Init() tea.Cmd {
	return m.load()
}

func (m *TimelineModel) load() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		grid, err := m.source.Timeline(ctx, m.projectID, m.now())
		if err != nil {
			return loadErrorMsg{err}
		}
		tasks, err := m.source.ListEvaluatedTasks(ctx, m.projectID)
		if err != nil {
			return loadErrorMsg{err}
		}
		return projectLoadedMsg{grid: grid, tasks: tasks}
	}
}

func (m *TimelineModel) loadFeedback(taskID string) tea.Cmd {
	return func() tea.Msg {
		entries, err := m.source.ListFeedback(context.Background(), taskID)
		if err != nil {
			return loadErrorMsg{err}
		}
		return feedbackLoadedMsg{taskID: taskID, entries: entries}
	}
}

func (m *TimelineModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "h", "left":
			m.gantt.Scroll(-7)
		case "l", "right":
			m.gantt.Scroll(7)
		case "t":
			m.gantt.ScrollToToday()
		case "j", "down":
			return m, m.moveCursor(1)
		case "k", "up":
			return m, m.moveCursor(-1)
		case "tab":
			if m.mode == modeGantt {
				m.mode = modeBoard
			} else {
				m.mode = modeGantt
			}
		case "r":
			return m, m.load()
		case "pgup", "pgdown":
			return m, m.critique.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.recalculateLayout()

	case projectLoadedMsg:
		m.err = nil
		m.gantt.Grid = *msg.grid
		m.board.SetTasks(msg.tasks)
		m.taskIDs = m.taskIDs[:0]
		for _, it := range msg.grid.Items {
			if it.Kind == timeline.KindTask {
				m.taskIDs = append(m.taskIDs, it.ItemID)
			}
		}
		if m.ready {
			m.recalculateLayout()
		}
		if !m.loaded {
			m.gantt.ScrollToToday()
			m.loaded = true
		}
		if m.cursor >= len(m.taskIDs) {
			m.cursor = 0
		}
		return m, m.selectCurrent()

	case feedbackLoadedMsg:
		if msg.taskID == m.gantt.Selected {
			m.critique.SetEntries(msg.entries)
		}

	case loadErrorMsg:
		m.err = msg.err
	}

	return m, nil
}

func (m *TimelineModel) moveCursor(delta int) tea.Cmd {
	if len(m.taskIDs) == 0 {
		return nil
	}
	m.cursor = (m.cursor + delta + len(m.taskIDs)) % len(m.taskIDs)
	return m.selectCurrent()
}

func (m *TimelineModel) selectCurrent() tea.Cmd {
	if len(m.taskIDs) == 0 {
		m.gantt.Selected = ""
		m.critique.Reset()
		return nil
	}
	id := m.taskIDs[m.cursor]
	m.gantt.Selected = id
	return m.loadFeedback(id)
}

// Selected returns the ID of the highlighted task, if any.
func (m *TimelineModel) Selected() string {
	return m.gantt.Selected
}

func (m *TimelineModel) recalculateLayout() {
	inner := m.width - 2
	if inner < 10 {
		inner = 10
	}
	m.gantt.Width = inner
	m.board.Width = inner

	// header, help line and two pane borders
	rest := m.height - len(m.gantt.Grid.Items) - 2 - 2 - 2 - 2
	if rest < 3 {
		rest = 3
	}
	m.critique.SetSize(inner, rest)
	m.gantt.Scroll(0)
}

func (m *TimelineModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	var s strings.Builder
	s.WriteString(headerTextStyle.Render(m.title))
	s.WriteString("\n")

	if m.err != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("error: %v", m.err)))
		s.WriteString("\n")
	}

	switch m.mode {
	case modeBoard:
		s.WriteString(m.board.View())
	default:
		s.WriteString(paneStyle.Render(m.gantt.View()))
		s.WriteString("\n")
		s.WriteString(paneStyle.Render(m.critique.View()))
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("h/l scroll • t today • j/k task • tab board • r reload • q quit"))
	return s.String()
}

// RunTimeline opens the interactive view for one project. now supplies the
// today marker; nil means the wall clock.
func RunTimeline(source ProjectSource, project *models.Project, now func() time.Time) error {
	p := tea.NewProgram(NewTimelineModel(source, project, now), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
