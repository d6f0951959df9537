package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ldi/pbltrack/internal/timeline"
	"github.com/ldi/pbltrack/pkg/models"
)

type fakeSource struct {
	grid     *timeline.Grid
	tasks    []*models.Task
	feedback map[string][]*models.FeedbackEntry
	err      error
}

func (f *fakeSource) Timeline(ctx context.Context, projectID string, today time.Time) (*timeline.Grid, error) {
	return f.grid, f.err
}

func (f *fakeSource) ListEvaluatedTasks(ctx context.Context, projectID string) ([]*models.Task, error) {
	return f.tasks, f.err
}

func (f *fakeSource) ListFeedback(ctx context.Context, taskID string) ([]*models.FeedbackEntry, error) {
	return f.feedback[taskID], f.err
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		grid: &timeline.Grid{
			Origin:      time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC),
			TodayColumn: 5,
			Width:       30,
			Items: []timeline.Item{
				{ItemID: "a", Kind: timeline.KindTask, Title: "Survey", Column: 4, Span: 3, Status: models.TaskStatusDone},
				{ItemID: "m", Kind: timeline.KindMilestone, Title: "Checkpoint", Column: 8, Span: 1},
				{ItemID: "b", Kind: timeline.KindTask, Title: "Poster", Column: 7, Span: 5, Status: models.TaskStatusTodo},
			},
		},
		tasks: []*models.Task{
			{ID: "a", Title: "Survey", Status: models.TaskStatusDone},
			{ID: "b", Title: "Poster", Status: models.TaskStatusTodo, Blocked: true},
		},
		feedback: map[string][]*models.FeedbackEntry{
			"b": {{Seq: 3, AuthorID: "carol", Warm: "bold colors", Cool: "too much text"}},
		},
	}
}

// run feeds a command's message back into the model until it settles.
func run(t *testing.T, m *TimelineModel, cmd tea.Cmd) {
	t.Helper()
	for i := 0; cmd != nil && i < 10; i++ {
		_, cmd = m.Update(cmd())
	}
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTimelineModel(t *testing.T) {
	src := newFakeSource()
	project := &models.Project{ID: "p1", Title: "Water quality"}
	fixed := func() time.Time { return time.Date(2026, 2, 19, 9, 0, 0, 0, time.UTC) }
	m := NewTimelineModel(src, project, fixed)

	if got := m.View(); got != "Loading..." {
		t.Fatalf("expected loading view before size, got %q", got)
	}
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	run(t, m, m.Init())

	if m.Selected() != "a" {
		t.Fatalf("expected first task selected, got %q", m.Selected())
	}
	view := m.View()
	for _, want := range []string{"Water quality", "Survey", "Checkpoint", "No feedback yet"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}

	// Milestones are skipped by the cursor.
	_, cmd := m.Update(key("j"))
	run(t, m, cmd)
	if m.Selected() != "b" {
		t.Fatalf("expected task b selected, got %q", m.Selected())
	}
	if view := m.View(); !strings.Contains(view, "too much text") {
		t.Errorf("expected critique of selected task, got %q", view)
	}

	_, cmd = m.Update(key("j"))
	run(t, m, cmd)
	if m.Selected() != "a" {
		t.Errorf("expected cursor to wrap to a, got %q", m.Selected())
	}

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if view := m.View(); !strings.Contains(view, "To do (1)") || !strings.Contains(view, "⊘") {
		t.Errorf("expected status board with blocked marker, got %q", view)
	}

	_, cmd = m.Update(key("q"))
	if cmd == nil || m.View() != "" {
		t.Error("expected quit")
	}
}

func TestTimelineModelScroll(t *testing.T) {
	src := newFakeSource()
	m := NewTimelineModel(src, &models.Project{ID: "p1", Title: "x"}, nil)
	m.Update(tea.WindowSizeMsg{Width: 40, Height: 20})
	run(t, m, m.Init())

	m.Update(key("l"))
	if m.gantt.Offset == 0 {
		t.Fatal("expected scroll right to move offset")
	}
	m.Update(key("h"))
	m.Update(key("h"))
	if m.gantt.Offset != 0 {
		t.Errorf("expected offset clamped to 0, got %d", m.gantt.Offset)
	}
}

func TestTimelineModelLoadError(t *testing.T) {
	src := newFakeSource()
	src.err = errors.New("database is locked")
	m := NewTimelineModel(src, &models.Project{ID: "p1", Title: "x"}, nil)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	run(t, m, m.Init())

	if !strings.Contains(m.View(), "database is locked") {
		t.Errorf("expected error in view")
	}
}
