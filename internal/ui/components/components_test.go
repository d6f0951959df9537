package components

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/ldi/pbltrack/internal/timeline"
	"github.com/ldi/pbltrack/pkg/models"
)

func boardTasks() []*models.Task {
	alice := "alice"
	deleted := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return []*models.Task{
		{ID: "1", Title: "Research", Status: models.TaskStatusDone},
		{ID: "2", Title: "Prototype", Status: models.TaskStatusInProgress, AssigneeID: &alice},
		{ID: "3", Title: "Present", Status: models.TaskStatusTodo, Blocked: true},
		{ID: "4", Title: "Scrapped", Status: models.TaskStatusTodo, DeletedAt: &deleted},
	}
}

func TestStatusBoard(t *testing.T) {
	b := NewStatusBoard(60)
	b.Title = "Science fair"
	b.SetTasks(boardTasks())

	view := b.View()
	for _, want := range []string{"Science fair", "Done (1)", "In progress (1)", "To do (1)", "✓ Research", "Prototype @alice", "⊘"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
	if strings.Contains(view, "In review") {
		t.Errorf("expected no review column when empty")
	}
	if strings.Contains(view, "Scrapped") {
		t.Errorf("expected deleted task to be hidden")
	}
	if b.Count(models.TaskStatusTodo) != 1 {
		t.Errorf("expected 1 todo task, got %d", b.Count(models.TaskStatusTodo))
	}
}

func TestStatusBoardColumnOrder(t *testing.T) {
	b := NewStatusBoard(40)
	b.SetTasks(boardTasks())

	view := b.View()
	todo := strings.Index(view, "To do")
	doing := strings.Index(view, "In progress")
	done := strings.Index(view, "Done")
	if todo == -1 || doing == -1 || done == -1 {
		t.Fatalf("expected all non-empty columns present")
	}
	if !(todo < doing && doing < done) {
		t.Errorf("expected workflow order, got indices: %d, %d, %d", todo, doing, done)
	}
}

func TestStatusBoardEmptyState(t *testing.T) {
	b := NewStatusBoard(80)
	if !strings.Contains(b.View(), "No tasks yet") {
		t.Errorf("expected placeholder when no tasks")
	}
}

func TestStatusBoardWidth(t *testing.T) {
	width := 20
	b := NewStatusBoard(width)
	b.SetTasks([]*models.Task{{ID: "1", Title: "a rather long task title that wraps", Status: models.TaskStatusTodo}})

	for _, line := range strings.Split(b.View(), "\n") {
		if w := lipgloss.Width(line); w > width {
			t.Errorf("line too wide: %d > %d. Line: %q", w, width, line)
		}
	}
}

func ganttGrid() timeline.Grid {
	return timeline.Grid{
		Origin:      time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC),
		TodayColumn: 5,
		Width:       40,
		Items: []timeline.Item{
			{ItemID: "t1", Kind: timeline.KindTask, Title: "Build model", Column: 6, Span: 4, Status: models.TaskStatusInProgress},
			{ItemID: "m1", Kind: timeline.KindMilestone, Title: "Showcase", Column: 14, Span: 1, HardDeadline: true},
		},
	}
}

func TestGanttView(t *testing.T) {
	g := NewGantt(ganttGrid(), 60)
	view := g.View()

	for _, want := range []string{"2026-02-15", "Build model", "Showcase", barCell, milestoneCell, todayMarker} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
	if n := strings.Count(view, barCell); n != 4 {
		t.Errorf("expected 4 bar cells, got %d", n)
	}
	for i, line := range strings.Split(view, "\n") {
		if w := lipgloss.Width(line); w > 60 {
			t.Errorf("line %d too wide: %d > 60", i, w)
		}
	}
}

func TestGanttScroll(t *testing.T) {
	g := NewGantt(ganttGrid(), 30)
	days := g.Days()
	if days != 9 {
		t.Fatalf("expected 9 visible days, got %d", days)
	}

	g.Scroll(-5)
	if g.Offset != 0 {
		t.Errorf("expected offset clamped at 0, got %d", g.Offset)
	}
	g.Scroll(100)
	if g.Offset != 40-days {
		t.Errorf("expected offset clamped at %d, got %d", 40-days, g.Offset)
	}
	if strings.Contains(g.View(), barCell) {
		t.Errorf("expected task bar scrolled out of view")
	}

	g.ScrollToToday()
	if g.Offset != 0 {
		t.Errorf("expected today near the left edge to clamp offset to 0, got %d", g.Offset)
	}
	header := strings.Split(g.View(), "\n")[0]
	if !strings.Contains(header, todayMarker) {
		t.Errorf("expected today marker in header, got %q", header)
	}
}

func TestGanttSelectionAndTruncation(t *testing.T) {
	grid := ganttGrid()
	grid.Items[0].Title = "An extremely long task title"
	g := NewGantt(grid, 60)
	g.LabelWidth = 10
	g.Selected = "t1"

	view := g.View()
	if !strings.Contains(view, "> An extr…") {
		t.Errorf("expected truncated selected label, got %q", view)
	}
}

func TestGanttEmpty(t *testing.T) {
	g := NewGantt(timeline.Grid{Width: 7, TodayColumn: 4}, 40)
	if !strings.Contains(g.View(), "Nothing scheduled") {
		t.Errorf("expected placeholder for empty grid")
	}
}

func feedbackEntries(n int) []*models.FeedbackEntry {
	var entries []*models.FeedbackEntry
	for i := 1; i <= n; i++ {
		entries = append(entries, &models.FeedbackEntry{
			Seq:       int64(i),
			AuthorID:  "bob",
			Warm:      "clear poster",
			Cool:      "cite sources",
			CreatedAt: time.Date(2026, 2, 20, 10, i, 0, 0, time.UTC),
		})
	}
	return entries
}

func TestCritiquePane(t *testing.T) {
	p := NewCritiquePane(60, 20)
	if !strings.Contains(p.View(), "No feedback yet") {
		t.Errorf("expected placeholder with no entries")
	}

	entries := feedbackEntries(1)
	entries[0].RequiresRevision = true
	p.SetEntries(entries)

	view := p.View()
	for _, want := range []string{"#1 bob", "warm: clear poster", "cool: cite sources", "revise"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}

	p.Reset()
	if strings.Contains(p.View(), "clear poster") {
		t.Errorf("expected view to be cleared after Reset")
	}
}

func TestCritiquePaneScrollbar(t *testing.T) {
	p := NewCritiquePane(40, 5)
	p.SetEntries(feedbackEntries(4))

	view := p.View()
	if !strings.Contains(view, "┃") {
		t.Errorf("expected view to contain scrollbar handle '┃'")
	}
	if !p.AtBottom() {
		t.Errorf("expected pane scrolled to newest entry")
	}
	if !strings.Contains(view, "#4") {
		t.Errorf("expected newest entry visible")
	}
}

func TestCritiquePaneNoScrollbar(t *testing.T) {
	p := NewCritiquePane(40, 20)
	p.SetEntries(feedbackEntries(1))

	if strings.Contains(p.View(), "┃") {
		t.Errorf("expected no scrollbar when content fits")
	}
}

func TestCritiquePaneWrapping(t *testing.T) {
	width := 20
	p := NewCritiquePane(width, 20)
	entries := feedbackEntries(1)
	entries[0].Cool = "the conclusion does not follow from the data you collected"
	p.SetEntries(entries)

	for i, line := range strings.Split(strings.TrimSpace(p.View()), "\n") {
		if w := lipgloss.Width(line); w > width {
			t.Errorf("line %d is too wide: %d > %d. Content: %q", i, w, width, line)
		}
	}
}
