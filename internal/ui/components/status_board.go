package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ldi/pbltrack/pkg/models"
)

var (
	boardBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			Padding(0, 1)

	boardHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("252")).
				Padding(0, 1)

	subTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	blockedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	placeholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true).
				Padding(0, 1)
)

var boardColumns = []struct {
	status models.TaskStatus
	title  string
	icon   string
}{
	{models.TaskStatusTodo, "To do", "○"},
	{models.TaskStatusInProgress, "In progress", "◐"},
	{models.TaskStatusReview, "In review", "◑"},
	{models.TaskStatusDone, "Done", "✓"},
}

// StatusBoard renders a project's tasks grouped by status. Blocked tasks
// are marked with a lock.
type StatusBoard struct {
	Width int
	Title string
	tasks map[models.TaskStatus][]*models.Task
}

func NewStatusBoard(width int) *StatusBoard {
	return &StatusBoard{
		Width: width,
		Title: "Tasks",
		tasks: make(map[models.TaskStatus][]*models.Task),
	}
}

// SetTasks replaces the board contents. Deleted tasks are skipped.
func (b *StatusBoard) SetTasks(tasks []*models.Task) {
	b.tasks = make(map[models.TaskStatus][]*models.Task)
	for _, t := range tasks {
		if t.IsDeleted() {
			continue
		}
		b.tasks[t.Status] = append(b.tasks[t.Status], t)
	}
}

// Count returns how many tasks sit in the given column.
func (b *StatusBoard) Count(status models.TaskStatus) int {
	return len(b.tasks[status])
}

func (b *StatusBoard) View() string {
	var boxes []string
	for _, col := range boardColumns {
		tasks := b.tasks[col.status]
		if len(tasks) == 0 {
			continue
		}
		boxes = append(boxes, b.renderBox(col.title, tasks, barStyles[col.status], col.icon))
	}

	var content string
	if len(boxes) == 0 {
		content = placeholderStyle.Render("No tasks yet")
	} else {
		content = strings.Join(boxes, "\n")
	}

	if b.Title != "" {
		return boardHeaderStyle.Render(b.Title) + "\n" + content
	}
	return content
}

func (b *StatusBoard) renderBox(title string, tasks []*models.Task, style lipgloss.Style, icon string) string {
	color := style.GetForeground()
	subTitle := subTitleStyle.Foreground(color).Render(fmt.Sprintf("%s (%d)", title, len(tasks)))

	nameWidth := b.innerWidth() - 4
	if nameWidth < 0 {
		nameWidth = 0
	}

	var lines []string
	for _, t := range tasks {
		marker := icon
		if t.Blocked {
			marker = blockedStyle.Render("⊘")
		}
		name := t.Title
		if t.AssigneeID != nil {
			name += " @" + *t.AssigneeID
		}
		wrapped := lipgloss.NewStyle().Width(nameWidth).Render(name)
		for i, line := range strings.Split(wrapped, "\n") {
			if i == 0 {
				lines = append(lines, fmt.Sprintf("%s %s", marker, line))
			} else {
				lines = append(lines, fmt.Sprintf("  %s", line))
			}
		}
	}

	return boardBoxStyle.
		Foreground(color).
		BorderForeground(color).
		Width(b.innerWidth()).
		Render(subTitle + "\n" + strings.Join(lines, "\n"))
}

// innerWidth leaves room for the box border.
func (b *StatusBoard) innerWidth() int {
	if b.Width < 2 {
		return 0
	}
	return b.Width - 2
}
