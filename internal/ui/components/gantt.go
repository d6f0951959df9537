package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ldi/pbltrack/internal/timeline"
	"github.com/ldi/pbltrack/pkg/models"
)

var (
	barStyles = map[models.TaskStatus]lipgloss.Style{
		models.TaskStatusTodo:       lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		models.TaskStatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		models.TaskStatusReview:     lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.TaskStatusDone:       lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}

	milestoneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	hardDeadlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	todayStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	emptyCellStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	ganttHeaderStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	selectedLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
)

const (
	barCell       = "█"
	milestoneCell = "◆"
	todayCell     = "│"
	emptyCell     = "·"
	todayMarker   = "▼"
)

// Gantt draws a timeline grid one row per item, one cell per day.
type Gantt struct {
	Grid timeline.Grid
	// Offset is the number of leading days scrolled out of view.
	Offset     int
	Width      int
	LabelWidth int
	// Selected highlights the row with this item ID.
	Selected string
}

func NewGantt(grid timeline.Grid, width int) *Gantt {
	return &Gantt{Grid: grid, Width: width, LabelWidth: 20}
}

// Days is the number of day columns that fit next to the labels.
func (g *Gantt) Days() int {
	n := g.Width - g.LabelWidth - 1
	if n < 1 {
		return 1
	}
	return n
}

// Scroll moves the view by delta days, clamped to the grid.
func (g *Gantt) Scroll(delta int) {
	g.Offset += delta
	if maxOffset := g.Grid.Width - g.Days(); g.Offset > maxOffset {
		g.Offset = maxOffset
	}
	if g.Offset < 0 {
		g.Offset = 0
	}
}

// ScrollToToday puts the today column in view.
func (g *Gantt) ScrollToToday() {
	g.Offset = 0
	g.Scroll(g.Grid.TodayColumn - 1 - g.Days()/2)
}

func (g *Gantt) View() string {
	if len(g.Grid.Items) == 0 {
		return placeholderStyle.Render("Nothing scheduled")
	}

	days := g.Days()
	first := g.Offset + 1
	last := g.Offset + days
	if g.Grid.Width > 0 && last > g.Grid.Width {
		last = g.Grid.Width
	}
	label := lipgloss.NewStyle().Width(g.LabelWidth).MaxWidth(g.LabelWidth)

	var sb strings.Builder

	start := g.Grid.Origin.AddDate(0, 0, g.Offset)
	sb.WriteString(label.Render(ganttHeaderStyle.Render(timeline.FormatDate(start))))
	sb.WriteString(" ")
	for col := first; col <= last; col++ {
		if col == g.Grid.TodayColumn {
			sb.WriteString(todayStyle.Render(todayMarker))
		} else {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("\n")

	for _, it := range g.Grid.Items {
		if it.ItemID == g.Selected {
			sb.WriteString(label.Render(selectedLabelStyle.Render(truncate("> "+it.Title, g.LabelWidth))))
		} else {
			sb.WriteString(label.Render(truncate(it.Title, g.LabelWidth)))
		}
		sb.WriteString(" ")
		for col := first; col <= last; col++ {
			sb.WriteString(g.cell(it, col))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(legend(g.Grid))
	return sb.String()
}

func (g *Gantt) cell(it timeline.Item, col int) string {
	if col >= it.Column && col < it.Column+it.Span {
		if it.Kind == timeline.KindMilestone {
			if it.HardDeadline {
				return hardDeadlineStyle.Render(milestoneCell)
			}
			return milestoneStyle.Render(milestoneCell)
		}
		style, ok := barStyles[it.Status]
		if !ok {
			style = barStyles[models.TaskStatusTodo]
		}
		return style.Render(barCell)
	}
	if col == g.Grid.TodayColumn {
		return todayStyle.Render(todayCell)
	}
	return emptyCellStyle.Render(emptyCell)
}

func legend(grid timeline.Grid) string {
	return placeholderStyle.Render(fmt.Sprintf("%d days from %s, %s today, %s milestone",
		grid.Width, timeline.FormatDate(grid.Origin), todayMarker, milestoneCell))
}

// truncate shortens s to width cells, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	if width <= 1 {
		return "…"
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
