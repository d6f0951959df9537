package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ldi/pbltrack/pkg/models"
)

var (
	critiqueMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241")).
				Italic(true)

	warmStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	coolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75"))

	revisionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	critiqueTextStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	scrollbarTrackStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("236"))

	scrollbarHandleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))
)

// CritiquePane shows the warm/cool feedback on one task in a scrollable
// viewport, newest entry last.
type CritiquePane struct {
	viewport viewport.Model
	entries  []*models.FeedbackEntry
	ready    bool
	width    int
	height   int
}

func NewCritiquePane(width, height int) *CritiquePane {
	p := &CritiquePane{}
	p.SetSize(width, height)
	return p
}

func (p *CritiquePane) SetSize(width, height int) {
	p.width = width
	p.height = height
	vpWidth := width
	if width > 0 {
		vpWidth = width - 1
	}
	if !p.ready {
		p.viewport = viewport.New(vpWidth, height)
		p.ready = true
	} else {
		p.viewport.Width = vpWidth
		p.viewport.Height = height
	}
	p.updateContent()
}

// SetEntries replaces the feedback shown and scrolls to the newest entry.
func (p *CritiquePane) SetEntries(entries []*models.FeedbackEntry) {
	p.entries = entries
	p.updateContent()
}

func (p *CritiquePane) Reset() {
	p.entries = nil
	p.updateContent()
}

func (p *CritiquePane) updateContent() {
	width := p.viewport.Width
	content := p.render()
	if width > 0 {
		content = critiqueTextStyle.Width(width).Render(content)
	}
	p.viewport.SetContent(content)
	p.viewport.GotoBottom()
}

func (p *CritiquePane) render() string {
	if len(p.entries) == 0 {
		return critiqueMetaStyle.Render("No feedback yet")
	}
	var sb strings.Builder
	for i, e := range p.entries {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(critiqueMetaStyle.Render(fmt.Sprintf("#%d %s, %s", e.Seq, e.AuthorID, e.CreatedAt.Format("2006-01-02 15:04"))))
		if e.RequiresRevision {
			sb.WriteString(" " + revisionStyle.Render("revise"))
		}
		sb.WriteString("\n")
		sb.WriteString(warmStyle.Render("warm: ") + e.Warm + "\n")
		sb.WriteString(coolStyle.Render("cool: ") + e.Cool + "\n")
	}
	return sb.String()
}

func (p *CritiquePane) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return cmd
}

func (p *CritiquePane) View() string {
	if !p.ready {
		return ""
	}

	if p.viewport.TotalLineCount() <= p.viewport.Height {
		return p.viewport.View()
	}

	h := p.viewport.Height
	handlePos := int(float64(h-1) * p.viewport.ScrollPercent())

	var sb strings.Builder
	for i := 0; i < h; i++ {
		if i == handlePos {
			sb.WriteString(scrollbarHandleStyle.Render("┃"))
		} else {
			sb.WriteString(scrollbarTrackStyle.Render("│"))
		}
		if i < h-1 {
			sb.WriteString("\n")
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, p.viewport.View(), sb.String())
}

func (p *CritiquePane) AtBottom() bool {
	return p.viewport.AtBottom()
}

func (p *CritiquePane) Height() int {
	return p.viewport.Height
}
