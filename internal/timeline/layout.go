// Package timeline places tasks and milestones on a day-indexed grid for
// Gantt-style display.
package timeline

import (
	"sort"
	"time"

	"github.com/ldi/pbltrack/pkg/models"
)

// LeadInDays is how far the grid origin sits before the earliest date.
const LeadInDays = 3

type Kind string

const (
	KindTask      Kind = "task"
	KindMilestone Kind = "milestone"
)

// Item is one bar or marker on the grid. Column is 1-indexed.
type Item struct {
	ItemID       string            `json:"item_id"`
	Kind         Kind              `json:"kind"`
	Title        string            `json:"title"`
	Column       int               `json:"column"`
	Span         int               `json:"span"`
	Start        string            `json:"start"`
	Status       models.TaskStatus `json:"status,omitempty"`
	HardDeadline bool              `json:"hard_deadline,omitempty"`
}

type Grid struct {
	Origin      time.Time `json:"origin"`
	TodayColumn int       `json:"today_column"`
	Width       int       `json:"width"`
	Items       []Item    `json:"items"`
}

type options struct {
	anchors []time.Time
}

type Option func(*options)

// WithAnchor adds a date that must be on the grid even though no item sits on
// it, such as the project start date.
func WithAnchor(d *time.Time) Option {
	return func(o *options) {
		if d != nil {
			o.anchors = append(o.anchors, *d)
		}
	}
}

// Layout computes the grid for a project's tasks and milestones. today is
// injected by the caller. Deleted tasks and tasks with neither a start nor a
// due date are left off the grid.
func Layout(tasks []*models.Task, milestones []*models.Milestone, today time.Time, opts ...Option) Grid {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	type placed struct {
		item  Item
		start time.Time
	}
	var items []placed

	origin := CalendarDay(today)
	earliest := func(d time.Time) {
		if d = CalendarDay(d); d.Before(origin) {
			origin = d
		}
	}
	for _, a := range o.anchors {
		earliest(a)
	}

	for _, t := range tasks {
		if t == nil || t.IsDeleted() {
			continue
		}
		start, span, ok := taskBar(t)
		if !ok {
			continue
		}
		earliest(start)
		items = append(items, placed{
			item:  Item{ItemID: t.ID, Kind: KindTask, Title: t.Title, Span: span, Status: t.Status},
			start: start,
		})
	}
	for _, m := range milestones {
		if m == nil {
			continue
		}
		earliest(m.DueDate)
		items = append(items, placed{
			item:  Item{ItemID: m.ID, Kind: KindMilestone, Title: m.Title, Span: 1, HardDeadline: m.IsHardDeadline},
			start: CalendarDay(m.DueDate),
		})
	}

	origin = origin.AddDate(0, 0, -LeadInDays)
	grid := Grid{
		Origin:      origin,
		TodayColumn: DayDiff(today, origin) + 1,
		Items:       make([]Item, 0, len(items)),
	}
	grid.Width = grid.TodayColumn

	for _, p := range items {
		it := p.item
		it.Column = DayDiff(p.start, origin) + 1
		it.Start = FormatDate(p.start)
		if end := it.Column + it.Span - 1; end > grid.Width {
			grid.Width = end
		}
		grid.Items = append(grid.Items, it)
	}

	sort.SliceStable(grid.Items, func(i, j int) bool {
		a, b := grid.Items[i], grid.Items[j]
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		if a.Kind != b.Kind {
			return a.Kind == KindMilestone
		}
		return a.ItemID < b.ItemID
	})
	return grid
}

// taskBar returns the first day and length of a task's bar. Tasks without a
// start date are drawn as a single day on their due date.
func taskBar(t *models.Task) (time.Time, int, bool) {
	if t.StartDate == nil {
		if t.DueDate == nil {
			return time.Time{}, 0, false
		}
		return CalendarDay(*t.DueDate), 1, true
	}

	start := CalendarDay(*t.StartDate)
	span := 1
	switch {
	case t.EndDate != nil && !CalendarDay(*t.EndDate).Before(start):
		span = DayDiff(*t.EndDate, start) + 1
	case t.DurationDays > 0:
		span = t.DurationDays
	case t.DueDate != nil && !CalendarDay(*t.DueDate).Before(start):
		span = DayDiff(*t.DueDate, start) + 1
	}
	return start, span, true
}
