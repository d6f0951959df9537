package models

import "time"

// Project carries the gating flags that select which completion gates apply.
type Project struct {
	ID                          string     `json:"id"`
	Title                       string     `json:"title"`
	Description                 string     `json:"description"`
	StartDate                   *time.Time `json:"start_date"`
	RequireCritique             bool       `json:"require_critique"`
	RequiresReflection          bool       `json:"requires_reflection"`
	RequiresMilestoneReflection bool       `json:"requires_milestone_reflection"`
	CreatedAt                   time.Time  `json:"created_at"`
	UpdatedAt                   time.Time  `json:"updated_at"`
}

type Milestone struct {
	ID             string    `json:"id"`
	ProjectID      *string   `json:"project_id"`
	ClassID        *string   `json:"class_id"`
	Title          string    `json:"title"`
	DueDate        time.Time `json:"due_date"`
	IsHardDeadline bool      `json:"is_hard_deadline"`
	CreatedAt      time.Time `json:"created_at"`
}
