package models

import "time"

type AssignmentStatus string

const (
	AssignmentStatusPending   AssignmentStatus = "pending"
	AssignmentStatusCompleted AssignmentStatus = "completed"
)

// PeerReviewAssignment asks a reviewer to critique a reviewee's work.
type PeerReviewAssignment struct {
	ID         string           `json:"id"`
	ProjectID  string           `json:"project_id"`
	ReviewerID string           `json:"reviewer_id"`
	RevieweeID string           `json:"reviewee_id"`
	TaskID     *string          `json:"task_id"`
	Status     AssignmentStatus `json:"status"`
	Deadline   *time.Time       `json:"deadline"`
	CreatedAt  time.Time        `json:"created_at"`
}

// FeedbackEntry is a warm/cool critique of a task. Seq is assigned by the
// store on insert and only ever grows.
type FeedbackEntry struct {
	ID                 string    `json:"id"`
	Seq                int64     `json:"seq"`
	TaskID             string    `json:"task_id"`
	AuthorID           string    `json:"author_id"`
	AssignmentID       *string   `json:"assignment_id"`
	Warm               string    `json:"warm"`
	Cool               string    `json:"cool"`
	RequiresRevision   bool      `json:"requires_revision"`
	ChecklistConfirmed bool      `json:"checklist_confirmed"`
	CreatedAt          time.Time `json:"created_at"`
}
