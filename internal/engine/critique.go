package engine

import (
	"fmt"

	"github.com/ldi/pbltrack/pkg/models"
)

// Verdict is the critique gate's view of a single task.
type Verdict struct {
	Completable bool
	// Reason is set when Completable is false.
	Reason Reason
	// ForceRevision is set when critique asked for rework on a task that is
	// already in review or done; the task must go back to in_progress.
	ForceRevision bool
	Latest        *models.FeedbackEntry
}

// LatestFeedback picks the most recent entry: highest CreatedAt, then highest
// Seq when timestamps tie.
func LatestFeedback(entries []*models.FeedbackEntry) *models.FeedbackEntry {
	var latest *models.FeedbackEntry
	for _, e := range entries {
		if e == nil {
			continue
		}
		if latest == nil || newer(e, latest) {
			latest = e
		}
	}
	return latest
}

func newer(a, b *models.FeedbackEntry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.Seq > b.Seq
}

// Critique evaluates the critique gate for task given the feedback on it.
// The gate only applies when the project requires critique.
func Critique(project models.Project, task *models.Task, entries []*models.FeedbackEntry) Verdict {
	if !project.RequireCritique {
		return Verdict{Completable: true}
	}

	latest := LatestFeedback(entries)
	switch {
	case latest == nil:
		return Verdict{Reason: ReasonMissingCritique}
	case latest.RequiresRevision:
		inReview := task.Status == models.TaskStatusReview || task.Status == models.TaskStatusDone
		return Verdict{Reason: ReasonCritiqueRevisionRequired, ForceRevision: inReview, Latest: latest}
	case !latest.ChecklistConfirmed:
		// Never accepted on submit; treat legacy rows as missing critique.
		return Verdict{Reason: ReasonMissingCritique, Latest: latest}
	default:
		return Verdict{Completable: true, Latest: latest}
	}
}

// Submission is the outcome of accepting a feedback entry.
type Submission struct {
	Entry *models.FeedbackEntry
	// Assignment is the completed copy of the linked assignment, if any.
	Assignment *models.PeerReviewAssignment
}

// SubmitFeedback validates a feedback entry against its peer review
// assignment. An unconfirmed checklist is always refused and the assignment
// is left untouched. On success the returned assignment is marked completed;
// the caller persists both records in one transaction.
func SubmitFeedback(entry *models.FeedbackEntry, assignment *models.PeerReviewAssignment) (*Submission, error) {
	if entry == nil {
		return nil, fmt.Errorf("feedback entry is required")
	}
	if !entry.ChecklistConfirmed {
		return nil, ErrChecklistIncomplete
	}

	sub := &Submission{Entry: entry}
	if assignment == nil {
		return sub, nil
	}

	if assignment.Status == models.AssignmentStatusCompleted {
		return nil, fmt.Errorf("%w: %s", ErrAssignmentCompleted, assignment.ID)
	}
	if assignment.TaskID != nil && *assignment.TaskID != entry.TaskID {
		return nil, fmt.Errorf("%w: assignment %s covers task %s, feedback is for %s",
			ErrAssignmentMismatch, assignment.ID, *assignment.TaskID, entry.TaskID)
	}
	if assignment.ReviewerID != "" && entry.AuthorID != "" && assignment.ReviewerID != entry.AuthorID {
		return nil, fmt.Errorf("%w: assignment %s belongs to reviewer %s",
			ErrAssignmentMismatch, assignment.ID, assignment.ReviewerID)
	}

	completed := *assignment
	completed.Status = models.AssignmentStatusCompleted
	sub.Assignment = &completed
	return sub, nil
}
