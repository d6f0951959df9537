package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ldi/pbltrack/internal/engine"
	"github.com/ldi/pbltrack/pkg/models"
)

const assignmentColumns = `id, project_id, reviewer_id, reviewee_id, task_id, status, deadline, created_at`

// CreateAssignment records a pending peer review assignment.
func (db *DB) CreateAssignment(ctx context.Context, a *models.PeerReviewAssignment) error {
	if err := db.createAssignment(ctx, db.DB, a); err != nil {
		return err
	}
	db.triggerChange(ctx)
	return nil
}

func (db *DB) createAssignment(ctx context.Context, exec executor, a *models.PeerReviewAssignment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = models.AssignmentStatusPending
	}

	query := `
		INSERT INTO peer_review_assignments (id, project_id, reviewer_id, reviewee_id, task_id, status, deadline)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at
	`
	err := exec.QueryRowContext(ctx, query,
		a.ID, a.ProjectID, a.ReviewerID, a.RevieweeID, nullString(a.TaskID), a.Status, dateArg(a.Deadline),
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create peer review assignment: %w", err)
	}
	return nil
}

// GetAssignment returns the assignment with the given ID, or nil.
func (db *DB) GetAssignment(ctx context.Context, id string) (*models.PeerReviewAssignment, error) {
	return getAssignment(ctx, db.DB, id)
}

func getAssignment(ctx context.Context, exec executor, id string) (*models.PeerReviewAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM peer_review_assignments WHERE id = ?`
	a, err := scanAssignment(exec.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get peer review assignment: %w", err)
	}
	return a, nil
}

// ListAssignments returns a project's assignments, optionally only those in
// the given status.
func (db *DB) ListAssignments(ctx context.Context, projectID string, status *models.AssignmentStatus) ([]*models.PeerReviewAssignment, error) {
	return listAssignments(ctx, db.DB, projectID, status)
}

func listAssignments(ctx context.Context, exec executor, projectID string, status *models.AssignmentStatus) ([]*models.PeerReviewAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM peer_review_assignments WHERE project_id = ?`
	args := []any{projectID}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list peer review assignments: %w", err)
	}
	defer rows.Close()

	var out []*models.PeerReviewAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan peer review assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func scanAssignment(row rowScanner) (*models.PeerReviewAssignment, error) {
	a := &models.PeerReviewAssignment{}
	var task, deadline sql.NullString
	if err := row.Scan(&a.ID, &a.ProjectID, &a.ReviewerID, &a.RevieweeID, &task, &a.Status, &deadline, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.TaskID = stringPtr(task)
	d, err := parseNullDate(deadline)
	if err != nil {
		return nil, err
	}
	a.Deadline = d
	return a, nil
}

// findPendingAssignment locates the pending assignment a feedback entry
// fulfils when the caller did not name one.
func findPendingAssignment(ctx context.Context, exec executor, taskID, reviewerID string) (*models.PeerReviewAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM peer_review_assignments
		WHERE task_id = ? AND reviewer_id = ? AND status = 'pending'
		ORDER BY created_at ASC, id ASC LIMIT 1`
	a, err := scanAssignment(exec.QueryRowContext(ctx, query, taskID, reviewerID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find peer review assignment: %w", err)
	}
	return a, nil
}

// FeedbackResult reports what a feedback submission changed.
type FeedbackResult struct {
	Entry      *models.FeedbackEntry        `json:"entry"`
	Assignment *models.PeerReviewAssignment `json:"assignment,omitempty"`
	// Revision is set when the feedback sent the task back to in_progress.
	Revision *engine.Transition `json:"revision,omitempty"`
}

// SubmitFeedback stores a critique. In one transaction it inserts the entry,
// completes the matching peer review assignment and, when the critique asks
// for revision of a task in review or done, moves the task back to
// in_progress. An entry without a confirmed checklist is refused with
// engine.ErrChecklistIncomplete and nothing is written.
func (db *DB) SubmitFeedback(ctx context.Context, entry *models.FeedbackEntry) (*FeedbackResult, error) {
	if !entry.ChecklistConfirmed {
		return nil, engine.ErrChecklistIncomplete
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	task, err := db.getTask(ctx, tx, entry.TaskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: %s", engine.ErrUnknownTask, entry.TaskID)
	}
	if task.IsDeleted() {
		return nil, fmt.Errorf("%w: %s", engine.ErrTaskDeleted, entry.TaskID)
	}

	var assignment *models.PeerReviewAssignment
	if entry.AssignmentID != nil && *entry.AssignmentID != "" {
		assignment, err = getAssignment(ctx, tx, *entry.AssignmentID)
		if err != nil {
			return nil, err
		}
		if assignment == nil {
			return nil, fmt.Errorf("peer review assignment %s: %w", *entry.AssignmentID, ErrNotFound)
		}
	} else {
		assignment, err = findPendingAssignment(ctx, tx, entry.TaskID, entry.AuthorID)
		if err != nil {
			return nil, err
		}
	}

	sub, err := engine.SubmitFeedback(entry, assignment)
	if err != nil {
		return nil, err
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if sub.Assignment != nil {
		entry.AssignmentID = &sub.Assignment.ID
	}
	if err := insertFeedback(ctx, tx, entry); err != nil {
		return nil, err
	}

	if sub.Assignment != nil {
		res, err := tx.ExecContext(ctx,
			`UPDATE peer_review_assignments SET status = 'completed' WHERE id = ? AND status = 'pending'`,
			sub.Assignment.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to complete peer review assignment: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return nil, fmt.Errorf("failed to get rows affected: %w", err)
		} else if n == 0 {
			return nil, fmt.Errorf("peer review assignment %s: %w", sub.Assignment.ID, ErrConflict)
		}
	}

	snap, err := db.loadSnapshot(ctx, tx, task.ProjectID)
	if err != nil {
		return nil, err
	}
	revision, err := engine.Revise(task.ID, snap)
	if err != nil {
		return nil, err
	}
	if revision != nil {
		if err := setStatus(ctx, tx, task, revision.To); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.triggerChange(ctx)
	return &FeedbackResult{Entry: entry, Assignment: sub.Assignment, Revision: revision}, nil
}

func insertFeedback(ctx context.Context, exec executor, e *models.FeedbackEntry) error {
	query := `
		INSERT INTO feedback_entries (id, task_id, author_id, assignment_id, warm, cool,
		                              requires_revision, checklist_confirmed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING seq
	`
	err := exec.QueryRowContext(ctx, query,
		e.ID, e.TaskID, e.AuthorID, nullString(e.AssignmentID), e.Warm, e.Cool,
		boolInt(e.RequiresRevision), boolInt(e.ChecklistConfirmed),
		e.CreatedAt.UTC().Format(feedbackTimeLayout),
	).Scan(&e.Seq)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	// Match the stored precision so in-memory ordering agrees with reloads.
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Millisecond)
	return nil
}

// ListFeedback returns the critiques of a task, oldest first.
func (db *DB) ListFeedback(ctx context.Context, taskID string) ([]*models.FeedbackEntry, error) {
	query := feedbackQuery + ` WHERE f.task_id = ? ORDER BY f.created_at ASC, f.seq ASC`
	return queryFeedback(ctx, db.DB, query, taskID)
}

func listProjectFeedback(ctx context.Context, exec executor, projectID string) ([]*models.FeedbackEntry, error) {
	query := feedbackQuery + ` JOIN tasks t ON t.id = f.task_id
		WHERE t.project_id = ? ORDER BY f.created_at ASC, f.seq ASC`
	return queryFeedback(ctx, exec, query, projectID)
}

const feedbackQuery = `
	SELECT f.seq, f.id, f.task_id, f.author_id, f.assignment_id, f.warm, f.cool,
	       f.requires_revision, f.checklist_confirmed, f.created_at
	FROM feedback_entries f`

func queryFeedback(ctx context.Context, exec executor, query string, args ...any) ([]*models.FeedbackEntry, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	var out []*models.FeedbackEntry
	for rows.Next() {
		e := &models.FeedbackEntry{}
		var assignment sql.NullString
		var revise, confirmed int
		var created string
		if err := rows.Scan(&e.Seq, &e.ID, &e.TaskID, &e.AuthorID, &assignment, &e.Warm, &e.Cool,
			&revise, &confirmed, &created); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		ts, err := time.Parse(feedbackTimeLayout, created)
		if err != nil {
			return nil, fmt.Errorf("feedback %s: bad created_at %q: %w", e.ID, created, err)
		}
		e.CreatedAt = ts
		e.AssignmentID = stringPtr(assignment)
		e.RequiresRevision = revise == 1
		e.ChecklistConfirmed = confirmed == 1
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
