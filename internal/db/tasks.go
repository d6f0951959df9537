package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/ldi/pbltrack/internal/engine"
	"github.com/ldi/pbltrack/pkg/models"
)

const taskColumns = `id, project_id, title, description, status, assignee_id, team_id,
	due_date, start_date, end_date, duration_days, priority, version,
	created_at, updated_at, deleted_at`

// CreateTask inserts a new task into the database.
// If t.ID is empty, a new UUID is generated.
func (db *DB) CreateTask(ctx context.Context, t *models.Task) error {
	if err := db.createTask(ctx, db.DB, t); err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) createTask(ctx context.Context, exec executor, t *models.Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = models.TaskStatusTodo
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if !t.Status.Valid() {
		return fmt.Errorf("invalid task status %q", t.Status)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("invalid task priority %q", t.Priority)
	}

	query := `
		INSERT INTO tasks (id, project_id, title, description, status, assignee_id, team_id,
		                   due_date, start_date, end_date, duration_days, priority)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING version, created_at, updated_at
	`
	err := exec.QueryRowContext(ctx, query,
		t.ID, t.ProjectID, t.Title, t.Description, t.Status, nullString(t.AssigneeID), nullString(t.TeamID),
		dateArg(t.DueDate), dateArg(t.StartDate), dateArg(t.EndDate), t.DurationDays, t.Priority,
	).Scan(&t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by its ID, including soft-deleted tasks.
// It returns nil if no task has that ID.
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return db.getTask(ctx, db.DB, id)
}

func (db *DB) getTask(ctx context.Context, exec executor, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`
	t, err := scanTask(exec.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// GetTaskByTitle finds a live task by title within a project.
func (db *DB) GetTaskByTitle(ctx context.Context, projectID, title string) (*models.Task, error) {
	return db.getTaskByTitle(ctx, db.DB, projectID, title)
}

func (db *DB) getTaskByTitle(ctx context.Context, exec executor, projectID, title string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE project_id = ? AND title = ? AND deleted_at IS NULL
		ORDER BY created_at ASC LIMIT 1`
	t, err := scanTask(exec.QueryRowContext(ctx, query, projectID, title))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task by title: %w", err)
	}
	return t, nil
}

// ListTasks returns the live tasks of a project, optionally filtered by status.
func (db *DB) ListTasks(ctx context.Context, projectID string, status *models.TaskStatus) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id = ? AND deleted_at IS NULL`
	args := []any{projectID}

	if status != nil {
		query += " AND status = ?"
		args = append(args, *status)
	}

	query += ` ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, created_at ASC`

	return queryTasks(ctx, db.DB, query, args...)
}

// queryTasks is a helper to execute a query that returns a list of tasks.
func queryTasks(ctx context.Context, exec executor, query string, args ...any) ([]*models.Task, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return tasks, nil
}

func scanTask(row rowScanner) (*models.Task, error) {
	t := &models.Task{}
	var assignee, team, due, start, end sql.NullString
	err := row.Scan(
		&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &assignee, &team,
		&due, &start, &end, &t.DurationDays, &t.Priority, &t.Version,
		&t.CreatedAt, &t.UpdatedAt, &t.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	t.AssigneeID = stringPtr(assignee)
	t.TeamID = stringPtr(team)
	if t.DueDate, err = parseNullDate(due); err != nil {
		return nil, err
	}
	if t.StartDate, err = parseNullDate(start); err != nil {
		return nil, err
	}
	if t.EndDate, err = parseNullDate(end); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTask updates the descriptive fields and dates of a live task. Status
// is not touched here; see ApplyTransition.
func (db *DB) UpdateTask(ctx context.Context, t *models.Task) error {
	if t.Priority != "" && !t.Priority.Valid() {
		return fmt.Errorf("invalid task priority %q", t.Priority)
	}

	query := `
		UPDATE tasks
		SET title = ?, description = ?, team_id = ?, due_date = ?, start_date = ?, end_date = ?,
		    duration_days = ?, priority = COALESCE(NULLIF(?, ''), priority),
		    version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL
		RETURNING version, updated_at
	`
	err := db.QueryRowContext(ctx, query,
		t.Title, t.Description, nullString(t.TeamID), dateArg(t.DueDate), dateArg(t.StartDate),
		dateArg(t.EndDate), t.DurationDays, t.Priority, t.ID,
	).Scan(&t.Version, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// ClaimTask assigns an unassigned task to assigneeID. Claiming is an
// attribute update, not a status transition, so no gate applies beyond the
// task being live. The conditional UPDATE makes concurrent claims safe.
func (db *DB) ClaimTask(ctx context.Context, taskID, assigneeID string) (*models.Task, error) {
	query := `
		UPDATE tasks
		SET assignee_id = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL AND (assignee_id IS NULL OR assignee_id = ?)
		RETURNING ` + taskColumns

	t, err := scanTask(db.QueryRowContext(ctx, query, assigneeID, taskID, assigneeID))
	if err == sql.ErrNoRows {
		// Work out why using the engine's rules on the current row.
		current, gerr := db.GetTask(ctx, taskID)
		if gerr != nil {
			return nil, gerr
		}
		snap := &engine.Snapshot{}
		if current != nil {
			snap.Tasks = []*models.Task{current}
		}
		if cerr := engine.Claim(taskID, assigneeID, snap); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("claim task %s: %w", taskID, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}

	db.triggerChange(ctx)
	return t, nil
}

// DeleteTask soft-deletes a task and drops every dependency edge touching
// it, so edges only ever reference live tasks.
func (db *DB) DeleteTask(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks
			SET deleted_at = CURRENT_TIMESTAMP, version = version + 1, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND deleted_at IS NULL`, id)
		if err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("task %s: %w", id, ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM dependencies WHERE task_id = ? OR depends_on_task_id = ?`, id, id); err != nil {
			return fmt.Errorf("failed to delete task dependencies: %w", err)
		}
		return nil
	})
}
