package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ldi/pbltrack/internal/engine"
	"github.com/ldi/pbltrack/internal/timeline"
	"github.com/ldi/pbltrack/pkg/models"
)

// LoadSnapshot reads everything the gating engine needs for one project.
func (db *DB) LoadSnapshot(ctx context.Context, projectID string) (*engine.Snapshot, error) {
	return db.loadSnapshot(ctx, db.DB, projectID)
}

func (db *DB) loadSnapshot(ctx context.Context, exec executor, projectID string) (*engine.Snapshot, error) {
	project, err := db.getProject(ctx, exec, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}

	// Deleted tasks are included; the engine decides how they count.
	tasks, err := queryTasks(ctx, exec,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = ? ORDER BY created_at ASC, id ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	deps, err := listDependencies(ctx, exec, projectID)
	if err != nil {
		return nil, err
	}
	assignments, err := listAssignments(ctx, exec, projectID, nil)
	if err != nil {
		return nil, err
	}
	feedback, err := listProjectFeedback(ctx, exec, projectID)
	if err != nil {
		return nil, err
	}

	return &engine.Snapshot{
		Project:      *project,
		Tasks:        tasks,
		Dependencies: deps,
		Assignments:  assignments,
		Feedback:     feedback,
	}, nil
}

// EvaluateTask returns the derived flags of a task against a fresh snapshot.
func (db *DB) EvaluateTask(ctx context.Context, taskID string) (*engine.Evaluation, error) {
	task, err := db.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: %s", engine.ErrUnknownTask, taskID)
	}
	snap, err := db.LoadSnapshot(ctx, task.ProjectID)
	if err != nil {
		return nil, err
	}
	return engine.EvaluateTask(taskID, snap)
}

// ListEvaluatedTasks returns a project's live tasks with Blocked and
// Completable computed at read time.
func (db *DB) ListEvaluatedTasks(ctx context.Context, projectID string) ([]*models.Task, error) {
	snap, err := db.LoadSnapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return engine.Annotate(snap)
}

// ApplyTransition moves a task to target. The snapshot is re-read and the
// gates re-checked inside the write transaction, and the row is only updated
// if its version is unchanged, so two concurrent transitions of the same task
// cannot both pass against a stale view.
func (db *DB) ApplyTransition(ctx context.Context, taskID string, target models.TaskStatus) (*engine.Transition, error) {
	var tr *engine.Transition
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		task, err := db.getTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if task == nil {
			return fmt.Errorf("%w: %s", engine.ErrUnknownTask, taskID)
		}

		snap, err := db.loadSnapshot(ctx, tx, task.ProjectID)
		if err != nil {
			return err
		}
		tr, err = engine.RequestTransition(taskID, target, snap)
		if err != nil {
			return err
		}
		if !tr.Changed() {
			return nil
		}
		return setStatus(ctx, tx, task, tr.To)
	})
	if err != nil {
		return nil, err
	}
	return tr, nil
}

// setStatus writes a validated status using the version read with task.
func setStatus(ctx context.Context, exec executor, task *models.Task, status models.TaskStatus) error {
	res, err := exec.ExecContext(ctx, `
		UPDATE tasks
		SET status = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ? AND deleted_at IS NULL`,
		status, task.ID, task.Version)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", task.ID, ErrConflict)
	}
	task.Status = status
	task.Version++
	return nil
}

// Timeline lays out a project's tasks and milestones relative to today.
func (db *DB) Timeline(ctx context.Context, projectID string, today time.Time) (*timeline.Grid, error) {
	snap, err := db.LoadSnapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	milestones, err := db.ListMilestones(ctx, projectID)
	if err != nil {
		return nil, err
	}
	grid := timeline.Layout(snap.Tasks, milestones, today, timeline.WithAnchor(snap.Project.StartDate))
	return &grid, nil
}
