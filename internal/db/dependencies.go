package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ldi/pbltrack/internal/engine"
	"github.com/ldi/pbltrack/pkg/models"
)

// CreateDependency records that taskID depends on dependsOnTaskID. The edge is
// checked against the project's current graph inside the write transaction,
// so it is refused with graph.ErrCycle or graph.ErrSelfDependency before
// anything is stored.
func (db *DB) CreateDependency(ctx context.Context, taskID, dependsOnTaskID string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return db.createDependency(ctx, tx, taskID, dependsOnTaskID)
	})
}

// createDependency validates and inserts one edge. Inside a transaction the
// snapshot already includes edges inserted earlier in that transaction.
func (db *DB) createDependency(ctx context.Context, exec executor, taskID, dependsOnTaskID string) error {
	task, err := db.getTask(ctx, exec, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("%w: %s", engine.ErrUnknownTask, taskID)
	}

	snap, err := db.loadSnapshot(ctx, exec, task.ProjectID)
	if err != nil {
		return err
	}
	if _, ok := snap.Task(dependsOnTaskID); !ok {
		// Possibly a task of another project; load it so the engine can say so.
		other, err := db.getTask(ctx, exec, dependsOnTaskID)
		if err != nil {
			return err
		}
		if other != nil {
			snap.Tasks = append(snap.Tasks, other)
		}
	}

	if err := engine.AddDependency(taskID, dependsOnTaskID, snap); err != nil {
		return fmt.Errorf("failed to create dependency: %w", err)
	}

	query := `INSERT OR IGNORE INTO dependencies (task_id, depends_on_task_id) VALUES (?, ?)`
	if _, err := exec.ExecContext(ctx, query, taskID, dependsOnTaskID); err != nil {
		return fmt.Errorf("failed to create dependency: %w", err)
	}
	return nil
}

// DeleteDependency removes an edge. Removing an edge that does not exist is
// not an error.
func (db *DB) DeleteDependency(ctx context.Context, taskID, dependsOnTaskID string) error {
	query := `DELETE FROM dependencies WHERE task_id = ? AND depends_on_task_id = ?`
	res, err := db.ExecContext(ctx, query, taskID, dependsOnTaskID)
	if err != nil {
		return fmt.Errorf("failed to delete dependency: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		db.triggerChange(ctx)
	}
	return nil
}

// GetDependencies returns the live tasks taskID directly depends on.
func (db *DB) GetDependencies(ctx context.Context, taskID string) ([]*models.Task, error) {
	query := `
		SELECT ` + prefixed("t", taskColumns) + `
		FROM tasks t
		JOIN dependencies d ON t.id = d.depends_on_task_id
		WHERE d.task_id = ? AND t.deleted_at IS NULL
		ORDER BY t.created_at ASC
	`
	return queryTasks(ctx, db.DB, query, taskID)
}

// GetDependents returns the live tasks that directly depend on taskID.
func (db *DB) GetDependents(ctx context.Context, taskID string) ([]*models.Task, error) {
	query := `
		SELECT ` + prefixed("t", taskColumns) + `
		FROM tasks t
		JOIN dependencies d ON t.id = d.task_id
		WHERE d.depends_on_task_id = ? AND t.deleted_at IS NULL
		ORDER BY t.created_at ASC
	`
	return queryTasks(ctx, db.DB, query, taskID)
}

func listDependencies(ctx context.Context, exec executor, projectID string) ([]*models.Dependency, error) {
	query := `
		SELECT d.task_id, d.depends_on_task_id, t.title, dt.title
		FROM dependencies d
		JOIN tasks t ON t.id = d.task_id
		JOIN tasks dt ON dt.id = d.depends_on_task_id
		WHERE t.project_id = ?
		ORDER BY d.task_id, d.depends_on_task_id
	`
	rows, err := exec.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependencies: %w", err)
	}
	defer rows.Close()

	var deps []*models.Dependency
	for rows.Next() {
		d := &models.Dependency{}
		if err := rows.Scan(&d.TaskID, &d.DependsOnTaskID, &d.TaskTitle, &d.DependsOnTaskTitle); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		deps = append(deps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return deps, nil
}
