package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ldi/pbltrack/internal/engine"
)

// CommitBatch writes a staged session in one transaction. Dependencies may
// name their tasks by title; staged tasks are resolved first, then existing
// ones. Every edge goes through the same cycle check as CreateDependency, so
// a plan that would introduce a cycle is rejected as a whole. A rejected
// batch stays staged under sessionID, unchanged.
func (db *DB) CommitBatch(ctx context.Context, sessionID string) error {
	staged := db.Staging.GetAndClear(sessionID)
	if staged.Empty() {
		return nil
	}

	// IDs assigned while writing must not leak back into the staged plan.
	items := staged.clone()
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		return db.commitItems(ctx, tx, items)
	})
	if err != nil {
		db.Staging.Restore(sessionID, staged)
		return err
	}
	return nil
}

func (db *DB) commitItems(ctx context.Context, tx *sql.Tx, items *StagedItems) error {
	taskIDs := make(map[string]string)

	for _, t := range items.Tasks {
		if err := db.createTask(ctx, tx, t); err != nil {
			return fmt.Errorf("failed to create staged task %s: %w", t.Title, err)
		}
		taskIDs[t.ProjectID+"/"+t.Title] = t.ID
	}

	for _, m := range items.Milestones {
		if err := db.createMilestone(ctx, tx, m); err != nil {
			return fmt.Errorf("failed to create staged milestone %s: %w", m.Title, err)
		}
	}

	for _, d := range items.Dependencies {
		if d.TaskID == "" {
			id, err := db.resolveTaskID(ctx, tx, taskIDs, d.ProjectID, d.TaskTitle)
			if err != nil {
				return fmt.Errorf("failed to resolve task %s for dependency: %w", d.TaskTitle, err)
			}
			d.TaskID = id
		}
		if d.DependsOnTaskID == "" {
			id, err := db.resolveTaskID(ctx, tx, taskIDs, d.ProjectID, d.DependsOnTaskTitle)
			if err != nil {
				return fmt.Errorf("failed to resolve depends_on task %s for dependency: %w", d.DependsOnTaskTitle, err)
			}
			d.DependsOnTaskID = id
		}

		if err := db.createDependency(ctx, tx, d.TaskID, d.DependsOnTaskID); err != nil {
			return fmt.Errorf("failed to create staged dependency: %w", err)
		}
	}
	return nil
}

func (db *DB) resolveTaskID(ctx context.Context, exec executor, staged map[string]string, projectID, title string) (string, error) {
	if id, ok := staged[projectID+"/"+title]; ok {
		return id, nil
	}
	t, err := db.getTaskByTitle(ctx, exec, projectID, title)
	if err != nil {
		return "", err
	}
	if t == nil {
		return "", fmt.Errorf("%w: %q in project %s", engine.ErrUnknownTask, title, projectID)
	}
	return t.ID, nil
}
