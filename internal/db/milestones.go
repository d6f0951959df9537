package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/ldi/pbltrack/pkg/models"
)

// CreateMilestone inserts a milestone. If m.ID is empty a new UUID is generated.
func (db *DB) CreateMilestone(ctx context.Context, m *models.Milestone) error {
	if err := db.createMilestone(ctx, db.DB, m); err != nil {
		return err
	}
	db.triggerChange(ctx)
	return nil
}

func (db *DB) createMilestone(ctx context.Context, exec executor, m *models.Milestone) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.DueDate.IsZero() {
		return fmt.Errorf("milestone %q needs a due date", m.Title)
	}

	query := `
		INSERT INTO milestones (id, project_id, class_id, title, due_date, is_hard_deadline)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING created_at
	`
	err := exec.QueryRowContext(ctx, query,
		m.ID, nullString(m.ProjectID), nullString(m.ClassID), m.Title, dateArg(&m.DueDate), boolInt(m.IsHardDeadline),
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create milestone: %w", err)
	}
	return nil
}

// ListMilestones returns the milestones of a project ordered by due date.
func (db *DB) ListMilestones(ctx context.Context, projectID string) ([]*models.Milestone, error) {
	return listMilestones(ctx, db.DB, projectID)
}

func listMilestones(ctx context.Context, exec executor, projectID string) ([]*models.Milestone, error) {
	query := `
		SELECT id, project_id, class_id, title, due_date, is_hard_deadline, created_at
		FROM milestones
		WHERE project_id = ?
		ORDER BY due_date ASC, title ASC
	`
	rows, err := exec.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	defer rows.Close()

	var milestones []*models.Milestone
	for rows.Next() {
		m := &models.Milestone{}
		var project, class, due sql.NullString
		var hard int
		if err := rows.Scan(&m.ID, &project, &class, &m.Title, &due, &hard, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan milestone: %w", err)
		}
		d, err := parseNullDate(due)
		if err != nil {
			return nil, fmt.Errorf("milestone %s: %w", m.ID, err)
		}
		if d != nil {
			m.DueDate = *d
		}
		m.ProjectID = stringPtr(project)
		m.ClassID = stringPtr(class)
		m.IsHardDeadline = hard == 1
		milestones = append(milestones, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return milestones, nil
}
