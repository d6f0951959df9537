package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/ldi/pbltrack/pkg/models"
)

// CreateProject inserts a project. If p.ID is empty a new UUID is generated.
func (db *DB) CreateProject(ctx context.Context, p *models.Project) error {
	if err := db.createProject(ctx, db.DB, p); err != nil {
		return err
	}
	db.triggerChange(ctx)
	return nil
}

func (db *DB) createProject(ctx context.Context, exec executor, p *models.Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	query := `
		INSERT INTO projects (id, title, description, start_date, require_critique,
		                      requires_reflection, requires_milestone_reflection)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at, updated_at
	`
	err := exec.QueryRowContext(ctx, query,
		p.ID, p.Title, p.Description, dateArg(p.StartDate), boolInt(p.RequireCritique),
		boolInt(p.RequiresReflection), boolInt(p.RequiresMilestoneReflection),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by its ID. It returns nil if none exists.
func (db *DB) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return db.getProject(ctx, db.DB, id)
}

const projectColumns = `id, title, description, start_date, require_critique, requires_reflection,
	requires_milestone_reflection, created_at, updated_at`

func (db *DB) getProject(ctx context.Context, exec executor, id string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`
	p, err := scanProject(exec.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// ListProjects returns every project ordered by title.
func (db *DB) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY title ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return projects, nil
}

// UpdateProject stores new title, description, start date and gating flags.
func (db *DB) UpdateProject(ctx context.Context, p *models.Project) error {
	query := `
		UPDATE projects
		SET title = ?, description = ?, start_date = ?, require_critique = ?,
		    requires_reflection = ?, requires_milestone_reflection = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING updated_at
	`
	err := db.QueryRowContext(ctx, query,
		p.Title, p.Description, dateArg(p.StartDate), boolInt(p.RequireCritique),
		boolInt(p.RequiresReflection), boolInt(p.RequiresMilestoneReflection), p.ID,
	).Scan(&p.UpdatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("project %s: %w", p.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	p := &models.Project{}
	var start sql.NullString
	var critique, reflection, milestoneReflection int
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &start, &critique, &reflection,
		&milestoneReflection, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	d, err := parseNullDate(start)
	if err != nil {
		return nil, err
	}
	p.StartDate = d
	p.RequireCritique = critique == 1
	p.RequiresReflection = reflection == 1
	p.RequiresMilestoneReflection = milestoneReflection == 1
	return p, nil
}
