package db

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ldi/pbltrack/pkg/models"
)

const snapshotVersion = 1

// snapshotRecord is one JSONL line of an exported snapshot.
type snapshotRecord struct {
	RecordType string          `json:"record_type"`
	Data       json.RawMessage `json:"data"`
}

type snapshotMeta struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
}

// EnableAutoSnapshot sets up a hook that automatically exports a snapshot
// to the given path after every successful write operation.
func (db *DB) EnableAutoSnapshot(path string, onError func(error)) {
	db.SetOnChange(func(ctx context.Context) {
		// Hooks are best-effort; a failed export must not fail the write.
		if err := db.ExportSnapshot(ctx, path); err != nil && onError != nil {
			onError(err)
		}
	})
}

// ExportSnapshot writes every project with its tasks, dependencies,
// milestones, assignments and feedback to path as JSONL. The file is
// replaced atomically using a temporary file.
func (db *DB) ExportSnapshot(ctx context.Context, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "snapshot-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	w := bufio.NewWriter(tempFile)
	write := func(recordType string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", recordType, err)
		}
		line, err := json.Marshal(snapshotRecord{RecordType: recordType, Data: data})
		if err != nil {
			return fmt.Errorf("failed to marshal %s record: %w", recordType, err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("failed to write snapshot line: %w", err)
		}
		return nil
	}

	if err := write("meta", snapshotMeta{Version: snapshotVersion, ExportedAt: time.Now().UTC()}); err != nil {
		return err
	}

	projects, err := db.ListProjects(ctx)
	if err != nil {
		return err
	}
	for _, p := range projects {
		snap, err := db.LoadSnapshot(ctx, p.ID)
		if err != nil {
			return err
		}
		milestones, err := db.ListMilestones(ctx, p.ID)
		if err != nil {
			return err
		}

		if err := write("project", snap.Project); err != nil {
			return err
		}
		for _, t := range snap.Tasks {
			if err := write("task", t); err != nil {
				return err
			}
		}
		for _, d := range snap.Dependencies {
			if err := write("dependency", d); err != nil {
				return err
			}
		}
		for _, m := range milestones {
			if err := write("milestone", m); err != nil {
				return err
			}
		}
		for _, a := range snap.Assignments {
			if err := write("assignment", a); err != nil {
				return err
			}
		}
		// Ordered by created_at then seq, so re-import keeps the tie-break.
		for _, f := range snap.Feedback {
			if err := write("feedback", f); err != nil {
				return err
			}
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	filename := tempFile.Name()
	tempFile = nil // Prevent defer from removing it

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// ImportSnapshot reads a JSONL snapshot and upserts its records by ID in one
// transaction. Dependencies are inserted as-is; the exporting store already
// guaranteed they form a DAG.
func (db *DB) ImportSnapshot(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec snapshotRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("line %d: failed to unmarshal record: %w", lineNo, err)
		}

		switch rec.RecordType {
		case "meta":
			var meta snapshotMeta
			if err := json.Unmarshal(rec.Data, &meta); err != nil {
				return fmt.Errorf("line %d: failed to unmarshal meta: %w", lineNo, err)
			}
			if meta.Version > snapshotVersion {
				return fmt.Errorf("snapshot version %d is newer than supported version %d", meta.Version, snapshotVersion)
			}

		case "project":
			var p models.Project
			if err := json.Unmarshal(rec.Data, &p); err != nil {
				return fmt.Errorf("line %d: failed to unmarshal project: %w", lineNo, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO projects (id, title, description, start_date, require_critique,
				                      requires_reflection, requires_milestone_reflection, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					title = excluded.title, description = excluded.description, start_date = excluded.start_date,
					require_critique = excluded.require_critique, requires_reflection = excluded.requires_reflection,
					requires_milestone_reflection = excluded.requires_milestone_reflection,
					updated_at = excluded.updated_at`,
				p.ID, p.Title, p.Description, dateArg(p.StartDate), boolInt(p.RequireCritique),
				boolInt(p.RequiresReflection), boolInt(p.RequiresMilestoneReflection),
				timestampArg(p.CreatedAt), timestampArg(p.UpdatedAt))
			if err != nil {
				return fmt.Errorf("failed to sync project %s: %w", p.Title, err)
			}

		case "task":
			var t models.Task
			if err := json.Unmarshal(rec.Data, &t); err != nil {
				return fmt.Errorf("line %d: failed to unmarshal task: %w", lineNo, err)
			}
			var deletedAt any
			if t.DeletedAt != nil {
				deletedAt = timestampArg(*t.DeletedAt)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO tasks (id, project_id, title, description, status, assignee_id, team_id,
				                   due_date, start_date, end_date, duration_days, priority, version,
				                   created_at, updated_at, deleted_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					title = excluded.title, description = excluded.description, status = excluded.status,
					assignee_id = excluded.assignee_id, team_id = excluded.team_id,
					due_date = excluded.due_date, start_date = excluded.start_date, end_date = excluded.end_date,
					duration_days = excluded.duration_days, priority = excluded.priority,
					version = tasks.version + 1, updated_at = excluded.updated_at, deleted_at = excluded.deleted_at`,
				t.ID, t.ProjectID, t.Title, t.Description, t.Status, nullString(t.AssigneeID), nullString(t.TeamID),
				dateArg(t.DueDate), dateArg(t.StartDate), dateArg(t.EndDate), t.DurationDays, t.Priority,
				max(t.Version, 1), timestampArg(t.CreatedAt), timestampArg(t.UpdatedAt), deletedAt)
			if err != nil {
				return fmt.Errorf("failed to sync task %s: %w", t.Title, err)
			}

		case "dependency":
			var d models.Dependency
			if err := json.Unmarshal(rec.Data, &d); err != nil {
				return fmt.Errorf("line %d: failed to unmarshal dependency: %w", lineNo, err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO dependencies (task_id, depends_on_task_id) VALUES (?, ?)`,
				d.TaskID, d.DependsOnTaskID)
			if err != nil {
				return fmt.Errorf("failed to insert dependency %s -> %s: %w", d.TaskID, d.DependsOnTaskID, err)
			}

		case "milestone":
			var m models.Milestone
			if err := json.Unmarshal(rec.Data, &m); err != nil {
				return fmt.Errorf("line %d: failed to unmarshal milestone: %w", lineNo, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO milestones (id, project_id, class_id, title, due_date, is_hard_deadline)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					title = excluded.title, due_date = excluded.due_date, is_hard_deadline = excluded.is_hard_deadline`,
				m.ID, nullString(m.ProjectID), nullString(m.ClassID), m.Title, dateArg(&m.DueDate), boolInt(m.IsHardDeadline))
			if err != nil {
				return fmt.Errorf("failed to sync milestone %s: %w", m.Title, err)
			}

		case "assignment":
			var a models.PeerReviewAssignment
			if err := json.Unmarshal(rec.Data, &a); err != nil {
				return fmt.Errorf("line %d: failed to unmarshal assignment: %w", lineNo, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO peer_review_assignments (id, project_id, reviewer_id, reviewee_id, task_id, status, deadline)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET status = excluded.status, deadline = excluded.deadline`,
				a.ID, a.ProjectID, a.ReviewerID, a.RevieweeID, nullString(a.TaskID), a.Status, dateArg(a.Deadline))
			if err != nil {
				return fmt.Errorf("failed to sync assignment %s: %w", a.ID, err)
			}

		case "feedback":
			var f models.FeedbackEntry
			if err := json.Unmarshal(rec.Data, &f); err != nil {
				return fmt.Errorf("line %d: failed to unmarshal feedback: %w", lineNo, err)
			}
			// Feedback is append-only; entries already present keep their seq.
			_, err = tx.ExecContext(ctx, `
				INSERT INTO feedback_entries (id, task_id, author_id, assignment_id, warm, cool,
				                              requires_revision, checklist_confirmed, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO NOTHING`,
				f.ID, f.TaskID, f.AuthorID, nullString(f.AssignmentID), f.Warm, f.Cool,
				boolInt(f.RequiresRevision), boolInt(f.ChecklistConfirmed),
				f.CreatedAt.UTC().Format(feedbackTimeLayout))
			if err != nil {
				return fmt.Errorf("failed to insert feedback %s: %w", f.ID, err)
			}

		default:
			return fmt.Errorf("line %d: unknown record type %q", lineNo, rec.RecordType)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}
