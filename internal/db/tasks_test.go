package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ldi/pbltrack/internal/engine"
	"github.com/ldi/pbltrack/pkg/models"
)

func TestTaskCRUD(t *testing.T) {
	db, p := newTestDB(t)
	ctx := context.Background()

	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	task := &models.Task{
		ProjectID:   p.ID,
		Title:       "Collect samples",
		Description: "Three sites along the river",
		DueDate:     &due,
		Priority:    models.PriorityHigh,
	}
	if err := db.CreateTask(ctx, task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	if len(task.ID) != 36 || !strings.Contains(task.ID, "-") {
		t.Errorf("Expected a UUID, got %q", task.ID)
	}
	if task.Status != models.TaskStatusTodo {
		t.Errorf("Expected default status todo, got %s", task.Status)
	}
	if task.Version != 1 {
		t.Errorf("Expected version 1, got %d", task.Version)
	}
	if task.CreatedAt.IsZero() || task.UpdatedAt.IsZero() {
		t.Errorf("Expected CreatedAt and UpdatedAt to be set")
	}

	got, err := db.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to get task: %v", err)
	}
	if got == nil {
		t.Fatal("Expected task, got nil")
	}
	if got.Title != task.Title || got.Description != task.Description {
		t.Errorf("Got %q/%q, want %q/%q", got.Title, got.Description, task.Title, task.Description)
	}
	if got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Errorf("Expected due date %v, got %v", due, got.DueDate)
	}
	if got.Priority != models.PriorityHigh {
		t.Errorf("Expected priority high, got %s", got.Priority)
	}

	// Update
	got.Title = "Collect water samples"
	got.DurationDays = 4
	if err := db.UpdateTask(ctx, got); err != nil {
		t.Fatalf("Failed to update task: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("Expected version 2 after update, got %d", got.Version)
	}
	reread, _ := db.GetTask(ctx, task.ID)
	if reread.Title != "Collect water samples" || reread.DurationDays != 4 {
		t.Errorf("Update not persisted: %+v", reread)
	}

	// List by status
	mustCreateTask(t, db, p.ID, "Write report")
	todo := models.TaskStatusTodo
	tasks, err := db.ListTasks(ctx, p.ID, &todo)
	if err != nil {
		t.Fatalf("Failed to list tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("Expected 2 todo tasks, got %d", len(tasks))
	}
	if tasks[0].ID != task.ID {
		t.Errorf("Expected high priority task first, got %s", tasks[0].Title)
	}

	// Missing
	missing, err := db.GetTask(ctx, "nope")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for unknown task, got %+v", missing)
	}

	if err := db.CreateTask(ctx, &models.Task{ProjectID: p.ID, Title: "bad", Status: "archived"}); err == nil {
		t.Error("Expected invalid status to be rejected")
	}
}

func TestDeleteTask(t *testing.T) {
	db, p := newTestDB(t)
	ctx := context.Background()

	a := mustCreateTask(t, db, p.ID, "A")
	b := mustCreateTask(t, db, p.ID, "B")
	if err := db.CreateDependency(ctx, b.ID, a.ID); err != nil {
		t.Fatalf("Failed to create dependency: %v", err)
	}

	if err := db.DeleteTask(ctx, a.ID); err != nil {
		t.Fatalf("Failed to delete task: %v", err)
	}

	// Deleted tasks stay readable by ID but drop out of listings.
	got, err := db.GetTask(ctx, a.ID)
	if err != nil {
		t.Fatalf("Failed to get deleted task: %v", err)
	}
	if got == nil || !got.IsDeleted() {
		t.Fatalf("Expected soft-deleted task, got %+v", got)
	}
	tasks, err := db.ListTasks(ctx, p.ID, nil)
	if err != nil {
		t.Fatalf("Failed to list tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != b.ID {
		t.Errorf("Expected only B listed, got %d tasks", len(tasks))
	}

	deps, err := db.GetDependencies(ctx, b.ID)
	if err != nil {
		t.Fatalf("Failed to get dependencies: %v", err)
	}
	if len(deps) != 0 {
		t.Errorf("Expected edges to deleted task to be dropped, got %d", len(deps))
	}

	eval, err := db.EvaluateTask(ctx, b.ID)
	if err != nil {
		t.Fatalf("Failed to evaluate task: %v", err)
	}
	if eval.Blocked {
		t.Error("Expected B unblocked after its dependency was deleted")
	}

	if err := db.DeleteTask(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
	if err := db.UpdateTask(ctx, got); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound updating deleted task, got %v", err)
	}
}

func TestClaimTask(t *testing.T) {
	db, p := newTestDB(t)
	ctx := context.Background()

	task := mustCreateTask(t, db, p.ID, "Build filter")

	claimed, err := db.ClaimTask(ctx, task.ID, "student-1")
	if err != nil {
		t.Fatalf("Failed to claim task: %v", err)
	}
	if claimed.AssigneeID == nil || *claimed.AssigneeID != "student-1" {
		t.Errorf("Expected assignee student-1, got %v", claimed.AssigneeID)
	}
	if claimed.Status != models.TaskStatusTodo {
		t.Errorf("Claiming must not change status, got %s", claimed.Status)
	}

	if _, err := db.ClaimTask(ctx, task.ID, "student-1"); err != nil {
		t.Errorf("Re-claim by the same assignee should succeed, got %v", err)
	}

	if _, err := db.ClaimTask(ctx, task.ID, "student-2"); !errors.Is(err, engine.ErrAlreadyClaimed) {
		t.Errorf("Expected ErrAlreadyClaimed, got %v", err)
	}

	if _, err := db.ClaimTask(ctx, "missing", "student-2"); !errors.Is(err, engine.ErrUnknownTask) {
		t.Errorf("Expected ErrUnknownTask, got %v", err)
	}

	other := mustCreateTask(t, db, p.ID, "Paint poster")
	if err := db.DeleteTask(ctx, other.ID); err != nil {
		t.Fatalf("Failed to delete task: %v", err)
	}
	if _, err := db.ClaimTask(ctx, other.ID, "student-2"); !errors.Is(err, engine.ErrTaskDeleted) {
		t.Errorf("Expected ErrTaskDeleted, got %v", err)
	}
}
