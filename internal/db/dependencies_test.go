package db

import (
	"context"
	"errors"
	"testing"

	"github.com/ldi/pbltrack/internal/engine"
	"github.com/ldi/pbltrack/internal/graph"
	"github.com/ldi/pbltrack/pkg/models"
)

func TestDependencies(t *testing.T) {
	db, p := newTestDB(t)
	ctx := context.Background()

	a := mustCreateTask(t, db, p.ID, "A")
	b := mustCreateTask(t, db, p.ID, "B")
	c := mustCreateTask(t, db, p.ID, "C")

	// C depends on B, B depends on A
	if err := db.CreateDependency(ctx, c.ID, b.ID); err != nil {
		t.Fatalf("Failed to create dependency C->B: %v", err)
	}
	if err := db.CreateDependency(ctx, b.ID, a.ID); err != nil {
		t.Fatalf("Failed to create dependency B->A: %v", err)
	}
	// Adding an existing edge is a no-op.
	if err := db.CreateDependency(ctx, b.ID, a.ID); err != nil {
		t.Fatalf("Duplicate dependency should be accepted, got %v", err)
	}

	deps, err := db.GetDependencies(ctx, b.ID)
	if err != nil {
		t.Fatalf("Failed to get dependencies: %v", err)
	}
	if len(deps) != 1 || deps[0].ID != a.ID {
		t.Errorf("Expected B to depend on A only, got %d deps", len(deps))
	}

	dependents, err := db.GetDependents(ctx, b.ID)
	if err != nil {
		t.Fatalf("Failed to get dependents: %v", err)
	}
	if len(dependents) != 1 || dependents[0].ID != c.ID {
		t.Errorf("Expected C to depend on B, got %d dependents", len(dependents))
	}

	t.Run("cycle refused", func(t *testing.T) {
		err := db.CreateDependency(ctx, a.ID, c.ID)
		if !errors.Is(err, graph.ErrCycle) {
			t.Fatalf("Expected ErrCycle, got %v", err)
		}
		deps, _ := db.GetDependencies(ctx, a.ID)
		if len(deps) != 0 {
			t.Errorf("Refused edge must not be stored, got %d", len(deps))
		}
	})

	t.Run("self dependency refused", func(t *testing.T) {
		if err := db.CreateDependency(ctx, a.ID, a.ID); !errors.Is(err, graph.ErrSelfDependency) {
			t.Errorf("Expected ErrSelfDependency, got %v", err)
		}
	})

	t.Run("cross project refused", func(t *testing.T) {
		other := &models.Project{Title: "Other"}
		if err := db.CreateProject(ctx, other); err != nil {
			t.Fatalf("Failed to create project: %v", err)
		}
		x := mustCreateTask(t, db, other.ID, "X")
		if err := db.CreateDependency(ctx, a.ID, x.ID); !errors.Is(err, engine.ErrCrossProject) {
			t.Errorf("Expected ErrCrossProject, got %v", err)
		}
	})

	t.Run("unknown task refused", func(t *testing.T) {
		if err := db.CreateDependency(ctx, "missing", a.ID); !errors.Is(err, engine.ErrUnknownTask) {
			t.Errorf("Expected ErrUnknownTask, got %v", err)
		}
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		if err := db.DeleteDependency(ctx, c.ID, b.ID); err != nil {
			t.Fatalf("Failed to delete dependency: %v", err)
		}
		if err := db.DeleteDependency(ctx, c.ID, b.ID); err != nil {
			t.Fatalf("Deleting a missing edge should succeed, got %v", err)
		}
		deps, _ := db.GetDependencies(ctx, c.ID)
		if len(deps) != 0 {
			t.Errorf("Expected no dependencies for C, got %d", len(deps))
		}
		// With C->B gone, A->C no longer closes a cycle.
		if err := db.CreateDependency(ctx, a.ID, c.ID); err != nil {
			t.Errorf("Expected A->C to be accepted, got %v", err)
		}
	})
}
