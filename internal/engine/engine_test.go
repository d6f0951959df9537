package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/ldi/pbltrack/internal/graph"
	"github.com/ldi/pbltrack/pkg/models"
)

func task(id string, status models.TaskStatus) *models.Task {
	return &models.Task{ID: id, ProjectID: "p1", Title: id, Status: status}
}

func dep(taskID, dependsOn string) *models.Dependency {
	return &models.Dependency{TaskID: taskID, DependsOnTaskID: dependsOn}
}

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func feedback(taskID string, seq int64, at time.Time, revise bool) *models.FeedbackEntry {
	return &models.FeedbackEntry{
		ID:                 taskID + "-fb",
		Seq:                seq,
		TaskID:             taskID,
		AuthorID:           "peer",
		RequiresRevision:   revise,
		ChecklistConfirmed: true,
		CreatedAt:          at,
	}
}

func TestDoneTaskIsNeverBlocked(t *testing.T) {
	for _, depStatus := range []models.TaskStatus{
		models.TaskStatusTodo, models.TaskStatusInProgress, models.TaskStatusReview, models.TaskStatusDone,
	} {
		snap := &Snapshot{
			Tasks:        []*models.Task{task("a", depStatus), task("b", models.TaskStatusDone)},
			Dependencies: []*models.Dependency{dep("b", "a")},
		}
		e, err := EvaluateTask("b", snap)
		if err != nil {
			t.Fatalf("EvaluateTask: %v", err)
		}
		if e.Blocked {
			t.Errorf("done task reported blocked while dependency is %s", depStatus)
		}
	}
}

func TestCompletingDependencyUnblocks(t *testing.T) {
	a := task("a", models.TaskStatusInProgress)
	snap := &Snapshot{
		Tasks:        []*models.Task{a, task("b", models.TaskStatusTodo)},
		Dependencies: []*models.Dependency{dep("b", "a")},
	}

	e, err := EvaluateTask("b", snap)
	if err != nil {
		t.Fatalf("EvaluateTask: %v", err)
	}
	if !e.Blocked {
		t.Fatal("expected b to be blocked by a")
	}
	if len(e.BlockedBy) != 1 || e.BlockedBy[0] != "a" {
		t.Errorf("BlockedBy = %v, want [a]", e.BlockedBy)
	}

	a.Status = models.TaskStatusDone
	e, err = EvaluateTask("b", snap)
	if err != nil {
		t.Fatalf("EvaluateTask: %v", err)
	}
	if e.Blocked {
		t.Error("expected b to be unblocked once a is done")
	}
}

func TestDeletedDependencyDoesNotBlock(t *testing.T) {
	now := base
	gone := task("a", models.TaskStatusTodo)
	gone.DeletedAt = &now
	snap := &Snapshot{
		Tasks:        []*models.Task{gone, task("b", models.TaskStatusInProgress)},
		Dependencies: []*models.Dependency{dep("b", "a")},
	}
	e, err := EvaluateTask("b", snap)
	if err != nil {
		t.Fatalf("EvaluateTask: %v", err)
	}
	if e.Blocked {
		t.Error("deleted prerequisite should not block")
	}
}

func TestCritiqueGate(t *testing.T) {
	critique := models.Project{RequireCritique: true}
	inProgress := task("a", models.TaskStatusInProgress)
	review := task("a", models.TaskStatusReview)
	done := task("a", models.TaskStatusDone)

	tests := []struct {
		name      string
		project   models.Project
		task      *models.Task
		entries   []*models.FeedbackEntry
		want      bool
		reason    Reason
		forceBack bool
	}{
		{
			name:    "critique off",
			project: models.Project{},
			task:    inProgress,
			want:    true,
		},
		{
			name:    "no feedback",
			project: critique,
			task:    inProgress,
			reason:  ReasonMissingCritique,
		},
		{
			name:    "approved",
			project: critique,
			task:    inProgress,
			entries: []*models.FeedbackEntry{feedback("a", 1, base, false)},
			want:    true,
		},
		{
			name:    "revision requested while in progress",
			project: critique,
			task:    inProgress,
			entries: []*models.FeedbackEntry{feedback("a", 1, base, true)},
			reason:  ReasonCritiqueRevisionRequired,
		},
		{
			name:      "revision requested while in review",
			project:   critique,
			task:      review,
			entries:   []*models.FeedbackEntry{feedback("a", 1, base, true)},
			reason:    ReasonCritiqueRevisionRequired,
			forceBack: true,
		},
		{
			name:      "revision requested after done",
			project:   critique,
			task:      done,
			entries:   []*models.FeedbackEntry{feedback("a", 1, base, true)},
			reason:    ReasonCritiqueRevisionRequired,
			forceBack: true,
		},
		{
			name:    "approved after done",
			project: critique,
			task:    done,
			entries: []*models.FeedbackEntry{feedback("a", 1, base, false)},
			want:    true,
		},
		{
			name:    "latest by time wins",
			project: critique,
			task:    inProgress,
			entries: []*models.FeedbackEntry{
				feedback("a", 2, base, true),
				feedback("a", 1, base.Add(time.Hour), false),
			},
			want: true,
		},
		{
			name:    "same timestamp falls back to sequence",
			project: critique,
			task:    inProgress,
			entries: []*models.FeedbackEntry{
				feedback("a", 7, base, true),
				feedback("a", 3, base, false),
			},
			reason: ReasonCritiqueRevisionRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Critique(tt.project, tt.task, tt.entries)
			if v.Completable != tt.want {
				t.Errorf("Completable = %v, want %v", v.Completable, tt.want)
			}
			if v.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", v.Reason, tt.reason)
			}
			if v.ForceRevision != tt.forceBack {
				t.Errorf("ForceRevision = %v, want %v", v.ForceRevision, tt.forceBack)
			}
		})
	}
}

func TestSubmitFeedback(t *testing.T) {
	taskID := "a"
	pending := func() *models.PeerReviewAssignment {
		return &models.PeerReviewAssignment{
			ID:         "pra-1",
			ReviewerID: "peer",
			TaskID:     &taskID,
			Status:     models.AssignmentStatusPending,
		}
	}

	t.Run("unconfirmed checklist is rejected", func(t *testing.T) {
		assignment := pending()
		entry := feedback("a", 0, base, false)
		entry.ChecklistConfirmed = false

		_, err := SubmitFeedback(entry, assignment)
		if !errors.Is(err, ErrChecklistIncomplete) {
			t.Fatalf("expected ErrChecklistIncomplete, got %v", err)
		}
		if assignment.Status != models.AssignmentStatusPending {
			t.Errorf("assignment status changed to %s", assignment.Status)
		}
	})

	t.Run("completes assignment", func(t *testing.T) {
		assignment := pending()
		sub, err := SubmitFeedback(feedback("a", 0, base, false), assignment)
		if err != nil {
			t.Fatalf("SubmitFeedback: %v", err)
		}
		if sub.Assignment.Status != models.AssignmentStatusCompleted {
			t.Errorf("expected completed assignment, got %s", sub.Assignment.Status)
		}
		if assignment.Status != models.AssignmentStatusPending {
			t.Error("input assignment must not be modified")
		}
	})

	t.Run("completed assignment cannot be reused", func(t *testing.T) {
		assignment := pending()
		assignment.Status = models.AssignmentStatusCompleted
		_, err := SubmitFeedback(feedback("a", 0, base, false), assignment)
		if !errors.Is(err, ErrAssignmentCompleted) {
			t.Fatalf("expected ErrAssignmentCompleted, got %v", err)
		}
	})

	t.Run("wrong task", func(t *testing.T) {
		_, err := SubmitFeedback(feedback("b", 0, base, false), pending())
		if !errors.Is(err, ErrAssignmentMismatch) {
			t.Fatalf("expected ErrAssignmentMismatch, got %v", err)
		}
	})
}

func TestRequestTransitionUnblockedWithoutCritique(t *testing.T) {
	snap := &Snapshot{
		Tasks:        []*models.Task{task("a", models.TaskStatusDone), task("b", models.TaskStatusInProgress)},
		Dependencies: []*models.Dependency{dep("b", "a")},
	}

	e, err := EvaluateTask("b", snap)
	if err != nil {
		t.Fatalf("EvaluateTask: %v", err)
	}
	if e.Blocked || !e.Completable {
		t.Fatalf("expected unblocked and completable, got %+v", e)
	}

	tr, err := RequestTransition("b", models.TaskStatusDone, snap)
	if err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}
	if tr.From != models.TaskStatusInProgress || tr.To != models.TaskStatusDone {
		t.Errorf("unexpected transition %+v", tr)
	}
}

func TestRequestTransitionGates(t *testing.T) {
	snap := &Snapshot{
		Project:      models.Project{RequireCritique: true},
		Tasks:        []*models.Task{task("a", models.TaskStatusTodo), task("b", models.TaskStatusReview)},
		Dependencies: []*models.Dependency{dep("b", "a")},
	}

	_, err := RequestTransition("b", models.TaskStatusDone, snap)
	var gv *GateViolationError
	if !errors.As(err, &gv) {
		t.Fatalf("expected GateViolationError, got %v", err)
	}
	if !gv.Has(ReasonBlockedByDependency) || !gv.Has(ReasonMissingCritique) {
		t.Errorf("expected both gates to fail, got %v", gv.Reasons)
	}
	if gv.Reason() != ReasonBlockedByDependency {
		t.Errorf("first reason = %s, want %s", gv.Reason(), ReasonBlockedByDependency)
	}
	if !errors.Is(err, ErrGateViolation) {
		t.Error("expected errors.Is(err, ErrGateViolation)")
	}
}

func TestRequestTransitionStateEdges(t *testing.T) {
	tests := []struct {
		from, to models.TaskStatus
		ok       bool
	}{
		{models.TaskStatusTodo, models.TaskStatusInProgress, true},
		{models.TaskStatusTodo, models.TaskStatusDone, false},
		{models.TaskStatusTodo, models.TaskStatusReview, false},
		{models.TaskStatusInProgress, models.TaskStatusReview, true},
		{models.TaskStatusInProgress, models.TaskStatusDone, true},
		{models.TaskStatusInProgress, models.TaskStatusTodo, true},
		{models.TaskStatusReview, models.TaskStatusDone, true},
		{models.TaskStatusReview, models.TaskStatusInProgress, false},
		{models.TaskStatusDone, models.TaskStatusInProgress, false},
		{models.TaskStatusDone, models.TaskStatusTodo, false},
	}

	for _, tt := range tests {
		snap := &Snapshot{Tasks: []*models.Task{task("a", tt.from)}}
		_, err := RequestTransition("a", tt.to, snap)
		if tt.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tt.from, tt.to, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", tt.from, tt.to, err)
		}
	}
}

func TestRequestTransitionDeletedTask(t *testing.T) {
	now := base
	a := task("a", models.TaskStatusInProgress)
	a.DeletedAt = &now
	snap := &Snapshot{Tasks: []*models.Task{a}}

	_, err := RequestTransition("a", models.TaskStatusDone, snap)
	if !errors.Is(err, ErrTaskDeleted) {
		t.Fatalf("expected ErrTaskDeleted, got %v", err)
	}
	var gv *GateViolationError
	if !errors.As(err, &gv) || gv.Reason() != ReasonTaskDeleted {
		t.Errorf("expected TaskDeleted reason, got %v", err)
	}
}

func TestRevisionLoop(t *testing.T) {
	b := task("b", models.TaskStatusReview)
	snap := &Snapshot{
		Project:  models.Project{RequireCritique: true},
		Tasks:    []*models.Task{b},
		Feedback: []*models.FeedbackEntry{feedback("b", 1, base, true)},
	}

	tr, err := Revise("b", snap)
	if err != nil {
		t.Fatalf("Revise: %v", err)
	}
	if tr == nil || tr.To != models.TaskStatusInProgress || !tr.Forced {
		t.Fatalf("expected forced revision to in_progress, got %+v", tr)
	}
	b.Status = tr.To

	// A second evaluation must not force again.
	if again, _ := Revise("b", snap); again != nil {
		t.Errorf("unexpected second revision %+v", again)
	}

	_, err = RequestTransition("b", models.TaskStatusDone, snap)
	var gv *GateViolationError
	if !errors.As(err, &gv) || gv.Reason() != ReasonCritiqueRevisionRequired {
		t.Fatalf("expected CritiqueRevisionRequired, got %v", err)
	}

	// Going back to review would leave the pending revision stuck there.
	_, err = RequestTransition("b", models.TaskStatusReview, snap)
	gv = nil
	if !errors.As(err, &gv) || gv.Reason() != ReasonCritiqueRevisionRequired {
		t.Fatalf("expected review to be refused with CritiqueRevisionRequired, got %v", err)
	}

	snap.Feedback = append(snap.Feedback, feedback("b", 2, base.Add(time.Hour), false))
	if _, err := RequestTransition("b", models.TaskStatusReview, snap); err != nil {
		t.Fatalf("expected review to be accepted after approving critique, got %v", err)
	}
	if _, err := RequestTransition("b", models.TaskStatusDone, snap); err != nil {
		t.Fatalf("expected done to be accepted after approving critique, got %v", err)
	}
}

func TestRevisionLoopFromDone(t *testing.T) {
	c := task("c", models.TaskStatusDone)
	snap := &Snapshot{
		Project:  models.Project{RequireCritique: true},
		Tasks:    []*models.Task{c},
		Feedback: []*models.FeedbackEntry{feedback("c", 1, base, true)},
	}

	tr, err := Revise("c", snap)
	if err != nil {
		t.Fatalf("Revise: %v", err)
	}
	if tr == nil || tr.From != models.TaskStatusDone || tr.To != models.TaskStatusInProgress || !tr.Forced {
		t.Fatalf("expected forced done -> in_progress, got %+v", tr)
	}
}

func TestReviewAllowedWithoutCritiqueGate(t *testing.T) {
	snap := &Snapshot{
		Tasks:    []*models.Task{task("a", models.TaskStatusInProgress)},
		Feedback: []*models.FeedbackEntry{feedback("a", 1, base, true)},
	}
	if _, err := RequestTransition("a", models.TaskStatusReview, snap); err != nil {
		t.Errorf("expected review without the critique gate, got %v", err)
	}
}

func TestClaim(t *testing.T) {
	now := base
	someone := "s1"
	gone := task("gone", models.TaskStatusTodo)
	gone.DeletedAt = &now
	taken := task("taken", models.TaskStatusTodo)
	taken.AssigneeID = &someone
	snap := &Snapshot{Tasks: []*models.Task{task("free", models.TaskStatusTodo), gone, taken}}

	if err := Claim("free", "s2", snap); err != nil {
		t.Errorf("Claim(free): %v", err)
	}
	if err := Claim("gone", "s2", snap); !errors.Is(err, ErrTaskDeleted) {
		t.Errorf("Claim(gone) = %v, want ErrTaskDeleted", err)
	}
	if err := Claim("taken", "s2", snap); !errors.Is(err, ErrAlreadyClaimed) {
		t.Errorf("Claim(taken) = %v, want ErrAlreadyClaimed", err)
	}
	if err := Claim("missing", "s2", snap); !errors.Is(err, ErrUnknownTask) {
		t.Errorf("Claim(missing) = %v, want ErrUnknownTask", err)
	}
}

func TestAddDependency(t *testing.T) {
	snap := &Snapshot{
		Tasks:        []*models.Task{task("a", models.TaskStatusTodo), task("b", models.TaskStatusTodo)},
		Dependencies: []*models.Dependency{dep("b", "a")},
	}

	if err := AddDependency("a", "b", snap); !errors.Is(err, graph.ErrCycle) {
		t.Errorf("expected ErrCycle, got %v", err)
	}
	if err := AddDependency("a", "a", snap); !errors.Is(err, graph.ErrSelfDependency) {
		t.Errorf("expected ErrSelfDependency, got %v", err)
	}

	other := task("x", models.TaskStatusTodo)
	other.ProjectID = "p2"
	snap.Tasks = append(snap.Tasks, other)
	if err := AddDependency("a", "x", snap); !errors.Is(err, ErrCrossProject) {
		t.Errorf("expected ErrCrossProject, got %v", err)
	}
}

func TestAnnotateSkipsDeleted(t *testing.T) {
	now := base
	gone := task("gone", models.TaskStatusTodo)
	gone.DeletedAt = &now
	snap := &Snapshot{
		Project:      models.Project{RequireCritique: true},
		Tasks:        []*models.Task{task("a", models.TaskStatusTodo), task("b", models.TaskStatusTodo), gone},
		Dependencies: []*models.Dependency{dep("b", "a")},
	}

	tasks, err := Annotate(snap)
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 live tasks, got %d", len(tasks))
	}
	for _, tk := range tasks {
		if tk.Completable {
			t.Errorf("%s should not be completable without critique", tk.ID)
		}
		if tk.ID == "b" && !tk.Blocked {
			t.Error("b should be blocked")
		}
	}
	if snap.Tasks[1].Blocked {
		t.Error("Annotate must not modify snapshot tasks")
	}
}
