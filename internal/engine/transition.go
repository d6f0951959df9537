package engine

import (
	"fmt"

	"github.com/ldi/pbltrack/pkg/models"
)

// Evaluation holds the derived flags of a task.
type Evaluation struct {
	TaskID        string   `json:"task_id"`
	Blocked       bool     `json:"blocked"`
	BlockedBy     []string `json:"blocked_by,omitempty"`
	Completable   bool     `json:"completable"`
	Reason        Reason   `json:"reason,omitempty"`
	ForceRevision bool     `json:"force_revision"`
}

// Transition is an accepted status change. The caller persists it.
type Transition struct {
	TaskID string            `json:"task_id"`
	From   models.TaskStatus `json:"from"`
	To     models.TaskStatus `json:"to"`
	Forced bool              `json:"forced"`
}

// Changed reports whether the transition actually moves the task.
func (t *Transition) Changed() bool {
	return t.From != t.To
}

// EvaluateTask computes blocked and completable for one task.
func EvaluateTask(taskID string, snap *Snapshot) (*Evaluation, error) {
	v, err := snap.index()
	if err != nil {
		return nil, err
	}
	t, err := v.task(taskID)
	if err != nil {
		return nil, err
	}
	return v.evaluate(t), nil
}

// EvaluateAll evaluates every live task of the snapshot in dependency order.
func EvaluateAll(snap *Snapshot) ([]*Evaluation, error) {
	v, err := snap.index()
	if err != nil {
		return nil, err
	}
	order := v.graph.TopoOrder()
	out := make([]*Evaluation, 0, len(order))
	for _, id := range order {
		out = append(out, v.evaluate(v.tasks[id]))
	}
	return out, nil
}

// Annotate returns copies of the live tasks with Blocked and Completable
// filled in. The input tasks are not modified.
func Annotate(snap *Snapshot) ([]*models.Task, error) {
	v, err := snap.index()
	if err != nil {
		return nil, err
	}
	out := make([]*models.Task, 0, len(snap.Tasks))
	for _, t := range snap.Tasks {
		if t == nil || t.IsDeleted() {
			continue
		}
		e := v.evaluate(t)
		cp := *t
		cp.Blocked = e.Blocked
		cp.Completable = e.Completable
		out = append(out, &cp)
	}
	return out, nil
}

func (v *view) evaluate(t *models.Task) *Evaluation {
	blockers := v.blockers(t)
	verdict := Critique(v.snap.Project, t, v.feedback[t.ID])
	return &Evaluation{
		TaskID:        t.ID,
		Blocked:       len(blockers) > 0,
		BlockedBy:     blockers,
		Completable:   verdict.Completable,
		Reason:        verdict.Reason,
		ForceRevision: verdict.ForceRevision,
	}
}

// allowed lists the transitions a caller may request. The revision edges
// review|done -> in_progress are absent: only the critique gate takes them.
var allowed = map[models.TaskStatus][]models.TaskStatus{
	models.TaskStatusTodo:       {models.TaskStatusInProgress},
	models.TaskStatusInProgress: {models.TaskStatusTodo, models.TaskStatusReview, models.TaskStatusDone},
	models.TaskStatusReview:     {models.TaskStatusDone},
}

// CanTransition reports whether from -> to is a legal requested transition,
// ignoring gates.
func CanTransition(from, to models.TaskStatus) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// RequestTransition validates moving taskID to target against the snapshot.
// Moving to done requires the task to be unblocked and completable; both gates
// are checked and every failure is reported. Moving to review is refused while
// the latest critique still asks for revision, otherwise the task would sit in
// review with the revision pending. Requesting the current status is a no-op.
func RequestTransition(taskID string, target models.TaskStatus, snap *Snapshot) (*Transition, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}

	v, err := snap.index()
	if err != nil {
		return nil, err
	}
	t, err := v.task(taskID)
	if err != nil {
		return nil, err
	}
	if t.IsDeleted() {
		return nil, &GateViolationError{TaskID: t.ID, Reasons: []Reason{ReasonTaskDeleted}}
	}

	tr := &Transition{TaskID: t.ID, From: t.Status, To: target}
	if t.Status == target {
		return tr, nil
	}
	if !CanTransition(t.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, target)
	}
	if target == models.TaskStatusReview {
		if verdict := Critique(snap.Project, t, v.feedback[t.ID]); verdict.Reason == ReasonCritiqueRevisionRequired {
			return nil, &GateViolationError{TaskID: t.ID, Reasons: []Reason{ReasonCritiqueRevisionRequired}}
		}
		return tr, nil
	}
	if target != models.TaskStatusDone {
		return tr, nil
	}

	e := v.evaluate(t)
	var gv GateViolationError
	if e.Blocked {
		gv.Reasons = append(gv.Reasons, ReasonBlockedByDependency)
		gv.BlockedBy = e.BlockedBy
	}
	if !e.Completable {
		gv.Reasons = append(gv.Reasons, e.Reason)
	}
	if len(gv.Reasons) > 0 {
		gv.TaskID = t.ID
		return nil, &gv
	}
	return tr, nil
}

// Revise returns the forced revision for taskID if the critique gate demands
// one, or nil when the task may stay where it is.
func Revise(taskID string, snap *Snapshot) (*Transition, error) {
	v, err := snap.index()
	if err != nil {
		return nil, err
	}
	t, err := v.task(taskID)
	if err != nil {
		return nil, err
	}
	if t.IsDeleted() {
		return nil, nil
	}
	verdict := Critique(snap.Project, t, v.feedback[t.ID])
	if !verdict.ForceRevision {
		return nil, nil
	}
	return &Transition{TaskID: t.ID, From: t.Status, To: models.TaskStatusInProgress, Forced: true}, nil
}

// Claim validates assigning an unassigned task. It is an attribute update,
// not a status transition, so only the soft-delete marker is checked.
func Claim(taskID, assigneeID string, snap *Snapshot) error {
	t, ok := snap.Task(taskID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}
	if t.IsDeleted() {
		return fmt.Errorf("%w: %s", ErrTaskDeleted, taskID)
	}
	if assigneeID == "" {
		return fmt.Errorf("assignee is required")
	}
	if t.AssigneeID != nil && *t.AssigneeID != "" && *t.AssigneeID != assigneeID {
		return fmt.Errorf("%w: %s", ErrAlreadyClaimed, *t.AssigneeID)
	}
	return nil
}

// AddDependency validates a new edge against the snapshot graph. The edge is
// refused if either task is deleted, the tasks span projects, or the edge
// would introduce a cycle.
func AddDependency(taskID, dependsOnID string, snap *Snapshot) error {
	t, ok := snap.Task(taskID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}
	dep, ok := snap.Task(dependsOnID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, dependsOnID)
	}
	if t.IsDeleted() {
		return fmt.Errorf("%w: %s", ErrTaskDeleted, taskID)
	}
	if dep.IsDeleted() {
		return fmt.Errorf("%w: %s", ErrTaskDeleted, dependsOnID)
	}
	if t.ProjectID != dep.ProjectID {
		return fmt.Errorf("%w: %s and %s", ErrCrossProject, taskID, dependsOnID)
	}

	g, err := snap.Graph()
	if err != nil {
		return err
	}
	return g.AddEdge(taskID, dependsOnID)
}
