// Package engine derives task gating state from a read-consistent project
// snapshot. Every function here is pure: nothing is cached between calls and
// nothing is written back, so derived flags are always recomputed from the
// records the caller just loaded.
package engine

import (
	"fmt"

	"github.com/ldi/pbltrack/internal/graph"
	"github.com/ldi/pbltrack/pkg/models"
)

// Snapshot is everything the engine needs to know about one project.
type Snapshot struct {
	Project      models.Project
	Tasks        []*models.Task
	Dependencies []*models.Dependency
	Assignments  []*models.PeerReviewAssignment
	Feedback     []*models.FeedbackEntry
}

// view indexes a snapshot for a single evaluation.
type view struct {
	snap     *Snapshot
	tasks    map[string]*models.Task
	graph    *graph.Graph
	feedback map[string][]*models.FeedbackEntry
}

func (s *Snapshot) index() (*view, error) {
	g, err := graph.Build(s.Tasks, s.Dependencies)
	if err != nil {
		return nil, err
	}

	v := &view{
		snap:     s,
		tasks:    make(map[string]*models.Task, len(s.Tasks)),
		graph:    g,
		feedback: make(map[string][]*models.FeedbackEntry),
	}
	for _, t := range s.Tasks {
		if t != nil {
			v.tasks[t.ID] = t
		}
	}
	for _, f := range s.Feedback {
		if f != nil {
			v.feedback[f.TaskID] = append(v.feedback[f.TaskID], f)
		}
	}
	return v, nil
}

// Graph builds the dependency graph of the snapshot.
func (s *Snapshot) Graph() (*graph.Graph, error) {
	return graph.Build(s.Tasks, s.Dependencies)
}

// Task returns the task with the given ID, deleted or not.
func (s *Snapshot) Task(id string) (*models.Task, bool) {
	for _, t := range s.Tasks {
		if t != nil && t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// statusOf reports live task statuses; deleted and unknown tasks are absent.
func (v *view) statusOf(id string) (models.TaskStatus, bool) {
	t, ok := v.tasks[id]
	if !ok || t.IsDeleted() {
		return "", false
	}
	return t.Status, true
}

func (v *view) task(id string) (*models.Task, error) {
	t, ok := v.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return t, nil
}
