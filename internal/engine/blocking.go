package engine

import "github.com/ldi/pbltrack/pkg/models"

// blockers returns the direct prerequisites holding t back. A done task has
// already passed the gate and is never blocked.
func (v *view) blockers(t *models.Task) []string {
	if t.Status == models.TaskStatusDone {
		return nil
	}
	return v.graph.Unsatisfied(t.ID, v.statusOf)
}

func (v *view) blocked(t *models.Task) bool {
	return len(v.blockers(t)) > 0
}
