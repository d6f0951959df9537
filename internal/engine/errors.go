package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrGateViolation       = errors.New("gate violation")
	ErrChecklistIncomplete = errors.New("critique checklist not confirmed")
	ErrTaskDeleted         = errors.New("task is deleted")
	ErrUnknownTask         = errors.New("task not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrAssignmentCompleted = errors.New("peer review assignment already completed")
	ErrAssignmentMismatch  = errors.New("feedback does not match peer review assignment")
	ErrAlreadyClaimed      = errors.New("task already has an assignee")
	ErrCrossProject        = errors.New("tasks belong to different projects")
)

// Reason names the gate that refused a transition.
type Reason string

const (
	ReasonBlockedByDependency      Reason = "BlockedByDependency"
	ReasonCritiqueRevisionRequired Reason = "CritiqueRevisionRequired"
	ReasonMissingCritique          Reason = "MissingCritique"
	ReasonTaskDeleted              Reason = "TaskDeleted"
)

// GateViolationError is returned when a task may not move to the requested
// status. Reasons lists every gate that failed, most fundamental first.
type GateViolationError struct {
	TaskID    string
	Reasons   []Reason
	BlockedBy []string
}

func (e *GateViolationError) Error() string {
	parts := make([]string, len(e.Reasons))
	for i, r := range e.Reasons {
		parts[i] = string(r)
	}
	msg := fmt.Sprintf("gate violation for task %s: %s", e.TaskID, strings.Join(parts, ", "))
	if len(e.BlockedBy) > 0 {
		msg += fmt.Sprintf(" (waiting on %s)", strings.Join(e.BlockedBy, ", "))
	}
	return msg
}

// Reason returns the first failed gate.
func (e *GateViolationError) Reason() Reason {
	if len(e.Reasons) == 0 {
		return ""
	}
	return e.Reasons[0]
}

// Has reports whether r is among the failed gates.
func (e *GateViolationError) Has(r Reason) bool {
	for _, got := range e.Reasons {
		if got == r {
			return true
		}
	}
	return false
}

func (e *GateViolationError) Is(target error) bool {
	if target == ErrGateViolation {
		return true
	}
	return target == ErrTaskDeleted && e.Has(ReasonTaskDeleted)
}
