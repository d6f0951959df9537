package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCycle          = errors.New("dependency cycle")
	ErrSelfDependency = errors.New("task cannot depend on itself")
	ErrUnknownNode    = errors.New("unknown task")
)

// GraphError wraps a graph integrity failure with the offending detail.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func cycleError(path []string) error {
	return &GraphError{Kind: ErrCycle, Msg: strings.Join(path, " -> ")}
}

func selfDependencyError(id string) error {
	return &GraphError{Kind: ErrSelfDependency, Msg: id}
}

func unknownNodeError(id string) error {
	return &GraphError{Kind: ErrUnknownNode, Msg: id}
}
