package graph

import (
	"fmt"
	"sort"

	"github.com/ldi/pbltrack/pkg/models"
)

// Graph is the depends-on graph of a single project. An edge task -> dep
// means task cannot finish before dep is done. The edge set is kept acyclic:
// AddEdge refuses any insertion that would close a cycle.
type Graph struct {
	nodes map[string]struct{}
	deps  map[string]map[string]struct{} // task -> tasks it depends on
	rdeps map[string]map[string]struct{} // task -> tasks that depend on it
}

// StatusFunc looks up a task status. ok is false for tasks that are unknown
// or soft-deleted.
type StatusFunc func(id string) (status models.TaskStatus, ok bool)

func New() *Graph {
	return &Graph{
		nodes: make(map[string]struct{}),
		deps:  make(map[string]map[string]struct{}),
		rdeps: make(map[string]map[string]struct{}),
	}
}

// Build constructs a graph from a project snapshot. Soft-deleted tasks are
// left out, and so are edges touching them or tasks outside the snapshot.
// A snapshot whose edges already contain a cycle is rejected.
func Build(tasks []*models.Task, edges []*models.Dependency) (*Graph, error) {
	g := New()
	for _, t := range tasks {
		if t == nil || t.IsDeleted() {
			continue
		}
		g.AddNode(t.ID)
	}

	// Sort edges so the reported cycle is stable across runs.
	sorted := make([]*models.Dependency, 0, len(edges))
	for _, e := range edges {
		if e != nil {
			sorted = append(sorted, e)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].TaskID != sorted[j].TaskID {
			return sorted[i].TaskID < sorted[j].TaskID
		}
		return sorted[i].DependsOnTaskID < sorted[j].DependsOnTaskID
	})

	for _, e := range sorted {
		if !g.HasNode(e.TaskID) || !g.HasNode(e.DependsOnTaskID) {
			continue
		}
		if err := g.AddEdge(e.TaskID, e.DependsOnTaskID); err != nil {
			return nil, fmt.Errorf("build graph: %w", err)
		}
	}
	return g, nil
}

// AddNode registers a task. Adding an existing node is a no-op.
func (g *Graph) AddNode(id string) {
	g.nodes[id] = struct{}{}
}

func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// NodeCount returns the number of tasks in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// HasEdge reports whether task directly depends on dependsOn.
func (g *Graph) HasEdge(task, dependsOn string) bool {
	_, ok := g.deps[task][dependsOn]
	return ok
}

// AddEdge records that task depends on dependsOn. It fails if either task is
// unknown, if the two are the same task, or if dependsOn already (transitively)
// depends on task. Re-adding an existing edge is a no-op.
func (g *Graph) AddEdge(task, dependsOn string) error {
	if task == dependsOn {
		return selfDependencyError(task)
	}
	if !g.HasNode(task) {
		return unknownNodeError(task)
	}
	if !g.HasNode(dependsOn) {
		return unknownNodeError(dependsOn)
	}
	if g.HasEdge(task, dependsOn) {
		return nil
	}
	if path := g.pathTo(dependsOn, task); path != nil {
		return cycleError(append([]string{task}, path...))
	}

	if g.deps[task] == nil {
		g.deps[task] = make(map[string]struct{})
	}
	g.deps[task][dependsOn] = struct{}{}
	if g.rdeps[dependsOn] == nil {
		g.rdeps[dependsOn] = make(map[string]struct{})
	}
	g.rdeps[dependsOn][task] = struct{}{}
	return nil
}

// RemoveEdge deletes the edge if present. Removing a missing edge is not an error.
func (g *Graph) RemoveEdge(task, dependsOn string) {
	if set, ok := g.deps[task]; ok {
		delete(set, dependsOn)
		if len(set) == 0 {
			delete(g.deps, task)
		}
	}
	if set, ok := g.rdeps[dependsOn]; ok {
		delete(set, task)
		if len(set) == 0 {
			delete(g.rdeps, dependsOn)
		}
	}
}

// RemoveNode drops a task together with every edge touching it.
func (g *Graph) RemoveNode(id string) {
	for dep := range g.deps[id] {
		g.RemoveEdge(id, dep)
	}
	for dependent := range g.rdeps[id] {
		g.RemoveEdge(dependent, id)
	}
	delete(g.nodes, id)
}

// DependenciesOf returns the tasks id directly depends on, sorted.
func (g *Graph) DependenciesOf(id string) []string {
	return sortedKeys(g.deps[id])
}

// DependentsOf returns the tasks that directly depend on id, sorted.
func (g *Graph) DependentsOf(id string) []string {
	return sortedKeys(g.rdeps[id])
}

// IsSatisfied reports whether every direct dependency of id is done.
// Only direct prerequisites count; their own prerequisites were checked when
// they were completed. Dependencies statusOf does not know are treated as
// satisfied so a deleted prerequisite cannot block forever.
func (g *Graph) IsSatisfied(id string, statusOf StatusFunc) bool {
	return len(g.Unsatisfied(id, statusOf)) == 0
}

// Unsatisfied lists the direct dependencies of id that are not yet done.
func (g *Graph) Unsatisfied(id string, statusOf StatusFunc) []string {
	var pending []string
	for _, dep := range g.DependenciesOf(id) {
		status, ok := statusOf(dep)
		if !ok {
			continue
		}
		if status != models.TaskStatusDone {
			pending = append(pending, dep)
		}
	}
	return pending
}

// TopoOrder returns every task with prerequisites before dependents. Ties are
// broken by ID so the order is deterministic.
func (g *Graph) TopoOrder() []string {
	indegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = len(g.deps[id])
	}

	var ready []string
	for id, d := range indegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		var next []string
		for _, dependent := range g.DependentsOf(id) {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				next = append(next, dependent)
			}
		}
		if len(next) > 0 {
			ready = append(ready, next...)
			sort.Strings(ready)
		}
	}
	return order
}

// pathTo returns a depends-on path from -> ... -> to, or nil if to is not
// reachable from from. Iterative DFS, O(V+E).
func (g *Graph) pathTo(from, to string) []string {
	parent := map[string]string{from: ""}
	stack := []string{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == to {
			var path []string
			for n := cur; n != ""; n = parent[n] {
				path = append(path, n)
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path
		}
		for _, next := range g.DependenciesOf(cur) {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = cur
			stack = append(stack, next)
		}
	}
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
