package planner

import (
	"research-planner-api/internal/models"
)

// Graph is an in-memory arena of tasks with their parent/child hierarchy
// and dependency edges, addressed by stable ids. Relations are stored as
// id-to-id mappings so existence can be checked independently before any
// mutation.
type Graph struct {
	tasks     map[uint]*models.Task
	order     []uint // insertion order, used as the creation-order tie-break
	dependsOn map[uint][]uint
	blocks    map[uint][]uint
}

// NewGraph builds a graph from a task set and its dependency edges.
// Edges whose endpoints are not in the task set are ignored.
func NewGraph(tasks []models.Task, edges []models.TaskDependency) *Graph {
	g := &Graph{
		tasks:     make(map[uint]*models.Task, len(tasks)),
		dependsOn: make(map[uint][]uint),
		blocks:    make(map[uint][]uint),
	}
	for i := range tasks {
		t := &tasks[i]
		if _, ok := g.tasks[t.ID]; ok {
			continue
		}
		g.tasks[t.ID] = t
		g.order = append(g.order, t.ID)
	}
	for _, e := range edges {
		if _, ok := g.tasks[e.TaskID]; !ok {
			continue
		}
		if _, ok := g.tasks[e.DependsOnTaskID]; !ok {
			continue
		}
		g.dependsOn[e.TaskID] = append(g.dependsOn[e.TaskID], e.DependsOnTaskID)
		g.blocks[e.DependsOnTaskID] = append(g.blocks[e.DependsOnTaskID], e.TaskID)
	}
	return g
}

// Task returns the task with the given id, if present.
func (g *Graph) Task(id uint) (*models.Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int {
	return len(g.order)
}

// DependsOn returns the ids the given task depends on.
func (g *Graph) DependsOn(id uint) []uint {
	return g.dependsOn[id]
}

// Blocks returns the ids of tasks that depend on the given task.
func (g *Graph) Blocks(id uint) []uint {
	return g.blocks[id]
}

// IsBlocked reports whether the task has any non-archived dependency
// that is not done.
func (g *Graph) IsBlocked(id uint) bool {
	for _, depID := range g.dependsOn[id] {
		dep, ok := g.tasks[depID]
		if !ok {
			continue
		}
		if dep.Status != models.StatusDone && dep.Status != models.StatusArchive {
			return true
		}
	}
	return false
}

// DecompositionLevel computes a task's depth in the parent chain: 0 for
// root tasks, parent's level + 1 otherwise. Parents missing from the
// graph terminate the chain.
func (g *Graph) DecompositionLevel(id uint) int {
	level := 0
	t, ok := g.tasks[id]
	for ok && t.ParentTaskID != nil {
		// Guard against a corrupted parent chain looping forever.
		if level > len(g.tasks) {
			break
		}
		level++
		t, ok = g.tasks[*t.ParentTaskID]
	}
	return level
}

// Children returns the ids of direct children of the given task, in
// creation order.
func (g *Graph) Children(id uint) []uint {
	var out []uint
	for _, tid := range g.order {
		t := g.tasks[tid]
		if t.ParentTaskID != nil && *t.ParentTaskID == id {
			out = append(out, tid)
		}
	}
	return out
}
