package planner

import (
	"sort"

	"research-planner-api/internal/apperr"
	"research-planner-api/internal/models"
)

// DFS color states for cycle detection.
const (
	colorWhite = iota // unvisited
	colorGray         // visiting (on the current path)
	colorBlack        // fully explored
)

// TopologicalOrder returns a task ordering in which every task appears
// after all of its dependencies. If the edge set contains a cycle it
// fails with a DependencyCycle error identifying the participating chain.
func (g *Graph) TopologicalOrder() ([]uint, error) {
	color := make(map[uint]int, len(g.tasks))
	var out []uint
	var path []uint

	var visit func(id uint) error
	visit = func(id uint) error {
		switch color[id] {
		case colorBlack:
			return nil
		case colorGray:
			// Back edge: trim the path down to the cycle itself.
			for i, pid := range path {
				if pid == id {
					cycle := append(append([]uint{}, path[i:]...), id)
					return apperr.DependencyCycle(cycle)
				}
			}
			return apperr.DependencyCycle(append(append([]uint{}, path...), id))
		}
		color[id] = colorGray
		path = append(path, id)
		for _, depID := range g.dependsOn[id] {
			if err := visit(depID); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		color[id] = colorBlack
		out = append(out, id)
		return nil
	}

	for _, id := range g.order {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WouldCycle reports whether adding the edge task -> dependsOn would make
// the dependency relation cyclic, i.e. whether task is reachable from
// dependsOn through existing edges.
func (g *Graph) WouldCycle(taskID, dependsOnID uint) bool {
	if taskID == dependsOnID {
		return true
	}
	visited := make(map[uint]bool)
	var reach func(id uint) bool
	reach = func(id uint) bool {
		if id == taskID {
			return true
		}
		if visited[id] {
			return false
		}
		visited[id] = true
		for _, depID := range g.dependsOn[id] {
			if reach(depID) {
				return true
			}
		}
		return false
	}
	return reach(dependsOnID)
}

// ReadyTasks returns the active tasks whose dependencies are all
// satisfied (done or archived), sorted by scheduling priority:
// priority, then nearest deadline (nil last), then want level, then
// creation order.
func (g *Graph) ReadyTasks() []*models.Task {
	var ready []*models.Task
	for _, id := range g.order {
		t := g.tasks[id]
		if !t.IsActive() {
			continue
		}
		if g.IsBlocked(id) {
			continue
		}
		ready = append(ready, t)
	}
	sortByScheduleOrder(ready)
	return ready
}

var priorityRank = map[models.TaskPriority]int{
	models.PriorityHigh:   0,
	models.PriorityMedium: 1,
	models.PriorityLow:    2,
}

var wantRank = map[models.WantLevel]int{
	models.WantHigh:   0,
	models.WantMedium: 1,
	models.WantLow:    2,
}

func sortByScheduleOrder(tasks []*models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if pa, pb := rankPriority(a.Priority), rankPriority(b.Priority); pa != pb {
			return pa < pb
		}
		switch {
		case a.Deadline != nil && b.Deadline == nil:
			return true
		case a.Deadline == nil && b.Deadline != nil:
			return false
		case a.Deadline != nil && b.Deadline != nil && !a.Deadline.Equal(*b.Deadline):
			return a.Deadline.Before(*b.Deadline)
		}
		if wa, wb := rankWant(a.WantLevel), rankWant(b.WantLevel); wa != wb {
			return wa < wb
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func rankPriority(p models.TaskPriority) int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return 1 // unknown values sort with medium
}

func rankWant(w models.WantLevel) int {
	if r, ok := wantRank[w]; ok {
		return r
	}
	return 1
}
