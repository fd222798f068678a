package workflow

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"research-planner-api/internal/apperr"
	"research-planner-api/internal/cache"
	"research-planner-api/internal/models"
	"research-planner-api/internal/planner"

	"gorm.io/gorm"
)

// Service is the task mutation and scheduling engine. Every mutating
// operation runs as one gorm transaction, and the mutex serializes
// schedule generation, breakdown and merge so interleaved partial
// writes to shared state (edges, archive flags, logged hours) cannot
// happen even across goroutines.
type Service struct {
	db *gorm.DB
	mu sync.Mutex

	capCache *cache.Cache[string, map[time.Weekday]float64]
}

// New creates a workflow service over the given database handle.
func New(db *gorm.DB) *Service {
	return &Service{
		db:       db,
		capCache: cache.New[string, map[time.Weekday]float64](),
	}
}

// TaskSummary is a compact task reference used in operation results.
type TaskSummary struct {
	ID     uint              `json:"id"`
	Name   string            `json:"name"`
	Status models.TaskStatus `json:"status"`
}

func summarize(t *models.Task) TaskSummary {
	return TaskSummary{ID: t.ID, Name: t.Name, Status: t.Status}
}

func (s *Service) getTask(tx *gorm.DB, id uint) (*models.Task, error) {
	var task models.Task
	if err := tx.First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("task %d not found", id).WithDetail("task_id", id)
		}
		return nil, err
	}
	return &task, nil
}

func requireNotArchived(t *models.Task) error {
	if t.Status == models.StatusArchive {
		return apperr.Conflict("task %d is already archived and cannot be modified", t.ID).WithDetail("task_id", t.ID)
	}
	return nil
}

// loadGraph builds the in-memory task graph from every task and edge in
// storage. Archived tasks are included so dependency satisfaction and
// parent chains stay resolvable.
func (s *Service) loadGraph(tx *gorm.DB) (*planner.Graph, error) {
	var tasks []models.Task
	if err := tx.Order("id").Find(&tasks).Error; err != nil {
		return nil, err
	}
	var edges []models.TaskDependency
	if err := tx.Find(&edges).Error; err != nil {
		return nil, err
	}
	return planner.NewGraph(tasks, edges), nil
}

// actualHoursByTask sums logged time-entry minutes per task and converts
// to hours. actual_hours is derived, never stored.
func (s *Service) actualHoursByTask(tx *gorm.DB) (map[uint]float64, error) {
	type row struct {
		TaskID  uint
		Minutes int64
	}
	var rows []row
	err := tx.Model(&models.TimeEntry{}).
		Select("task_id, COALESCE(SUM(duration_minutes), 0) as minutes").
		Where("end_time IS NOT NULL").
		Group("task_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]float64, len(rows))
	for _, r := range rows {
		out[r.TaskID] = float64(r.Minutes) / 60.0
	}
	return out, nil
}

// plannedHoursByTask sums non-skipped schedule hours per task.
func (s *Service) plannedHoursByTask(tx *gorm.DB) (map[uint]float64, error) {
	type row struct {
		TaskID uint
		Hours  float64
	}
	var rows []row
	err := tx.Model(&models.Schedule{}).
		Select("task_id, COALESCE(SUM(planned_hours), 0) as hours").
		Where("status <> ?", models.ScheduleSkipped).
		Group("task_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]float64, len(rows))
	for _, r := range rows {
		out[r.TaskID] = r.Hours
	}
	return out, nil
}

// appendHistory writes an append-only audit record with a JSON details
// payload and returns its id.
func (s *Service) appendHistory(tx *gorm.DB, taskID uint, op models.HistoryOperation, details any, reason string) (uint, error) {
	payload, err := json.Marshal(details)
	if err != nil {
		return 0, err
	}
	rec := models.TaskHistory{
		TaskID:    taskID,
		Operation: op,
		Details:   string(payload),
		Reason:    reason,
	}
	if err := tx.Create(&rec).Error; err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// recomputeDecompositionLevels rewrites the stored level for a task and
// all of its descendants after a parent change, inside the caller's
// transaction. Levels are maintained here rather than by a DB trigger so
// the invariant is testable in isolation.
func (s *Service) recomputeDecompositionLevels(tx *gorm.DB, rootID uint) error {
	g, err := s.loadGraph(tx)
	if err != nil {
		return err
	}
	queue := []uint{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		level := g.DecompositionLevel(id)
		if err := tx.Model(&models.Task{}).Where("id = ?", id).Update("decomposition_level", level).Error; err != nil {
			return err
		}
		queue = append(queue, g.Children(id)...)
	}
	return nil
}

// checkAcyclic verifies the current edge set inside the transaction is
// still a DAG; used after edge transfers so a violating operation rolls
// back whole.
func (s *Service) checkAcyclic(tx *gorm.DB) error {
	g, err := s.loadGraph(tx)
	if err != nil {
		return err
	}
	_, err = g.TopologicalOrder()
	return err
}
