package workflow

import (
	"time"

	"research-planner-api/internal/apperr"
	"research-planner-api/internal/models"

	"gorm.io/gorm"
)

// TaskInput describes one task in a bulk-create request. Dependencies
// reference other tasks in the same list by index.
type TaskInput struct {
	Name             string              `json:"name" binding:"required"`
	GenreID          *uint               `json:"genre_id"`
	EstimatedHours   *float64            `json:"estimated_hours"`
	Priority         models.TaskPriority `json:"priority"`
	WantLevel        models.WantLevel    `json:"want_level"`
	Deadline         *time.Time          `json:"deadline"`
	DependsOnIndices []int               `json:"depends_on_indices"`
}

// BulkCreateInput creates several tasks with intra-list dependencies in
// one transaction.
type BulkCreateInput struct {
	ProjectID *uint       `json:"project_id"`
	Tasks     []TaskInput `json:"tasks" binding:"required"`
}

// BulkCreateResult reports what a bulk create produced.
type BulkCreateResult struct {
	CreatedTasks        []TaskSummary `json:"created_tasks"`
	DependenciesCreated int           `json:"dependencies_created"`
}

// BulkCreate creates tasks and wires their intra-list dependency edges,
// cycle-checked, all-or-nothing.
func (s *Service) BulkCreate(in BulkCreateInput) (*BulkCreateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(in.Tasks) == 0 {
		return nil, apperr.Validation("at least one task is required")
	}
	for i, t := range in.Tasks {
		for _, depIdx := range t.DependsOnIndices {
			if depIdx < 0 || depIdx >= len(in.Tasks) {
				return nil, apperr.Validation("depends_on_indices: %d is out of range", depIdx)
			}
			if depIdx == i {
				return nil, apperr.Validation("task %d cannot depend on itself", i)
			}
		}
	}

	var res *BulkCreateResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		created := make([]*models.Task, 0, len(in.Tasks))
		for _, ti := range in.Tasks {
			priority := ti.Priority
			if priority == "" {
				priority = models.PriorityMedium
			}
			wantLevel := ti.WantLevel
			if wantLevel == "" {
				wantLevel = models.WantMedium
			}
			t := &models.Task{
				Name:           ti.Name,
				ProjectID:      in.ProjectID,
				GenreID:        ti.GenreID,
				Status:         models.StatusTodo,
				Deadline:       ti.Deadline,
				EstimatedHours: ti.EstimatedHours,
				Priority:       priority,
				WantLevel:      wantLevel,
			}
			if err := tx.Create(t).Error; err != nil {
				return err
			}
			if _, err := s.appendHistory(tx, t.ID, models.HistoryCreated, map[string]any{
				"estimated_hours": t.EstimatedHours,
			}, ""); err != nil {
				return err
			}
			created = append(created, t)
		}

		depCount := 0
		for i, ti := range in.Tasks {
			for _, depIdx := range ti.DependsOnIndices {
				edge := models.TaskDependency{
					TaskID:          created[i].ID,
					DependsOnTaskID: created[depIdx].ID,
				}
				if err := tx.Create(&edge).Error; err != nil {
					return err
				}
				depCount++
			}
		}
		if err := s.checkAcyclic(tx); err != nil {
			return err
		}

		summaries := make([]TaskSummary, len(created))
		for i, t := range created {
			summaries[i] = summarize(t)
		}
		res = &BulkCreateResult{CreatedTasks: summaries, DependenciesCreated: depCount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// AddDependency adds one dependency edge after existence, self-reference
// and cycle checks.
func (s *Service) AddDependency(taskID, dependsOnID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if taskID == dependsOnID {
		return apperr.Validation("task cannot depend on itself").WithDetail("task_id", taskID)
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.getTask(tx, taskID); err != nil {
			return err
		}
		if _, err := s.getTask(tx, dependsOnID); err != nil {
			return err
		}
		g, err := s.loadGraph(tx)
		if err != nil {
			return err
		}
		if g.WouldCycle(taskID, dependsOnID) {
			return apperr.DependencyCycle([]uint{taskID, dependsOnID})
		}
		edge := models.TaskDependency{TaskID: taskID, DependsOnTaskID: dependsOnID}
		return tx.Create(&edge).Error
	})
}

// RemoveDependency deletes a dependency edge.
func (s *Service) RemoveDependency(taskID, dependsOnID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.db.Where("task_id = ? AND depends_on_task_id = ?", taskID, dependsOnID).
		Delete(&models.TaskDependency{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("dependency from task %d to %d not found", taskID, dependsOnID)
	}
	return nil
}

// Dependencies returns what a task depends on and what it blocks.
func (s *Service) Dependencies(taskID uint) (dependsOn, blocking []TaskSummary, err error) {
	if _, err = s.getTask(s.db, taskID); err != nil {
		return nil, nil, err
	}
	g, err := s.loadGraph(s.db)
	if err != nil {
		return nil, nil, err
	}
	for _, id := range g.DependsOn(taskID) {
		if t, ok := g.Task(id); ok {
			dependsOn = append(dependsOn, summarize(t))
		}
	}
	for _, id := range g.Blocks(taskID) {
		if t, ok := g.Task(id); ok {
			blocking = append(blocking, summarize(t))
		}
	}
	return dependsOn, blocking, nil
}

// CompleteInput finishes a task, optionally stopping its running timer
// and completing its scheduled entries.
type CompleteInput struct {
	TaskID            uint `json:"task_id" binding:"required"`
	StopTimer         bool `json:"stop_timer"`
	CompleteSchedules bool `json:"complete_schedules"`
}

// Complete marks a task done inside one transaction.
func (s *Service) Complete(in CompleteInput) (*TaskSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res *TaskSummary
	err := s.db.Transaction(func(tx *gorm.DB) error {
		task, err := s.getTask(tx, in.TaskID)
		if err != nil {
			return err
		}
		if task.Status == models.StatusDone {
			return apperr.Conflict("task %d is already completed", task.ID).WithDetail("task_id", task.ID)
		}
		if err := requireNotArchived(task); err != nil {
			return err
		}

		if in.StopTimer {
			running, err := runningTimer(tx)
			if err != nil {
				return err
			}
			if running != nil && running.TaskID == task.ID {
				if err := stopEntry(tx, running, "", time.Now()); err != nil {
					return err
				}
			}
		}
		if in.CompleteSchedules {
			if err := tx.Model(&models.Schedule{}).
				Where("task_id = ? AND status = ?", task.ID, models.ScheduleScheduled).
				Update("status", models.ScheduleCompleted).Error; err != nil {
				return err
			}
		}

		oldStatus := task.Status
		task.Status = models.StatusDone
		if err := tx.Save(task).Error; err != nil {
			return err
		}
		if _, err := s.appendHistory(tx, task.ID, models.HistoryStatusChanged, map[string]any{
			"from": oldStatus, "to": models.StatusDone,
		}, ""); err != nil {
			return err
		}

		summary := summarize(task)
		res = &summary
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// UpdateEstimate changes a task's estimated hours and records the change.
func (s *Service) UpdateEstimate(taskID uint, hours *float64, reason string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hours != nil && *hours < 0 {
		return nil, apperr.Validation("estimated hours must not be negative, got %.2f", *hours)
	}
	var updated *models.Task
	err := s.db.Transaction(func(tx *gorm.DB) error {
		task, err := s.getTask(tx, taskID)
		if err != nil {
			return err
		}
		if err := requireNotArchived(task); err != nil {
			return err
		}
		old := task.EstimatedHours
		task.EstimatedHours = hours
		if err := tx.Save(task).Error; err != nil {
			return err
		}
		if err := s.RecordEstimateChange(tx, task.ID, old, hours, reason); err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RecordEstimateChange appends the estimate-changed history record
// inside the caller's transaction, so a multi-field update that also
// touches the estimate stays all-or-nothing.
func (s *Service) RecordEstimateChange(tx *gorm.DB, taskID uint, from, to *float64, reason string) error {
	_, err := s.appendHistory(tx, taskID, models.HistoryEstimateChanged, map[string]any{
		"from": from, "to": to,
	}, reason)
	return err
}

// SetParent re-parents a task and recomputes decomposition levels for
// the task and its descendants in the same transaction.
func (s *Service) SetParent(taskID uint, parentID *uint) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		task, err := s.getTask(tx, taskID)
		if err != nil {
			return err
		}
		if parentID != nil {
			if *parentID == taskID {
				return apperr.Validation("task cannot be its own parent").WithDetail("task_id", taskID)
			}
			if _, err := s.getTask(tx, *parentID); err != nil {
				return err
			}
		}
		task.ParentTaskID = parentID
		if err := tx.Save(task).Error; err != nil {
			return err
		}
		return s.recomputeDecompositionLevels(tx, taskID)
	})
	if err != nil {
		return nil, err
	}
	var updated models.Task
	if err := s.db.First(&updated, taskID).Error; err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteTask removes a task and cascades its schedule entries, time
// entries and dependency edges.
func (s *Service) DeleteTask(taskID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.getTask(tx, taskID); err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&models.Schedule{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&models.TimeEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ? OR depends_on_task_id = ?", taskID, taskID).
			Delete(&models.TaskDependency{}).Error; err != nil {
			return err
		}
		// Children become roots.
		if err := tx.Model(&models.Task{}).Where("parent_task_id = ?", taskID).
			Update("parent_task_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Task{}, taskID).Error
	})
}

// ActualHours returns the derived logged hours for one task.
func (s *Service) ActualHours(taskID uint) (float64, error) {
	actuals, err := s.actualHoursByTask(s.db)
	if err != nil {
		return 0, err
	}
	return actuals[taskID], nil
}
