package workflow

import (
	"time"

	"research-planner-api/internal/apperr"
	"research-planner-api/internal/models"

	"gorm.io/gorm"
)

// MergedTaskInput describes the consolidated task a merge creates.
type MergedTaskInput struct {
	Name           string              `json:"name" binding:"required"`
	GenreID        *uint               `json:"genre_id"`
	EstimatedHours *float64            `json:"estimated_hours"`
	Priority       models.TaskPriority `json:"priority"`
	WantLevel      models.WantLevel    `json:"want_level"`
	Deadline       *time.Time          `json:"deadline"`
	Note           string              `json:"note"`
}

// MergeInput is the N-to-1 consolidation request.
type MergeInput struct {
	TaskIDs    []uint          `json:"task_ids" binding:"required"`
	MergedTask MergedTaskInput `json:"merged_task" binding:"required"`
	Reason     string          `json:"reason"`
}

// MergeResult is the outcome of a completed merge.
type MergeResult struct {
	MergedTask             TaskSummary   `json:"merged_task"`
	ActualHours            float64       `json:"actual_hours"`
	ArchivedTasks          []TaskSummary `json:"archived_tasks"`
	TimeEntriesTransferred int           `json:"time_entries_transferred"`
	HistoryID              uint          `json:"history_id"`
}

// Merge replaces multiple tasks with one consolidated task atomically.
// The source tasks' time entries are re-pointed to the merged task (so
// its accumulated hours stay traceable to the original logs rather than
// being recomputed), their dependency edges are unioned onto it, and
// the sources are archived.
func (s *Service) Merge(in MergeInput) (*MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(in.TaskIDs) < 2 {
		return nil, apperr.Validation("at least 2 tasks are required for merging")
	}

	var res *MergeResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		sources := make([]*models.Task, 0, len(in.TaskIDs))
		for _, id := range in.TaskIDs {
			t, err := s.getTask(tx, id)
			if err != nil {
				return err
			}
			if err := requireNotArchived(t); err != nil {
				return err
			}
			sources = append(sources, t)
		}
		if err := requireSameProject(sources); err != nil {
			return err
		}

		priority := in.MergedTask.Priority
		if priority == "" {
			priority = models.PriorityMedium
		}
		wantLevel := in.MergedTask.WantLevel
		if wantLevel == "" {
			wantLevel = models.WantMedium
		}
		merged := &models.Task{
			Name:           in.MergedTask.Name,
			ProjectID:      sources[0].ProjectID,
			GenreID:        in.MergedTask.GenreID,
			Status:         models.StatusTodo,
			Deadline:       in.MergedTask.Deadline,
			EstimatedHours: in.MergedTask.EstimatedHours,
			Priority:       priority,
			WantLevel:      wantLevel,
			Note:           in.MergedTask.Note,
		}
		if err := tx.Create(merged).Error; err != nil {
			return err
		}

		reassign := tx.Model(&models.TimeEntry{}).
			Where("task_id IN ?", in.TaskIDs).
			Update("task_id", merged.ID)
		if reassign.Error != nil {
			return reassign.Error
		}
		entriesTransferred := int(reassign.RowsAffected)

		if err := tx.Model(&models.Schedule{}).
			Where("task_id IN ?", in.TaskIDs).
			Update("task_id", merged.ID).Error; err != nil {
			return err
		}

		if err := s.mergeDependencies(tx, in.TaskIDs, merged.ID); err != nil {
			return err
		}
		if err := s.checkAcyclic(tx); err != nil {
			return err
		}

		sourceEstimates := make(map[uint]*float64, len(sources))
		archived := make([]TaskSummary, 0, len(sources))
		for _, t := range sources {
			sourceEstimates[t.ID] = t.EstimatedHours
			t.Status = models.StatusArchive
			if err := tx.Save(t).Error; err != nil {
				return err
			}
			archived = append(archived, summarize(t))
		}

		historyID, err := s.appendHistory(tx, merged.ID, models.HistoryMerged, map[string]any{
			"source_ids":       in.TaskIDs,
			"source_estimates": sourceEstimates,
			"merged_estimate":  merged.EstimatedHours,
		}, in.Reason)
		if err != nil {
			return err
		}

		actuals, err := s.actualHoursByTask(tx)
		if err != nil {
			return err
		}

		res = &MergeResult{
			MergedTask:             summarize(merged),
			ActualHours:            actuals[merged.ID],
			ArchivedTasks:          archived,
			TimeEntriesTransferred: entriesTransferred,
			HistoryID:              historyID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func requireSameProject(tasks []*models.Task) error {
	first := tasks[0].ProjectID
	for _, t := range tasks[1:] {
		if !uintPtrEqual(first, t.ProjectID) {
			return apperr.Validation("all tasks must belong to the same project")
		}
	}
	return nil
}

func uintPtrEqual(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// mergeDependencies unions the sources' edges onto the merged task,
// dropping duplicates and any edge that would point the merged task at
// itself or at a source being archived.
func (s *Service) mergeDependencies(tx *gorm.DB, sourceIDs []uint, mergedID uint) error {
	sourceSet := make(map[uint]bool, len(sourceIDs))
	for _, id := range sourceIDs {
		sourceSet[id] = true
	}

	var outgoing []models.TaskDependency
	if err := tx.Where("task_id IN ?", sourceIDs).Find(&outgoing).Error; err != nil {
		return err
	}
	var inbound []models.TaskDependency
	if err := tx.Where("depends_on_task_id IN ?", sourceIDs).Find(&inbound).Error; err != nil {
		return err
	}

	dependsOn := make(map[uint]bool)
	for _, e := range outgoing {
		if e.DependsOnTaskID == mergedID || sourceSet[e.DependsOnTaskID] {
			continue
		}
		dependsOn[e.DependsOnTaskID] = true
	}
	blocks := make(map[uint]bool)
	for _, e := range inbound {
		if e.TaskID == mergedID || sourceSet[e.TaskID] {
			continue
		}
		blocks[e.TaskID] = true
	}

	if err := tx.Where("task_id IN ? OR depends_on_task_id IN ?", sourceIDs, sourceIDs).
		Delete(&models.TaskDependency{}).Error; err != nil {
		return err
	}

	for id := range dependsOn {
		edge := models.TaskDependency{TaskID: mergedID, DependsOnTaskID: id}
		if err := tx.Create(&edge).Error; err != nil {
			return err
		}
	}
	for id := range blocks {
		edge := models.TaskDependency{TaskID: id, DependsOnTaskID: mergedID}
		if err := tx.Create(&edge).Error; err != nil {
			return err
		}
	}
	return nil
}
