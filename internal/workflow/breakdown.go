package workflow

import (
	"time"

	"research-planner-api/internal/apperr"
	"research-planner-api/internal/models"

	"gorm.io/gorm"
)

// TransferMode selects which subtasks inherit the source task's inbound
// blocking edges during breakdown.
type TransferMode string

const (
	// TransferLeaf points blockers at subtasks no other subtask depends
	// on, so downstream consumers stay blocked until the terminal work
	// is done. Default.
	TransferLeaf TransferMode = "leaf"
	// TransferAll points blockers at every created subtask.
	TransferAll TransferMode = "all"
	// TransferLast points blockers at the last subtask in the list.
	TransferLast TransferMode = "last"
)

// SubtaskInput describes one subtask in a breakdown request.
type SubtaskInput struct {
	Name             string              `json:"name" binding:"required"`
	EstimatedHours   *float64            `json:"estimated_hours"`
	AllocatedHours   *float64            `json:"allocated_hours"` // manual override for time re-allocation
	GenreID          *uint               `json:"genre_id"`
	Priority         models.TaskPriority `json:"priority"`
	Deadline         *time.Time          `json:"deadline"`
	DependsOnIndices []int               `json:"depends_on_indices"`
}

// BreakdownInput is the 1-to-N decomposition request.
type BreakdownInput struct {
	TaskID          uint           `json:"task_id" binding:"required"`
	Subtasks        []SubtaskInput `json:"subtasks" binding:"required"`
	Reason          string         `json:"reason"`
	ArchiveOriginal *bool          `json:"archive_original"` // nil = true
	AsChildren      bool           `json:"as_children"`      // false = independent entries
	TransferMode    TransferMode   `json:"transfer_mode"`    // empty = configured default
}

// AllocationSummary reports how the source task's logged time and
// schedule entries were redistributed.
type AllocationSummary struct {
	TimeEntriesAllocated        int     `json:"time_entries_allocated"`
	SchedulesAllocated          int     `json:"schedules_allocated"`
	TotalTimeMinutesAllocated   int     `json:"total_time_minutes_allocated"`
	TotalScheduleHoursAllocated float64 `json:"total_schedule_hours_allocated"`
}

// BreakdownResult is the outcome of a completed breakdown.
type BreakdownResult struct {
	OriginalTask            TaskSummary       `json:"original_task"`
	CreatedTasks            []TaskSummary     `json:"created_tasks"`
	DependenciesTransferred int               `json:"dependencies_transferred"`
	Allocation              AllocationSummary `json:"allocation_summary"`
	HistoryID               uint              `json:"history_id"`
}

// Breakdown replaces one task with N subtasks atomically: subtask
// creation, dependency transfer, time/schedule re-allocation, archiving
// and the audit record either all commit or none do.
func (s *Service) Breakdown(in BreakdownInput) (*BreakdownResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(in.Subtasks) == 0 {
		return nil, apperr.Validation("at least one subtask is required")
	}
	if err := validateIntraListDeps(in.Subtasks); err != nil {
		return nil, err
	}

	var res *BreakdownResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		original, err := s.getTask(tx, in.TaskID)
		if err != nil {
			return err
		}
		if err := requireNotArchived(original); err != nil {
			return err
		}
		// Only leaf tasks may be broken down; a task with children has
		// already been decomposed.
		var childCount int64
		if err := tx.Model(&models.Task{}).Where("parent_task_id = ?", original.ID).Count(&childCount).Error; err != nil {
			return err
		}
		if childCount > 0 {
			return apperr.Conflict("task %d has %d child task(s) and cannot be broken down", original.ID, childCount)
		}

		created, err := s.createSubtasks(tx, original, in.Subtasks, in.AsChildren)
		if err != nil {
			return err
		}
		createdIDs := make([]uint, len(created))
		for i, t := range created {
			createdIDs[i] = t.ID
		}

		proportions := allocationProportions(in.Subtasks)
		entriesN, minutes, err := s.allocateTimeEntries(tx, original.ID, created, proportions)
		if err != nil {
			return err
		}
		schedN, hours, err := s.allocateSchedules(tx, original.ID, created, proportions)
		if err != nil {
			return err
		}

		// Intra-list edges first so leaf detection below sees them.
		transferred := 0
		for i, sub := range in.Subtasks {
			for _, depIdx := range sub.DependsOnIndices {
				edge := models.TaskDependency{TaskID: createdIDs[i], DependsOnTaskID: createdIDs[depIdx]}
				if err := tx.Create(&edge).Error; err != nil {
					return err
				}
				transferred++
			}
		}

		mode := in.TransferMode
		if mode == "" {
			mode = s.configuredTransferMode(tx)
		}
		n, err := s.transferDependencies(tx, original.ID, createdIDs, in.Subtasks, mode)
		if err != nil {
			return err
		}
		transferred += n

		if err := s.checkAcyclic(tx); err != nil {
			return err
		}

		if in.ArchiveOriginal == nil || *in.ArchiveOriginal {
			original.Status = models.StatusArchive
			if err := tx.Save(original).Error; err != nil {
				return err
			}
		}

		if in.AsChildren {
			if err := s.recomputeDecompositionLevels(tx, original.ID); err != nil {
				return err
			}
		}

		historyID, err := s.appendHistory(tx, original.ID, models.HistoryDecomposed, map[string]any{
			"original_estimated_hours": original.EstimatedHours,
			"child_ids":                createdIDs,
			"archive_original":         in.ArchiveOriginal == nil || *in.ArchiveOriginal,
			"transfer_mode":            mode,
		}, in.Reason)
		if err != nil {
			return err
		}

		summaries := make([]TaskSummary, len(created))
		for i, t := range created {
			summaries[i] = summarize(t)
		}
		res = &BreakdownResult{
			OriginalTask:            summarize(original),
			CreatedTasks:            summaries,
			DependenciesTransferred: transferred,
			Allocation: AllocationSummary{
				TimeEntriesAllocated:        entriesN,
				SchedulesAllocated:          schedN,
				TotalTimeMinutesAllocated:   minutes,
				TotalScheduleHoursAllocated: hours,
			},
			HistoryID: historyID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func validateIntraListDeps(subtasks []SubtaskInput) error {
	for i, sub := range subtasks {
		for _, depIdx := range sub.DependsOnIndices {
			if depIdx < 0 || depIdx >= len(subtasks) {
				return apperr.Validation("depends_on_indices: %d is out of range", depIdx)
			}
			if depIdx == i {
				return apperr.Validation("subtask %d cannot depend on itself", i)
			}
		}
	}
	return nil
}

func (s *Service) createSubtasks(tx *gorm.DB, original *models.Task, subtasks []SubtaskInput, asChildren bool) ([]*models.Task, error) {
	created := make([]*models.Task, 0, len(subtasks))
	for _, sub := range subtasks {
		priority := sub.Priority
		if priority == "" {
			priority = original.Priority
		}
		genreID := sub.GenreID
		if genreID == nil {
			genreID = original.GenreID
		}
		deadline := sub.Deadline
		if deadline == nil {
			deadline = original.Deadline
		}
		t := &models.Task{
			Name:           sub.Name,
			ProjectID:      original.ProjectID,
			GenreID:        genreID,
			Status:         models.StatusTodo,
			Deadline:       deadline,
			EstimatedHours: sub.EstimatedHours,
			Priority:       priority,
			WantLevel:      original.WantLevel,
			IsSplittable:   original.IsSplittable,
			MinWorkUnit:    original.MinWorkUnit,
		}
		if asChildren {
			t.ParentTaskID = &original.ID
			t.DecompositionLevel = original.DecompositionLevel + 1
		}
		if err := tx.Create(t).Error; err != nil {
			return nil, err
		}
		created = append(created, t)
	}
	return created, nil
}

// transferDependencies re-wires the source task's edges onto the new
// subtasks: everything the source depended on becomes a dependency of
// every subtask, and tasks that depended on the source are re-pointed
// per the transfer mode. The source's own edges are removed.
func (s *Service) transferDependencies(tx *gorm.DB, sourceID uint, createdIDs []uint, subtasks []SubtaskInput, mode TransferMode) (int, error) {
	var outgoing []models.TaskDependency // source depends on these
	if err := tx.Where("task_id = ?", sourceID).Find(&outgoing).Error; err != nil {
		return 0, err
	}
	var inbound []models.TaskDependency // these depend on source
	if err := tx.Where("depends_on_task_id = ?", sourceID).Find(&inbound).Error; err != nil {
		return 0, err
	}

	count := 0
	for _, e := range outgoing {
		for _, id := range createdIDs {
			edge := models.TaskDependency{TaskID: id, DependsOnTaskID: e.DependsOnTaskID}
			if err := tx.Create(&edge).Error; err != nil {
				return 0, err
			}
			count++
		}
	}

	targets := transferTargets(createdIDs, subtasks, mode)
	for _, e := range inbound {
		for _, id := range targets {
			edge := models.TaskDependency{TaskID: e.TaskID, DependsOnTaskID: id}
			if err := tx.Create(&edge).Error; err != nil {
				return 0, err
			}
			count++
		}
	}

	if err := tx.Where("task_id = ? OR depends_on_task_id = ?", sourceID, sourceID).Delete(&models.TaskDependency{}).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// transferTargets resolves which subtasks inherit inbound blockers. For
// TransferLeaf, a leaf is a subtask no other subtask depends on.
func transferTargets(createdIDs []uint, subtasks []SubtaskInput, mode TransferMode) []uint {
	switch mode {
	case TransferAll:
		return createdIDs
	case TransferLast:
		return createdIDs[len(createdIDs)-1:]
	}
	dependedOn := make(map[int]bool)
	for _, sub := range subtasks {
		for _, depIdx := range sub.DependsOnIndices {
			dependedOn[depIdx] = true
		}
	}
	var leaves []uint
	for i, id := range createdIDs {
		if !dependedOn[i] {
			leaves = append(leaves, id)
		}
	}
	if len(leaves) == 0 {
		return createdIDs[len(createdIDs)-1:]
	}
	return leaves
}

func (s *Service) configuredTransferMode(tx *gorm.DB) TransferMode {
	var setting models.Setting
	if err := tx.Where("key = ?", models.SettingBreakdownTransferMode).First(&setting).Error; err != nil {
		return TransferLeaf
	}
	switch TransferMode(setting.Value) {
	case TransferAll, TransferLast, TransferLeaf:
		return TransferMode(setting.Value)
	}
	return TransferLeaf
}

// allocationProportions splits 1.0 across subtasks: manual
// allocated_hours win, estimated_hours fill in, and subtasks with
// neither share equally.
func allocationProportions(subtasks []SubtaskInput) []float64 {
	raw := make([]float64, len(subtasks))
	total := 0.0
	var autoIdx []int

	for i, sub := range subtasks {
		if sub.AllocatedHours != nil {
			raw[i] = *sub.AllocatedHours
			total += raw[i]
		} else {
			autoIdx = append(autoIdx, i)
		}
	}

	autoTotal := 0.0
	for _, i := range autoIdx {
		if subtasks[i].EstimatedHours != nil {
			autoTotal += *subtasks[i].EstimatedHours
		}
	}
	if autoTotal > 0 {
		for _, i := range autoIdx {
			if subtasks[i].EstimatedHours != nil {
				raw[i] = *subtasks[i].EstimatedHours
			}
			total += raw[i]
		}
	} else if len(autoIdx) > 0 {
		equal := 1.0 / float64(len(autoIdx))
		for _, i := range autoIdx {
			raw[i] = equal
			total += equal
		}
	}

	out := make([]float64, len(subtasks))
	if total == 0 {
		for i := range out {
			out[i] = 1.0 / float64(len(subtasks))
		}
		return out
	}
	for i, v := range raw {
		out[i] = v / total
	}
	return out
}

// allocateTimeEntries redistributes the source task's completed time
// entries across subtasks as one aggregated proportional entry each,
// bounded by the source's earliest start and latest end.
func (s *Service) allocateTimeEntries(tx *gorm.DB, sourceID uint, created []*models.Task, proportions []float64) (int, int, error) {
	var entries []models.TimeEntry
	if err := tx.Where("task_id = ? AND end_time IS NOT NULL", sourceID).Find(&entries).Error; err != nil {
		return 0, 0, err
	}
	if len(entries) == 0 {
		return 0, 0, nil
	}

	totalMinutes := 0
	earliest := entries[0].StartTime
	latest := *entries[0].EndTime
	for _, e := range entries {
		totalMinutes += e.DurationMinutes
		if e.StartTime.Before(earliest) {
			earliest = e.StartTime
		}
		if e.EndTime.After(latest) {
			latest = *e.EndTime
		}
	}
	if totalMinutes == 0 {
		return 0, 0, nil
	}

	createdCount := 0
	allocated := 0
	for i, t := range created {
		minutes := int(float64(totalMinutes) * proportions[i])
		if minutes <= 0 {
			continue
		}
		end := latest
		entry := models.TimeEntry{
			TaskID:          t.ID,
			StartTime:       earliest,
			EndTime:         &end,
			DurationMinutes: minutes,
			Note:            "allocated from task breakdown",
		}
		if err := tx.Create(&entry).Error; err != nil {
			return 0, 0, err
		}
		createdCount++
		allocated += minutes
	}
	return createdCount, allocated, nil
}

// allocateSchedules mirrors each source schedule entry onto the
// subtasks with proportional hours, resetting status to scheduled.
// The source's own entries are removed with it.
func (s *Service) allocateSchedules(tx *gorm.DB, sourceID uint, created []*models.Task, proportions []float64) (int, float64, error) {
	var parents []models.Schedule
	if err := tx.Where("task_id = ?", sourceID).Find(&parents).Error; err != nil {
		return 0, 0, err
	}
	if len(parents) == 0 {
		return 0, 0, nil
	}

	createdCount := 0
	allocated := 0.0
	for _, p := range parents {
		for i, t := range created {
			hours := p.PlannedHours * proportions[i]
			if hours < 0.01 { // below 36 seconds of planning is noise
				continue
			}
			entry := models.Schedule{
				TaskID:        t.ID,
				ScheduledDate: p.ScheduledDate,
				StartTime:     p.StartTime,
				EndTime:       p.EndTime,
				PlannedHours:  hours,
				IsGenerated:   p.IsGenerated,
				Status:        models.ScheduleScheduled,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return 0, 0, err
			}
			createdCount++
			allocated += hours
		}
	}
	if err := tx.Where("task_id = ?", sourceID).Delete(&models.Schedule{}).Error; err != nil {
		return 0, 0, err
	}
	return createdCount, allocated, nil
}
