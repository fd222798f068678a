package workflow

import (
	"errors"
	"time"

	"research-planner-api/internal/apperr"
	"research-planner-api/internal/models"

	"gorm.io/gorm"
)

// TimerStatus describes the single global timer.
type TimerStatus struct {
	IsRunning      bool              `json:"is_running"`
	Current        *RunningEntry     `json:"current_entry,omitempty"`
	LastEntry      *models.TimeEntry `json:"last_entry,omitempty"`
	LastEntryTask  string            `json:"last_entry_task,omitempty"`
}

// RunningEntry is the live view of the running timer.
type RunningEntry struct {
	TimeEntryID    uint      `json:"time_entry_id"`
	TaskID         uint      `json:"task_id"`
	TaskName       string    `json:"task_name"`
	StartTime      time.Time `json:"start_time"`
	ElapsedMinutes int       `json:"elapsed_minutes"`
}

// runningTimer fetches the entry with a null end time, if any. At most
// one exists because start is an atomic stop-then-start.
func runningTimer(tx *gorm.DB) (*models.TimeEntry, error) {
	var entry models.TimeEntry
	err := tx.Where("end_time IS NULL").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func stopEntry(tx *gorm.DB, entry *models.TimeEntry, note string, now time.Time) error {
	end := now
	entry.EndTime = &end
	entry.DurationMinutes = int(now.Sub(entry.StartTime).Minutes())
	if note != "" {
		entry.Note = note
	}
	return tx.Save(entry).Error
}

// StartTimer starts logging time against a task. Any currently running
// timer is stopped first inside the same transaction, so two running
// entries can never coexist. Returns the new entry and the stopped
// previous one, if there was one.
func (s *Service) StartTimer(taskID uint) (*models.TimeEntry, *models.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var newEntry *models.TimeEntry
	var previous *models.TimeEntry
	err := s.db.Transaction(func(tx *gorm.DB) error {
		task, err := s.getTask(tx, taskID)
		if err != nil {
			return err
		}
		if err := requireNotArchived(task); err != nil {
			return err
		}

		running, err := runningTimer(tx)
		if err != nil {
			return err
		}
		now := time.Now()
		if running != nil {
			if err := stopEntry(tx, running, "", now); err != nil {
				return err
			}
			previous = running
		}

		if task.Status != models.StatusDoing {
			oldStatus := task.Status
			task.Status = models.StatusDoing
			if err := tx.Save(task).Error; err != nil {
				return err
			}
			if _, err := s.appendHistory(tx, task.ID, models.HistoryStatusChanged, map[string]any{
				"from": oldStatus, "to": models.StatusDoing, "trigger": "timer_start",
			}, ""); err != nil {
				return err
			}
		}

		newEntry = &models.TimeEntry{TaskID: task.ID, StartTime: now}
		return tx.Create(newEntry).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return newEntry, previous, nil
}

// StopTimer stops the running timer and records its duration.
func (s *Service) StopTimer(note string) (*models.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stopped *models.TimeEntry
	err := s.db.Transaction(func(tx *gorm.DB) error {
		running, err := runningTimer(tx)
		if err != nil {
			return err
		}
		if running == nil {
			return apperr.Conflict("no timer is currently running")
		}
		if err := stopEntry(tx, running, note, time.Now()); err != nil {
			return err
		}
		stopped = running
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stopped, nil
}

// TimerState returns the running entry with elapsed minutes, or the
// most recently finished entry when idle.
func (s *Service) TimerState() (*TimerStatus, error) {
	running, err := runningTimer(s.db)
	if err != nil {
		return nil, err
	}
	if running != nil {
		task, err := s.getTask(s.db, running.TaskID)
		if err != nil {
			return nil, err
		}
		return &TimerStatus{
			IsRunning: true,
			Current: &RunningEntry{
				TimeEntryID:    running.ID,
				TaskID:         running.TaskID,
				TaskName:       task.Name,
				StartTime:      running.StartTime,
				ElapsedMinutes: int(time.Since(running.StartTime).Minutes()),
			},
		}, nil
	}

	var last models.TimeEntry
	err = s.db.Where("end_time IS NOT NULL").Order("end_time desc").First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &TimerStatus{}, nil
	}
	if err != nil {
		return nil, err
	}
	status := &TimerStatus{LastEntry: &last}
	if task, err := s.getTask(s.db, last.TaskID); err == nil {
		status.LastEntryTask = task.Name
	}
	return status, nil
}
