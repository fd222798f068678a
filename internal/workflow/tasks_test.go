package workflow

import (
	"testing"

	"research-planner-api/internal/apperr"
	"research-planner-api/internal/models"

	"github.com/stretchr/testify/require"
)

func TestBulkCreate_WiresIntraListDependencies(t *testing.T) {
	svc, db := newTestService(t)

	res, err := svc.BulkCreate(BulkCreateInput{
		Tasks: []TaskInput{
			{Name: "design study", EstimatedHours: hoursPtr(4)},
			{Name: "recruit participants", DependsOnIndices: []int{0}},
			{Name: "run study", DependsOnIndices: []int{1}},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.CreatedTasks, 3)
	require.Equal(t, 2, res.DependenciesCreated)

	// Each created task has a creation history record.
	for _, ct := range res.CreatedTasks {
		var n int64
		require.NoError(t, db.Model(&models.TaskHistory{}).
			Where("task_id = ? AND operation = ?", ct.ID, models.HistoryCreated).Count(&n).Error)
		require.Equal(t, int64(1), n)
	}

	var edge models.TaskDependency
	require.NoError(t, db.Where("task_id = ?", res.CreatedTasks[1].ID).First(&edge).Error)
	require.Equal(t, res.CreatedTasks[0].ID, edge.DependsOnTaskID)
}

func TestBulkCreate_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.BulkCreate(BulkCreateInput{})
	require.True(t, apperr.IsCode(err, apperr.CodeValidation))

	_, err = svc.BulkCreate(BulkCreateInput{Tasks: []TaskInput{
		{Name: "a", DependsOnIndices: []int{5}},
	}})
	require.True(t, apperr.IsCode(err, apperr.CodeValidation))

	_, err = svc.BulkCreate(BulkCreateInput{Tasks: []TaskInput{
		{Name: "a", DependsOnIndices: []int{0}},
	}})
	require.True(t, apperr.IsCode(err, apperr.CodeValidation))
}

func TestAddDependency_RejectsCycles(t *testing.T) {
	svc, db := newTestService(t)
	a := createTask(t, db, "a", nil)
	b := createTask(t, db, "b", nil)
	c := createTask(t, db, "c", nil)

	require.NoError(t, svc.AddDependency(b.ID, a.ID))
	require.NoError(t, svc.AddDependency(c.ID, b.ID))

	err := svc.AddDependency(a.ID, c.ID)
	require.True(t, apperr.IsCode(err, apperr.CodeDependencyCycle))

	err = svc.AddDependency(a.ID, a.ID)
	require.True(t, apperr.IsCode(err, apperr.CodeValidation))

	err = svc.AddDependency(a.ID, 9999)
	require.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

func TestRemoveDependency(t *testing.T) {
	svc, db := newTestService(t)
	a := createTask(t, db, "a", nil)
	b := createTask(t, db, "b", nil)
	require.NoError(t, svc.AddDependency(b.ID, a.ID))

	require.NoError(t, svc.RemoveDependency(b.ID, a.ID))
	err := svc.RemoveDependency(b.ID, a.ID)
	require.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

func TestDependencies_BothDirections(t *testing.T) {
	svc, db := newTestService(t)
	a := createTask(t, db, "upstream", nil)
	b := createTask(t, db, "middle", nil)
	c := createTask(t, db, "downstream", nil)
	require.NoError(t, svc.AddDependency(b.ID, a.ID))
	require.NoError(t, svc.AddDependency(c.ID, b.ID))

	dependsOn, blocking, err := svc.Dependencies(b.ID)
	require.NoError(t, err)
	require.Len(t, dependsOn, 1)
	require.Equal(t, a.ID, dependsOn[0].ID)
	require.Len(t, blocking, 1)
	require.Equal(t, c.ID, blocking[0].ID)
}

func TestComplete_StopsTimerAndCompletesSchedules(t *testing.T) {
	svc, db := newTestService(t)
	task := createTask(t, db, "final experiments", hoursPtr(4))
	require.NoError(t, db.Create(&models.Schedule{
		TaskID:        task.ID,
		ScheduledDate: weekMonday,
		PlannedHours:  2,
		Status:        models.ScheduleScheduled,
	}).Error)
	_, _, err := svc.StartTimer(task.ID)
	require.NoError(t, err)

	summary, err := svc.Complete(CompleteInput{
		TaskID:            task.ID,
		StopTimer:         true,
		CompleteSchedules: true,
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusDone, summary.Status)

	var running int64
	require.NoError(t, db.Model(&models.TimeEntry{}).Where("end_time IS NULL").Count(&running).Error)
	require.Zero(t, running)

	var sched models.Schedule
	require.NoError(t, db.Where("task_id = ?", task.ID).First(&sched).Error)
	require.Equal(t, models.ScheduleCompleted, sched.Status)

	// Completing twice is a conflict.
	_, err = svc.Complete(CompleteInput{TaskID: task.ID})
	require.True(t, apperr.IsCode(err, apperr.CodeConflict))
}

func TestUpdateEstimate(t *testing.T) {
	svc, db := newTestService(t)
	task := createTask(t, db, "tune hyperparameters", hoursPtr(3))

	updated, err := svc.UpdateEstimate(task.ID, hoursPtr(6), "first runs were slow")
	require.NoError(t, err)
	require.InDelta(t, 6.0, *updated.EstimatedHours, 1e-9)

	var hist models.TaskHistory
	require.NoError(t, db.Where("task_id = ? AND operation = ?", task.ID, models.HistoryEstimateChanged).First(&hist).Error)
	require.Equal(t, "first runs were slow", hist.Reason)

	negative := -1.0
	_, err = svc.UpdateEstimate(task.ID, &negative, "")
	require.True(t, apperr.IsCode(err, apperr.CodeValidation))
}

func TestSetParent_RecomputesLevels(t *testing.T) {
	svc, db := newTestService(t)
	parent := createTask(t, db, "root", nil)
	child := createTask(t, db, "leaf", nil)

	updated, err := svc.SetParent(child.ID, &parent.ID)
	require.NoError(t, err)
	require.Equal(t, 1, updated.DecompositionLevel)

	updated, err = svc.SetParent(child.ID, nil)
	require.NoError(t, err)
	require.Equal(t, 0, updated.DecompositionLevel)

	_, err = svc.SetParent(child.ID, &child.ID)
	require.True(t, apperr.IsCode(err, apperr.CodeValidation))
}

func TestDeleteTask_Cascades(t *testing.T) {
	svc, db := newTestService(t)
	task := createTask(t, db, "dead end", hoursPtr(2))
	other := createTask(t, db, "survivor", nil)
	child := createTask(t, db, "orphan", nil)

	logTime(t, db, task.ID, 30)
	require.NoError(t, db.Create(&models.Schedule{
		TaskID: task.ID, ScheduledDate: weekMonday, PlannedHours: 1, Status: models.ScheduleScheduled,
	}).Error)
	require.NoError(t, svc.AddDependency(other.ID, task.ID))
	require.NoError(t, db.Model(child).Update("parent_task_id", task.ID).Error)

	require.NoError(t, svc.DeleteTask(task.ID))

	var tasks, entries, schedules, edges int64
	require.NoError(t, db.Model(&models.Task{}).Where("id = ?", task.ID).Count(&tasks).Error)
	require.NoError(t, db.Model(&models.TimeEntry{}).Where("task_id = ?", task.ID).Count(&entries).Error)
	require.NoError(t, db.Model(&models.Schedule{}).Where("task_id = ?", task.ID).Count(&schedules).Error)
	require.NoError(t, db.Model(&models.TaskDependency{}).
		Where("task_id = ? OR depends_on_task_id = ?", task.ID, task.ID).Count(&edges).Error)
	require.Zero(t, tasks)
	require.Zero(t, entries)
	require.Zero(t, schedules)
	require.Zero(t, edges)

	var orphan models.Task
	require.NoError(t, db.First(&orphan, child.ID).Error)
	require.Nil(t, orphan.ParentTaskID)

	err := svc.DeleteTask(task.ID)
	require.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}
