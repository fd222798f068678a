package workflow

import (
	"testing"

	"research-planner-api/internal/apperr"
	"research-planner-api/internal/models"

	"github.com/stretchr/testify/require"
)

func TestMerge_RepointsTimeEntriesAndArchivesSources(t *testing.T) {
	svc, db := newTestService(t)
	a := createTask(t, db, "refactor ingest", hoursPtr(3))
	b := createTask(t, db, "refactor export", hoursPtr(2))
	logTime(t, db, a.ID, 60)
	logTime(t, db, b.ID, 30)

	res, err := svc.Merge(MergeInput{
		TaskIDs:    []uint{a.ID, b.ID},
		MergedTask: MergedTaskInput{Name: "refactor io layer", EstimatedHours: hoursPtr(4)},
		Reason:     "same code path",
	})
	require.NoError(t, err)

	require.Equal(t, 2, res.TimeEntriesTransferred)
	require.InDelta(t, 1.5, res.ActualHours, 1e-9)
	require.Len(t, res.ArchivedTasks, 2)

	// Sources are archived, the merged task carries their logged time.
	for _, id := range []uint{a.ID, b.ID} {
		var src models.Task
		require.NoError(t, db.First(&src, id).Error)
		require.Equal(t, models.StatusArchive, src.Status)

		var n int64
		require.NoError(t, db.Model(&models.TimeEntry{}).Where("task_id = ?", id).Count(&n).Error)
		require.Zero(t, n)
	}

	var hist models.TaskHistory
	require.NoError(t, db.Where("task_id = ? AND operation = ?", res.MergedTask.ID, models.HistoryMerged).First(&hist).Error)
	require.Equal(t, "same code path", hist.Reason)
}

func TestMerge_UnionsDependencies(t *testing.T) {
	svc, db := newTestService(t)
	a := createTask(t, db, "plot figures", hoursPtr(2))
	b := createTask(t, db, "plot tables", hoursPtr(2))
	upstream := createTask(t, db, "finalize analysis", hoursPtr(4))
	downstream := createTask(t, db, "submit paper", hoursPtr(1))

	require.NoError(t, db.Create(&models.TaskDependency{TaskID: a.ID, DependsOnTaskID: upstream.ID}).Error)
	require.NoError(t, db.Create(&models.TaskDependency{TaskID: b.ID, DependsOnTaskID: upstream.ID}).Error)
	require.NoError(t, db.Create(&models.TaskDependency{TaskID: downstream.ID, DependsOnTaskID: a.ID}).Error)

	res, err := svc.Merge(MergeInput{
		TaskIDs:    []uint{a.ID, b.ID},
		MergedTask: MergedTaskInput{Name: "plot results"},
	})
	require.NoError(t, err)
	mergedID := res.MergedTask.ID

	// Duplicate upstream edges collapse to one.
	var up int64
	require.NoError(t, db.Model(&models.TaskDependency{}).
		Where("task_id = ? AND depends_on_task_id = ?", mergedID, upstream.ID).Count(&up).Error)
	require.Equal(t, int64(1), up)

	var down int64
	require.NoError(t, db.Model(&models.TaskDependency{}).
		Where("task_id = ? AND depends_on_task_id = ?", downstream.ID, mergedID).Count(&down).Error)
	require.Equal(t, int64(1), down)

	// Nothing references the archived sources anymore.
	var stale int64
	require.NoError(t, db.Model(&models.TaskDependency{}).
		Where("task_id IN ? OR depends_on_task_id IN ?", []uint{a.ID, b.ID}, []uint{a.ID, b.ID}).Count(&stale).Error)
	require.Zero(t, stale)
}

func TestBreakdownThenMerge_PreservesEstimatedHours(t *testing.T) {
	svc, db := newTestService(t)
	original := createTask(t, db, "rework evaluation", hoursPtr(10))

	bres, err := svc.Breakdown(BreakdownInput{
		TaskID: original.ID,
		Subtasks: []SubtaskInput{
			{Name: "rebuild metrics", EstimatedHours: hoursPtr(6)},
			{Name: "rerun benchmarks", EstimatedHours: hoursPtr(4)},
		},
	})
	require.NoError(t, err)

	ids := make([]uint, 0, len(bres.CreatedTasks))
	subtotal := 0.0
	for _, ct := range bres.CreatedTasks {
		ids = append(ids, ct.ID)
		var sub models.Task
		require.NoError(t, db.First(&sub, ct.ID).Error)
		subtotal += *sub.EstimatedHours
	}
	require.InDelta(t, 10.0, subtotal, 1e-9)

	mres, err := svc.Merge(MergeInput{
		TaskIDs:    ids,
		MergedTask: MergedTaskInput{Name: "rework evaluation", EstimatedHours: hoursPtr(subtotal)},
	})
	require.NoError(t, err)

	var merged models.Task
	require.NoError(t, db.First(&merged, mres.MergedTask.ID).Error)
	require.InDelta(t, 10.0, *merged.EstimatedHours, 1e-9)
}

func TestMerge_Validation(t *testing.T) {
	svc, db := newTestService(t)
	a := createTask(t, db, "solo", hoursPtr(1))

	_, err := svc.Merge(MergeInput{TaskIDs: []uint{a.ID}, MergedTask: MergedTaskInput{Name: "x"}})
	require.True(t, apperr.IsCode(err, apperr.CodeValidation))

	projA, projB := uint(1), uint(2)
	require.NoError(t, db.Create(&models.Project{Name: "alpha"}).Error)
	require.NoError(t, db.Create(&models.Project{Name: "beta"}).Error)
	b := createTask(t, db, "in alpha", hoursPtr(1))
	c := createTask(t, db, "in beta", hoursPtr(1))
	require.NoError(t, db.Model(b).Update("project_id", projA).Error)
	require.NoError(t, db.Model(c).Update("project_id", projB).Error)

	_, err = svc.Merge(MergeInput{TaskIDs: []uint{b.ID, c.ID}, MergedTask: MergedTaskInput{Name: "x"}})
	require.True(t, apperr.IsCode(err, apperr.CodeValidation))

	archived := createTask(t, db, "gone", hoursPtr(1))
	require.NoError(t, db.Model(archived).Update("status", models.StatusArchive).Error)
	_, err = svc.Merge(MergeInput{TaskIDs: []uint{a.ID, archived.ID}, MergedTask: MergedTaskInput{Name: "x"}})
	require.True(t, apperr.IsCode(err, apperr.CodeConflict))
}
