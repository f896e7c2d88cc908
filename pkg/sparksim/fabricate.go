package sparksim

import (
	"fmt"
	"time"

	"github.com/chicogong/dgx-telemetry-sim/pkg/models"
	"github.com/chicogong/dgx-telemetry-sim/pkg/random"
)

// The jobs, stages and executors views are regenerated on every call. Only
// the application's existence and a few anchoring values (start time,
// executor count, terminal state) come from the stored record.

var (
	jobStatuses   = []string{"SUCCEEDED", "RUNNING", "FAILED"}
	stageStatuses = []string{"COMPLETE", "ACTIVE", "PENDING"}
)

const (
	driverHostPort    = "192.168.100.10:42000"
	driverMaxMemory   = 4 << 30
	executorMaxMemory = 8 << 30
)

// JobsFor fabricates the job list of an application
func (sm *StateManager) JobsFor(id string) ([]models.JobInfo, error) {
	app, err := sm.Get(id)
	if err != nil {
		return nil, err
	}

	now := sm.now()
	count := sm.rng.IntRange(3, 10)
	jobs := make([]models.JobInfo, 0, count)
	for i := 0; i < count; i++ {
		status := random.Choice(sm.rng, jobStatuses)
		if app.State.Terminal() && status == "RUNNING" {
			status = "SUCCEEDED"
		}

		numTasks := sm.rng.IntRange(10, 100)
		job := models.JobInfo{
			JobID:          i,
			Name:           fmt.Sprintf("Job %d", i),
			SubmissionTime: sm.submissionTime(app, now),
			StageIDs:       sequence(sm.rng.IntRange(1, 5)),
			Status:         status,
			NumTasks:       numTasks,
			NumFailedTasks: sm.rng.IntRange(0, 5),
		}
		switch status {
		case "RUNNING":
			job.NumActiveTasks = sm.rng.IntRange(1, 10)
			job.NumCompletedTasks = sm.rng.IntRange(0, numTasks-job.NumActiveTasks)
		default:
			done := now
			job.CompletionTime = &done
			job.NumCompletedTasks = sm.rng.IntRange(numTasks/2, numTasks)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// StagesFor fabricates the stage list of an application
func (sm *StateManager) StagesFor(id string) ([]models.StageInfo, error) {
	app, err := sm.Get(id)
	if err != nil {
		return nil, err
	}

	count := sm.rng.IntRange(5, 15)
	stages := make([]models.StageInfo, 0, count)
	for i := 0; i < count; i++ {
		status := random.Choice(sm.rng, stageStatuses)
		if app.State.Terminal() {
			status = "COMPLETE"
		}

		numTasks := sm.rng.IntRange(10, 100)
		stage := models.StageInfo{
			StageID:        i,
			Name:           fmt.Sprintf("Stage %d", i),
			Status:         status,
			NumTasks:       numTasks,
			NumFailedTasks: sm.rng.IntRange(0, 2),
		}
		switch status {
		case "COMPLETE":
			stage.NumCompleteTasks = numTasks
		case "ACTIVE":
			stage.NumActiveTasks = sm.rng.IntRange(1, 10)
			stage.NumCompleteTasks = sm.rng.IntRange(0, numTasks-stage.NumActiveTasks)
		}
		if status != "PENDING" {
			stage.ExecutorRunTime = sm.rng.Int64Range(1000, 60000)
			stage.InputBytes = sm.rng.Int64Range(1_000_000, 1_000_000_000)
			stage.OutputBytes = sm.rng.Int64Range(1_000_000, 500_000_000)
			stage.ShuffleReadBytes = sm.rng.Int64Range(0, 100_000_000)
			stage.ShuffleWriteBytes = sm.rng.Int64Range(0, 100_000_000)
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

// ExecutorsFor fabricates the driver followed by one entry per executor of
// the application
func (sm *StateManager) ExecutorsFor(id string) ([]models.ExecutorInfo, error) {
	app, err := sm.Get(id)
	if err != nil {
		return nil, err
	}

	active := !app.State.Terminal()
	out := make([]models.ExecutorInfo, 0, app.Executors+1)

	driverCompleted := sm.rng.IntRange(10, 100)
	driverActive := sm.activeTasks(active)
	out = append(out, models.ExecutorInfo{
		ID:                "driver",
		HostPort:          driverHostPort,
		IsActive:          active,
		MemoryUsed:        sm.rng.Int64Range(100_000_000, 500_000_000),
		TotalCores:        4,
		MaxTasks:          4,
		ActiveTasks:       driverActive,
		CompletedTasks:    driverCompleted,
		TotalTasks:        driverCompleted + driverActive,
		TotalDuration:     sm.rng.Int64Range(10_000, 100_000),
		TotalGCTime:       sm.rng.Int64Range(100, 1000),
		TotalInputBytes:   sm.rng.Int64Range(1_000_000, 100_000_000),
		TotalShuffleRead:  sm.rng.Int64Range(0, 50_000_000),
		TotalShuffleWrite: sm.rng.Int64Range(0, 50_000_000),
		MaxMemory:         driverMaxMemory,
	})

	for i := 0; i < app.Executors; i++ {
		failed := sm.rng.IntRange(0, 2)
		completed := sm.rng.IntRange(50, 500)
		activeTasks := sm.activeTasks(active)
		out = append(out, models.ExecutorInfo{
			ID:                fmt.Sprintf("%d", i),
			HostPort:          fmt.Sprintf("192.168.100.%d:%d", 10+i%2, 42000+i+1),
			IsActive:          active,
			RDDBlocks:         sm.rng.IntRange(0, 10),
			MemoryUsed:        sm.rng.Int64Range(500_000_000, 2_000_000_000),
			DiskUsed:          sm.rng.Int64Range(0, 1_000_000_000),
			TotalCores:        4,
			MaxTasks:          4,
			ActiveTasks:       activeTasks,
			FailedTasks:       failed,
			CompletedTasks:    completed,
			TotalTasks:        completed + failed + activeTasks,
			TotalDuration:     sm.rng.Int64Range(50_000, 500_000),
			TotalGCTime:       sm.rng.Int64Range(500, 5000),
			TotalInputBytes:   sm.rng.Int64Range(10_000_000, 1_000_000_000),
			TotalShuffleRead:  sm.rng.Int64Range(0, 500_000_000),
			TotalShuffleWrite: sm.rng.Int64Range(0, 500_000_000),
			MaxMemory:         executorMaxMemory,
		})
	}
	return out, nil
}

// submissionTime picks an instant between the application start and now
func (sm *StateManager) submissionTime(app models.Application, now time.Time) time.Time {
	span := app.Duration(now)
	if span <= 0 {
		return app.StartTime
	}
	return app.StartTime.Add(time.Duration(sm.rng.Int64Range(0, int64(span))))
}

func (sm *StateManager) activeTasks(active bool) int {
	if !active {
		return 0
	}
	return sm.rng.IntRange(0, 4)
}

func sequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
