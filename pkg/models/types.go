package models

import "time"

// Device identifies one simulated accelerator
type Device struct {
	UUID       string `json:"uuid"`
	Index      int    `json:"index"`
	DeviceName string `json:"device"`
	Model      string `json:"model"`
	Hostname   string `json:"hostname"`
}

// DeviceMetrics is the mutable telemetry snapshot of a device
type DeviceMetrics struct {
	GPUUtil      float64   `json:"gpu_util"`
	MemCopyUtil  float64   `json:"mem_copy_util"`
	FBUsedMiB    int64     `json:"fb_used_mib"`
	FBFreeMiB    int64     `json:"fb_free_mib"`
	FBTotalMiB   int64     `json:"fb_total_mib"`
	GPUTemp      float64   `json:"gpu_temp"`
	MemoryTemp   float64   `json:"memory_temp"`
	PowerUsage   float64   `json:"power_usage"`
	EnergyMilliJ float64   `json:"total_energy_mj"`
	SMClockMHz   int64     `json:"sm_clock_mhz"`
	MemClockMHz  int64     `json:"mem_clock_mhz"`
	PCIeTXKBps   int64     `json:"pcie_tx_kbps"`
	PCIeRXKBps   int64     `json:"pcie_rx_kbps"`
	NVLinkGBps   float64   `json:"nvlink_gbps"`
	TensorActive float64   `json:"tensor_active"`
	DRAMActive   float64   `json:"dram_active"`
	ECCSingleBit int64     `json:"ecc_sbe"`
	ECCDoubleBit int64     `json:"ecc_dbe"`
	XIDErrors    int64     `json:"xid_errors"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DeviceSnapshot pairs a device identity with a consistent metric copy
type DeviceSnapshot struct {
	Device
	Metrics DeviceMetrics `json:"metrics"`
}

// DeviceHealth is the device simulator health payload
type DeviceHealth struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	GPUs    int    `json:"gpus"`
}

// ServiceHealth is the scheduler simulator health payload
type ServiceHealth struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// ApplicationState represents the lifecycle state of a simulated application
type ApplicationState string

const (
	ApplicationRunning  ApplicationState = "RUNNING"
	ApplicationFinished ApplicationState = "FINISHED"
	ApplicationKilled   ApplicationState = "KILLED"
)

// Terminal reports whether no further transition is possible
func (s ApplicationState) Terminal() bool {
	return s == ApplicationFinished || s == ApplicationKilled
}

// Progress counts stages or tasks of an application
type Progress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Application is a simulated scheduler submission
type Application struct {
	ID                string
	Name              string
	SparkUser         string
	State             ApplicationState
	StartTime         time.Time
	EndTime           *time.Time
	Executors         int
	Cores             int
	MemoryPerExecutor int
	Stages            Progress
	Tasks             Progress
}

// Duration is end minus start, or now minus start while running
func (a *Application) Duration(now time.Time) time.Duration {
	end := now
	if a.EndTime != nil {
		end = *a.EndTime
	}
	if end.Before(a.StartTime) {
		return 0
	}
	return end.Sub(a.StartTime)
}

// Summary renders the application in the UI API shape
func (a *Application) Summary(now time.Time) ApplicationSummary {
	durationMs := a.Duration(now).Milliseconds()
	completed := a.State.Terminal()

	return ApplicationSummary{
		ID:        a.ID,
		Name:      a.Name,
		State:     a.State,
		StartTime: a.StartTime,
		Duration:  durationMs,
		SparkUser: a.SparkUser,
		Completed: completed,
		Attempts: []ApplicationAttempt{{
			AttemptID: 1,
			StartTime: a.StartTime,
			EndTime:   a.EndTime,
			Duration:  durationMs,
			SparkUser: a.SparkUser,
			Completed: completed,
		}},
		Executors:         a.Executors,
		Cores:             a.Cores,
		MemoryPerExecutor: a.MemoryPerExecutor,
		Stages:            a.Stages,
		Tasks:             a.Tasks,
	}
}

// ApplicationAttempt is one attempt entry of an application summary
type ApplicationAttempt struct {
	AttemptID int        `json:"attemptId"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	Duration  int64      `json:"duration"`
	SparkUser string     `json:"sparkUser"`
	Completed bool       `json:"completed"`
}

// ApplicationSummary is the JSON shape of /api/v1/applications entries
type ApplicationSummary struct {
	ID                string               `json:"id"`
	Name              string               `json:"name"`
	State             ApplicationState     `json:"state"`
	StartTime         time.Time            `json:"startTime"`
	Duration          int64                `json:"duration"`
	SparkUser         string               `json:"sparkUser"`
	Completed         bool                 `json:"completed"`
	Attempts          []ApplicationAttempt `json:"attempts"`
	Executors         int                  `json:"executors"`
	Cores             int                  `json:"cores"`
	MemoryPerExecutor int                  `json:"memoryPerExecutor"`
	Stages            Progress             `json:"stages"`
	Tasks             Progress             `json:"tasks"`
}

// SubmissionStatusResponse answers /v1/submissions/status/{id}
type SubmissionStatusResponse struct {
	Action             string           `json:"action"`
	DriverState        ApplicationState `json:"driverState"`
	ServerSparkVersion string           `json:"serverSparkVersion"`
	SubmissionID       string           `json:"submissionId"`
	Success            bool             `json:"success"`
	WorkerHostPort     string           `json:"workerHostPort"`
	WorkerID           string           `json:"workerId"`
}

// CreateSubmissionRequest is the tolerated body of /v1/submissions/create
type CreateSubmissionRequest struct {
	AppResource string `json:"appResource"`
}

// CreateSubmissionResponse answers /v1/submissions/create
type CreateSubmissionResponse struct {
	Action             string `json:"action"`
	Message            string `json:"message"`
	ServerSparkVersion string `json:"serverSparkVersion"`
	SubmissionID       string `json:"submissionId"`
	Success            bool   `json:"success"`
}

// KillSubmissionResponse answers /v1/submissions/kill/{id}
type KillSubmissionResponse struct {
	Action             string `json:"action"`
	Message            string `json:"message"`
	ServerSparkVersion string `json:"serverSparkVersion"`
	SubmissionID       string `json:"submissionId"`
	Success            bool   `json:"success"`
}

// SubmissionErrorResponse is returned by the submission API on lookup failure
type SubmissionErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse is returned by the UI API on lookup failure
type ErrorResponse struct {
	Error string `json:"error"`
}

// JobInfo is one fabricated entry of /applications/{id}/jobs
type JobInfo struct {
	JobID             int        `json:"jobId"`
	Name              string     `json:"name"`
	SubmissionTime    time.Time  `json:"submissionTime"`
	CompletionTime    *time.Time `json:"completionTime"`
	StageIDs          []int      `json:"stageIds"`
	Status            string     `json:"status"`
	NumTasks          int        `json:"numTasks"`
	NumActiveTasks    int        `json:"numActiveTasks"`
	NumCompletedTasks int        `json:"numCompletedTasks"`
	NumFailedTasks    int        `json:"numFailedTasks"`
}

// StageInfo is one fabricated entry of /applications/{id}/stages
type StageInfo struct {
	StageID           int    `json:"stageId"`
	AttemptID         int    `json:"attemptId"`
	Name              string `json:"name"`
	Status            string `json:"status"`
	NumTasks          int    `json:"numTasks"`
	NumActiveTasks    int    `json:"numActiveTasks"`
	NumCompleteTasks  int    `json:"numCompleteTasks"`
	NumFailedTasks    int    `json:"numFailedTasks"`
	ExecutorRunTime   int64  `json:"executorRunTime"`
	InputBytes        int64  `json:"inputBytes"`
	OutputBytes       int64  `json:"outputBytes"`
	ShuffleReadBytes  int64  `json:"shuffleReadBytes"`
	ShuffleWriteBytes int64  `json:"shuffleWriteBytes"`
}

// ExecutorInfo is one fabricated entry of /applications/{id}/executors
type ExecutorInfo struct {
	ID                string `json:"id"`
	HostPort          string `json:"hostPort"`
	IsActive          bool   `json:"isActive"`
	RDDBlocks         int    `json:"rddBlocks"`
	MemoryUsed        int64  `json:"memoryUsed"`
	DiskUsed          int64  `json:"diskUsed"`
	TotalCores        int    `json:"totalCores"`
	MaxTasks          int    `json:"maxTasks"`
	ActiveTasks       int    `json:"activeTasks"`
	FailedTasks       int    `json:"failedTasks"`
	CompletedTasks    int    `json:"completedTasks"`
	TotalTasks        int    `json:"totalTasks"`
	TotalDuration     int64  `json:"totalDuration"`
	TotalGCTime       int64  `json:"totalGCTime"`
	TotalInputBytes   int64  `json:"totalInputBytes"`
	TotalShuffleRead  int64  `json:"totalShuffleRead"`
	TotalShuffleWrite int64  `json:"totalShuffleWrite"`
	MaxMemory         int64  `json:"maxMemory"`
}
