// Package sparksim emulates a Spark standalone cluster's submission and
// monitoring surface: a set of running applications that make progress on a
// timer, finish at random or on request, and retire into a bounded history.
package sparksim

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chicogong/dgx-telemetry-sim/pkg/events"
	"github.com/chicogong/dgx-telemetry-sim/pkg/logger"
	"github.com/chicogong/dgx-telemetry-sim/pkg/models"
	"github.com/chicogong/dgx-telemetry-sim/pkg/random"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned for IDs absent from the searched collections
var ErrNotFound = errors.New("application not found")

// DefaultSubmissionName names submissions that carry no appResource
const DefaultSubmissionName = "Submitted Job"

var (
	seedRunningNames  = []string{"ETL Pipeline", "ML Training", "Data Processing", "RAPIDS SQL Query"}
	seedFinishedNames = []string{"Batch Job", "Analytics Query", "Feature Engineering"}
	spawnNames        = []string{"ETL Pipeline", "ML Training", "Data Processing", "RAPIDS SQL"}
	memoryChoicesMiB  = []int{4096, 8192, 16384}
)

// Options configures a StateManager
type Options struct {
	SparkUser       string
	HistoryCapacity int
	ListHistory     int
	Source          *random.Source
	Clock           func() time.Time
	Events          events.Emitter
}

// Summary aggregates the active set for metrics
type Summary struct {
	Total       int
	Running     int
	Executors   int
	Cores       int
	MemoryBytes int64
}

// TickPolicy parameterizes one progress pass
type TickPolicy struct {
	TaskBatchMin      int
	TaskBatchMax      int
	FinishProbability float64
	SpawnProbability  float64
	MaxActive         int
}

// DefaultTickPolicy matches the stock simulator cadence
func DefaultTickPolicy() TickPolicy {
	return TickPolicy{
		TaskBatchMin:      5,
		TaskBatchMax:      20,
		FinishProbability: 0.05,
		SpawnProbability:  0.10,
		MaxActive:         5,
	}
}

// TickResult reports the transitions of one progress pass
type TickResult struct {
	Advanced int
	Finished []models.Application
	Spawned  *models.Application
}

// StateManager owns the active applications and the completed history.
// Every mutation happens under mu.
type StateManager struct {
	mu       sync.RWMutex
	active   map[string]*models.Application
	history  *history
	retired  int
	listSize int

	sparkUser string
	rng       *random.Source
	now       func() time.Time
	events    events.Emitter
	logger    *logger.Logger
}

type nopEmitter struct{}

func (nopEmitter) Emit(events.JobEvent) bool { return true }

// NewStateManager creates an empty state manager
func NewStateManager(opts Options, log *logger.Logger) *StateManager {
	if opts.Source == nil {
		opts.Source = random.New(0)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Events == nil {
		opts.Events = nopEmitter{}
	}
	if opts.SparkUser == "" {
		opts.SparkUser = "dgx-admin"
	}
	if opts.HistoryCapacity < 1 {
		opts.HistoryCapacity = 100
	}
	if opts.ListHistory <= 0 {
		opts.ListHistory = 10
	}
	if opts.ListHistory > opts.HistoryCapacity {
		opts.ListHistory = opts.HistoryCapacity
	}

	return &StateManager{
		active:    make(map[string]*models.Application),
		history:   newHistory(opts.HistoryCapacity),
		listSize:  opts.ListHistory,
		sparkUser: opts.SparkUser,
		rng:       opts.Source,
		now:       opts.Clock,
		events:    opts.Events,
		logger:    log,
	}
}

// Seed populates the startup population: running applications with partial
// progress and finished ones in history, all backdated up to an hour.
func (sm *StateManager) Seed(running, finished int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for i := 0; i < running; i++ {
		app := sm.newApplication(random.Choice(sm.rng, seedRunningNames), true)
		sm.randomizeProgress(app)
		sm.active[app.ID] = app
	}
	for i := 0; i < finished; i++ {
		app := sm.newApplication(random.Choice(sm.rng, seedFinishedNames), true)
		sm.randomizeProgress(app)
		app.State = models.ApplicationFinished
		end := sm.now()
		app.EndTime = &end
		sm.retire(app)
	}

	sm.logger.Info("Seeded applications",
		zap.Int("running", running),
		zap.Int("finished", finished),
	)
}

// Submit admits a new RUNNING application with zeroed progress
func (sm *StateManager) Submit(name string) models.Application {
	if name == "" {
		name = DefaultSubmissionName
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	app := sm.newApplication(name, false)
	sm.active[app.ID] = app
	sm.emit(events.EventSubmitted, app)

	return *app
}

// Status looks an application up in the active set only
func (sm *StateManager) Status(id string) (models.Application, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	app, ok := sm.active[id]
	if !ok {
		return models.Application{}, fmt.Errorf("status %s: %w", id, ErrNotFound)
	}
	return *app, nil
}

// Kill moves an active application to history as KILLED
func (sm *StateManager) Kill(id string) (models.Application, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	app, ok := sm.active[id]
	if !ok {
		return models.Application{}, fmt.Errorf("kill %s: %w", id, ErrNotFound)
	}

	sm.terminate(app, models.ApplicationKilled)
	sm.emit(events.EventKilled, app)

	return *app, nil
}

// Get searches the active set, then history
func (sm *StateManager) Get(id string) (models.Application, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if app, ok := sm.active[id]; ok {
		return *app, nil
	}
	if app := sm.history.find(id); app != nil {
		return *app, nil
	}
	return models.Application{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
}

// List returns active applications by start time followed by the most
// recent history entries, oldest first
func (sm *StateManager) List() []models.Application {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	recent := sm.history.recent(sm.listSize)
	out := make([]models.Application, 0, len(sm.active)+len(recent))
	for _, app := range sm.sortedActive() {
		out = append(out, *app)
	}
	for _, app := range recent {
		out = append(out, *app)
	}
	return out
}

// Summary aggregates counts and resource usage
func (sm *StateManager) Summary() Summary {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	s := Summary{
		Total:   len(sm.active) + sm.retired,
		Running: len(sm.active),
	}
	for _, app := range sm.active {
		s.Executors += app.Executors
		s.Cores += app.Cores
		s.MemoryBytes += int64(app.MemoryPerExecutor) * int64(app.Executors) * 1024 * 1024
	}
	return s
}

// Now returns the state manager's clock reading
func (sm *StateManager) Now() time.Time {
	return sm.now()
}

// ActiveCount returns the number of running applications
func (sm *StateManager) ActiveCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.active)
}

// Tick advances every active application once, finishes some at random,
// and may admit one synthetic application while below the cap
func (sm *StateManager) Tick(p TickPolicy) TickResult {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var result TickResult
	for _, app := range sm.sortedActive() {
		if app.Stages.Completed < app.Stages.Total {
			app.Stages.Completed++
		}
		if app.Tasks.Completed < app.Tasks.Total {
			app.Tasks.Completed += sm.rng.IntRange(p.TaskBatchMin, p.TaskBatchMax)
			if app.Tasks.Completed > app.Tasks.Total {
				app.Tasks.Completed = app.Tasks.Total
			}
		}
		result.Advanced++

		if sm.rng.Chance(p.FinishProbability) {
			sm.terminate(app, models.ApplicationFinished)
			sm.emit(events.EventFinished, app)
			result.Finished = append(result.Finished, *app)
		}
	}

	if len(sm.active) < p.MaxActive && sm.rng.Chance(p.SpawnProbability) {
		app := sm.newApplication(random.Choice(sm.rng, spawnNames), true)
		sm.active[app.ID] = app
		sm.emit(events.EventSubmitted, app)
		spawned := *app
		result.Spawned = &spawned
	}

	return result
}

// terminate moves app from the active set into history (must hold lock)
func (sm *StateManager) terminate(app *models.Application, state models.ApplicationState) {
	delete(sm.active, app.ID)
	app.State = state
	end := sm.now()
	app.EndTime = &end
	sm.retire(app)
}

// retire appends to history (must hold lock)
func (sm *StateManager) retire(app *models.Application) {
	sm.retired++
	if evicted := sm.history.push(app); evicted != nil {
		sm.logger.Debug("History entry evicted", zap.String("app_id", evicted.ID))
	}
}

// sortedActive returns active applications ordered by start time then ID
// (must hold lock)
func (sm *StateManager) sortedActive() []*models.Application {
	apps := make([]*models.Application, 0, len(sm.active))
	for _, app := range sm.active {
		apps = append(apps, app)
	}
	sort.Slice(apps, func(i, j int) bool {
		if !apps[i].StartTime.Equal(apps[j].StartTime) {
			return apps[i].StartTime.Before(apps[j].StartTime)
		}
		return apps[i].ID < apps[j].ID
	})
	return apps
}

// newApplication builds a RUNNING application with a fresh ID and random
// resource shape. Synthetic applications are backdated 1-60 minutes.
// (must hold lock)
func (sm *StateManager) newApplication(name string, synthetic bool) *models.Application {
	now := sm.now()
	start := now
	if synthetic {
		start = now.Add(-time.Duration(sm.rng.IntRange(1, 60)) * time.Minute)
	}

	return &models.Application{
		ID:                sm.generateID(now),
		Name:              name,
		SparkUser:         sm.sparkUser,
		State:             models.ApplicationRunning,
		StartTime:         start,
		Executors:         sm.rng.IntRange(2, 8),
		Cores:             sm.rng.IntRange(4, 20),
		MemoryPerExecutor: random.Choice(sm.rng, memoryChoicesMiB),
		Stages:            models.Progress{Total: sm.rng.IntRange(5, 20)},
		Tasks:             models.Progress{Total: sm.rng.IntRange(100, 1000)},
	}
}

// randomizeProgress gives a seeded application partial progress that
// respects completed <= total
func (sm *StateManager) randomizeProgress(app *models.Application) {
	app.Stages.Completed = sm.rng.IntRange(0, app.Stages.Total)
	app.Stages.Failed = sm.rng.IntRange(0, 2)
	app.Tasks.Completed = sm.rng.IntRange(app.Tasks.Total/10, app.Tasks.Total)
	app.Tasks.Failed = sm.rng.IntRange(0, 10)
}

// generateID returns app-<timestamp>-<suffix>, retrying on collision with
// any retained ID (must hold lock)
func (sm *StateManager) generateID(now time.Time) string {
	stamp := now.Format("20060102150405")
	for attempt := 0; attempt < 32; attempt++ {
		id := fmt.Sprintf("app-%s-%04d", stamp, sm.rng.IntRange(1000, 9999))
		if !sm.idInUse(id) {
			return id
		}
	}
	return fmt.Sprintf("app-%s-%s", stamp, uuid.NewString()[:8])
}

func (sm *StateManager) idInUse(id string) bool {
	if _, ok := sm.active[id]; ok {
		return true
	}
	return sm.history.find(id) != nil
}

// emit hands a transition to the event emitter (must hold lock)
func (sm *StateManager) emit(kind events.EventType, app *models.Application) {
	sm.events.Emit(events.JobEvent{
		Type:           kind,
		ApplicationID:  app.ID,
		Name:           app.Name,
		State:          string(app.State),
		Timestamp:      sm.now(),
		DurationMs:     app.Duration(sm.now()).Milliseconds(),
		CompletedTasks: app.Tasks.Completed,
		TotalTasks:     app.Tasks.Total,
	})
}
