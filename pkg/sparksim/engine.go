package sparksim

import (
	"sync"
	"time"

	"github.com/chicogong/dgx-telemetry-sim/pkg/logger"
	"go.uber.org/zap"
)

// Engine drives the periodic progress pass
type Engine struct {
	state   *StateManager
	metrics *Metrics
	policy  TickPolicy
	logger  *logger.Logger
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
}

// NewEngine creates a progress engine. metrics may be nil.
func NewEngine(state *StateManager, metrics *Metrics, policy TickPolicy, log *logger.Logger) *Engine {
	return &Engine{
		state:   state,
		metrics: metrics,
		policy:  policy,
		logger:  log,
		now:     state.now,
		stopCh:  make(chan struct{}),
	}
}

// Start starts the progress loop
func (e *Engine) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				e.Tick()
			case <-e.stopCh:
				ticker.Stop()
				return
			}
		}
	}()

	e.logger.Info("Progress loop started",
		zap.Duration("interval", interval),
		zap.Int("max_active", e.policy.MaxActive),
	)
}

// Stop stops the progress loop
func (e *Engine) Stop() {
	e.once.Do(func() { close(e.stopCh) })
}

// Tick runs one progress pass and records finished durations
func (e *Engine) Tick() TickResult {
	result := e.state.Tick(e.policy)

	for _, app := range result.Finished {
		duration := app.Duration(e.now())
		if e.metrics != nil {
			e.metrics.JobDuration.Observe(duration.Seconds())
		}
		e.logger.Info("Application finished",
			zap.String("app_id", app.ID),
			zap.String("name", app.Name),
			zap.Duration("duration", duration),
		)
	}

	if result.Spawned != nil {
		e.logger.Info("Application spawned",
			zap.String("app_id", result.Spawned.ID),
			zap.String("name", result.Spawned.Name),
		)
	}

	e.logger.Debug("Progress pass complete",
		zap.Int("advanced", result.Advanced),
		zap.Int("finished", len(result.Finished)),
	)
	return result
}
