// Package events fans simulated job lifecycle transitions out to downstream
// consumers.
//
// Transitions are handed to a Dispatcher without blocking; a single goroutine
// drains the buffer into a Sink. With Redis configured every event is written
// twice: XADD to a stream for reliable consumers and PUBLISH to a channel for
// live dashboards.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chicogong/dgx-telemetry-sim/pkg/logger"
	"go.uber.org/zap"
)

// EventType names a job lifecycle transition
type EventType string

const (
	EventSubmitted EventType = "submitted"
	EventFinished  EventType = "finished"
	EventKilled    EventType = "killed"
)

// JobEvent is the payload emitted for every transition
type JobEvent struct {
	Type           EventType `json:"type"`
	ApplicationID  string    `json:"applicationId"`
	Name           string    `json:"name"`
	State          string    `json:"state"`
	Timestamp      time.Time `json:"timestamp"`
	DurationMs     int64     `json:"durationMs"`
	CompletedTasks int       `json:"completedTasks"`
	TotalTasks     int       `json:"totalTasks"`
}

// Emitter accepts events without blocking
type Emitter interface {
	Emit(ev JobEvent) bool
}

// Sink delivers events to an external system
type Sink interface {
	Publish(ctx context.Context, ev JobEvent) error
	Close() error
}

// NopSink drops every event
type NopSink struct{}

// Publish implements Sink
func (NopSink) Publish(context.Context, JobEvent) error { return nil }

// Close implements Sink
func (NopSink) Close() error { return nil }

// Dispatcher buffers events and publishes them from one goroutine
type Dispatcher struct {
	sink    Sink
	ch      chan JobEvent
	logger  *logger.Logger
	timeout time.Duration

	started atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once
}

// NewDispatcher creates a dispatcher with the given buffer size
func NewDispatcher(sink Sink, buffer int, log *logger.Logger) *Dispatcher {
	if sink == nil {
		sink = NopSink{}
	}
	if buffer < 1 {
		buffer = 1
	}
	return &Dispatcher{
		sink:    sink,
		ch:      make(chan JobEvent, buffer),
		logger:  log,
		timeout: 2 * time.Second,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Emit queues an event. A full buffer drops it and returns false.
func (d *Dispatcher) Emit(ev JobEvent) bool {
	select {
	case d.ch <- ev:
		return true
	default:
		d.logger.Debug("Event buffer full, dropping event",
			zap.String("type", string(ev.Type)),
			zap.String("app_id", ev.ApplicationID),
		)
		return false
	}
}

// Start starts the publishing loop
func (d *Dispatcher) Start() {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(d.doneCh)
		for {
			select {
			case ev := <-d.ch:
				d.publish(ev)
			case <-d.stopCh:
				d.drain()
				return
			}
		}
	}()
}

// Stop publishes whatever is still buffered, then closes the sink
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		close(d.stopCh)
		if d.started.Load() {
			<-d.doneCh
		}
		if err := d.sink.Close(); err != nil {
			d.logger.Warn("Failed to close event sink", zap.Error(err))
		}
	})
}

func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.ch:
			d.publish(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) publish(ev JobEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sink.Publish(ctx, ev); err != nil {
		d.logger.Warn("Failed to publish job event",
			zap.String("type", string(ev.Type)),
			zap.String("app_id", ev.ApplicationID),
			zap.Error(err),
		)
	}
}
