package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/chicogong/dgx-telemetry-sim/pkg/logger"
	goredis "github.com/redis/go-redis/v9"
)

// recordingSink captures published events
type recordingSink struct {
	mu     sync.Mutex
	events []JobEvent
	err    error
	closed bool
}

func (s *recordingSink) Publish(_ context.Context, ev JobEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) snapshot() ([]JobEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]JobEvent(nil), s.events...), s.closed
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, 16, logger.Nop())
	d.Start()

	ids := []string{"app-1", "app-2", "app-3"}
	for _, id := range ids {
		if !d.Emit(JobEvent{Type: EventSubmitted, ApplicationID: id}) {
			t.Fatalf("Emit(%s) dropped", id)
		}
	}
	d.Stop()

	got, closed := sink.snapshot()
	if !closed {
		t.Error("sink not closed on Stop")
	}
	if len(got) != len(ids) {
		t.Fatalf("delivered %d events, want %d", len(got), len(ids))
	}
	for i, ev := range got {
		if ev.ApplicationID != ids[i] {
			t.Errorf("event %d = %s, want %s", i, ev.ApplicationID, ids[i])
		}
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	d := NewDispatcher(&recordingSink{}, 2, logger.Nop())

	if !d.Emit(JobEvent{ApplicationID: "a"}) || !d.Emit(JobEvent{ApplicationID: "b"}) {
		t.Fatal("Emit dropped before buffer was full")
	}
	if d.Emit(JobEvent{ApplicationID: "c"}) {
		t.Error("Emit accepted event beyond buffer capacity")
	}
	d.Stop()
}

func TestDispatcherSurvivesSinkErrors(t *testing.T) {
	sink := &recordingSink{err: errors.New("boom")}
	d := NewDispatcher(sink, 4, logger.Nop())
	d.Start()

	d.Emit(JobEvent{ApplicationID: "x"})
	d.Emit(JobEvent{ApplicationID: "y"})
	d.Stop()

	if got, _ := sink.snapshot(); len(got) != 2 {
		t.Errorf("delivered %d events, want 2", len(got))
	}
}

func setupRedisSink(t *testing.T) (*miniredis.Miniredis, *RedisSink) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })

	sink, err := NewRedisSink(RedisSinkConfig{
		URL:     "redis://" + mr.Addr(),
		Stream:  "spark:jobs:stream",
		Channel: "spark:jobs:events",
	})
	if err != nil {
		t.Fatalf("NewRedisSink: %v", err)
	}
	t.Cleanup(func() { sink.Close() })

	return mr, sink
}

func TestRedisSinkWritesStream(t *testing.T) {
	mr, sink := setupRedisSink(t)
	ctx := context.Background()

	if err := sink.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	ev := JobEvent{
		Type:          EventKilled,
		ApplicationID: "app-20250101000000-1234",
		Name:          "ETL Pipeline",
		State:         "KILLED",
		Timestamp:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := sink.Publish(ctx, ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	entries, err := mr.Stream("spark:jobs:stream")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("stream has %d entries, want 1", len(entries))
	}

	fields := make(map[string]string)
	values := entries[0].Values
	for i := 0; i+1 < len(values); i += 2 {
		fields[values[i]] = values[i+1]
	}
	if fields["type"] != "killed" || fields["app_id"] != ev.ApplicationID {
		t.Errorf("unexpected stream fields %v", fields)
	}

	var decoded JobEvent
	if err := json.Unmarshal([]byte(fields["payload"]), &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded.Name != "ETL Pipeline" || decoded.State != "KILLED" {
		t.Errorf("decoded payload %+v", decoded)
	}
}

func TestRedisSinkPublishesChannel(t *testing.T) {
	mr, sink := setupRedisSink(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	sub := client.Subscribe(ctx, "spark:jobs:events")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := sink.Publish(ctx, JobEvent{Type: EventFinished, ApplicationID: "app-x"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var ev JobEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		if ev.Type != EventFinished || ev.ApplicationID != "app-x" {
			t.Errorf("received %+v", ev)
		}
	case <-ctx.Done():
		t.Fatal("no pub/sub message received")
	}
}

func TestNewRedisSinkInvalidURL(t *testing.T) {
	if _, err := NewRedisSink(RedisSinkConfig{URL: "not-a-url", Stream: "s", Channel: "c"}); err == nil {
		t.Error("expected error for invalid URL")
	}
}
