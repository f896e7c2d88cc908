package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSinkConfig holds configuration for the Redis event sink
type RedisSinkConfig struct {
	// URL is the Redis connection URL, e.g. redis://localhost:6379/0
	URL string

	// Password overrides any password in URL (optional)
	Password string

	// Stream receives every event via XADD
	Stream string

	// Channel receives every event via PUBLISH
	Channel string

	// MaxLen caps the stream length (default 10000)
	MaxLen int64
}

// RedisSink writes events to a Redis stream and pub/sub channel
type RedisSink struct {
	client  *redis.Client
	stream  string
	channel string
	maxLen  int64
}

// NewRedisSink creates a Redis sink. It does not dial; use Ping to check
// connectivity.
func NewRedisSink(cfg RedisSinkConfig) (*RedisSink, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.Stream == "" || cfg.Channel == "" {
		return nil, fmt.Errorf("stream and channel are required")
	}
	if cfg.MaxLen == 0 {
		cfg.MaxLen = 10000
	}

	return &RedisSink{
		client:  redis.NewClient(opts),
		stream:  cfg.Stream,
		channel: cfg.Channel,
		maxLen:  cfg.MaxLen,
	}, nil
}

// Ping verifies the Redis connection
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Publish implements Sink
func (s *RedisSink) Publish(ctx context.Context, ev JobEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Values: map[string]interface{}{
			"type":    string(ev.Type),
			"app_id":  ev.ApplicationID,
			"payload": string(payload),
		},
	})
	pipe.Publish(ctx, s.channel, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close implements Sink
func (s *RedisSink) Close() error {
	return s.client.Close()
}
