package notify

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/oshokin/halo-guard/internal/config"
	"github.com/oshokin/halo-guard/internal/domain/session"
)

// Redis appends each event to a stream so other services can consume alerts
// with consumer groups.
type Redis struct {
	// client is the Redis connection pool.
	client *redis.Client
	// stream is the stream key.
	stream string
	// maxLen approximately caps the stream. Zero keeps everything.
	maxLen int64
}

// NewRedis creates the sink and checks connectivity.
func NewRedis(ctx context.Context, cfg config.Redis) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("ping redis %s: %w", cfg.Address, err)
	}

	return &Redis{
		client: client,
		stream: cfg.Stream,
		maxLen: cfg.MaxLen,
	}, nil
}

// Notify implements session.Sink.
func (r *Redis) Notify(ctx context.Context, event session.TamperEvent) error {
	payload, err := EncodeJSON(event)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"id":        event.ID,
			"device_id": event.Device.ID,
			"data":      string(payload),
		},
	}

	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	if err = r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("append to stream %s: %w", r.stream, err)
	}

	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
