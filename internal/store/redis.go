package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSink stores session snapshots as JSON values keyed by session id.
type RedisSink struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSink connects to Redis using a redis:// URL. A zero ttl keeps
// snapshots indefinitely.
func NewRedisSink(url string, ttl time.Duration) (*RedisSink, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisSink{client: client, ttl: ttl}, nil
}

func (r *RedisSink) Close() error {
	return r.client.Close()
}

// Save writes the snapshot under "session:<id>". Failures are logged and
// reported as false.
func (r *RedisSink) Save(snapshot map[string]any) bool {
	sessionID, _ := snapshot["session_id"].(string)
	if sessionID == "" {
		slog.Warn("snapshot without session_id, not saving to redis")
		return false
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		slog.Warn("could not encode session snapshot", "session_id", sessionID, "error", err)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Set(ctx, "session:"+sessionID, data, r.ttl).Err(); err != nil {
		slog.Warn("could not save session to redis", "session_id", sessionID, "error", err)
		return false
	}
	return true
}
