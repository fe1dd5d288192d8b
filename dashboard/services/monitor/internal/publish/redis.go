// Package publish forwards poll snapshots to external systems.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"socdash/dashboard/services/monitor/internal/models"
)

// RedisClient is the subset of go-redis used here; *redis.Client satisfies it.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisPublisher publishes every snapshot on a channel and keeps the latest one under a key.
type RedisPublisher struct {
	client  RedisClient
	channel string
	ttl     time.Duration
}

// NewRedisPublisher returns redis-backed publisher.
func NewRedisPublisher(client RedisClient, channel string, ttl time.Duration) *RedisPublisher {
	if channel == "" {
		channel = "soc:snapshots"
	}
	return &RedisPublisher{client: client, channel: channel, ttl: ttl}
}

func (p *RedisPublisher) latestKey() string {
	return fmt.Sprintf("%s:latest", p.channel)
}

// Publish sends snap to subscribers and caches it.
func (p *RedisPublisher) Publish(ctx context.Context, snap models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := p.client.Set(ctx, p.latestKey(), data, p.ttl).Err(); err != nil {
		return fmt.Errorf("cache snapshot: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}
