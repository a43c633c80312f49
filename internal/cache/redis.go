package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Annmariya27/ctg-pro/internal/config"
	"github.com/Annmariya27/ctg-pro/internal/session"
)

// AnalysisStream is the Redis Stream carrying completed analyses to the history worker.
const AnalysisStream = "analysis:stream"

// RedisCache wraps the Redis client for session storage and the analysis stream
type RedisCache struct {
	client     *redis.Client
	sessionTTL time.Duration
}

// New creates a new Redis cache client
func New(cfg *config.Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr(),
		DB:           cfg.RedisDB,
		Password:     cfg.RedisPassword,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     50,
		MinIdleConns: 10,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, cfg.SessionTTL), nil
}

// NewWithClient wraps an existing client. A zero ttl keeps session records forever.
func NewWithClient(client *redis.Client, sessionTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:     client,
		sessionTTL: sessionTTL,
	}
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// HealthCheck performs a Redis health check
func (c *RedisCache) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func sessionKey(key string) string {
	return "session:" + key
}

// Get retrieves the session record stored under key
func (c *RedisCache) Get(ctx context.Context, key string) (*session.Record, error) {
	val, err := c.client.Get(ctx, sessionKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache get error: %w", err)
	}

	var rec session.Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("cache decode error: %w", err)
	}
	return &rec, nil
}

// Set stores a session record with the configured TTL
func (c *RedisCache) Set(ctx context.Context, key string, rec *session.Record) error {
	if rec == nil {
		return errors.New("nil session record")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cache encode error: %w", err)
	}
	if err := c.client.Set(ctx, sessionKey(key), data, c.sessionTTL).Err(); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

// Clear removes a session record
func (c *RedisCache) Clear(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, sessionKey(key)).Err(); err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

// RecordAnalysisEvent adds an analysis event to the Redis Stream for async persistence
func (c *RedisCache) RecordAnalysisEvent(ctx context.Context, event map[string]interface{}) error {
	err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: AnalysisStream,
		Values: event,
	}).Err()
	if err != nil {
		return fmt.Errorf("stream add error: %w", err)
	}
	return nil
}

// Stats returns Redis pool statistics
func (c *RedisCache) Stats() *redis.PoolStats {
	return c.client.PoolStats()
}

// ReadStream reads up to count events from the head of a Redis Stream without
// removing them. Callers delete handled events with AckStream.
// It does not block when the stream is empty.
func (c *RedisCache) ReadStream(ctx context.Context, stream string, count int) ([]map[string]interface{}, error) {
	result, err := c.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, "0"},
		Count:   int64(count),
		Block:   -1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stream read error: %w", err)
	}

	events := make([]map[string]interface{}, 0)
	for _, s := range result {
		for _, msg := range s.Messages {
			event := make(map[string]interface{}, len(msg.Values)+1)
			for k, v := range msg.Values {
				event[k] = v
			}
			event["_id"] = msg.ID
			events = append(events, event)
		}
	}

	return events, nil
}

// AckStream deletes handled events from a stream.
func (c *RedisCache) AckStream(ctx context.Context, stream string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.client.XDel(ctx, stream, ids...).Err(); err != nil {
		return fmt.Errorf("stream delete error: %w", err)
	}
	return nil
}
