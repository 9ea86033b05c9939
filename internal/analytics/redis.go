// Package analytics keeps per-user reminder counters in Redis. Counters
// are time-bucketed and expire on their own; losing them never affects
// reminder delivery.
package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/easy-remind/internal/domain"
)

// Config controls counter bucketing and retention.
type Config struct {
	// Window is the counter bucket size. Supported: 1h, 24h.
	// Default: 24h.
	Window time.Duration

	// Retention is the TTL applied to each counter key.
	// Default: 30 days.
	Retention time.Duration
}

// DefaultConfig returns the default analytics configuration.
func DefaultConfig() Config {
	return Config{
		Window:    24 * time.Hour,
		Retention: 30 * 24 * time.Hour,
	}
}

type RedisSink struct {
	client *redis.Client
	config Config
}

func NewRedisSink(client *redis.Client, config Config) *RedisSink {
	if config.Window <= 0 {
		config.Window = 24 * time.Hour
	}
	if config.Retention <= 0 {
		config.Retention = 30 * 24 * time.Hour
	}
	return &RedisSink{client: client, config: config}
}

// Record increments the outcome counter for the event's requester.
// Errors are logged and swallowed; analytics is strictly best-effort.
func (s *RedisSink) Record(ctx context.Context, event domain.OutcomeEvent) {
	key := buildKey(event.Requester, string(event.Outcome), event.CreatedAt, s.config.Window)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.config.Retention)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("analytics: redis pipeline: %v", err)
	}
}

// CountForActor sums the actor's counters for the given outcome across
// the last n buckets, ending at the bucket containing now.
func (s *RedisSink) CountForActor(ctx context.Context, actor, outcome string, now time.Time, n int) (int64, error) {
	var total int64
	for i := 0; i < n; i++ {
		key := buildKey(actor, outcome, now.Add(-time.Duration(i)*s.config.Window), s.config.Window)
		v, err := s.client.Get(ctx, key).Int64()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("redis get %s: %w", key, err)
		}
		total += v
	}
	return total, nil
}

func buildKey(actor, outcome string, t time.Time, window time.Duration) string {
	return fmt.Sprintf("u:%s:%s:%s", actor, outcome, truncateToBucket(t, window))
}

func truncateToBucket(t time.Time, window time.Duration) string {
	t = t.UTC()
	switch window {
	case time.Hour:
		return t.Format("2006010215")
	case 24 * time.Hour:
		return t.Format("20060102")
	default:
		return t.Format("20060102")
	}
}
