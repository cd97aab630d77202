package safety

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/haven-crisis-platform/pkg/logging"
)

// CooldownGate rate-limits alert emission. Allow reports whether the key may
// fire now, atomically starting its cooldown window when it does.
type CooldownGate interface {
	Allow(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisGate backs the cooldown with redis SETNX+TTL so multiple nodes share
// one window. Errors fall back to allowing: a broken gate must not swallow
// safety alerts.
type RedisGate struct {
	client *redis.Client
	logger *logging.Logger
}

// NewRedisGate creates a redis-backed cooldown gate.
func NewRedisGate(client *redis.Client, logger *logging.Logger) *RedisGate {
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisGate{client: client, logger: logger}
}

// Allow sets the cooldown key if absent.
func (g *RedisGate) Allow(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, "safety:cooldown:"+key, 1, ttl).Result()
	if err != nil {
		g.logger.Error("cooldown gate unavailable, allowing alert", "error", err, "key", key)
		return true, fmt.Errorf("safety: cooldown check: %w", err)
	}
	return ok, nil
}

// LocalGate is the in-process fallback when redis is not configured.
type LocalGate struct {
	mu    sync.Mutex
	fired map[string]time.Time
	now   func() time.Time
}

// NewLocalGate creates an in-process cooldown gate.
func NewLocalGate() *LocalGate {
	return &LocalGate{fired: make(map[string]time.Time), now: time.Now}
}

// Allow reports whether the key's cooldown has elapsed.
func (g *LocalGate) Allow(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if until, ok := g.fired[key]; ok && now.Before(until) {
		return false, nil
	}
	g.fired[key] = now.Add(ttl)
	return true, nil
}

var _ CooldownGate = (*RedisGate)(nil)
var _ CooldownGate = (*LocalGate)(nil)
