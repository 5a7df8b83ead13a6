package softwarerule

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fatflowers/subpanel/pkg/logctx"
	"github.com/fatflowers/subpanel/pkg/uaparser"
)

// Cache holds the active rule set between reloads.
type Cache interface {
	Get(ctx context.Context) ([]uaparser.Rule, bool)
	Set(ctx context.Context, rules []uaparser.Rule)
	Invalidate(ctx context.Context)
}

type memoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.RWMutex
	rules     []uaparser.Rule
	expiresAt time.Time
	loaded    bool
}

// NewMemoryCache returns a process-local cache. A zero ttl disables caching.
func NewMemoryCache(ttl time.Duration) Cache {
	return &memoryCache{ttl: ttl, now: time.Now}
}

func (c *memoryCache) Get(_ context.Context) ([]uaparser.Rule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded || !c.now().Before(c.expiresAt) {
		return nil, false
	}
	return c.rules, true
}

func (c *memoryCache) Set(_ context.Context, rules []uaparser.Rule) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = rules
	c.expiresAt = c.now().Add(c.ttl)
	c.loaded = true
}

func (c *memoryCache) Invalidate(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = nil
	c.loaded = false
}

// redisCache shares the rule set between panel instances so that an edit on
// one instance is seen by all after Invalidate. Redis errors count as misses.
type redisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	log    *zap.SugaredLogger
}

func NewRedisCache(client *redis.Client, key string, ttl time.Duration, log *zap.SugaredLogger) Cache {
	return &redisCache{client: client, key: key, ttl: ttl, log: log}
}

func (c *redisCache) Get(ctx context.Context) ([]uaparser.Rule, bool) {
	b, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logctx.FromCtx(ctx, c.log).Warnw("software rule cache read failed", "err", err)
		}
		return nil, false
	}
	var rules []uaparser.Rule
	if err := json.Unmarshal(b, &rules); err != nil {
		logctx.FromCtx(ctx, c.log).Warnw("software rule cache corrupt", "err", err)
		return nil, false
	}
	return rules, true
}

func (c *redisCache) Set(ctx context.Context, rules []uaparser.Rule) {
	if c.ttl <= 0 {
		return
	}
	b, err := json.Marshal(rules)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key, b, c.ttl).Err(); err != nil {
		logctx.FromCtx(ctx, c.log).Warnw("software rule cache write failed", "err", err)
	}
}

func (c *redisCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		logctx.FromCtx(ctx, c.log).Warnw("software rule cache invalidate failed", "err", err)
	}
}
