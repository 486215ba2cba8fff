// Package cache is a Redis-backed cache-aside layer for read aggregates.
//
// Entries live in namespaces. Every namespace has a generation counter that
// is part of each physical key; Invalidate bumps it, so anything computed
// before a mutation can no longer be read after it. Old generations are
// deleted on a best-effort basis and otherwise age out with their TTL.
//
// Every Redis failure is a miss. A namespace whose generation could not be
// bumped is bypassed until a later bump succeeds. A Cache without a client is
// permanently unavailable and simply computes.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"taskhub/internal/model"
	"taskhub/internal/observability"
)

const (
	NamespaceTasks     = "tasks"
	NamespaceAnalytics = "analytics"
)

// TaskNamespaces are invalidated by every task or user mutation that can
// change what a principal sees.
var TaskNamespaces = []string{NamespaceTasks, NamespaceAnalytics}

type Cache struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	log     *logrus.Logger
	metrics *observability.Metrics
	group   singleflight.Group

	mu    sync.Mutex
	dirty map[string]bool
}

// New wraps client. client may be nil, metrics may be nil.
func New(client redis.UniversalClient, prefix string, ttl time.Duration, log *logrus.Logger, metrics *observability.Metrics) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{
		client:  client,
		prefix:  prefix,
		ttl:     ttl,
		log:     log,
		metrics: metrics,
		dirty:   map[string]bool{},
	}
}

// Available reports whether a Redis client is configured.
func (c *Cache) Available() bool {
	return c != nil && c.client != nil
}

func (c *Cache) Ping(ctx context.Context) error {
	if !c.Available() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if !c.Available() {
		return nil
	}
	return c.client.Close()
}

func (c *Cache) genKey(ns string) string {
	return c.prefix + "gen:" + ns
}

func (c *Cache) dataKey(ns string, gen int64, key string) string {
	return c.prefix + ns + ":" + strconv.FormatInt(gen, 10) + ":" + key
}

func (c *Cache) generation(ctx context.Context, ns string) (int64, error) {
	gen, err := c.client.Get(ctx, c.genKey(ns)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

func (c *Cache) fail(op string, err error) {
	if c.metrics != nil {
		c.metrics.CacheErrorsTotal.WithLabelValues(op).Inc()
	}
	if c.log != nil {
		c.log.WithError(err).WithField("op", op).Warn("cache bypassed")
	}
}

func (c *Cache) count(ns string, hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.CacheHitsTotal.WithLabelValues(ns).Inc()
	} else {
		c.metrics.CacheMissesTotal.WithLabelValues(ns).Inc()
	}
}

// lookup returns the physical key for (ns, key) and whether a stored value
// was decoded into dst. An empty physical key means the generation could not
// be read and nothing may be stored.
func (c *Cache) lookup(ctx context.Context, ns, key string, dst any) (string, bool) {
	if c.isDirty(ns) && !c.bump(ctx, ns) {
		return "", false
	}
	gen, err := c.generation(ctx, ns)
	if err != nil {
		c.fail("generation", err)
		return "", false
	}
	phys := c.dataKey(ns, gen, key)

	data, err := c.client.Get(ctx, phys).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.fail("get", err)
		}
		return phys, false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.fail("decode", err)
		return phys, false
	}
	return phys, true
}

func (c *Cache) store(ctx context.Context, phys string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		c.fail("encode", err)
		return
	}
	if err := c.client.Set(ctx, phys, data, ttl).Err(); err != nil {
		c.fail("set", err)
	}
}

// Remember returns the cached value for key in namespace ns, computing and
// storing it on a miss. Concurrent misses for the same entry share one
// computation. ttl <= 0 uses the cache default. The bool reports a hit.
func Remember[T any](ctx context.Context, c *Cache, ns, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, bool, error) {
	if !c.Available() {
		v, err := compute(ctx)
		return v, false, err
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	var cached T
	phys, hit := c.lookup(ctx, ns, key, &cached)
	c.count(ns, hit)
	if hit {
		return cached, true, nil
	}
	if phys == "" {
		v, err := compute(ctx)
		return v, false, err
	}

	v, err, _ := c.group.Do(phys, func() (any, error) {
		v, err := compute(ctx)
		if err != nil {
			return v, err
		}
		c.store(ctx, phys, v, ttl)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	out, _ := v.(T)
	return out, false, nil
}

// Invalidate retires every entry of the given namespaces.
func (c *Cache) Invalidate(ctx context.Context, namespaces ...string) {
	if !c.Available() {
		return
	}
	for _, ns := range namespaces {
		c.bump(ctx, ns)
	}
}

// bump advances the generation of ns. On failure ns stays dirty and is
// bypassed, as its stored entries may predate a mutation.
func (c *Cache) bump(ctx context.Context, ns string) bool {
	gen, err := c.client.Incr(ctx, c.genKey(ns)).Result()
	c.mu.Lock()
	if err != nil {
		c.dirty[ns] = true
	} else {
		delete(c.dirty, ns)
	}
	c.mu.Unlock()
	if err != nil {
		c.fail("invalidate", err)
		return false
	}
	c.sweep(ctx, ns, gen)
	return true
}

func (c *Cache) isDirty(ns string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty[ns]
}

// sweep deletes entries of generations older than current.
func (c *Cache) sweep(ctx context.Context, ns string, current int64) {
	keep := c.dataKey(ns, current, "")
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+ns+":*", 100).Result()
		if err != nil {
			c.fail("scan", err)
			return
		}
		stale := keys[:0]
		for _, k := range keys {
			if !strings.HasPrefix(k, keep) {
				stale = append(stale, k)
			}
		}
		if len(stale) > 0 {
			if err := c.client.Del(ctx, stale...).Err(); err != nil {
				c.fail("delete", err)
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

// TaskListKey keys one page of a task listing for a principal.
func TaskListKey(p model.Principal, fingerprint string) string {
	return fmt.Sprintf("list:%s:%s:%s", p.ID, p.Role, fingerprint)
}

// OverviewKey keys the analytics overview of a principal.
func OverviewKey(p model.Principal) string {
	return fmt.Sprintf("overview:%s:%s", p.ID, p.Role)
}
