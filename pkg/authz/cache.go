package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ledgerline/backoffice/pkg/observability"
)

// absentMarker is cached for (user, operation) pairs with no grant so that
// repeated denials do not hammer the store. Stale-deny is a UX defect only.
const absentMarker = "__absent__"

// CacheConfig configures the grant cache tiers
type CacheConfig struct {
	// TTL bounds how long a cached grant may be served without a store read
	TTL time.Duration
	// L1Size is the max number of grants held in the in-process LRU
	L1Size int
}

// DefaultCacheConfig returns conservative cache defaults
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:    30 * time.Second,
		L1Size: 4096,
	}
}

type l1Entry struct {
	grant     *AccessGrant // nil means cached absence
	expiresAt time.Time
}

// CachedStore layers an in-process LRU and Redis in front of a Store.
//
// Keys are strictly (userID, operationID). Every mutation invalidates both
// tiers before returning (invalidate-before-respond): a stale allow is a
// security defect, so a failed invalidation fails the mutation rather than
// leaving a widened grant cached. Cache read faults degrade to direct store
// reads and never widen access.
type CachedStore struct {
	store   Store
	redis   *redis.Client
	l1      *lru.Cache[string, l1Entry]
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewCachedStore wraps store with the two cache tiers. redis may be nil to
// run with the L1 tier only (single-instance deployments).
func NewCachedStore(store Store, redisClient *redis.Client, cfg CacheConfig, logger *observability.Logger, metrics *observability.Metrics) (*CachedStore, error) {
	if cfg.TTL <= 0 {
		cfg = DefaultCacheConfig()
	}

	l1, err := lru.New[string, l1Entry](cfg.L1Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create grant L1 cache: %w", err)
	}

	return &CachedStore{
		store:   store,
		redis:   redisClient,
		l1:      l1,
		ttl:     cfg.TTL,
		logger:  logger,
		metrics: metrics,
	}, nil
}

func grantKey(userID, operationID int64) string {
	return fmt.Sprintf("authz:grant:%d:%d", userID, operationID)
}

// GetGrant serves from L1, then Redis, then the underlying store
func (c *CachedStore) GetGrant(ctx context.Context, userID, operationID int64) (*AccessGrant, error) {
	key := grantKey(userID, operationID)

	if entry, ok := c.l1.Get(key); ok && time.Now().Before(entry.expiresAt) {
		c.cacheHit("l1")
		if entry.grant == nil {
			return nil, ErrGrantNotFound
		}
		// Callers get a copy. The cached grant is never shared, so a
		// caller mutating its result cannot doctor what later reads see.
		return entry.grant.Clone(), nil
	}

	if c.redis != nil {
		data, err := c.redis.Get(ctx, key).Result()
		switch {
		case err == redis.Nil:
			// fall through to the store
		case err != nil:
			c.logger.WithError(err).Warn("grant cache read failed, falling back to store")
		case data == absentMarker:
			c.cacheHit("redis")
			c.l1.Add(key, l1Entry{expiresAt: time.Now().Add(c.ttl)})
			return nil, ErrGrantNotFound
		default:
			var grant AccessGrant
			if err := json.Unmarshal([]byte(data), &grant); err != nil {
				// Corrupt entry; drop it and read through.
				c.redis.Del(ctx, key)
			} else {
				c.cacheHit("redis")
				c.l1.Add(key, l1Entry{grant: grant.Clone(), expiresAt: time.Now().Add(c.ttl)})
				return &grant, nil
			}
		}
	}

	if c.metrics != nil {
		c.metrics.GrantCacheMissesTotal.Inc()
	}

	grant, err := c.store.GetGrant(ctx, userID, operationID)
	if err == ErrGrantNotFound {
		c.populate(ctx, key, nil)
		return nil, ErrGrantNotFound
	}
	if err != nil {
		return nil, err
	}

	c.populate(ctx, key, grant)
	return grant, nil
}

// CreateGrant writes through and invalidates before returning
func (c *CachedStore) CreateGrant(ctx context.Context, grant *AccessGrant) error {
	if err := c.store.CreateGrant(ctx, grant); err != nil {
		return err
	}
	return c.invalidate(ctx, grant.UserID, grant.OperationID)
}

// UpdateGrant writes through and invalidates before returning. A failed
// write still drops the L1 entry; the next read goes to the store.
func (c *CachedStore) UpdateGrant(ctx context.Context, grant *AccessGrant) error {
	if err := c.store.UpdateGrant(ctx, grant); err != nil {
		c.l1.Remove(grantKey(grant.UserID, grant.OperationID))
		return err
	}
	return c.invalidate(ctx, grant.UserID, grant.OperationID)
}

// DeleteGrant writes through and invalidates before returning
func (c *CachedStore) DeleteGrant(ctx context.Context, userID, operationID int64) error {
	if err := c.store.DeleteGrant(ctx, userID, operationID); err != nil {
		return err
	}
	return c.invalidate(ctx, userID, operationID)
}

// ListGrants is not cached; it serves management UIs, not the request path
func (c *CachedStore) ListGrants(ctx context.Context, operationID int64) ([]*AccessGrant, error) {
	return c.store.ListGrants(ctx, operationID)
}

// populate best-effort fills both tiers with a private copy of the
// grant. A failed fill is only a missed optimization; the next read
// hits the store again.
func (c *CachedStore) populate(ctx context.Context, key string, grant *AccessGrant) {
	c.l1.Add(key, l1Entry{grant: grant.Clone(), expiresAt: time.Now().Add(c.ttl)})

	if c.redis == nil {
		return
	}

	payload := absentMarker
	if grant != nil {
		data, err := json.Marshal(grant)
		if err != nil {
			c.logger.WithError(err).Warn("failed to marshal grant for cache")
			return
		}
		payload = string(data)
	}

	if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("grant cache write failed")
	}
}

// invalidate drops the (user, operation) entry from both tiers. A Redis
// failure here is returned to the caller: the row mutation has committed, but
// until the entry is gone a stale allow could be served, so the workflow must
// know the invalidation did not complete.
func (c *CachedStore) invalidate(ctx context.Context, userID, operationID int64) error {
	key := grantKey(userID, operationID)
	c.l1.Remove(key)

	if c.metrics != nil {
		c.metrics.GrantCacheInvalidationsTotal.Inc()
	}

	if c.redis != nil {
		if err := c.redis.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("grant mutated but cache invalidation failed for user %d operation %d: %w", userID, operationID, err)
		}
	}

	return nil
}

func (c *CachedStore) cacheHit(tier string) {
	if c.metrics != nil {
		c.metrics.GrantCacheHitsTotal.WithLabelValues(tier).Inc()
	}
}
