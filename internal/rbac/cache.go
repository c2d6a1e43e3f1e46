package rbac

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/modgate/modgate/internal/shared"
)

const defaultCacheTTL = 30 * time.Second

// cachedGrants is the redis payload for one user's resolved grants. Direct
// and role-derived permissions are kept apart so the resolution order stays
// observable.
type cachedGrants struct {
	Roles  []string `json:"roles"`
	Direct []string `json:"direct"`
	ByRole []string `json:"by_role"`
}

// PermissionCache is a read-through redis cache of per-user grant sets.
// Every failure degrades to a store read; the cache is never load-bearing
// for correctness.
type PermissionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewPermissionCache wraps the redis client. A zero ttl selects the default.
func NewPermissionCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *PermissionCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PermissionCache{client: client, ttl: ttl, logger: logger}
}

func (c *PermissionCache) get(ctx context.Context, userID string) (cachedGrants, bool) {
	if c == nil || c.client == nil {
		return cachedGrants{}, false
	}
	raw, err := c.client.Get(ctx, shared.PermissionCacheKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("permission cache read", slog.Any("error", err))
		}
		return cachedGrants{}, false
	}
	var grants cachedGrants
	if err := json.Unmarshal(raw, &grants); err != nil {
		c.logger.Warn("permission cache decode", slog.Any("error", err))
		return cachedGrants{}, false
	}
	return grants, true
}

func (c *PermissionCache) put(ctx context.Context, userID string, grants cachedGrants) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(grants)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, shared.PermissionCacheKey(userID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("permission cache write", slog.Any("error", err))
	}
}

func (c *PermissionCache) invalidate(ctx context.Context, userID string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, shared.PermissionCacheKey(userID)).Err(); err != nil {
		c.logger.Warn("permission cache invalidate", slog.String("user_id", userID), slog.Any("error", err))
	}
}

// invalidateAll drops every cached grant set. Used after role-level mutations
// that affect an unknown set of users.
func (c *PermissionCache) invalidateAll(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, shared.PermissionCacheKey("*"), 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Warn("permission cache invalidate all", slog.Any("error", err))
			return
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("permission cache scan", slog.Any("error", err))
	}
}
