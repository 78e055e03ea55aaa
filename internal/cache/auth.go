package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/recipebox/recipebox/internal/model"
)

const (
	// authTokenPrefix is the Redis key prefix for cached principals, keyed by token hash.
	authTokenPrefix = "auth:token:"
	// authUserPrefix is the Redis key prefix for the set of token hashes cached per user.
	authUserPrefix = "auth:user:"
	// negSuffix marks a token hash known to be invalid.
	negSuffix = ":neg"

	// NegativeAuthTTL is the TTL for negative cache entries.
	NegativeAuthTTL = 30 * time.Second
)

// cachedPrincipal represents a principal stored in Redis.
type cachedPrincipal struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	IsActive    bool   `json:"is_active"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

func tokenKey(tokenHash string) string { return authTokenPrefix + tokenHash }

func userIndexKey(userID string) string { return authUserPrefix + userID }

// GetPrincipal retrieves a cached principal by token hash.
// Returns ErrCacheMiss if not found or the entry is unreadable.
func (c *Cache) GetPrincipal(ctx context.Context, tokenHash string) (*model.Principal, error) {
	data, err := c.client.Get(ctx, tokenKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cached cachedPrincipal
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, ErrCacheMiss
	}

	return &model.Principal{
		UserID:      cached.UserID,
		Email:       cached.Email,
		IsActive:    cached.IsActive,
		IsStaff:     cached.IsStaff,
		IsSuperuser: cached.IsSuperuser,
	}, nil
}

// SetPrincipal caches a principal under its token hash and records the hash
// in the owning user's index so it can be purged on credential change.
func (c *Cache) SetPrincipal(ctx context.Context, tokenHash string, p *model.Principal, ttl time.Duration) error {
	data, err := json.Marshal(cachedPrincipal{
		UserID:      p.UserID,
		Email:       p.Email,
		IsActive:    p.IsActive,
		IsStaff:     p.IsStaff,
		IsSuperuser: p.IsSuperuser,
	})
	if err != nil {
		return fmt.Errorf("marshal principal: %w", err)
	}

	idx := userIndexKey(p.UserID)

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, tokenKey(tokenHash), data, ttl)
	pipe.SAdd(ctx, idx, tokenHash)
	pipe.Expire(ctx, idx, ttl)
	pipe.Del(ctx, tokenKey(tokenHash)+negSuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache principal: %w", err)
	}
	return nil
}

// InvalidateUser removes every cached principal for a user.
// Used when the password changes or the account is deactivated.
func (c *Cache) InvalidateUser(ctx context.Context, userID string) error {
	idx := userIndexKey(userID)

	hashes, err := c.client.SMembers(ctx, idx).Result()
	if err != nil {
		return fmt.Errorf("failed to read auth index: %w", err)
	}

	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, tokenKey(h))
	}
	keys = append(keys, idx)

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate auth cache: %w", err)
	}
	return nil
}

// IsNegativelyCached checks if a token hash is known to be invalid.
func (c *Cache) IsNegativelyCached(ctx context.Context, tokenHash string) (bool, error) {
	exists, err := c.client.Exists(ctx, tokenKey(tokenHash)+negSuffix).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}
	return exists > 0, nil
}

// SetNegativeCache marks a token hash as unknown.
func (c *Cache) SetNegativeCache(ctx context.Context, tokenHash string) error {
	err := c.client.SetEx(ctx, tokenKey(tokenHash)+negSuffix, "", NegativeAuthTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}
	return nil
}

// ClearNegativeCache removes a negative entry, e.g. after a token is issued.
func (c *Cache) ClearNegativeCache(ctx context.Context, tokenHash string) error {
	return c.client.Del(ctx, tokenKey(tokenHash)+negSuffix).Err()
}
