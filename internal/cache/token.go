package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/history-api/internal/auth"
)

const tokenCachePrefix = "auth:token:"

// GetToken returns the verified token cached under key.
// A miss or an undecodable entry is (nil, nil).
func (c *Cache) GetToken(ctx context.Context, key string) (*auth.Token, error) {
	data, err := c.client.Get(ctx, tokenCachePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached token: %w", err)
	}

	var tok auth.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, nil //nolint:nilerr // corrupted entry is a miss
	}
	return &tok, nil
}

// SetToken caches tok under key for ttl.
func (c *Cache) SetToken(ctx context.Context, key string, tok *auth.Token, ttl time.Duration) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	return c.client.Set(ctx, tokenCachePrefix+key, data, ttl).Err()
}

// DeleteToken drops a cached token, e.g. after revocation.
func (c *Cache) DeleteToken(ctx context.Context, key string) error {
	return c.client.Del(ctx, tokenCachePrefix+key).Err()
}

var _ auth.TokenCache = (*Cache)(nil)
