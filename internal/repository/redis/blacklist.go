// Package redis caches revoked session tokens in front of the durable blacklist.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"tenantauth-backend/internal/logger"
	"tenantauth-backend/internal/repository"
)

const keyPrefix = "tenantauth:revoked:"

// CachedBlacklist answers Exists from redis when it can and back-fills from the durable store.
// Entries expire after ttl, by which point the token no longer decodes anyway.
type CachedBlacklist struct {
	client *goredis.Client
	store  repository.BlacklistRepository
	ttl    time.Duration
}

func NewCachedBlacklist(client *goredis.Client, store repository.BlacklistRepository, ttl time.Duration) *CachedBlacklist {
	return &CachedBlacklist{client: client, store: store, ttl: ttl}
}

// Add writes through to the store first; a duplicate still refreshes the cache
func (c *CachedBlacklist) Add(ctx context.Context, token string) error {
	err := c.store.Add(ctx, token)
	if err != nil && !errors.Is(err, repository.ErrAlreadyExists) {
		return err
	}
	if cacheErr := c.client.Set(ctx, key(token), 1, c.ttl).Err(); cacheErr != nil {
		logger.WarnContext(ctx, "Failed to cache revoked token", "error", cacheErr)
	}
	return err
}

func (c *CachedBlacklist) Exists(ctx context.Context, token string) (bool, error) {
	n, err := c.client.Exists(ctx, key(token)).Result()
	if err == nil && n > 0 {
		return true, nil
	}
	if err != nil {
		logger.WarnContext(ctx, "Revocation cache unavailable, falling back to database", "error", err)
	}

	revoked, err := c.store.Exists(ctx, token)
	if err != nil {
		return false, err
	}
	if revoked {
		_ = c.client.Set(ctx, key(token), 1, c.ttl).Err()
	}
	return revoked, nil
}

// DeleteOlderThan prunes the durable store; cached entries age out on their own TTL
func (c *CachedBlacklist) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return c.store.DeleteOlderThan(ctx, cutoff)
}

func key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return keyPrefix + hex.EncodeToString(sum[:])
}
