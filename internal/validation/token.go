// Package validation resolves agent report tokens to host IDs with
// Valkey caching in front of PostgreSQL.
package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/models"
)

const cacheMiss = "miss"

// Cache is the subset of the Valkey client used by the resolver.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type hostLookup interface {
	HostIDByToken(ctx context.Context, token string) (uuid.UUID, error)
}

// TokenResolver maps report tokens to host IDs.
//
// Cache strategy:
// - Known tokens: host ID cached for cacheTTL
// - Unknown tokens: negative result cached for the same TTL, so a
//   misconfigured agent cannot hammer the database
// - Cache errors degrade to a direct database lookup
type TokenResolver struct {
	store    hostLookup
	cache    Cache
	cacheTTL time.Duration
}

func NewTokenResolver(store hostLookup, cache Cache, cacheTTL time.Duration) *TokenResolver {
	return &TokenResolver{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// Resolve returns the host ID owning the token, or models.ErrHostNotFound.
func (r *TokenResolver) Resolve(ctx context.Context, token string) (uuid.UUID, error) {
	key := cacheKey(token)

	if cached, err := r.cache.Get(ctx, key); err == nil {
		if cached == cacheMiss {
			return uuid.Nil, models.ErrHostNotFound
		}
		if id, err := uuid.Parse(cached); err == nil {
			return id, nil
		}
		// Unparseable cache entry: fall through to the database.
	}

	hostID, err := r.store.HostIDByToken(ctx, token)
	if err == models.ErrHostNotFound {
		_ = r.cache.SetEx(ctx, key, cacheMiss, r.cacheTTL)
		return uuid.Nil, models.ErrHostNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("token lookup failed: %w", err)
	}

	_ = r.cache.SetEx(ctx, key, hostID.String(), r.cacheTTL)
	return hostID, nil
}

// Invalidate drops a token from the cache after the host is deleted or
// re-registered.
func (r *TokenResolver) Invalidate(ctx context.Context, token string) error {
	if err := r.cache.Del(ctx, cacheKey(token)); err != nil {
		return fmt.Errorf("failed to invalidate token cache: %w", err)
	}
	return nil
}

func cacheKey(token string) string {
	return fmt.Sprintf("host:token:%s", token)
}
