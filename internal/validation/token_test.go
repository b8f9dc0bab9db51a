package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/models"
)

type fakeCache struct {
	data    map[string]string
	getErr  error
	setErr  error
	getHits int
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string)}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	if c.getErr != nil {
		return "", c.getErr
	}
	v, ok := c.data[key]
	if !ok {
		return "", errors.New("nil")
	}
	c.getHits++
	return v, nil
}

func (c *fakeCache) SetEx(_ context.Context, key, value string, _ time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.sets++
	c.data[key] = value
	return nil
}

func (c *fakeCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

type fakeLookup struct {
	tokens  map[string]uuid.UUID
	queries int
	err     error
}

func (l *fakeLookup) HostIDByToken(_ context.Context, token string) (uuid.UUID, error) {
	l.queries++
	if l.err != nil {
		return uuid.Nil, l.err
	}
	id, ok := l.tokens[token]
	if !ok {
		return uuid.Nil, models.ErrHostNotFound
	}
	return id, nil
}

func TestResolveCachesKnownToken(t *testing.T) {
	hostID := uuid.New()
	lookup := &fakeLookup{tokens: map[string]uuid.UUID{"tok-1": hostID}}
	cache := newFakeCache()
	resolver := NewTokenResolver(lookup, cache, time.Hour)

	for i := 0; i < 3; i++ {
		got, err := resolver.Resolve(context.Background(), "tok-1")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got != hostID {
			t.Errorf("host id = %s, want %s", got, hostID)
		}
	}

	if lookup.queries != 1 {
		t.Errorf("database queried %d times, want 1", lookup.queries)
	}
}

func TestResolveCachesUnknownToken(t *testing.T) {
	lookup := &fakeLookup{tokens: map[string]uuid.UUID{}}
	cache := newFakeCache()
	resolver := NewTokenResolver(lookup, cache, time.Hour)

	for i := 0; i < 3; i++ {
		_, err := resolver.Resolve(context.Background(), "bogus")
		if err != models.ErrHostNotFound {
			t.Fatalf("err = %v, want ErrHostNotFound", err)
		}
	}

	if lookup.queries != 1 {
		t.Errorf("database queried %d times, want 1", lookup.queries)
	}
}

func TestResolveFallsBackWhenCacheDown(t *testing.T) {
	hostID := uuid.New()
	lookup := &fakeLookup{tokens: map[string]uuid.UUID{"tok-1": hostID}}
	cache := newFakeCache()
	cache.getErr = errors.New("connection refused")
	cache.setErr = errors.New("connection refused")
	resolver := NewTokenResolver(lookup, cache, time.Hour)

	got, err := resolver.Resolve(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Resolve with cache down: %v", err)
	}
	if got != hostID {
		t.Errorf("host id = %s, want %s", got, hostID)
	}
}

func TestResolvePropagatesDatabaseErrors(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("db down")}
	resolver := NewTokenResolver(lookup, newFakeCache(), time.Hour)

	_, err := resolver.Resolve(context.Background(), "tok-1")
	if err == nil || errors.Is(err, models.ErrHostNotFound) {
		t.Fatalf("err = %v, want wrapped database error", err)
	}
}

func TestInvalidateForcesFreshLookup(t *testing.T) {
	hostID := uuid.New()
	lookup := &fakeLookup{tokens: map[string]uuid.UUID{"tok-1": hostID}}
	cache := newFakeCache()
	resolver := NewTokenResolver(lookup, cache, time.Hour)

	if _, err := resolver.Resolve(context.Background(), "tok-1"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := resolver.Invalidate(context.Background(), "tok-1"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	delete(lookup.tokens, "tok-1")

	if _, err := resolver.Resolve(context.Background(), "tok-1"); err != models.ErrHostNotFound {
		t.Fatalf("err after invalidate = %v, want ErrHostNotFound", err)
	}
	if lookup.queries != 2 {
		t.Errorf("database queried %d times, want 2", lookup.queries)
	}
}
