package permissions

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/fynlo/authkit/store"
)

const (
	// DefaultTTL is how long a fetched permission set is considered fresh.
	DefaultTTL = 5 * time.Second
	// DefaultSnapshotKey is the store key the snapshot persists under.
	DefaultSnapshotKey = "permission_snapshot"

	refreshTimeout = 10 * time.Second
)

// ErrNoFetcher is returned by NewCache when no fetch function is supplied.
var ErrNoFetcher = errors.New("permissions: nil fetch function")

// FetchFunc retrieves the authoritative permission set from the backend.
type FetchFunc func(ctx context.Context) ([]string, error)

// CacheConfig tunes a [Cache]. The zero value applies defaults; Snapshot may
// be nil to disable persistence entirely.
type CacheConfig struct {
	TTL         time.Duration
	Snapshot    store.Store
	SnapshotKey string
	Logger      *slog.Logger
}

// Cache is a time-boxed, stale-while-revalidate cache of permission names.
// Safe for concurrent use.
type Cache struct {
	fetch   FetchFunc
	ttl     time.Duration
	snap    store.Store
	snapKey string
	logger  *slog.Logger
	now     func() time.Time

	mu         sync.Mutex
	names      []string
	fetchedAt  time.Time
	refreshing bool
}

// NewCache creates a Cache around fetch.
func NewCache(fetch FetchFunc, cfg CacheConfig) (*Cache, error) {
	if fetch == nil {
		return nil, ErrNoFetcher
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SnapshotKey == "" {
		cfg.SnapshotKey = DefaultSnapshotKey
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		fetch:   fetch,
		ttl:     cfg.TTL,
		snap:    cfg.Snapshot,
		snapKey: cfg.SnapshotKey,
		logger:  cfg.Logger,
		now:     time.Now,
	}, nil
}

// Permissions returns the user's permission names.
//
// Without force: a fresh cache is returned with no I/O; a stale cache or
// persisted snapshot is returned immediately while one background refresh
// runs detached from this call. With force (or with nothing cached at all)
// the fetch blocks, and on fetch failure the last known good set is returned
// instead of an error when one exists.
func (c *Cache) Permissions(ctx context.Context, force bool) ([]string, error) {
	c.mu.Lock()

	if !force && len(c.names) > 0 && c.now().Sub(c.fetchedAt) < c.ttl {
		names := slices.Clone(c.names)
		c.mu.Unlock()
		return names, nil
	}

	if !force {
		serve := slices.Clone(c.names)
		if len(serve) == 0 {
			serve = c.loadSnapshot(ctx)
		}
		if len(serve) > 0 {
			if !c.refreshing {
				c.refreshing = true
				go c.refreshDetached()
			}
			c.mu.Unlock()
			return serve, nil
		}
	}
	c.mu.Unlock()

	names, err := c.fetch(ctx)
	if err != nil {
		c.logger.Debug("permission fetch failed, degrading to last known good", "error", err)
		if fallback := c.lastKnownGood(ctx); fallback != nil {
			return fallback, nil
		}
		return nil, err
	}

	c.apply(names, c.now())
	return slices.Clone(names), nil
}

// Has reports whether the user holds the named permission.
func (c *Cache) Has(ctx context.Context, name string) (bool, error) {
	names, err := c.Permissions(ctx, false)
	if err != nil {
		return false, err
	}
	return slices.Contains(names, name), nil
}

// HasAny reports whether the user holds at least one of the named permissions.
func (c *Cache) HasAny(ctx context.Context, wanted ...string) (bool, error) {
	names, err := c.Permissions(ctx, false)
	if err != nil {
		return false, err
	}
	for _, w := range wanted {
		if slices.Contains(names, w) {
			return true, nil
		}
	}
	return false, nil
}

// HasAll reports whether the user holds every one of the named permissions.
func (c *Cache) HasAll(ctx context.Context, wanted ...string) (bool, error) {
	names, err := c.Permissions(ctx, false)
	if err != nil {
		return false, err
	}
	for _, w := range wanted {
		if !slices.Contains(names, w) {
			return false, nil
		}
	}
	return true, nil
}

// Seed primes the cache with a permission set already in hand (typically the
// login response payload), avoiding an immediate refetch.
func (c *Cache) Seed(names []string) {
	if len(names) == 0 {
		return
	}
	c.apply(names, c.now())
}

// Invalidate drops the cached set and snapshot timestamp so the next read
// fetches. The persisted snapshot is removed as well; degraded reads after an
// explicit invalidation must not resurrect another user's permissions.
func (c *Cache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.names = nil
	c.fetchedAt = time.Time{}
	c.mu.Unlock()

	if c.snap != nil {
		if err := c.snap.Delete(ctx, c.snapKey); err != nil {
			c.logger.Warn("permission snapshot delete failed", "error", err)
		}
	}
}

// FetchedAt reports when the cached set was last refreshed.
func (c *Cache) FetchedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchedAt
}

// refreshDetached is the background half of stale-while-revalidate. It runs
// outside any caller's awaited path; failures leave the stale value
// authoritative.
func (c *Cache) refreshDetached() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	names, err := c.fetch(ctx)

	c.mu.Lock()
	c.refreshing = false
	c.mu.Unlock()

	if err != nil {
		c.logger.Debug("background permission refresh failed", "error", err)
		return
	}
	c.apply(names, c.now())
}

// apply installs a fetched set unless a later writer already did: the race
// between a background refresh and a forced refresh resolves to the last
// writer by fetchedAt.
func (c *Cache) apply(names []string, at time.Time) {
	c.mu.Lock()
	if at.Before(c.fetchedAt) {
		c.mu.Unlock()
		return
	}
	c.names = slices.Clone(names)
	c.fetchedAt = at
	c.mu.Unlock()

	c.saveSnapshot(names)
}

func (c *Cache) lastKnownGood(ctx context.Context) []string {
	c.mu.Lock()
	names := slices.Clone(c.names)
	c.mu.Unlock()
	if len(names) > 0 {
		return names
	}
	return c.loadSnapshot(ctx)
}

// loadSnapshot reads the persisted set. Failures of any kind degrade to nil.
func (c *Cache) loadSnapshot(ctx context.Context) []string {
	if c.snap == nil {
		return nil
	}
	raw, ok, err := c.snap.Get(ctx, c.snapKey)
	if err != nil || !ok || raw == "" {
		return nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		c.logger.Warn("permission snapshot corrupt, ignoring", "error", err)
		return nil
	}
	return names
}

func (c *Cache) saveSnapshot(names []string) {
	if c.snap == nil {
		return
	}
	raw, err := json.Marshal(names)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if err := c.snap.Set(ctx, c.snapKey, string(raw)); err != nil {
		c.logger.Warn("permission snapshot write failed", "error", err)
	}
}
