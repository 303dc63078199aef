package artifact

import (
	"context"
	"fmt"
	"time"

	"driftline/pkg/drift"
)

// DigestStore is the persistence slice the cache needs.
type DigestStore interface {
	GetDigest(ctx context.Context, scopeKey string) (drift.Digest, bool, error)
	PutDigest(ctx context.Context, digest drift.Digest) error
	ClearDigests(ctx context.Context) (int64, error)
}

// Cache wraps a DigestStore with fingerprint-equality freshness checks.
type Cache struct {
	store DigestStore
	clock func() time.Time
}

// Option adjusts cache construction.
type Option func(*Cache)

// WithClock replaces the wall clock; tests pin generation timestamps with it.
func WithClock(clock func() time.Time) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewCache builds a cache over the given store.
func NewCache(store DigestStore, options ...Option) *Cache {
	c := &Cache{store: store, clock: time.Now}
	for _, option := range options {
		option(c)
	}

	return c
}

// Fresh returns the cached digest for the scope when one exists and its
// stored fingerprint equals the fingerprint of the given source set. A stale
// or missing digest reports fresh = false; the caller regenerates and saves.
func (c *Cache) Fresh(ctx context.Context, scopeKey string, source []drift.Article) (drift.Digest, bool, error) {
	cached, found, err := c.store.GetDigest(ctx, scopeKey)
	if err != nil {
		return drift.Digest{}, false, fmt.Errorf("digest cache lookup %s: %w", scopeKey, err)
	}
	if !found {
		return drift.Digest{}, false, nil
	}
	if cached.Fingerprint != Fingerprint(source) {
		return drift.Digest{}, false, nil
	}

	return cached, true, nil
}

// Save stores freshly generated digest text keyed by the fingerprint of the
// source set it was built from.
func (c *Cache) Save(ctx context.Context, scopeKey, text string, source []drift.Article) (drift.Digest, error) {
	digest := drift.Digest{
		ScopeKey:    scopeKey,
		Fingerprint: Fingerprint(source),
		Text:        text,
		GeneratedAt: c.clock().UTC(),
	}
	if err := c.store.PutDigest(ctx, digest); err != nil {
		return drift.Digest{}, fmt.Errorf("digest cache save %s: %w", scopeKey, err)
	}

	return digest, nil
}

// Invalidate drops every cached digest and reports how many were removed.
func (c *Cache) Invalidate(ctx context.Context) (int64, error) {
	removed, err := c.store.ClearDigests(ctx)
	if err != nil {
		return 0, fmt.Errorf("digest cache invalidate: %w", err)
	}

	return removed, nil
}
