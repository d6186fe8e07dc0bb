package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"mercator-hq/switchboard/pkg/backends"
)

// Lookup results reported to the Observer.
const (
	ResultHit    = "hit"
	ResultMiss   = "miss"
	ResultBypass = "bypass"
	ResultError  = "error"
)

// Observer receives cache lookup results, typically to export metrics.
type Observer interface {
	CacheLookup(result string)
}

// Option configures a Cache.
type Option func(*Cache)

// WithObserver registers a lookup observer.
func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observer = o }
}

// WithLogger overrides the cache logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// Cache stores successful responses keyed by Key(request).
//
// Store failures never fail a request: a read error is a miss and a write
// error is logged and dropped.
type Cache struct {
	store    Store
	ttl      time.Duration
	observer Observer
	logger   *slog.Logger
}

// New creates a cache over store. ttl is the lifetime of entries written by
// Put.
func New(store Store, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		ttl:    ttl,
		logger: slog.Default().With("component", "cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached response for req. Sensitive requests always miss
// without consulting the store. The returned response is a fresh copy
// flagged Cached and carrying req's request id.
func (c *Cache) Get(ctx context.Context, req *backends.Request) (*backends.Response, bool) {
	if req.Sensitive {
		c.observe(ResultBypass)
		return nil, false
	}

	key, err := Key(req)
	if err != nil {
		c.logger.Warn("cache key failed", "request_id", req.RequestID, "error", err)
		c.observe(ResultError)
		return nil, false
	}

	resp, ok := c.GetKey(ctx, key)
	if !ok {
		return nil, false
	}
	resp.RequestID = req.RequestID
	return resp, true
}

// Put stores resp for req. Sensitive requests and unsuccessful responses are
// not stored.
func (c *Cache) Put(ctx context.Context, req *backends.Request, resp *backends.Response) {
	if req.Sensitive || resp == nil || resp.Status != backends.StatusOK {
		return
	}

	key, err := Key(req)
	if err != nil {
		c.logger.Warn("cache key failed", "request_id", req.RequestID, "error", err)
		return
	}
	c.PutKey(ctx, key, resp, c.ttl)
}

// GetKey returns the response stored under key.
func (c *Cache) GetKey(ctx context.Context, key string) (*backends.Response, bool) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
		c.observe(ResultError)
		return nil, false
	}
	if !ok {
		c.observe(ResultMiss)
		return nil, false
	}

	var resp backends.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Warn("cache entry corrupt, dropping", "key", key, "error", err)
		_ = c.store.Delete(ctx, key)
		c.observe(ResultError)
		return nil, false
	}

	c.observe(ResultHit)
	resp.Cached = true
	return &resp, true
}

// PutKey stores resp under key for ttl.
func (c *Cache) PutKey(ctx context.Context, key string, resp *backends.Response, ttl time.Duration) {
	stored := resp.Clone()
	stored.Cached = false

	data, err := json.Marshal(stored)
	if err != nil {
		c.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}

func (c *Cache) observe(result string) {
	if c.observer != nil {
		c.observer.CacheLookup(result)
	}
}
