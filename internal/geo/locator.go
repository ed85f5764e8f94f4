package geo

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/yinsee/internal/models"
	"github.com/example/yinsee/internal/observability"
)

const (
	DefaultCacheTTL  = 5 * time.Minute
	DefaultCacheSize = 4096
	DefaultTimeout   = 10 * time.Second

	// FallbackNotice is shown when no position could be obtained.
	FallbackNotice = "Location off — showing all areas"
)

var ErrUnavailable = errors.New("location unavailable")

// Source resolves a position for a client hint (usually its IP address).
type Source interface {
	Locate(ctx context.Context, hint string) (Coord, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, hint string) (Coord, error)

func (f SourceFunc) Locate(ctx context.Context, hint string) (Coord, error) { return f(ctx, hint) }

// Cache is a small in-memory position cache keyed by hint. It holds at most
// size entries; Set drops expired entries first, then the oldest.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
	size  int
	now   func() time.Time
}

type cacheEntry struct {
	v  Coord
	ts time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return NewCacheSize(ttl, DefaultCacheSize)
}

func NewCacheSize(ttl time.Duration, size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{store: make(map[string]cacheEntry), ttl: ttl, size: size, now: time.Now}
}

// Get returns cached value and true if present and not expired.
func (c *Cache) Get(hint string) (Coord, bool) {
	c.mu.RLock()
	e, ok := c.store[hint]
	c.mu.RUnlock()
	if !ok {
		return Coord{}, false
	}
	if c.now().Sub(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, hint)
		c.mu.Unlock()
		return Coord{}, false
	}
	return e.v, true
}

func (c *Cache) Set(hint string, v Coord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if _, ok := c.store[hint]; !ok && len(c.store) >= c.size {
		c.evict(now)
	}
	c.store[hint] = cacheEntry{v: v, ts: now}
}

// Len reports the number of cached hints, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// evict frees at least one slot. Callers hold c.mu.
func (c *Cache) evict(now time.Time) {
	var oldest string
	var oldestTS time.Time
	for k, e := range c.store {
		if now.Sub(e.ts) > c.ttl {
			delete(c.store, k)
			continue
		}
		if oldest == "" || e.ts.Before(oldestTS) {
			oldest, oldestTS = k, e.ts
		}
	}
	if len(c.store) >= c.size && oldest != "" {
		delete(c.store, oldest)
	}
}

// Resolution is what the browse views need from a location lookup.
type Resolution struct {
	Located        bool        `json:"located"`
	Area           models.Area `json:"area,omitempty"`
	Position       *Coord      `json:"position,omitempty"`
	DistanceMeters float64     `json:"distanceMeters,omitempty"`
	Notice         string      `json:"notice,omitempty"`
}

// Resolve maps a known position onto its nearest area.
func Resolve(c Coord) Resolution {
	area := NearestArea(c.Lat, c.Lon)
	ref, _ := PointOf(area)
	return Resolution{
		Located:        true,
		Area:           area,
		Position:       &c,
		DistanceMeters: Haversine(c.Lat, c.Lon, ref.Lat, ref.Lon),
	}
}

// Fallback is the resolution used when the position is unknown.
func Fallback() Resolution { return Resolution{Notice: FallbackNotice} }

// CachedLocator wraps a Source with a cache and a bounded wait.
type CachedLocator struct {
	source  Source
	cache   *Cache
	timeout time.Duration
	logger  *slog.Logger
}

func NewCachedLocator(src Source, ttl, timeout time.Duration, logger *slog.Logger) *CachedLocator {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedLocator{source: src, cache: NewCache(ttl), timeout: timeout, logger: logger}
}

// Locate returns a cached position or asks the source, waiting at most the
// configured timeout. A result arriving after the deadline is dropped.
func (l *CachedLocator) Locate(ctx context.Context, hint string) (Coord, error) {
	if c, ok := l.cache.Get(hint); ok {
		observability.GeoLookups.WithLabelValues("cache_hit").Inc()
		return c, nil
	}
	if l.source == nil {
		observability.GeoLookups.WithLabelValues("disabled").Inc()
		return Coord{}, ErrUnavailable
	}

	type result struct {
		c   Coord
		err error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := l.source.Locate(context.WithoutCancel(ctx), hint)
		ch <- result{c, err}
	}()

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		if r.err != nil {
			observability.GeoLookups.WithLabelValues("error").Inc()
			l.logger.Debug("locate failed", "hint", hint, "error", r.err)
			return Coord{}, errors.Join(ErrUnavailable, r.err)
		}
		if !ValidCoord(r.c.Lat, r.c.Lon) {
			observability.GeoLookups.WithLabelValues("error").Inc()
			return Coord{}, ErrUnavailable
		}
		observability.GeoLookups.WithLabelValues("ok").Inc()
		l.cache.Set(hint, r.c)
		return r.c, nil
	case <-timer.C:
		observability.GeoLookups.WithLabelValues("timeout").Inc()
		return Coord{}, ErrUnavailable
	case <-ctx.Done():
		return Coord{}, errors.Join(ErrUnavailable, ctx.Err())
	}
}

// Resolve locates hint and maps it to an area, or returns the fallback.
func (l *CachedLocator) Resolve(ctx context.Context, hint string) Resolution {
	c, err := l.Locate(ctx, hint)
	if err != nil {
		return Fallback()
	}
	return Resolve(c)
}
