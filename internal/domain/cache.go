// internal/domain/cache.go
//
// Verified-domain record cache.
//
// Context
// -------
// Every tenant-facing request starts with a registry lookup, and bot traffic
// bursts hit the same few hostnames.  The cache keeps recently resolved,
// fully eligible records in a sync.Map and collapses concurrent cold loads
// with singleflight.  Entries carry an absolute freshness TTL: once a record
// is older than RecordTTL it is re-read from the registry, bounding how long
// an eligibility verdict (including revocation) may lag the database.
//
// Misses are not cached; an ineligible domain costs one indexed SELECT per
// request, which is acceptable for 404 traffic.
package domain

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/singleflight"

	"github.com/schalder/ecombuildr-edge/internal/metrics"
)

// Static defaults.  Overridden via the cache section of the config.
const (
	DefaultRecordTTL  = 30 * time.Second
	DefaultMaxEntries = 1024
	IdleTTL           = 30 * time.Minute
	EvictInterval     = time.Minute
)

// Cache lazily loads eligible domain records, stores them in a sync.Map, and
// evicts them on idle TTL or LRU pressure.
type Cache struct {
	db          *sqlx.DB
	sfg         singleflight.Group
	m           sync.Map
	evictTicker *time.Ticker
	recordTTL   time.Duration
	maxEntries  int
	done        chan struct{}
}

type entry struct {
	rec      *CustomDomain
	loadedAt int64 // UnixNano; freshness for eligibility re-check
	lastSeen int64 // UnixNano; idle/LRU eviction
}

// NewCache constructs a Cache and starts the background evictor.
func NewCache(db *sqlx.DB, recordTTL time.Duration, maxEntries int) *Cache {
	if recordTTL <= 0 {
		recordTTL = DefaultRecordTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	c := &Cache{
		db:         db,
		recordTTL:  recordTTL,
		maxEntries: maxEntries,
		done:       make(chan struct{}),
	}
	c.evictTicker = time.NewTicker(EvictInterval)
	go c.evictLoop()
	return c
}

// DB exposes the underlying handle for callers that need registry queries
// outside the cached serving path (admin status reads).
func (c *Cache) DB() *sqlx.DB { return c.db }

// Close stops the evictor.  The cache remains usable but no longer evicts.
func (c *Cache) Close() {
	c.evictTicker.Stop()
	close(c.done)
}

// Resolve returns the eligible record for host, loading it on demand.
// Returns ErrNotFound when no eligible row exists.
func (c *Cache) Resolve(ctx context.Context, host string) (*CustomDomain, error) {
	now := time.Now().UnixNano()
	if v, ok := c.m.Load(host); ok {
		ent := v.(*entry)
		if now-atomic.LoadInt64(&ent.loadedAt) < int64(c.recordTTL) {
			atomic.StoreInt64(&ent.lastSeen, now)
			return ent.rec, nil
		}
		// Stale: fall through to a singleflight reload.
	}

	v, err, _ := c.sfg.Do(host, func() (any, error) {
		// Double-check after the singleflight barrier.
		now := time.Now().UnixNano()
		if v, ok := c.m.Load(host); ok {
			ent := v.(*entry)
			if now-atomic.LoadInt64(&ent.loadedAt) < int64(c.recordTTL) {
				atomic.StoreInt64(&ent.lastSeen, now)
				return ent.rec, nil
			}
		}
		rec, err := Resolve(ctx, c.db, host)
		if err != nil {
			// Drop any stale entry so an ineligible domain stops serving
			// the moment the registry says so.
			if _, had := c.m.LoadAndDelete(host); had {
				metrics.CachedDomains.Dec()
			}
			metrics.DomainLoadErrorsTotal.Inc()
			return nil, err
		}
		if _, had := c.m.Load(host); !had {
			metrics.CachedDomains.Inc()
		}
		c.m.Store(host, &entry{rec: rec, loadedAt: now, lastSeen: now})
		metrics.DomainLoadTotal.Inc()
		return rec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CustomDomain), nil
}
