package marketdata

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Alias1177/Aura/models"
)

// Snapshot is the result of one successful basket fetch
type Snapshot struct {
	Quotes     map[string]models.PriceQuote `json:"quotes"`
	CapturedAt time.Time                    `json:"captured_at"`
}

// Age returns how old the snapshot is at now
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.CapturedAt)
}

// Cache holds the single most recent snapshot.
// Put replaces the whole snapshot; readers never see a partial one.
type Cache interface {
	// Get returns the snapshot only while it is younger than the cache window
	Get(ctx context.Context, now time.Time) (*Snapshot, bool)
	// Latest returns the last stored snapshot regardless of its age
	Latest(ctx context.Context) (*Snapshot, bool)
	Put(ctx context.Context, snap *Snapshot) error
}

// MemoryCache is an in-process Cache
type MemoryCache struct {
	ttl  time.Duration
	snap atomic.Pointer[Snapshot]
}

// NewMemoryCache creates an in-process cache with the given freshness window
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl}
}

func (c *MemoryCache) Get(_ context.Context, now time.Time) (*Snapshot, bool) {
	snap := c.snap.Load()
	if snap == nil || snap.Age(now) >= c.ttl {
		return nil, false
	}
	return snap, true
}

func (c *MemoryCache) Latest(_ context.Context) (*Snapshot, bool) {
	snap := c.snap.Load()
	return snap, snap != nil
}

func (c *MemoryCache) Put(_ context.Context, snap *Snapshot) error {
	c.snap.Store(snap)
	return nil
}
