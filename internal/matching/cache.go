package matching

import (
	"context"
	"sync"
	"time"

	"github.com/martinsuchenak/labeld/internal/model"
)

const DefaultCacheTTL = 30 * time.Minute

// Matcher is implemented by Engine and CachedMatcher.
type Matcher interface {
	MatchOne(ctx context.Context, device *model.Device) (*model.MatchResult, error)
}

type cacheKey struct {
	deviceID string
	ownerID  string
}

type cacheEntry struct {
	result  *model.MatchResult
	expires time.Time
}

// CachedMatcher is a read-through cache in front of MatchOne. Entries expire
// after the TTL and are never invalidated otherwise.
type CachedMatcher struct {
	next Matcher
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
}

// NewCachedMatcher wraps next. A non-positive ttl uses DefaultCacheTTL.
func NewCachedMatcher(next Matcher, ttl time.Duration) *CachedMatcher {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedMatcher{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[cacheKey]cacheEntry),
	}
}

func (c *CachedMatcher) MatchOne(ctx context.Context, device *model.Device) (*model.MatchResult, error) {
	if device == nil || device.ID == "" {
		return c.next.MatchOne(ctx, device)
	}
	key := cacheKey{deviceID: device.ID, ownerID: device.OwnerID}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expires) {
		cp := *e.result
		return &cp, nil
	}

	res, err := c.next.MatchOne(ctx, device)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{result: res, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	// Callers get their own copy; the cached template is shared and read-only.
	cp := *res
	return &cp, nil
}

// Sweep drops expired entries and returns how many were removed.
func (c *CachedMatcher) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of cached entries, expired or not.
func (c *CachedMatcher) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
