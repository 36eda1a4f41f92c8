// Package cache provides a small time-bounded memoization store.
//
// A Cache is owned by a single monitor instance and is not safe for
// concurrent use.
package cache

import (
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrInvalidTTL is returned when a non-positive TTL is configured.
var ErrInvalidTTL = errors.New("cache ttl must be positive")

// Entry is a cached value and the instant at which it stops being valid.
type Entry struct {
	Value     any
	ExpiresAt time.Time
}

// Live reports whether the entry is still valid at now.
// An entry is valid strictly before ExpiresAt.
func (e Entry) Live(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Hooks receive cache hit and miss notifications. Either field may be nil.
type Hooks struct {
	OnHit  func(key string)
	OnMiss func(key string)
}

// Cache maps keys to values that expire after a TTL.
type Cache struct {
	clock   clockwork.Clock
	entries map[string]Entry
	hooks   Hooks
}

// New returns an empty cache. A nil clock uses the real clock.
func New(clock clockwork.Clock) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{clock: clock, entries: make(map[string]Entry)}
}

// SetHooks installs hit/miss callbacks.
func (c *Cache) SetHooks(h Hooks) { c.hooks = h }

// ValidateTTL returns ErrInvalidTTL for non-positive durations.
func ValidateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}

// GetOrCompute returns the live value stored under key without calling
// compute. When there is no live entry, compute runs and its result is stored
// until now+ttl.
func (c *Cache) GetOrCompute(key string, compute func() any, ttl time.Duration) any {
	now := c.clock.Now()
	if e, ok := c.entries[key]; ok && e.Live(now) {
		if c.hooks.OnHit != nil {
			c.hooks.OnHit(key)
		}
		return e.Value
	}
	if c.hooks.OnMiss != nil {
		c.hooks.OnMiss(key)
	}
	v := compute()
	c.entries[key] = Entry{Value: v, ExpiresAt: now.Add(ttl)}
	return v
}

// Lookup returns the live entry for key, if any.
func (c *Cache) Lookup(key string) (Entry, bool) {
	e, ok := c.entries[key]
	if !ok || !e.Live(c.clock.Now()) {
		return Entry{}, false
	}
	return e, true
}

// Invalidate drops the entry for key so the next access recomputes.
func (c *Cache) Invalidate(key string) { delete(c.entries, key) }

// InvalidateAll drops every entry.
func (c *Cache) InvalidateAll() { clear(c.entries) }

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int { return len(c.entries) }

// Fetch is the typed form of GetOrCompute.
func Fetch[T any](c *Cache, key string, compute func() T, ttl time.Duration) T {
	v := c.GetOrCompute(key, func() any { return compute() }, ttl)
	return v.(T)
}
