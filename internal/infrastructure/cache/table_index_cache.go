package cache

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MonthIndex maps a publication date (YYYY-MM-DD) to the id of the table published that day
type MonthIndex map[string]string

// Entry is a cached month index together with the time it was built
type Entry struct {
	Index   MonthIndex
	BuiltAt time.Time
}

// TableIndexCache keeps the table index of each archive month in memory.
// A past month's index is final and never expires. The current month still
// grows, so its entry lives for the configured TTL and never past the month's end.
type TableIndexCache struct {
	items *gocache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewTableIndexCache creates a new table index cache. now decides which month
// is current and stamps every entry; nil means time.Now.
func NewTableIndexCache(ttl time.Duration, now func() time.Time) *TableIndexCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &TableIndexCache{
		items: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
		now:   now,
	}
}

// monthKey creates a cache key from year and month
func monthKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// Get returns the cached entry for a month if available and not expired
func (c *TableIndexCache) Get(year int, month time.Month) (Entry, bool) {
	v, ok := c.items.Get(monthKey(year, month))
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}

// Put stores the index for a month, stamped with the current time
func (c *TableIndexCache) Put(year int, month time.Month, index MonthIndex) Entry {
	now := c.now().UTC()
	entry := Entry{Index: index, BuiltAt: now}
	c.items.Set(monthKey(year, month), entry, c.expiration(now, year, month))
	return entry
}

// expiration returns NoExpiration for months that are already over at now
func (c *TableIndexCache) expiration(now time.Time, year int, month time.Month) time.Duration {
	now = now.UTC()
	if year < now.Year() || (year == now.Year() && month < now.Month()) {
		return gocache.NoExpiration
	}

	ttl := c.ttl
	if year == now.Year() && month == now.Month() {
		nextMonth := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
		if left := nextMonth.Sub(now); left < ttl {
			ttl = left
		}
	}
	return ttl
}

// Size returns the number of months in the cache, expired ones included until cleanup
func (c *TableIndexCache) Size() int {
	return c.items.ItemCount()
}

// Clear removes all months from the cache
func (c *TableIndexCache) Clear() {
	c.items.Flush()
}
