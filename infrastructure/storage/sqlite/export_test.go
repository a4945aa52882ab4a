package sqlite

import "time"

// SetClock replaces the cache's time source.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}
