package cache

import (
	"os"
	"sort"
	"time"
)

// Info summarizes the backing file for the management CLI. Open the cache
// with a zero TTL first so expired entries are still visible to count.
type Info struct {
	Total    int
	Valid    int
	Expired  int
	Oldest   time.Time
	Newest   time.Time
	FileSize int64
}

// Detail is one entry listing for `cache show`.
type Detail struct {
	Fingerprint string
	StoredAt    time.Time
	Preview     string
}

const previewLen = 100

// Info counts entries against ttl without evicting anything.
func (c *Cache) Info(ttl time.Duration) Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	info := Info{Total: len(c.entries)}
	cutoff := c.now().Unix()
	for _, e := range c.entries {
		if ttl > 0 && cutoff-e.Timestamp > int64(ttl.Seconds()) {
			info.Expired++
		} else {
			info.Valid++
		}
		t := time.Unix(e.Timestamp, 0)
		if info.Oldest.IsZero() || t.Before(info.Oldest) {
			info.Oldest = t
		}
		if t.After(info.Newest) {
			info.Newest = t
		}
	}
	if st, err := os.Stat(c.path); err == nil {
		info.FileSize = st.Size()
	}
	return info
}

// RemoveExpired deletes entries older than ttl and persists the result.
func (c *Cache) RemoveExpired(ttl time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Unix()
	removed := 0
	for k, e := range c.entries {
		if ttl > 0 && cutoff-e.Timestamp > int64(ttl.Seconds()) {
			delete(c.entries, k)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, c.flushLocked()
}

// Clear deletes every entry and persists the empty map.
func (c *Cache) Clear() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := len(c.entries)
	c.entries = make(map[string]entry)
	return removed, c.flushLocked()
}

// Details lists up to limit entries, newest first.
func (c *Cache) Details(limit int) []Detail {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Detail, 0, len(c.entries))
	for k, e := range c.entries {
		preview := e.Result
		if len(preview) > previewLen {
			preview = preview[:previewLen] + "..."
		}
		out = append(out, Detail{Fingerprint: k, StoredAt: time.Unix(e.Timestamp, 0), Preview: preview})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StoredAt.After(out[j].StoredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
