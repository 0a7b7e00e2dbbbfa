// Package cache is a content-addressed store for remote call results. The
// key is a hash of the fully rendered request, so identical requests reuse
// one entry across rows and across runs. The backing file is a single JSON
// object rewritten wholesale on flush; the checkpoint log, not the cache, is
// the authority for which rows are done, so losing unflushed entries on a
// crash only costs repeated remote calls.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// flushEvery bounds I/O: the file is rewritten after this many stores rather
// than after every one.
const flushEvery = 10

type entry struct {
	Result    string `json:"result"`
	Timestamp int64  `json:"timestamp"`
}

// Cache is safe for concurrent use. A zero TTL means entries never expire.
type Cache struct {
	mu      sync.Mutex
	path    string
	ttl     time.Duration
	entries map[string]entry
	pending int
	hits    int64
	misses  int64
	now     func() time.Time
	logger  *slog.Logger
}

// Fingerprint hashes the fixed system instructions and the rendered request
// body into the cache key.
func Fingerprint(system, prompt string) string {
	h := sha256.New()
	if system != "" {
		h.Write([]byte(system))
		h.Write([]byte("\n"))
	}
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}

// Open loads the cache file at path. Entries older than ttl are dropped
// before becoming visible; if any were dropped the file is re-persisted to
// reclaim space. A missing file yields an empty cache. A corrupt file is
// logged and discarded rather than failing the run.
func Open(path string, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		path:    path,
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
		logger:  logger,
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	var raw map[string]entry
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Warn("cache file corrupt, starting empty", "path", path, "error", err)
		return c, nil
	}

	dropped := 0
	cutoff := c.now().Unix()
	for k, e := range raw {
		if ttl > 0 && cutoff-e.Timestamp > int64(ttl.Seconds()) {
			dropped++
			continue
		}
		c.entries[k] = e
	}
	logger.Info("cache loaded", "path", path, "entries", len(c.entries))
	if dropped > 0 {
		logger.Info("expired cache entries dropped", "count", dropped)
		if err := c.Flush(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Lookup returns the stored result for fingerprint fp. Expired entries are
// evicted on read and reported absent.
func (c *Cache) Lookup(fp string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[fp]
	if !ok {
		c.misses++
		return "", false
	}
	if c.ttl > 0 && c.now().Unix()-e.Timestamp > int64(c.ttl.Seconds()) {
		delete(c.entries, fp)
		c.misses++
		return "", false
	}
	c.hits++
	return e.Result, true
}

// Store records a result and rewrites the backing file every flushEvery
// stores. Racing stores for one fingerprint are last-write-wins; their values
// are expected to be equivalent.
func (c *Cache) Store(fp, result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fp] = entry{Result: result, Timestamp: c.now().Unix()}
	c.pending++
	if c.pending >= flushEvery {
		if err := c.flushLocked(); err != nil {
			c.logger.Error("cache flush failed", "error", err)
		}
	}
}

// Flush persists the in-memory state to the backing file.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

func (c *Cache) flushLocked() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	c.pending = 0
	return nil
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports lookup hit/miss counts for this process.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
