// Package cache provides the on-disk paginated response cache used to shield
// read paths from upstream failures. The store favors availability over
// freshness: expired entries are still served as a degraded fallback when the
// upstream is down.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultTTL marks how long a written store counts as fresh.
	DefaultTTL = 24 * time.Hour
	// DefaultFlushInterval is the coalescing window for disk writes.
	DefaultFlushInterval = 5 * time.Second
)

// Status tags how a response relates to the cache.
type Status string

const (
	StatusHit     Status = "hit"
	StatusMiss    Status = "miss"
	StatusExpired Status = "expired"
)

// Info is attached to responses served through the cache read policy.
type Info struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// store is the persisted shape: one shared timestamp, an id-indexed entity
// map, and a page-key-indexed page map.
type store struct {
	Timestamp int64                      `json:"timestamp"`
	Entities  map[string]json.RawMessage `json:"entities"`
	Pages     map[string]json.RawMessage `json:"pages"`
}

func emptyStore() store {
	return store{
		Entities: make(map[string]json.RawMessage),
		Pages:    make(map[string]json.RawMessage),
	}
}

// PagedCache is a TTL-keyed page/entity cache persisted as a single JSON
// file. Writes mark the store dirty; a background flusher coalesces bursts
// into one disk write per interval. Construct one per process and inject it
// into the adapters that need it.
type PagedCache struct {
	path string
	ttl  time.Duration

	mu    sync.Mutex
	data  store
	dirty bool

	logger zerolog.Logger
}

// New loads the cache from path. A missing, unreadable, or unparsable file
// degrades to an empty store rather than failing startup.
func New(path string, ttl time.Duration, logger zerolog.Logger) *PagedCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &PagedCache{
		path:   path,
		ttl:    ttl,
		data:   emptyStore(),
		logger: logger,
	}
	c.load()
	return c
}

func (c *PagedCache) load() {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn().Err(err).Str("path", c.path).Msg("cache load failed, starting empty")
		}
		return
	}
	var s store
	if err := json.Unmarshal(raw, &s); err != nil {
		c.logger.Warn().Err(err).Str("path", c.path).Msg("cache parse failed, starting empty")
		return
	}
	if s.Entities == nil {
		s.Entities = make(map[string]json.RawMessage)
	}
	if s.Pages == nil {
		s.Pages = make(map[string]json.RawMessage)
	}
	c.data = s
	c.logger.Info().
		Int("pages", len(s.Pages)).
		Int("entities", len(s.Entities)).
		Str("path", c.path).
		Msg("cache loaded")
}

// PageKey builds the persisted key for a page request.
func PageKey(page, pageSize int) string {
	return fmt.Sprintf("%d-%d", page, pageSize)
}

// Valid reports whether the store has ever been written and is within TTL.
func (c *PagedCache) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validLocked()
}

func (c *PagedCache) validLocked() bool {
	if c.data.Timestamp <= 0 {
		return false
	}
	age := time.Since(time.UnixMilli(c.data.Timestamp))
	return age < c.ttl
}

// Page returns the cached page response for the exact (page, pageSize) pair.
// It does not synthesize pages from overlapping cached pages.
func (c *PagedCache) Page(page, pageSize int) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data.Pages[PageKey(page, pageSize)]
	return raw, ok
}

// Entity returns the cached record indexed under id.
func (c *PagedCache) Entity(id string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data.Entities[id]
	return raw, ok
}

// SetPage stores a page response, refreshes the shared timestamp, and
// indexes every record carrying an "id" found in the page's item lists so a
// later single-entity fetch can be served without an upstream call.
func (c *PagedCache) SetPage(page, pageSize int, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal page: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.Pages[PageKey(page, pageSize)] = raw
	c.indexEntitiesLocked(raw)
	c.data.Timestamp = time.Now().UnixMilli()
	c.dirty = true
	return nil
}

// SetEntity stores a single record and refreshes the shared timestamp.
func (c *PagedCache) SetEntity(id string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal entity: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.Entities[id] = raw
	c.data.Timestamp = time.Now().UnixMilli()
	c.dirty = true
	return nil
}

// indexEntitiesLocked walks the page payload and indexes list items by id.
// Upstream list responses have the shape {"data": {"<resource>": [...]}} or
// {"data": [...]}; both are handled.
func (c *PagedCache) indexEntitiesLocked(raw json.RawMessage) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	data, ok := payload["data"]
	if !ok {
		return
	}

	var lists []json.RawMessage
	var direct []json.RawMessage
	if err := json.Unmarshal(data, &direct); err == nil {
		lists = append(lists, data)
	} else {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(data, &nested); err != nil {
			return
		}
		for _, v := range nested {
			lists = append(lists, v)
		}
	}

	for _, list := range lists {
		var items []json.RawMessage
		if err := json.Unmarshal(list, &items); err != nil {
			continue
		}
		for _, item := range items {
			var probe struct {
				ID json.RawMessage `json:"id"`
			}
			if err := json.Unmarshal(item, &probe); err != nil || len(probe.ID) == 0 {
				continue
			}
			var id string
			if err := json.Unmarshal(probe.ID, &id); err != nil {
				// Numeric ids arrive unquoted.
				id = string(probe.ID)
			}
			if id != "" {
				c.data.Entities[id] = item
			}
		}
	}
}

// Clear resets the store to empty and persists the empty state immediately.
func (c *PagedCache) Clear() error {
	c.mu.Lock()
	c.data = emptyStore()
	c.dirty = false
	c.mu.Unlock()
	return c.persist()
}

// Flush writes the store to disk if there are unpersisted changes. Exposed
// so shutdown paths and tests get deterministic persistence.
func (c *PagedCache) Flush() error {
	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	c.dirty = false
	c.mu.Unlock()

	if err := c.persist(); err != nil {
		// Keep the data marked unpersisted so the next tick retries the write.
		c.mu.Lock()
		c.dirty = true
		c.mu.Unlock()
		return err
	}
	return nil
}

// persist writes the current store to disk via a rename for atomicity.
func (c *PagedCache) persist() error {
	c.mu.Lock()
	raw, err := json.Marshal(c.data)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("rename cache: %w", err)
	}
	return nil
}

// StartFlusher runs a background goroutine that persists dirty state every
// interval. It stops (with a final flush) when the context is cancelled.
func (c *PagedCache) StartFlusher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				if err := c.Flush(); err != nil {
					c.logger.Error().Err(err).Msg("final cache flush failed")
				}
				return
			case <-ticker.C:
				if err := c.Flush(); err != nil {
					c.logger.Error().Err(err).Msg("cache flush failed")
				}
			}
		}
	}()
}

// Stats describes the store for the cache CLI and health reporting.
type Stats struct {
	Pages     int       `json:"pages"`
	Entities  int       `json:"entities"`
	Timestamp time.Time `json:"timestamp"`
	Valid     bool      `json:"valid"`
}

// Snapshot returns current store statistics.
func (c *PagedCache) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Pages:    len(c.data.Pages),
		Entities: len(c.data.Entities),
		Valid:    c.validLocked(),
	}
	if c.data.Timestamp > 0 {
		s.Timestamp = time.UnixMilli(c.data.Timestamp)
	}
	return s
}
