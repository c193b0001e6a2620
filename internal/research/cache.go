// Package research provides the Librarian's research surface: a source
// interface for retrieved documents and a Redis-backed read-through cache
// with per-level TTLs. The network-research subsystem itself is an external
// collaborator; this package only defines its on/off guard-facing contract
// and caches its outputs.
package research

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Level partitions the cache by data kind, each with its own TTL.
type Level string

const (
	LevelSearch  Level = "search"  // raw search results, 24h
	LevelContent Level = "content" // scraped page content, 7d
	LevelDocs    Level = "docs"    // assembled research documents, 14d
)

// Validate checks if the Level is a valid enum value.
func (l Level) Validate() error {
	switch l {
	case LevelSearch, LevelContent, LevelDocs:
		return nil
	default:
		return fmt.Errorf("unknown cache level: %q", l)
	}
}

// TTL returns the retention period for a level.
func (l Level) TTL() time.Duration {
	switch l {
	case LevelSearch:
		return 24 * time.Hour
	case LevelContent:
		return 7 * 24 * time.Hour
	default:
		return 14 * 24 * time.Hour
	}
}

// levels in stats/clear iteration order.
var levels = []Level{LevelSearch, LevelContent, LevelDocs}

// cacheKey derives the namespaced Redis key for a level and identifier.
// Pattern: specforge:cache:{level}:{sha256(level:identifier)}
func cacheKey(level Level, identifier string) string {
	sum := sha256.Sum256([]byte(string(level) + ":" + identifier))
	return fmt.Sprintf("specforge:cache:%s:%s", level, hex.EncodeToString(sum[:]))
}

// Cache is a multi-level research cache over Redis. Entries expire via Redis
// TTLs; the cache never serves stale data.
type Cache struct {
	rdb *redis.Client
}

// NewCache creates a cache over the given Redis options.
func NewCache(opts *redis.Options) *Cache {
	return &Cache{rdb: redis.NewClient(opts)}
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Get loads a cached value into out. Returns (false, nil) on a miss.
func (c *Cache) Get(ctx context.Context, level Level, identifier string, out any) (bool, error) {
	if err := level.Validate(); err != nil {
		return false, err
	}
	raw, err := c.rdb.Get(ctx, cacheKey(level, identifier)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache read failed: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("malformed cache entry: %w", err)
	}
	return true, nil
}

// Put stores a value under the level's TTL.
func (c *Cache) Put(ctx context.Context, level Level, identifier string, value any) error {
	if err := level.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize cache entry: %w", err)
	}
	if err := c.rdb.Set(ctx, cacheKey(level, identifier), raw, level.TTL()).Err(); err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}
	return nil
}

// LevelStats summarizes one cache level.
type LevelStats struct {
	Level   Level `json:"level"`
	Entries int   `json:"entries"`
}

// Stats counts entries per level.
func (c *Cache) Stats(ctx context.Context) ([]LevelStats, error) {
	var out []LevelStats
	for _, level := range levels {
		keys, err := c.scanLevel(ctx, level)
		if err != nil {
			return nil, err
		}
		out = append(out, LevelStats{Level: level, Entries: len(keys)})
	}
	return out, nil
}

// ClearLevel deletes every entry of one level. Returns the number removed.
func (c *Cache) ClearLevel(ctx context.Context, level Level) (int, error) {
	if err := level.Validate(); err != nil {
		return 0, err
	}
	keys, err := c.scanLevel(ctx, level)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("cache clear failed: %w", err)
	}
	return len(keys), nil
}

// ClearAll deletes every entry of every level.
func (c *Cache) ClearAll(ctx context.Context) (int, error) {
	total := 0
	for _, level := range levels {
		n, err := c.ClearLevel(ctx, level)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (c *Cache) scanLevel(ctx context.Context, level Level) ([]string, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, fmt.Sprintf("specforge:cache:%s:*", level), 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("cache scan failed: %w", err)
	}
	return keys, nil
}
