// Package cache provides the read-through cache used by the external API
// clients. Every implementation is best effort: a failed read is a miss and a
// failed write is logged and dropped.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Cache stores opaque values with a time to live.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Close() error
}

// Purger is implemented by persistent caches that can drop expired rows.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// Drivers accepted by Open.
const (
	DriverNone     = "none"
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the cache for driver. An empty driver means no caching.
func Open(ctx context.Context, driver, dsn string) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverNone, "noop":
		return Noop{}, nil
	case DriverMemory:
		return NewMemory(time.Minute), nil
	case DriverSQLite:
		if dsn == "" {
			dsn = "commonplace-cache.db"
		}
		return NewSQLite(ctx, dsn)
	case DriverPostgres:
		if dsn == "" {
			return nil, eris.New("cache: postgres driver needs a dsn")
		}
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("cache: unknown driver %q", driver)
	}
}

// Key builds a namespaced cache key from its parts. The parts are hashed so
// keys have a fixed length whatever the input.
func Key(namespace string, parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return namespace + ":" + hex.EncodeToString(h[:])
}

// GetJSON reads and decodes a cached value. Undecodable entries are misses.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool) {
	var v T
	if c == nil {
		return v, false
	}
	raw, ok := c.Get(ctx, key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		zap.L().Debug("cache: discard undecodable entry", zap.String("key", shortKey(key)), zap.Error(err))
		return v, false
	}
	return v, true
}

// SetJSON encodes and stores v.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) {
	if c == nil || ttl <= 0 {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		zap.L().Warn("cache: encode value", zap.String("key", shortKey(key)), zap.Error(err))
		return
	}
	c.Set(ctx, key, raw, ttl)
}

func shortKey(key string) string {
	if len(key) > 24 {
		return key[:24]
	}
	return key
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool) { return nil, false }

func (Noop) Set(context.Context, string, []byte, time.Duration) {}

func (Noop) Close() error { return nil }
