package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process cache. Expired entries are dropped on read and by
// a background sweep.
type Memory struct {
	entries *xsync.MapOf[string, memEntry]
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemory creates a Memory cache sweeping every interval. A non-positive
// interval disables the sweep.
func NewMemory(interval time.Duration) *Memory {
	m := &Memory{
		entries: xsync.NewMapOf[string, memEntry](),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if interval > 0 {
		go m.sweep(interval)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	e, ok := m.entries.Load(key)
	if !ok {
		return nil, false
	}
	if !m.now().Before(e.expiresAt) {
		m.entries.Delete(key)
		return nil, false
	}
	return slices.Clone(e.value), true
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.entries.Store(key, memEntry{value: slices.Clone(value), expiresAt: m.now().Add(ttl)})
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	return m.entries.Size()
}

// Purge drops expired entries.
func (m *Memory) Purge(context.Context) (int64, error) {
	now := m.now()
	var n int64
	m.entries.Range(func(key string, e memEntry) bool {
		if !now.Before(e.expiresAt) {
			m.entries.Delete(key)
			n++
		}
		return true
	})
	return n, nil
}

// Close stops the background sweep.
func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

func (m *Memory) sweep(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			_, _ = m.Purge(context.Background())
		}
	}
}
