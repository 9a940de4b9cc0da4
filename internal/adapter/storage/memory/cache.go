package memory

import (
	"context"
	"sync"
	"time"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"

	"github.com/google/uuid"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// ttlMap is a mutex-guarded map whose entries expire lazily on read.
type ttlMap[K comparable, V any] struct {
	mu  sync.Mutex
	m   map[K]entry[V]
	now func() time.Time
}

func newTTLMap[K comparable, V any]() *ttlMap[K, V] {
	return &ttlMap[K, V]{m: make(map[K]entry[V]), now: time.Now}
}

func (t *ttlMap[K, V]) get(k K) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.m[k]
	if !ok || !t.now().Before(e.expiresAt) {
		delete(t.m, k)
		var zero V
		return zero, false
	}
	return e.value, true
}

// setNX stores v only when k is absent or expired.
func (t *ttlMap[K, V]) setNX(k K, v V, ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.m[k]; ok && t.now().Before(e.expiresAt) {
		return
	}
	t.m[k] = entry[V]{value: v, expiresAt: t.now().Add(ttl)}
}

// update lets fn replace the entry for k atomically. fn sees the current value
// and whether it is live; it returns the new value and whether to store it.
// A ttl of zero keeps the current expiry.
func (t *ttlMap[K, V]) update(k K, ttl time.Duration, fn func(cur V, live bool) (V, bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.m[k]
	live := ok && t.now().Before(e.expiresAt)
	next, store := fn(e.value, live)
	if !store {
		return
	}
	expiresAt := e.expiresAt
	if ttl > 0 || !live {
		expiresAt = t.now().Add(ttl)
	}
	t.m[k] = entry[V]{value: next, expiresAt: expiresAt}
}

// IdempotencyCache implements ports.IdempotencyCache when Redis is disabled.
type IdempotencyCache struct {
	m *ttlMap[string, []byte]
}

func NewIdempotencyCache() *IdempotencyCache {
	return &IdempotencyCache{m: newTTLMap[string, []byte]()}
}

func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := c.m.get(key)
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

// Set keeps the first receipt stored under key.
func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.m.setNX(key, append([]byte(nil), value...), ttl)
	return nil
}

// walletEntry is a cached wallet plus the highest version seen for it.
// An invalidated entry keeps its version with present unset.
type walletEntry struct {
	wallet  domain.Wallet
	version int64
	present bool
}

// WalletCache implements ports.WalletCache when Redis is disabled.
type WalletCache struct {
	m *ttlMap[uuid.UUID, walletEntry]
}

func NewWalletCache() *WalletCache {
	return &WalletCache{m: newTTLMap[uuid.UUID, walletEntry]()}
}

func (c *WalletCache) Get(ctx context.Context, token uuid.UUID) (*domain.Wallet, error) {
	e, ok := c.m.get(token)
	if !ok || !e.present {
		return nil, nil
	}
	w := e.wallet
	return &w, nil
}

// Set stores w unless a newer version of the wallet is already known.
func (c *WalletCache) Set(ctx context.Context, w *domain.Wallet, ttl time.Duration) error {
	c.m.update(w.Token, ttl, func(cur walletEntry, live bool) (walletEntry, bool) {
		if live && cur.version > w.Version {
			return cur, false
		}
		return walletEntry{wallet: *w, version: w.Version, present: true}, true
	})
	return nil
}

func (c *WalletCache) Invalidate(ctx context.Context, token uuid.UUID) error {
	c.m.update(token, 0, func(cur walletEntry, live bool) (walletEntry, bool) {
		if !live {
			return cur, false
		}
		cur.present = false
		cur.wallet = domain.Wallet{}
		return cur, true
	})
	return nil
}

// RateLimiter implements ports.RateLimiter with fixed windows, like the Redis store.
type RateLimiter struct {
	mu       sync.Mutex
	counters map[windowKey]int64
	now      func() time.Time
}

type windowKey struct {
	key  string
	secs int64
	id   int64
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{counters: make(map[windowKey]int64), now: time.Now}
}

func (l *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*ports.RateLimitResult, error) {
	secs := int64(window.Seconds())
	if secs < 1 {
		secs = 1
	}
	windowID := l.now().Unix() / secs

	l.mu.Lock()
	defer l.mu.Unlock()

	// Drop counters from earlier windows of the same size.
	for k := range l.counters {
		if k.secs == secs && k.id < windowID {
			delete(l.counters, k)
		}
	}

	k := windowKey{key: key, secs: secs, id: windowID}
	l.counters[k]++
	count := l.counters[k]

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &ports.RateLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   (windowID + 1) * secs,
	}, nil
}
