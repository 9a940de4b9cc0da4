package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"wallet-service/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Each wallet is a hash with a "version" field and a JSON "data" field.
// Invalidation removes only "data", so the version floor survives it.
const (
	fieldVersion = "version"
	fieldData    = "data"
)

// setIfNotOlder writes the wallet unless the stored version is newer.
// KEYS[1] = hash key; ARGV = version, data, ttl in milliseconds.
var setIfNotOlder = goredis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// WalletCache implements ports.WalletCache keyed by wallet token.
type WalletCache struct {
	client *goredis.Client
}

// NewWalletCache creates a Redis-backed wallet status cache.
func NewWalletCache(client *goredis.Client) *WalletCache {
	return &WalletCache{client: client}
}

// Get returns the cached wallet, or nil, nil on a miss.
func (c *WalletCache) Get(ctx context.Context, token uuid.UUID) (*domain.Wallet, error) {
	key := prefixWallet + token.String()
	raw, err := c.client.HGet(ctx, key, fieldData).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis wallet get: %w", err)
	}

	var w domain.Wallet
	if err := json.Unmarshal(raw, &w); err != nil {
		// Undecodable entries are dropped and treated as a miss.
		c.client.HDel(ctx, key, fieldData)
		return nil, nil
	}
	return &w, nil
}

// Set caches w for ttl unless a newer version of it is already cached.
func (c *WalletCache) Set(ctx context.Context, w *domain.Wallet, ttl time.Duration) error {
	raw, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode wallet: %w", err)
	}
	err = setIfNotOlder.Run(ctx, c.client,
		[]string{prefixWallet + w.Token.String()},
		strconv.FormatInt(w.Version, 10), raw, ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis wallet set: %w", err)
	}
	return nil
}

// Invalidate drops the cached wallet for token and keeps its version.
func (c *WalletCache) Invalidate(ctx context.Context, token uuid.UUID) error {
	if err := c.client.HDel(ctx, prefixWallet+token.String(), fieldData).Err(); err != nil {
		return fmt.Errorf("redis wallet invalidate: %w", err)
	}
	return nil
}
