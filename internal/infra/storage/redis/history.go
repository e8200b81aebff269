package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gabapcia/solcustody/internal/history"

	"github.com/redis/go-redis/v9"
)

// historyCacheKey returns the key holding the cached history of address.
//
// Format: "solcustody:history:{address}"
func historyCacheKey(address string) string {
	return fmt.Sprintf("%s:history:%s", keyPrefix, address)
}

// Load implements history.TransactionCache. Freshness is decided by the
// caller from CachedAt, so entries carry no TTL.
func (c *client) Load(ctx context.Context, address string) (*history.CachedTransactionSet, error) {
	raw, err := c.conn.Get(ctx, historyCacheKey(address)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var set history.CachedTransactionSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("decode cached history of %s: %w", address, err)
	}

	return &set, nil
}

// Store implements history.TransactionCache.
func (c *client) Store(ctx context.Context, address string, set history.CachedTransactionSet) error {
	raw, err := json.Marshal(set)
	if err != nil {
		return err
	}

	return c.conn.Set(ctx, historyCacheKey(address), raw, 0).Err()
}

// Ensure the client satisfies the TransactionCache interface at compile time.
var _ history.TransactionCache = new(client)
