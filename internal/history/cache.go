package history

import (
	"context"
	"time"
)

// CachedTransactionSet is a fetched history together with the time it was fetched.
type CachedTransactionSet struct {
	Transactions []TransactionRecord `json:"transactions"`
	CachedAt     time.Time           `json:"cachedAt"`
}

// validAt reports whether the set is still fresh at now.
func (c CachedTransactionSet) validAt(now time.Time, expiration time.Duration) bool {
	return now.Sub(c.CachedAt) < expiration
}

// TransactionCache stores the last fetched history per address. Entries are
// overwritten on refresh and never deleted explicitly.
type TransactionCache interface {
	// Load returns the cached set for address, or nil when none exists.
	Load(ctx context.Context, address string) (*CachedTransactionSet, error)

	// Store replaces the cached set for address.
	Store(ctx context.Context, address string, set CachedTransactionSet) error
}

// nopCache never holds anything.
type nopCache struct{}

var _ TransactionCache = nopCache{}

func (nopCache) Load(context.Context, string) (*CachedTransactionSet, error) { return nil, nil }

func (nopCache) Store(context.Context, string, CachedTransactionSet) error { return nil }
