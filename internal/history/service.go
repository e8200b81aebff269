// Package history reads balances and recent transaction history for custodial
// addresses and normalizes raw chain transactions into canonical records.
package history

import (
	"context"
	"time"

	"github.com/gabapcia/solcustody/internal/chain"
)

// Chain is the subset of the cluster client used to read history.
type Chain interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
	GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]chain.SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string, commitment chain.Commitment) (*chain.Transaction, error)
}

// Service exposes the read operations offered to callers.
type Service interface {
	// GetBalance returns the native balance of address in SOL as a decimal string.
	//
	// Parameters:
	//   - ctx: controls cancellation and timeout.
	//   - address: the base58 account address.
	//
	// Returns:
	//   - The balance, or the validation or RPC error unmodified.
	GetBalance(ctx context.Context, address string) (string, error)

	// FetchTransactions returns the most recent transactions of address, newest
	// first. Results are served from the cache while it is fresh.
	//
	// Parameters:
	//   - ctx: controls cancellation and timeout.
	//   - address: the base58 account address.
	//
	// Returns:
	//   - The normalized records, or an error wrapping ErrFetchTransactions.
	//     Partial results are never returned.
	FetchTransactions(ctx context.Context, address string) ([]TransactionRecord, error)
}

// config holds optional settings of the service.
type config struct {
	cache           TransactionCache
	cacheExpiration time.Duration
	limit           int
	concurrency     int
	now             func() time.Time
}

// Option customizes the service.
type Option func(*config)

// WithCache sets the cache used by FetchTransactions. Default: no caching.
func WithCache(c TransactionCache) Option {
	return func(cfg *config) {
		cfg.cache = c
	}
}

// WithCacheExpiration sets how long a cached set stays valid. Default: 5 minutes.
func WithCacheExpiration(d time.Duration) Option {
	return func(cfg *config) {
		cfg.cacheExpiration = d
	}
}

// WithConcurrency bounds how many transactions are resolved at once.
// Non-positive values are ignored. Default: 10.
func WithConcurrency(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.concurrency = n
		}
	}
}

// WithClock replaces the wall clock used for cache validity and the timestamp fallback.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) {
		cfg.now = now
	}
}

// service is the default Service implementation.
type service struct {
	chain Chain
	cfg   config
}

// Ensure compile-time compliance with the Service interface.
var _ Service = (*service)(nil)

// New builds a history service reading from c.
func New(c Chain, opts ...Option) *service {
	cfg := config{
		cache:           nopCache{},
		cacheExpiration: 5 * time.Minute,
		limit:           50,
		concurrency:     10,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &service{
		chain: c,
		cfg:   cfg,
	}
}
