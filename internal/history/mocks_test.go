package history

import (
	"context"
	"sync"
	"testing"

	"github.com/gabapcia/solcustody/internal/chain"

	"github.com/stretchr/testify/mock"
)

// ChainMock is a testify mock of Chain.
type ChainMock struct {
	mock.Mock
}

func NewChainMock(t *testing.T) *ChainMock {
	m := new(ChainMock)
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *ChainMock) GetBalance(ctx context.Context, address string) (uint64, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *ChainMock) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]chain.SignatureInfo, error) {
	args := m.Called(ctx, address, limit)
	infos, _ := args.Get(0).([]chain.SignatureInfo)
	return infos, args.Error(1)
}

func (m *ChainMock) GetTransaction(ctx context.Context, signature string, commitment chain.Commitment) (*chain.Transaction, error) {
	args := m.Called(ctx, signature, commitment)
	tx, _ := args.Get(0).(*chain.Transaction)
	return tx, args.Error(1)
}

// memoryCache is an in-memory TransactionCache.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]CachedTransactionSet
	stores  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]CachedTransactionSet)}
}

func (c *memoryCache) Load(_ context.Context, address string) (*CachedTransactionSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.entries[address]
	if !ok {
		return nil, nil
	}
	return &set, nil
}

func (c *memoryCache) Store(_ context.Context, address string, set CachedTransactionSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[address] = set
	c.stores++
	return nil
}
