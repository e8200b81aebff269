package depositwatch

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/gabapcia/solcustody/internal/chain"
	"github.com/gabapcia/solcustody/internal/pkg/sol"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
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

func (m *ChainMock) SubscribeLogs(ctx context.Context, address string) (*chain.LogSubscription, error) {
	args := m.Called(ctx, address)
	sub, _ := args.Get(0).(*chain.LogSubscription)
	return sub, args.Error(1)
}

func (m *ChainMock) SubscribeTokenAccounts(ctx context.Context, owner, mint string) (*chain.AccountSubscription, error) {
	args := m.Called(ctx, owner, mint)
	sub, _ := args.Get(0).(*chain.AccountSubscription)
	return sub, args.Error(1)
}

func (m *ChainMock) Unsubscribe(ctx context.Context, handle chain.SubscriptionHandle) error {
	return m.Called(ctx, handle).Error(0)
}

func (m *ChainMock) GetTransaction(ctx context.Context, signature string, commitment chain.Commitment) (*chain.Transaction, error) {
	args := m.Called(ctx, signature, commitment)
	tx, _ := args.Get(0).(*chain.Transaction)
	return tx, args.Error(1)
}

func (m *ChainMock) GetBlock(ctx context.Context, slot uint64) (*chain.Block, error) {
	args := m.Called(ctx, slot)
	block, _ := args.Get(0).(*chain.Block)
	return block, args.Error(1)
}

// BroadcasterMock is a testify mock of Broadcaster.
type BroadcasterMock struct {
	mock.Mock
}

func NewBroadcasterMock(t *testing.T) *BroadcasterMock {
	m := new(BroadcasterMock)
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *BroadcasterMock) StoreAndBroadcastTransaction(ctx context.Context, record DepositRecord, assetID string) error {
	return m.Called(ctx, record, assetID).Error(0)
}

// MonitorGuardMock is a testify mock of MonitorGuard.
type MonitorGuardMock struct {
	mock.Mock
}

func NewMonitorGuardMock(t *testing.T) *MonitorGuardMock {
	m := new(MonitorGuardMock)
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MonitorGuardMock) Claim(ctx context.Context, key, owner string) (bool, error) {
	args := m.Called(ctx, key, owner)
	return args.Bool(0), args.Error(1)
}

func (m *MonitorGuardMock) Refresh(ctx context.Context, key, owner string) (bool, error) {
	args := m.Called(ctx, key, owner)
	return args.Bool(0), args.Error(1)
}

func (m *MonitorGuardMock) Release(ctx context.Context, key, owner string) error {
	return m.Called(ctx, key, owner).Error(0)
}

func newAddress(t *testing.T) string {
	t.Helper()

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	return sol.PublicKeyFromEd25519(pub).String()
}
