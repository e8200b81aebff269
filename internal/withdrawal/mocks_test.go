package withdrawal

import (
	"context"
	"crypto/ed25519"
	"sync"
	"testing"

	"github.com/gabapcia/solcustody/internal/chain"
	"github.com/gabapcia/solcustody/internal/pkg/sol"
	"github.com/gabapcia/solcustody/internal/walletkey"

	"github.com/mr-tron/base58"
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

func (m *ChainMock) GetLatestBlockhash(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *ChainMock) SendTransaction(ctx context.Context, encoded string) (string, error) {
	args := m.Called(ctx, encoded)
	return args.String(0), args.Error(1)
}

func (m *ChainMock) ConfirmTransaction(ctx context.Context, signature string, commitment chain.Commitment) error {
	return m.Called(ctx, signature, commitment).Error(0)
}

func (m *ChainMock) GetTransaction(ctx context.Context, signature string, commitment chain.Commitment) (*chain.Transaction, error) {
	args := m.Called(ctx, signature, commitment)
	tx, _ := args.Get(0).(*chain.Transaction)
	return tx, args.Error(1)
}

func (m *ChainMock) GetTokenAccountBalance(ctx context.Context, account string) (chain.TokenAmount, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(chain.TokenAmount), args.Error(1)
}

func (m *ChainMock) AccountExists(ctx context.Context, address string) (bool, error) {
	args := m.Called(ctx, address)
	return args.Bool(0), args.Error(1)
}

// KeyStoreMock is a testify mock of KeyStore.
type KeyStoreMock struct {
	mock.Mock
}

func NewKeyStoreMock(t *testing.T) *KeyStoreMock {
	m := new(KeyStoreMock)
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *KeyStoreMock) Find(ctx context.Context, walletID, chain string) (string, error) {
	args := m.Called(ctx, walletID, chain)
	return args.String(0), args.Error(1)
}

func (m *KeyStoreMock) Decrypt(ctx context.Context, blob string) (walletkey.Secret, error) {
	args := m.Called(ctx, blob)
	return args.Get(0).(walletkey.Secret), args.Error(1)
}

// expectKey makes walletID resolve to key.
func (m *KeyStoreMock) expectKey(walletID string, raw []byte) {
	blob := "blob-" + walletID
	m.On("Find", mock.Anything, walletID, chain.ID).Return(blob, nil).Once()
	m.On("Decrypt", mock.Anything, blob).Return(walletkey.Secret{PrivateKey: base58.Encode(raw)}, nil).Once()
}

// memoryLedger keeps the last update of every id.
type memoryLedger struct {
	mu      sync.Mutex
	updates map[string]LedgerUpdate
	err     error
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{updates: make(map[string]LedgerUpdate)}
}

func (l *memoryLedger) Update(_ context.Context, id string, update LedgerUpdate) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		err := l.err
		l.err = nil
		return err
	}

	l.updates[id] = update
	return nil
}

func (l *memoryLedger) get(id string) (LedgerUpdate, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.updates[id]
	return u, ok
}

type testWallet struct {
	key     ed25519.PrivateKey
	address sol.PublicKey
}

func newTestWallet(t *testing.T) testWallet {
	t.Helper()

	pub, key, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	return testWallet{key: key, address: sol.PublicKeyFromEd25519(pub)}
}

func newBlockhash(t *testing.T) string {
	return newTestWallet(t).address.String()
}
