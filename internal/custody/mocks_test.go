package custody

import (
	"context"
	"testing"

	"github.com/gabapcia/solcustody/internal/depositwatch"
	"github.com/gabapcia/solcustody/internal/history"
	"github.com/gabapcia/solcustody/internal/progress"
	"github.com/gabapcia/solcustody/internal/withdrawal"

	"github.com/stretchr/testify/mock"
)

// HistoryMock is a testify mock of history.Service.
type HistoryMock struct {
	mock.Mock
}

func NewHistoryMock(t *testing.T) *HistoryMock {
	m := new(HistoryMock)
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *HistoryMock) GetBalance(ctx context.Context, address string) (string, error) {
	args := m.Called(ctx, address)
	return args.String(0), args.Error(1)
}

func (m *HistoryMock) FetchTransactions(ctx context.Context, address string) ([]history.TransactionRecord, error) {
	args := m.Called(ctx, address)
	records, _ := args.Get(0).([]history.TransactionRecord)
	return records, args.Error(1)
}

// DepositsMock is a testify mock of depositwatch.Service.
type DepositsMock struct {
	mock.Mock
}

func NewDepositsMock(t *testing.T) *DepositsMock {
	m := new(DepositsMock)
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *DepositsMock) MonitorDeposits(ctx context.Context, req depositwatch.MonitorRequest, onProcessed depositwatch.ProcessedFunc, observer progress.Observer) error {
	return m.Called(ctx, req, onProcessed, observer).Error(0)
}

func (m *DepositsMock) MonitorTokenDeposits(ctx context.Context, req depositwatch.TokenMonitorRequest, onProcessed depositwatch.ProcessedFunc, observer progress.Observer) error {
	return m.Called(ctx, req, onProcessed, observer).Error(0)
}

func (m *DepositsMock) Cancel(ctx context.Context, address string) error {
	return m.Called(ctx, address).Error(0)
}

func (m *DepositsMock) CancelToken(ctx context.Context, address, mint string) error {
	return m.Called(ctx, address, mint).Error(0)
}

func (m *DepositsMock) Active(address, mint string) bool {
	return m.Called(address, mint).Bool(0)
}

func (m *DepositsMock) Close(ctx context.Context) {
	m.Called(ctx)
}

// WalletStoreMock is a testify mock of WalletStore.
type WalletStoreMock struct {
	mock.Mock
}

func NewWalletStoreMock(t *testing.T) *WalletStoreMock {
	m := new(WalletStoreMock)
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *WalletStoreMock) SaveWallet(ctx context.Context, wallet StoredWallet) error {
	return m.Called(ctx, wallet).Error(0)
}

// LedgerMock is a testify mock of withdrawal.Ledger.
type LedgerMock struct {
	mock.Mock
}

func NewLedgerMock(t *testing.T) *LedgerMock {
	m := new(LedgerMock)
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *LedgerMock) Update(ctx context.Context, id string, update withdrawal.LedgerUpdate) error {
	return m.Called(ctx, id, update).Error(0)
}
