package cli

import (
	"context"
	"testing"

	"github.com/gabapcia/solcustody/internal/custody"
	"github.com/gabapcia/solcustody/internal/depositwatch"
	"github.com/gabapcia/solcustody/internal/history"
	"github.com/gabapcia/solcustody/internal/progress"
	"github.com/gabapcia/solcustody/internal/tokenissue"
	"github.com/gabapcia/solcustody/internal/withdrawal"

	"github.com/stretchr/testify/mock"
)

// CustodyMock is a testify mock of custody.Service.
type CustodyMock struct {
	mock.Mock
}

var _ custody.Service = (*CustodyMock)(nil)

func NewCustodyMock(t *testing.T) *CustodyMock {
	m := new(CustodyMock)
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *CustodyMock) CreateWallet(ctx context.Context) (custody.CreatedWallet, error) {
	args := m.Called(ctx)
	return args.Get(0).(custody.CreatedWallet), args.Error(1)
}

func (m *CustodyMock) GetBalance(ctx context.Context, address string) (string, error) {
	args := m.Called(ctx, address)
	return args.String(0), args.Error(1)
}

func (m *CustodyMock) FetchTransactions(ctx context.Context, address string) ([]history.TransactionRecord, error) {
	args := m.Called(ctx, address)
	records, _ := args.Get(0).([]history.TransactionRecord)
	return records, args.Error(1)
}

func (m *CustodyMock) MonitorDeposits(ctx context.Context, req depositwatch.MonitorRequest, onProcessed depositwatch.ProcessedFunc, observer progress.Observer) error {
	return m.Called(ctx, req, onProcessed, observer).Error(0)
}

func (m *CustodyMock) MonitorTokenDeposits(ctx context.Context, req depositwatch.TokenMonitorRequest, onProcessed depositwatch.ProcessedFunc, observer progress.Observer) error {
	return m.Called(ctx, req, onProcessed, observer).Error(0)
}

func (m *CustodyMock) StopMonitoring(ctx context.Context, address, mint string) error {
	return m.Called(ctx, address, mint).Error(0)
}

func (m *CustodyMock) HandleWithdrawal(ctx context.Context, req withdrawal.NativeWithdrawal, observer progress.Observer) error {
	return m.Called(ctx, req, observer).Error(0)
}

func (m *CustodyMock) HandleTokenWithdrawal(ctx context.Context, req withdrawal.TokenWithdrawal, observer progress.Observer) error {
	return m.Called(ctx, req, observer).Error(0)
}

func (m *CustodyMock) DeployToken(ctx context.Context, req tokenissue.DeployRequest, observer progress.Observer) (string, error) {
	args := m.Called(ctx, req, observer)
	return args.String(0), args.Error(1)
}

func (m *CustodyMock) MintInitialSupply(ctx context.Context, req tokenissue.MintRequest, observer progress.Observer) error {
	return m.Called(ctx, req, observer).Error(0)
}

func (m *CustodyMock) Close(ctx context.Context) {
	m.Called(ctx)
}
