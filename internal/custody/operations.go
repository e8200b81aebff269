package custody

import (
	"context"
	"fmt"

	"github.com/gabapcia/solcustody/internal/chain"
	"github.com/gabapcia/solcustody/internal/depositwatch"
	"github.com/gabapcia/solcustody/internal/history"
	"github.com/gabapcia/solcustody/internal/pkg/logger"
	"github.com/gabapcia/solcustody/internal/progress"
	"github.com/gabapcia/solcustody/internal/tokenissue"
	"github.com/gabapcia/solcustody/internal/walletkey"
	"github.com/gabapcia/solcustody/internal/withdrawal"

	"github.com/google/uuid"
)

func newWalletID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// CreateWallet implements Service.
func (s *service) CreateWallet(ctx context.Context) (CreatedWallet, error) {
	if err := s.ensureChainActive(); err != nil {
		return CreatedWallet{}, err
	}

	w, err := walletkey.CreateWallet()
	if err != nil {
		return CreatedWallet{}, err
	}

	created := CreatedWallet{Wallet: w}
	if s.cfg.wallets == nil {
		return created, nil
	}

	sealed, err := s.cfg.sealer.Seal(walletkey.Secret{PrivateKey: w.PrivateKey, Mnemonic: w.Mnemonic})
	if err != nil {
		return CreatedWallet{}, fmt.Errorf("seal wallet key: %w", err)
	}

	id, err := s.cfg.newID()
	if err != nil {
		return CreatedWallet{}, fmt.Errorf("generate wallet id: %w", err)
	}

	stored := StoredWallet{
		ID:           id,
		Chain:        chain.ID,
		Address:      w.Address,
		EncryptedKey: sealed,
		CreatedAt:    s.cfg.now().UTC(),
	}
	if err := s.cfg.wallets.SaveWallet(ctx, stored); err != nil {
		return CreatedWallet{}, fmt.Errorf("store wallet: %w", err)
	}

	logger.Info(ctx, "wallet created",
		"wallet.id", id,
		"wallet.address", w.Address,
	)

	created.ID = id
	return created, nil
}

// GetBalance implements Service.
func (s *service) GetBalance(ctx context.Context, address string) (string, error) {
	return s.components.History.GetBalance(ctx, address)
}

// FetchTransactions implements Service.
func (s *service) FetchTransactions(ctx context.Context, address string) ([]history.TransactionRecord, error) {
	return s.components.History.FetchTransactions(ctx, address)
}

// MonitorDeposits implements Service.
func (s *service) MonitorDeposits(ctx context.Context, req depositwatch.MonitorRequest, onProcessed depositwatch.ProcessedFunc, observer progress.Observer) error {
	if err := s.ensureChainActive(); err != nil {
		return err
	}

	return s.components.Deposits.MonitorDeposits(ctx, req, onProcessed, observer)
}

// MonitorTokenDeposits implements Service.
func (s *service) MonitorTokenDeposits(ctx context.Context, req depositwatch.TokenMonitorRequest, onProcessed depositwatch.ProcessedFunc, observer progress.Observer) error {
	if err := s.ensureChainActive(); err != nil {
		return err
	}

	return s.components.Deposits.MonitorTokenDeposits(ctx, req, onProcessed, observer)
}

// StopMonitoring implements Service.
func (s *service) StopMonitoring(ctx context.Context, address, mint string) error {
	if mint == "" {
		return s.components.Deposits.Cancel(ctx, address)
	}

	return s.components.Deposits.CancelToken(ctx, address, mint)
}

// HandleWithdrawal implements Service.
func (s *service) HandleWithdrawal(ctx context.Context, req withdrawal.NativeWithdrawal, observer progress.Observer) error {
	if err := s.ensureChainActive(); err != nil {
		progress.OrNop(observer).Fail(ctx, err.Error())
		return err
	}

	return s.components.Withdrawals.HandleWithdrawal(ctx, req, observer)
}

// HandleTokenWithdrawal implements Service.
func (s *service) HandleTokenWithdrawal(ctx context.Context, req withdrawal.TokenWithdrawal, observer progress.Observer) error {
	if err := s.ensureChainActive(); err != nil {
		progress.OrNop(observer).Fail(ctx, err.Error())
		return err
	}

	return s.components.Withdrawals.HandleTokenWithdrawal(ctx, req, observer)
}

// DeployToken implements Service.
func (s *service) DeployToken(ctx context.Context, req tokenissue.DeployRequest, observer progress.Observer) (string, error) {
	if err := s.ensureChainActive(); err != nil {
		progress.OrNop(observer).Fail(ctx, err.Error())
		return "", err
	}

	return s.components.Tokens.DeployToken(ctx, req, observer)
}

// MintInitialSupply implements Service.
func (s *service) MintInitialSupply(ctx context.Context, req tokenissue.MintRequest, observer progress.Observer) error {
	if err := s.ensureChainActive(); err != nil {
		progress.OrNop(observer).Fail(ctx, err.Error())
		return err
	}

	return s.components.Tokens.MintInitialSupply(ctx, req, observer)
}

// Close implements Service.
func (s *service) Close(ctx context.Context) {
	if s.components.Deposits != nil {
		s.components.Deposits.Close(ctx)
	}
}
