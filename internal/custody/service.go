// Package custody is the entry point of the custodial Solana core. It ties
// together wallet creation, history reads, deposit monitoring, withdrawals and
// token issuance behind one explicitly constructed service.
package custody

import (
	"context"
	"errors"
	"time"

	"github.com/gabapcia/solcustody/internal/depositwatch"
	"github.com/gabapcia/solcustody/internal/history"
	"github.com/gabapcia/solcustody/internal/progress"
	"github.com/gabapcia/solcustody/internal/tokenissue"
	"github.com/gabapcia/solcustody/internal/walletkey"
	"github.com/gabapcia/solcustody/internal/withdrawal"
)

// ErrChainInactive is returned by mutating operations while the chain is disabled.
var ErrChainInactive = errors.New("solana chain is not active")

// StoredWallet is the persisted form of a created wallet. The key material is
// only ever stored sealed.
type StoredWallet struct {
	ID           string
	Chain        string
	Address      string
	EncryptedKey string
	CreatedAt    time.Time
}

// WalletStore persists newly created wallets.
type WalletStore interface {
	SaveWallet(ctx context.Context, wallet StoredWallet) error
}

// Sealer encrypts key material before it is stored.
type Sealer interface {
	Seal(secret walletkey.Secret) (string, error)
}

// CreatedWallet is a new wallet and, when persisted, its id.
type CreatedWallet struct {
	ID string `json:"id,omitempty"`
	walletkey.Wallet
}

// Service is the method surface consumed by request handlers.
type Service interface {
	// CreateWallet generates a new mnemonic backed wallet. When a WalletStore
	// is configured the sealed key is persisted and the wallet id returned.
	CreateWallet(ctx context.Context) (CreatedWallet, error)

	// GetBalance returns the SOL balance of address.
	GetBalance(ctx context.Context, address string) (string, error)

	// FetchTransactions returns the recent normalized transactions of address.
	FetchTransactions(ctx context.Context, address string) ([]history.TransactionRecord, error)

	// MonitorDeposits starts a native deposit monitor.
	MonitorDeposits(ctx context.Context, req depositwatch.MonitorRequest, onProcessed depositwatch.ProcessedFunc, observer progress.Observer) error

	// MonitorTokenDeposits starts a token deposit monitor.
	MonitorTokenDeposits(ctx context.Context, req depositwatch.TokenMonitorRequest, onProcessed depositwatch.ProcessedFunc, observer progress.Observer) error

	// StopMonitoring cancels the monitor of address. An empty mint selects the native monitor.
	StopMonitoring(ctx context.Context, address, mint string) error

	// HandleWithdrawal executes a native withdrawal.
	HandleWithdrawal(ctx context.Context, req withdrawal.NativeWithdrawal, observer progress.Observer) error

	// HandleTokenWithdrawal executes a token withdrawal.
	HandleTokenWithdrawal(ctx context.Context, req withdrawal.TokenWithdrawal, observer progress.Observer) error

	// DeployToken creates a new mint owned by the master wallet.
	DeployToken(ctx context.Context, req tokenissue.DeployRequest, observer progress.Observer) (string, error)

	// MintInitialSupply mints supply of a mint to a holder.
	MintInitialSupply(ctx context.Context, req tokenissue.MintRequest, observer progress.Observer) error

	// Close stops every running deposit monitor.
	Close(ctx context.Context)
}

// Components are the services the custody core delegates to.
type Components struct {
	History     history.Service
	Deposits    depositwatch.Service
	Withdrawals withdrawal.Service
	Tokens      tokenissue.Service
}

type config struct {
	active  bool
	wallets WalletStore
	sealer  Sealer
	newID   func() (string, error)
	now     func() time.Time
}

// Option customizes the service.
type Option func(*config)

// WithChainActive enables or disables mutating operations. Default: enabled.
func WithChainActive(active bool) Option {
	return func(c *config) {
		c.active = active
	}
}

// WithWalletStore persists created wallets in store, sealing keys with sealer.
func WithWalletStore(store WalletStore, sealer Sealer) Option {
	return func(c *config) {
		c.wallets = store
		c.sealer = sealer
	}
}

// WithIDGenerator replaces the wallet id generator. Default: UUIDv7.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(c *config) {
		c.newID = fn
	}
}

type service struct {
	components Components
	cfg        config
}

// Ensure compile-time compliance with the Service interface.
var _ Service = (*service)(nil)

// New builds the custody service.
func New(components Components, opts ...Option) *service {
	cfg := config{
		active: true,
		newID:  newWalletID,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &service{
		components: components,
		cfg:        cfg,
	}
}

func (s *service) ensureChainActive() error {
	if !s.cfg.active {
		return ErrChainInactive
	}

	return nil
}
