// Package withdrawal executes native SOL and SPL token withdrawals from
// custodial wallets and keeps the transaction ledger consistent with the
// outcome.
package withdrawal

import (
	"context"
	"errors"
	"time"

	"github.com/gabapcia/solcustody/internal/chain"
	"github.com/gabapcia/solcustody/internal/pkg/telemetry"
	"github.com/gabapcia/solcustody/internal/progress"
	"github.com/gabapcia/solcustody/internal/walletkey"

	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrInsufficientFunds is returned when the sender holds less than requested.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrTransactionNotFound is returned when a broadcast transaction cannot be located.
	ErrTransactionNotFound = errors.New("transaction not found after broadcast")

	// ErrTransactionFailed is returned when the chain recorded an execution error.
	ErrTransactionFailed = errors.New("transaction failed on chain")

	// ErrMasterWalletNotConfigured is returned by token withdrawals without a fee payer wallet.
	ErrMasterWalletNotConfigured = errors.New("master wallet not configured")
)

const meterScope = "github.com/gabapcia/solcustody/internal/withdrawal"

// Chain is the subset of the cluster client used to execute withdrawals.
type Chain interface {
	GetLatestBlockhash(ctx context.Context) (string, error)
	SendTransaction(ctx context.Context, encoded string) (string, error)
	ConfirmTransaction(ctx context.Context, signature string, commitment chain.Commitment) error
	GetTransaction(ctx context.Context, signature string, commitment chain.Commitment) (*chain.Transaction, error)
	GetTokenAccountBalance(ctx context.Context, account string) (chain.TokenAmount, error)
	AccountExists(ctx context.Context, address string) (bool, error)
}

// KeyStore locates and decrypts the key material of a wallet. Keys are loaded
// fresh for every withdrawal and never cached.
type KeyStore interface {
	Find(ctx context.Context, walletID, chain string) (string, error)
	Decrypt(ctx context.Context, blob string) (walletkey.Secret, error)
}

// Ensure the vault backed store satisfies KeyStore.
var _ KeyStore = (*walletkey.KeyStore)(nil)

// NativeWithdrawal moves SOL from a custodial wallet.
type NativeWithdrawal struct {
	TransactionID string `validate:"required"`
	WalletID      string `validate:"required"`
	Amount        string `validate:"required,positive_amount"` // SOL
	To            string `validate:"required,solana_address"`
}

// TokenWithdrawal moves SPL tokens from a custodial wallet. Fees are paid by
// the master wallet.
type TokenWithdrawal struct {
	TransactionID string `validate:"required"`
	WalletID      string `validate:"required"`
	Mint          string `validate:"required,solana_address"`
	Amount        string `validate:"required,positive_amount"` // display units
	To            string `validate:"required,solana_address"`
	Decimals      uint8  `validate:"max=19"`
}

// Service executes withdrawals.
type Service interface {
	// HandleWithdrawal transfers native SOL and records the outcome in the ledger.
	//
	// Parameters:
	//   - ctx: controls cancellation and timeout.
	//   - req: the withdrawal to execute.
	//   - observer: optional progress observer.
	//
	// Returns:
	//   - nil once the ledger is COMPLETED with the signature. Any error leaves
	//     the ledger FAILED with the error as description.
	HandleWithdrawal(ctx context.Context, req NativeWithdrawal, observer progress.Observer) error

	// HandleTokenWithdrawal transfers SPL tokens with the master wallet as fee
	// payer, creating associated token accounts when needed. The sender balance
	// is checked before anything is written to the chain.
	//
	// Returns the same ledger guarantees as HandleWithdrawal.
	HandleTokenWithdrawal(ctx context.Context, req TokenWithdrawal, observer progress.Observer) error
}

type config struct {
	masterWalletID    string
	ataAttempts       uint
	ataMaxConsecutive int
	ataDelay          time.Duration
}

// Option customizes the service.
type Option func(*config)

// WithMasterWallet sets the wallet paying fees and account rent for token withdrawals.
func WithMasterWallet(walletID string) Option {
	return func(c *config) {
		c.masterWalletID = walletID
	}
}

// WithAssociatedAccountAttempts bounds associated token account creation:
// attempts in total, failing early after maxConsecutive errors in a row.
// Default: 5 attempts, 3 consecutive failures, 2 seconds apart.
func WithAssociatedAccountAttempts(attempts uint, maxConsecutive int, delay time.Duration) Option {
	return func(c *config) {
		c.ataAttempts = attempts
		c.ataMaxConsecutive = maxConsecutive
		c.ataDelay = delay
	}
}

type metrics struct {
	completed metric.Int64Counter
	failed    metric.Int64Counter
}

type service struct {
	chain  Chain
	keys   KeyStore
	ledger Ledger
	cfg    config

	metrics metrics
}

// Ensure compile-time compliance with the Service interface.
var _ Service = (*service)(nil)

// New builds a withdrawal executor.
func New(c Chain, keys KeyStore, ledger Ledger, opts ...Option) *service {
	cfg := config{
		ataAttempts:       5,
		ataMaxConsecutive: 3,
		ataDelay:          2 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &service{
		chain:  c,
		keys:   keys,
		ledger: ledger,
		cfg:    cfg,
		metrics: metrics{
			completed: telemetry.Counter(meterScope, "solcustody.withdrawals.completed", "Withdrawals completed"),
			failed:    telemetry.Counter(meterScope, "solcustody.withdrawals.failed", "Withdrawals failed"),
		},
	}
}
