// Package depositwatch watches custodial addresses for incoming native and SPL
// token deposits over the cluster's pubsub endpoint. Each monitor lives until a
// deposit is detected, it is cancelled, or it has been idle for too long.
package depositwatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gabapcia/solcustody/internal/chain"
	"github.com/gabapcia/solcustody/internal/pkg/telemetry"
	"github.com/gabapcia/solcustody/internal/pkg/validator"
	"github.com/gabapcia/solcustody/internal/progress"

	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrAlreadyMonitoring is returned when a monitor for the same target is already running.
	ErrAlreadyMonitoring = errors.New("deposit monitor already running")

	// ErrNotMonitoring is returned by Cancel when no monitor matches.
	ErrNotMonitoring = errors.New("no deposit monitor running")

	// ErrTransactionNotFound signals that a notified transaction is not yet visible.
	ErrTransactionNotFound = errors.New("transaction not found")
)

const meterScope = "github.com/gabapcia/solcustody/internal/depositwatch"

// Chain is the subset of the cluster client needed to watch deposits.
type Chain interface {
	SubscribeLogs(ctx context.Context, address string) (*chain.LogSubscription, error)
	SubscribeTokenAccounts(ctx context.Context, owner, mint string) (*chain.AccountSubscription, error)
	Unsubscribe(ctx context.Context, handle chain.SubscriptionHandle) error
	GetTransaction(ctx context.Context, signature string, commitment chain.Commitment) (*chain.Transaction, error)
	GetBlock(ctx context.Context, slot uint64) (*chain.Block, error)
}

// Broadcaster persists a detected deposit and notifies downstream consumers.
// assetID is "SOL" for native deposits and the mint address for tokens.
type Broadcaster interface {
	StoreAndBroadcastTransaction(ctx context.Context, record DepositRecord, assetID string) error
}

// ProcessedFunc is called once a deposit has been handed to the Broadcaster.
type ProcessedFunc func(ctx context.Context, record DepositRecord)

// MonitorRequest identifies the wallet whose address is watched.
type MonitorRequest struct {
	WalletID string `validate:"required"`
	Address  string `validate:"required,solana_address"`
}

// TokenMonitorRequest identifies the wallet and mint whose token account is watched.
type TokenMonitorRequest struct {
	WalletID string `validate:"required"`
	Address  string `validate:"required,solana_address"`
	Mint     string `validate:"required,solana_address"`
}

// Service starts and stops deposit monitors.
type Service interface {
	// MonitorDeposits starts watching address for incoming native SOL. The
	// monitor runs in the background and ends on the first positive deposit,
	// on Cancel, or after the inactivity timeout when nothing was observed.
	//
	// Parameters:
	//   - ctx: used for setup and as the logging context of the monitor. Its
	//     cancellation does not stop the monitor; use Cancel.
	//   - req: the wallet and address to watch.
	//   - onProcessed: optional, invoked after a deposit is handed off.
	//   - observer: optional progress observer.
	//
	// Returns:
	//   - ErrAlreadyMonitoring if the address is already watched, a
	//     validation error, or the subscription error.
	MonitorDeposits(ctx context.Context, req MonitorRequest, onProcessed ProcessedFunc, observer progress.Observer) error

	// MonitorTokenDeposits starts watching the token accounts of an owner for
	// a mint. Every notification scans its block for a transfer into the
	// owner's account and rearms the inactivity timeout.
	//
	// Returns the same errors as MonitorDeposits.
	MonitorTokenDeposits(ctx context.Context, req TokenMonitorRequest, onProcessed ProcessedFunc, observer progress.Observer) error

	// Cancel stops the native monitor of address.
	Cancel(ctx context.Context, address string) error

	// CancelToken stops the token monitor of address and mint.
	CancelToken(ctx context.Context, address, mint string) error

	// Active reports whether a monitor is running for address and mint. An
	// empty mint refers to the native monitor.
	Active(address, mint string) bool

	// Close stops every running monitor.
	Close(ctx context.Context)
}

type config struct {
	guard             MonitorGuard
	guardRefresh      time.Duration
	inactivityTimeout time.Duration
	pollAttempts      uint
	pollDelay         time.Duration
	blockAttempts     uint
	blockDelay        time.Duration
	now               func() time.Time
}

// Option customizes the service.
type Option func(*config)

// WithMonitorGuard sets a guard shared between processes so the same target
// is only watched once. Default: in-process tracking only.
func WithMonitorGuard(g MonitorGuard) Option {
	return func(c *config) {
		c.guard = g
	}
}

// WithGuardRefresh sets how often a running monitor extends its guard claim.
// It must be shorter than the guard TTL. Default: 1 minute.
func WithGuardRefresh(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.guardRefresh = d
		}
	}
}

// WithInactivityTimeout sets how long a monitor waits for its first
// notification (native) or between notifications (token). Default: 1 hour.
func WithInactivityTimeout(d time.Duration) Option {
	return func(c *config) {
		c.inactivityTimeout = d
	}
}

// WithTransactionPolling sets how many times and how often a notified
// transaction is looked up at finalized commitment. Default: 30 every 5 seconds.
func WithTransactionPolling(attempts uint, delay time.Duration) Option {
	return func(c *config) {
		c.pollAttempts = attempts
		c.pollDelay = delay
	}
}

// WithBlockPolling sets how many times and how often a notified block is
// fetched. Default: 3 every second.
func WithBlockPolling(attempts uint, delay time.Duration) Option {
	return func(c *config) {
		c.blockAttempts = attempts
		c.blockDelay = delay
	}
}

// WithClock replaces the wall clock used for timestamp fallbacks.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

type metrics struct {
	started  metric.Int64Counter
	detected metric.Int64Counter
	timeouts metric.Int64Counter
}

type service struct {
	chain       Chain
	broadcaster Broadcaster
	cfg         config
	metrics     metrics

	mu       sync.Mutex
	monitors map[monitorKey]*monitor
}

// Ensure compile-time compliance with the Service interface.
var _ Service = (*service)(nil)

// New builds a deposit watcher that subscribes through c and hands detected
// deposits to b.
func New(c Chain, b Broadcaster, opts ...Option) *service {
	cfg := config{
		guard:             nopGuard{},
		guardRefresh:      time.Minute,
		inactivityTimeout: time.Hour,
		pollAttempts:      30,
		pollDelay:         5 * time.Second,
		blockAttempts:     3,
		blockDelay:        time.Second,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &service{
		chain:       c,
		broadcaster: b,
		cfg:         cfg,
		metrics: metrics{
			started:  telemetry.Counter(meterScope, "solcustody.deposits.monitors", "Deposit monitors started"),
			detected: telemetry.Counter(meterScope, "solcustody.deposits.detected", "Deposits detected"),
			timeouts: telemetry.Counter(meterScope, "solcustody.deposits.timeouts", "Deposit monitors ended by inactivity"),
		},
		monitors: make(map[monitorKey]*monitor),
	}
}
