// Package depositsink persists detected deposits and notifies downstream
// consumers about them.
package depositsink

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabapcia/solcustody/internal/depositwatch"
	"github.com/gabapcia/solcustody/internal/pkg/logger"
)

// Store persists deposits and tracks whether each one was delivered downstream.
type Store interface {
	// SaveDeposit stores record unless it already exists. Pending is true while
	// no notification for it has succeeded.
	SaveDeposit(ctx context.Context, record depositwatch.DepositRecord, assetID string) (pending bool, err error)
	MarkNotified(ctx context.Context, signature, assetID string) error
	PendingDeposits(ctx context.Context) ([]depositwatch.DepositRecord, error)
}

// Notifier delivers a deposit to downstream consumers.
type Notifier interface {
	NotifyDeposit(ctx context.Context, record depositwatch.DepositRecord, assetID string) error
}

type nopNotifier struct{}

func (nopNotifier) NotifyDeposit(context.Context, depositwatch.DepositRecord, string) error {
	return nil
}

// Option configures a Sink.
type Option func(*Sink)

// WithNotifier sets the notifier deposits are delivered to.
func WithNotifier(n Notifier) Option {
	return func(s *Sink) {
		if n != nil {
			s.notifier = n
		}
	}
}

// Sink is the depositwatch.Broadcaster backed by a Store and a Notifier.
type Sink struct {
	store    Store
	notifier Notifier
}

var _ depositwatch.Broadcaster = (*Sink)(nil)

// New returns a sink writing to store.
func New(store Store, opts ...Option) *Sink {
	s := &Sink{
		store:    store,
		notifier: nopNotifier{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StoreAndBroadcastTransaction stores record and notifies until a delivery
// succeeds. Replays of an already delivered signature are acknowledged silently.
func (s *Sink) StoreAndBroadcastTransaction(ctx context.Context, record depositwatch.DepositRecord, assetID string) error {
	pending, err := s.store.SaveDeposit(ctx, record, assetID)
	if err != nil {
		return fmt.Errorf("store deposit: %w", err)
	}

	if !pending {
		logger.Debug(ctx, "deposit already delivered",
			"transaction.signature", record.Hash,
			"token.mint", assetID,
		)
		return nil
	}

	return s.deliver(ctx, record, assetID)
}

// Redeliver notifies every stored deposit whose earlier notification failed.
func (s *Sink) Redeliver(ctx context.Context) error {
	records, err := s.store.PendingDeposits(ctx)
	if err != nil {
		return fmt.Errorf("list pending deposits: %w", err)
	}

	var errs []error
	for _, record := range records {
		assetID := record.Mint
		if assetID == "" {
			assetID = depositwatch.NativeAssetID
		}

		if err := s.deliver(ctx, record, assetID); err != nil {
			logger.Warn(ctx, "deposit redelivery failed",
				"transaction.signature", record.Hash,
				"token.mint", assetID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s *Sink) deliver(ctx context.Context, record depositwatch.DepositRecord, assetID string) error {
	if err := s.notifier.NotifyDeposit(ctx, record, assetID); err != nil {
		return fmt.Errorf("notify deposit: %w", err)
	}

	if err := s.store.MarkNotified(ctx, record.Hash, assetID); err != nil {
		return fmt.Errorf("mark deposit notified: %w", err)
	}

	logger.Info(ctx, "deposit delivered",
		"wallet.id", record.WalletID,
		"transaction.signature", record.Hash,
		"token.mint", assetID,
		"deposit.amount", record.Amount,
	)
	return nil
}
