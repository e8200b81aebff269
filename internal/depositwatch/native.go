package depositwatch

import (
	"context"
	"fmt"
	"time"

	"github.com/gabapcia/solcustody/internal/chain"
	"github.com/gabapcia/solcustody/internal/pkg/logger"
	"github.com/gabapcia/solcustody/internal/pkg/resilience/retry"
	"github.com/gabapcia/solcustody/internal/pkg/sol"
	"github.com/gabapcia/solcustody/internal/pkg/validator"
	"github.com/gabapcia/solcustody/internal/progress"
)

// MonitorDeposits implements Service.
func (s *service) MonitorDeposits(ctx context.Context, req MonitorRequest, onProcessed ProcessedFunc, observer progress.Observer) error {
	if err := validator.Validate(req); err != nil {
		return err
	}

	m, err := s.reserve(ctx, monitorKey{address: req.Address})
	if err != nil {
		return err
	}

	sub, err := s.chain.SubscribeLogs(ctx, req.Address)
	if err != nil {
		s.release(ctx, m)
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.activate(runCtx, m, sub.Handle, cancel)
	s.metrics.started.Add(ctx, 1)

	observer = progress.OrNop(observer)
	observer.Step(ctx, fmt.Sprintf("Monitoring deposits for %s", req.Address))
	logger.Info(ctx, "native deposit monitor started",
		"wallet.id", req.WalletID,
		"wallet.address", req.Address,
		"subscription.id", sub.Handle.ID,
	)

	go s.watchNative(runCtx, m, sub, req, onProcessed, observer)
	return nil
}

// watchNative waits for log notifications mentioning the address. The
// inactivity timer only guards the first notification; once one arrives the
// monitor stays up until a positive deposit or cancellation.
func (s *service) watchNative(ctx context.Context, m *monitor, sub *chain.LogSubscription, req MonitorRequest, onProcessed ProcessedFunc, observer progress.Observer) {
	timer := time.NewTimer(s.cfg.inactivityTimeout)
	defer timer.Stop()

	timeout := timer.C
	for {
		select {
		case <-ctx.Done():
			s.teardown(ctx, m, StateCancelled)
			return
		case <-timeout:
			s.metrics.timeouts.Add(ctx, 1)
			logger.Info(ctx, "no deposit observed before timeout", "wallet.address", req.Address)
			s.teardown(ctx, m, StateTimedOut)
			observer.Fail(ctx, fmt.Sprintf("No deposit to %s before timeout", req.Address))
			return
		case ev, ok := <-sub.Events:
			if !ok {
				logger.Warn(ctx, "deposit subscription ended by the connection", "wallet.address", req.Address)
				s.teardown(ctx, m, StateDropped)
				observer.Fail(ctx, fmt.Sprintf("Deposit subscription for %s was closed", req.Address))
				return
			}

			if timeout != nil {
				timer.Stop()
				timeout = nil
			}

			if ev.Err != nil {
				logger.Debug(ctx, "skipping failed transaction",
					"wallet.address", req.Address,
					"transaction.signature", ev.Signature,
				)
				continue
			}

			record, found := s.resolveNativeDeposit(ctx, req, ev.Signature)
			if !found {
				continue
			}

			s.complete(ctx, m, record, NativeAssetID, onProcessed, observer)
			return
		}
	}
}

// resolveNativeDeposit waits for signature to finalize and computes the
// balance change of the watched address. Polling is not interrupted by
// cancellation of the monitor.
func (s *service) resolveNativeDeposit(ctx context.Context, req MonitorRequest, signature string) (DepositRecord, bool) {
	pollCtx := context.WithoutCancel(ctx)

	var tx *chain.Transaction
	err := retry.New(
		retry.WithAttempts(s.cfg.pollAttempts),
		retry.WithDelay(s.cfg.pollDelay),
		retry.WithFixedDelay(),
	).Execute(pollCtx, func() error {
		found, err := s.chain.GetTransaction(pollCtx, signature, chain.Finalized)
		if err != nil {
			return err
		}
		if found == nil || found.Meta == nil {
			return ErrTransactionNotFound
		}

		tx = found
		return nil
	})
	if err != nil {
		logger.Warn(ctx, "notified transaction did not finalize",
			"wallet.address", req.Address,
			"transaction.signature", signature,
			"error", err,
		)
		return DepositRecord{}, false
	}

	delta, ok := nativeDelta(tx, req.Address)
	if !ok {
		logger.Info(ctx, "transaction did not increase the balance",
			"wallet.address", req.Address,
			"transaction.signature", signature,
		)
		return DepositRecord{}, false
	}

	from := ""
	if len(tx.AccountKeys) > 0 {
		from = tx.AccountKeys[0]
	}

	return DepositRecord{
		WalletID:  req.WalletID,
		Hash:      signature,
		From:      from,
		To:        req.Address,
		Amount:    sol.LamportsToSOL(delta),
		Decimals:  sol.NativeDecimals,
		Fee:       sol.LamportsToSOL(tx.Meta.Fee),
		Status:    StatusCompleted,
		Slot:      tx.Slot,
		Timestamp: tx.Time(s.cfg.now()),
	}, true
}

// nativeDelta returns the positive lamport increase of address in tx.
func nativeDelta(tx *chain.Transaction, address string) (uint64, bool) {
	idx := tx.AccountIndex(address)
	if idx < 0 || tx.Meta == nil || idx >= len(tx.Meta.PreBalances) || idx >= len(tx.Meta.PostBalances) {
		return 0, false
	}

	pre, post := tx.Meta.PreBalances[idx], tx.Meta.PostBalances[idx]
	if post <= pre {
		return 0, false
	}

	return post - pre, true
}

// complete hands record to the broadcaster, ends the monitor and runs the callback.
func (s *service) complete(ctx context.Context, m *monitor, record DepositRecord, assetID string, onProcessed ProcessedFunc, observer progress.Observer) {
	s.metrics.detected.Add(ctx, 1)
	logger.Info(ctx, "deposit detected",
		"wallet.id", record.WalletID,
		"wallet.address", record.To,
		"transaction.signature", record.Hash,
		"deposit.amount", record.Amount,
		"token.mint", record.Mint,
	)

	bctx := context.WithoutCancel(ctx)
	if err := s.broadcaster.StoreAndBroadcastTransaction(bctx, record, assetID); err != nil {
		logger.Error(ctx, "failed to store deposit",
			"wallet.address", record.To,
			"transaction.signature", record.Hash,
			"error", err,
		)
		observer.Fail(ctx, fmt.Sprintf("Failed to store deposit %s: %v", record.Hash, err))
		s.teardown(ctx, m, StateDetected)
		return
	}

	s.teardown(ctx, m, StateDetected)
	observer.Success(ctx, fmt.Sprintf("Deposit of %s received in %s", record.Amount, record.Hash))

	if onProcessed != nil {
		onProcessed(bctx, record)
	}
}
