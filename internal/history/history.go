package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabapcia/solcustody/internal/chain"
	"github.com/gabapcia/solcustody/internal/pkg/logger"
	"github.com/gabapcia/solcustody/internal/pkg/sol"

	"golang.org/x/sync/errgroup"
)

// ErrFetchTransactions wraps every failure of FetchTransactions.
var ErrFetchTransactions = errors.New("failed to fetch transactions")

// GetBalance implements Service.
func (s *service) GetBalance(ctx context.Context, address string) (string, error) {
	if _, err := sol.ParsePublicKey(address); err != nil {
		return "", err
	}

	lamports, err := s.chain.GetBalance(ctx, address)
	if err != nil {
		return "", err
	}

	return sol.LamportsToSOL(lamports), nil
}

// FetchTransactions implements Service.
func (s *service) FetchTransactions(ctx context.Context, address string) ([]TransactionRecord, error) {
	cached, err := s.cfg.cache.Load(ctx, address)
	if err != nil {
		logger.Warn(ctx, "transaction cache read failed",
			"wallet.address", address,
			"error", err,
		)
	}

	if cached != nil && cached.validAt(s.cfg.now(), s.cfg.cacheExpiration) {
		return cached.Transactions, nil
	}

	records, err := s.fetch(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchTransactions, err)
	}

	set := CachedTransactionSet{Transactions: records, CachedAt: s.cfg.now()}
	if err := s.cfg.cache.Store(ctx, address, set); err != nil {
		logger.Warn(ctx, "transaction cache write failed",
			"wallet.address", address,
			"error", err,
		)
	}

	return records, nil
}

// fetch resolves the recent signatures of address in parallel and normalizes
// them, keeping the listing order. Missing or meta-less transactions are skipped.
func (s *service) fetch(ctx context.Context, address string) ([]TransactionRecord, error) {
	signatures, err := s.chain.GetSignaturesForAddress(ctx, address, s.cfg.limit)
	if err != nil {
		return nil, err
	}

	txs := make([]*chain.Transaction, len(signatures))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.concurrency)
	for i, info := range signatures {
		g.Go(func() error {
			tx, err := s.chain.GetTransaction(gCtx, info.Signature, chain.Confirmed)
			if err != nil {
				return fmt.Errorf("transaction %s: %w", info.Signature, err)
			}

			txs[i] = tx
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := s.cfg.now()
	records := make([]TransactionRecord, 0, len(txs))
	for i, tx := range txs {
		if tx == nil || tx.Meta == nil {
			continue
		}

		records = append(records, Normalize(*tx, address, signatures[i].ConfirmationStatus, now))
	}

	return records, nil
}
