package withdrawal

import (
	"context"
	"fmt"

	"github.com/gabapcia/solcustody/internal/chain"
	"github.com/gabapcia/solcustody/internal/pkg/logger"
	"github.com/gabapcia/solcustody/internal/pkg/sol"
	"github.com/gabapcia/solcustody/internal/pkg/validator"
	"github.com/gabapcia/solcustody/internal/progress"
)

// HandleWithdrawal implements Service.
func (s *service) HandleWithdrawal(ctx context.Context, req NativeWithdrawal, observer progress.Observer) error {
	observer = progress.OrNop(observer)

	signature, err := s.sendNative(ctx, req, observer)
	if err != nil {
		return s.fail(ctx, req.TransactionID, observer, err)
	}

	return s.succeed(ctx, req.TransactionID, signature, observer,
		fmt.Sprintf("Sent %s SOL to %s in %s", req.Amount, req.To, signature))
}

func (s *service) sendNative(ctx context.Context, req NativeWithdrawal, observer progress.Observer) (string, error) {
	if err := validator.Validate(req); err != nil {
		return "", err
	}

	to, err := sol.ParsePublicKey(req.To)
	if err != nil {
		return "", err
	}

	lamports, err := sol.SOLToLamports(req.Amount)
	if err != nil {
		return "", err
	}

	observer.Step(ctx, "Loading wallet key")
	from, err := s.loadSigner(ctx, req.WalletID)
	if err != nil {
		return "", err
	}

	observer.Step(ctx, "Building transfer")
	blockhash, err := s.chain.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := sol.NewTransaction(from.address, blockhash, sol.Transfer(from.address, to, lamports))
	if err != nil {
		return "", err
	}

	if err := tx.Sign(from.key); err != nil {
		return "", err
	}

	encoded, err := tx.Base64()
	if err != nil {
		return "", err
	}

	observer.Step(ctx, "Broadcasting transaction")
	signature, err := s.chain.SendTransaction(ctx, encoded)
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	logger.Info(ctx, "native withdrawal broadcast",
		"withdrawal.id", req.TransactionID,
		"wallet.address", from.address.String(),
		"transaction.signature", signature,
	)

	observer.Step(ctx, "Waiting for confirmation")
	if err := s.chain.ConfirmTransaction(ctx, signature, chain.Confirmed); err != nil {
		logger.Warn(ctx, "withdrawal confirmation did not complete",
			"withdrawal.id", req.TransactionID,
			"transaction.signature", signature,
			"error", err,
		)
	}

	confirmed, err := s.chain.GetTransaction(ctx, signature, chain.Confirmed)
	if err != nil {
		return "", fmt.Errorf("get transaction %s: %w", signature, err)
	}
	if confirmed == nil || confirmed.Meta == nil {
		return "", fmt.Errorf("%w: %s", ErrTransactionNotFound, signature)
	}
	if confirmed.Meta.Failed() {
		return "", fmt.Errorf("%w: %s: %v", ErrTransactionFailed, signature, confirmed.Meta.Err)
	}

	return signature, nil
}
