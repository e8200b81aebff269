package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gabapcia/solcustody/internal/chain"
	"github.com/gabapcia/solcustody/internal/pkg/logger"
	"github.com/gabapcia/solcustody/internal/pkg/resilience/retry"
	"github.com/gabapcia/solcustody/internal/pkg/sol"
	"github.com/gabapcia/solcustody/internal/pkg/validator"
	"github.com/gabapcia/solcustody/internal/progress"
)

// errAccountPending means the creation was sent but the account is not visible yet.
var errAccountPending = errors.New("associated token account not visible yet")

// HandleTokenWithdrawal implements Service.
func (s *service) HandleTokenWithdrawal(ctx context.Context, req TokenWithdrawal, observer progress.Observer) error {
	observer = progress.OrNop(observer)

	signature, err := s.sendToken(ctx, req, observer)
	if err != nil {
		return s.fail(ctx, req.TransactionID, observer, err)
	}

	return s.succeed(ctx, req.TransactionID, signature, observer,
		fmt.Sprintf("Sent %s of %s to %s in %s", req.Amount, req.Mint, req.To, signature))
}

func (s *service) sendToken(ctx context.Context, req TokenWithdrawal, observer progress.Observer) (string, error) {
	if err := validator.Validate(req); err != nil {
		return "", err
	}

	if s.cfg.masterWalletID == "" {
		return "", ErrMasterWalletNotConfigured
	}

	mint, err := sol.ParsePublicKey(req.Mint)
	if err != nil {
		return "", err
	}

	to, err := sol.ParsePublicKey(req.To)
	if err != nil {
		return "", err
	}

	display, err := sol.ParseAmount(req.Amount)
	if err != nil {
		return "", err
	}

	amount, err := sol.ToBaseUnits(display, req.Decimals)
	if err != nil {
		return "", err
	}

	observer.Step(ctx, "Loading wallet keys")
	sender, err := s.loadSigner(ctx, req.WalletID)
	if err != nil {
		return "", err
	}

	master, err := s.loadSigner(ctx, s.cfg.masterWalletID)
	if err != nil {
		return "", err
	}

	source, err := sol.FindAssociatedTokenAddress(sender.address, mint)
	if err != nil {
		return "", err
	}

	destination, err := sol.FindAssociatedTokenAddress(to, mint)
	if err != nil {
		return "", err
	}

	observer.Step(ctx, "Checking token balance")
	if err := s.checkTokenBalance(ctx, source, amount, req.Decimals); err != nil {
		return "", err
	}

	observer.Step(ctx, "Preparing token accounts")
	if err := s.ensureAssociatedAccount(ctx, master, sender.address, mint, source); err != nil {
		return "", err
	}
	if err := s.ensureAssociatedAccount(ctx, master, to, mint, destination); err != nil {
		return "", err
	}

	observer.Step(ctx, "Building token transfer")
	blockhash, err := s.chain.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("get latest blockhash: %w", err)
	}

	ix := sol.TransferChecked(source, mint, destination, sender.address, amount, req.Decimals)
	tx, err := sol.NewTransaction(master.address, blockhash, ix)
	if err != nil {
		return "", err
	}

	if err := tx.Sign(master.key, sender.key); err != nil {
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

	logger.Info(ctx, "token withdrawal broadcast",
		"withdrawal.id", req.TransactionID,
		"wallet.address", sender.address.String(),
		"token.mint", req.Mint,
		"transaction.signature", signature,
	)

	observer.Step(ctx, "Waiting for confirmation")
	if err := s.chain.ConfirmTransaction(ctx, signature, chain.Confirmed); err != nil {
		return "", fmt.Errorf("confirm transaction %s: %w", signature, err)
	}

	return signature, nil
}

// checkTokenBalance fails with ErrInsufficientFunds when account holds less than amount.
func (s *service) checkTokenBalance(ctx context.Context, account sol.PublicKey, amount uint64, decimals uint8) error {
	balance, err := s.chain.GetTokenAccountBalance(ctx, account.String())
	if err != nil {
		return fmt.Errorf("get token balance of %s: %w", account, err)
	}

	held, err := strconv.ParseUint(balance.Amount, 10, 64)
	if err != nil {
		return fmt.Errorf("parse token balance %q: %w", balance.Amount, err)
	}

	if held < amount {
		return fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientFunds,
			sol.ToDisplay(held, balance.Decimals), sol.ToDisplay(amount, decimals))
	}

	return nil
}

// ensureAssociatedAccount makes sure ata exists, creating it with master as
// payer. Attempts are bounded and consecutive errors end the loop early; an
// attempt whose creation succeeded but is not visible yet does not count as an error.
func (s *service) ensureAssociatedAccount(ctx context.Context, master signer, owner, mint, ata sol.PublicKey) error {
	consecutive := 0

	err := retry.New(
		retry.WithAttempts(s.cfg.ataAttempts),
		retry.WithDelay(s.cfg.ataDelay),
		retry.WithFixedDelay(),
	).Execute(ctx, func() error {
		err := s.createAssociatedAccount(ctx, master, owner, mint, ata)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, errAccountPending):
			consecutive = 0
			return err
		default:
			consecutive++
			logger.Warn(ctx, "associated token account creation failed",
				"token.account", ata.String(),
				"attempt.consecutive_failures", consecutive,
				"error", err,
			)
			if consecutive >= s.cfg.ataMaxConsecutive {
				return retry.Unrecoverable(err)
			}
			return err
		}
	})
	if err != nil {
		return fmt.Errorf("ensure associated token account %s: %w", ata, err)
	}

	return nil
}

func (s *service) createAssociatedAccount(ctx context.Context, master signer, owner, mint, ata sol.PublicKey) error {
	exists, err := s.chain.AccountExists(ctx, ata.String())
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	blockhash, err := s.chain.GetLatestBlockhash(ctx)
	if err != nil {
		return err
	}

	tx, err := sol.NewTransaction(master.address, blockhash,
		sol.CreateAssociatedTokenAccountIdempotent(master.address, owner, mint))
	if err != nil {
		return err
	}

	if err := tx.Sign(master.key); err != nil {
		return err
	}

	encoded, err := tx.Base64()
	if err != nil {
		return err
	}

	signature, err := s.chain.SendTransaction(ctx, encoded)
	if err != nil {
		return err
	}

	logger.Info(ctx, "creating associated token account",
		"token.account", ata.String(),
		"wallet.address", owner.String(),
		"transaction.signature", signature,
	)

	if err := s.chain.ConfirmTransaction(ctx, signature, chain.Confirmed); err != nil {
		return err
	}

	exists, err = s.chain.AccountExists(ctx, ata.String())
	if err != nil {
		return err
	}
	if !exists {
		return errAccountPending
	}

	return nil
}
