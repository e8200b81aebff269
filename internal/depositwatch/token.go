package depositwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/gabapcia/solcustody/internal/chain"
	"github.com/gabapcia/solcustody/internal/pkg/logger"
	"github.com/gabapcia/solcustody/internal/pkg/resilience/retry"
	"github.com/gabapcia/solcustody/internal/pkg/sol"
	"github.com/gabapcia/solcustody/internal/pkg/validator"
	"github.com/gabapcia/solcustody/internal/progress"

	"github.com/shopspring/decimal"
)

// tokenTarget is what a token monitor scans blocks for.
type tokenTarget struct {
	walletID string
	owner    string
	mint     string
	ata      string
}

// MonitorTokenDeposits implements Service.
func (s *service) MonitorTokenDeposits(ctx context.Context, req TokenMonitorRequest, onProcessed ProcessedFunc, observer progress.Observer) error {
	if err := validator.Validate(req); err != nil {
		return err
	}

	owner, err := sol.ParsePublicKey(req.Address)
	if err != nil {
		return err
	}

	mint, err := sol.ParsePublicKey(req.Mint)
	if err != nil {
		return err
	}

	ata, err := sol.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return err
	}

	m, err := s.reserve(ctx, monitorKey{address: req.Address, mint: req.Mint})
	if err != nil {
		return err
	}

	sub, err := s.chain.SubscribeTokenAccounts(ctx, req.Address, req.Mint)
	if err != nil {
		s.release(ctx, m)
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.activate(runCtx, m, sub.Handle, cancel)
	s.metrics.started.Add(ctx, 1)

	observer = progress.OrNop(observer)
	observer.Step(ctx, fmt.Sprintf("Monitoring %s deposits for %s", req.Mint, req.Address))
	logger.Info(ctx, "token deposit monitor started",
		"wallet.id", req.WalletID,
		"wallet.address", req.Address,
		"token.mint", req.Mint,
		"token.account", ata.String(),
		"subscription.id", sub.Handle.ID,
	)

	target := tokenTarget{walletID: req.WalletID, owner: req.Address, mint: req.Mint, ata: ata.String()}
	go s.watchToken(runCtx, m, sub, target, onProcessed, observer)
	return nil
}

// watchToken scans the block of every account notification. Each notification
// rearms the inactivity timer.
func (s *service) watchToken(ctx context.Context, m *monitor, sub *chain.AccountSubscription, target tokenTarget, onProcessed ProcessedFunc, observer progress.Observer) {
	timer := time.NewTimer(s.cfg.inactivityTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.teardown(ctx, m, StateCancelled)
			return
		case <-timer.C:
			s.metrics.timeouts.Add(ctx, 1)
			logger.Info(ctx, "no token deposit observed before timeout",
				"wallet.address", target.owner,
				"token.mint", target.mint,
			)
			s.teardown(ctx, m, StateTimedOut)
			observer.Fail(ctx, fmt.Sprintf("No %s deposit to %s before timeout", target.mint, target.owner))
			return
		case ev, ok := <-sub.Events:
			if !ok {
				logger.Warn(ctx, "token deposit subscription ended by the connection",
					"wallet.address", target.owner,
					"token.mint", target.mint,
				)
				s.teardown(ctx, m, StateDropped)
				observer.Fail(ctx, fmt.Sprintf("Token deposit subscription for %s was closed", target.owner))
				return
			}

			timer.Reset(s.cfg.inactivityTimeout)

			record, found := s.scanBlock(ctx, ev, target)
			if !found {
				continue
			}

			s.complete(ctx, m, record, target.mint, onProcessed, observer)
			return
		}
	}
}

// scanBlock looks for the first transaction of the notified slot that moved
// tokens of the target mint into the owner's account.
func (s *service) scanBlock(ctx context.Context, ev chain.AccountEvent, target tokenTarget) (DepositRecord, bool) {
	var block *chain.Block
	err := retry.New(
		retry.WithAttempts(s.cfg.blockAttempts),
		retry.WithDelay(s.cfg.blockDelay),
		retry.WithFixedDelay(),
	).Execute(ctx, func() error {
		b, err := s.chain.GetBlock(ctx, ev.Slot)
		if err != nil {
			return err
		}

		block = b
		return nil
	})
	if err != nil {
		logger.Warn(ctx, "failed to fetch block for token notification",
			"wallet.address", target.owner,
			"block.slot", ev.Slot,
			"error", err,
		)
		return DepositRecord{}, false
	}

	accounts := []string{target.ata}
	if ev.Pubkey != "" && ev.Pubkey != target.ata {
		accounts = append(accounts, ev.Pubkey)
	}

	for i := range block.Transactions {
		tx := &block.Transactions[i]
		if tx.Meta == nil || tx.Meta.Failed() || len(tx.Signatures) == 0 {
			continue
		}

		deposit, err := matchTokenTransfer(tx, target, accounts)
		if err != nil {
			logger.Warn(ctx, "skipping unreadable transaction",
				"transaction.signature", tx.Signatures[0],
				"block.slot", ev.Slot,
				"error", err,
			)
			continue
		}
		if deposit == nil {
			continue
		}

		if tx.Slot == 0 {
			tx.Slot = block.Slot
		}
		if tx.BlockTime == nil {
			tx.BlockTime = block.BlockTime
		}

		return DepositRecord{
			WalletID:  target.walletID,
			Hash:      tx.Signatures[0],
			From:      deposit.from,
			To:        target.owner,
			Amount:    deposit.amount.String(),
			Mint:      target.mint,
			Decimals:  deposit.decimals,
			Fee:       sol.LamportsToSOL(tx.Meta.Fee),
			Status:    StatusCompleted,
			Slot:      tx.Slot,
			Timestamp: tx.Time(s.cfg.now()),
		}, true
	}

	return DepositRecord{}, false
}

// tokenDeposit is a matched transfer in display units.
type tokenDeposit struct {
	from     string
	amount   decimal.Decimal
	decimals uint8
}

// transferInfo is the parsed info of transfer and transferChecked instructions.
type transferInfo struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Authority   string `json:"authority"`
	Mint        string `json:"mint"`
	Amount      string `json:"amount"`
	TokenAmount *struct {
		Amount   string `json:"amount"`
		Decimals uint8  `json:"decimals"`
	} `json:"tokenAmount"`
}

// matchTokenTransfer reads tx for a deposit of target.mint into one of
// accounts. Parsed instructions are checked first; the token balance change of
// the owner is the fallback. A nil result without error means no match.
func matchTokenTransfer(tx *chain.Transaction, target tokenTarget, accounts []string) (*tokenDeposit, error) {
	deposit, err := matchTransferInstruction(tx, target, accounts)
	if err != nil || deposit != nil {
		return deposit, err
	}

	return matchTokenBalanceDelta(tx, target)
}

func matchTransferInstruction(tx *chain.Transaction, target tokenTarget, accounts []string) (*tokenDeposit, error) {
	for _, ix := range tx.Instructions {
		if ix.ProgramID != sol.TokenProgramID.String() || ix.Parsed == nil {
			continue
		}
		if ix.Parsed.Type != "transfer" && ix.Parsed.Type != "transferChecked" {
			continue
		}

		var info transferInfo
		if err := json.Unmarshal(ix.Parsed.Info, &info); err != nil {
			return nil, fmt.Errorf("decode %s instruction: %w", ix.Parsed.Type, err)
		}

		if !slices.Contains(accounts, info.Destination) {
			continue
		}

		var (
			raw      string
			decimals uint8
		)
		switch {
		case info.TokenAmount != nil:
			if info.Mint != target.mint {
				continue
			}
			raw, decimals = info.TokenAmount.Amount, info.TokenAmount.Decimals
		default:
			// Plain transfers carry no mint; take it from the destination balance.
			balance, ok := postTokenBalance(tx, info.Destination)
			if !ok || balance.Mint != target.mint {
				continue
			}
			raw, decimals = info.Amount, balance.Decimals
		}

		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse transfer amount %q: %w", raw, err)
		}
		if !amount.IsPositive() {
			continue
		}

		from := info.Authority
		if from == "" {
			from = info.Source
		}

		return &tokenDeposit{from: from, amount: amount.Shift(-int32(decimals)), decimals: decimals}, nil
	}

	return nil, nil
}

func matchTokenBalanceDelta(tx *chain.Transaction, target tokenTarget) (*tokenDeposit, error) {
	for _, post := range tx.Meta.PostTokenBalances {
		if post.Owner != target.owner || post.Mint != target.mint {
			continue
		}

		postAmount, err := decimal.NewFromString(post.Amount)
		if err != nil {
			return nil, fmt.Errorf("parse post token balance %q: %w", post.Amount, err)
		}

		preAmount := decimal.Zero
		for _, pre := range tx.Meta.PreTokenBalances {
			if pre.AccountIndex == post.AccountIndex && pre.Mint == post.Mint {
				if preAmount, err = decimal.NewFromString(pre.Amount); err != nil {
					return nil, fmt.Errorf("parse pre token balance %q: %w", pre.Amount, err)
				}
				break
			}
		}

		delta := postAmount.Sub(preAmount)
		if !delta.IsPositive() {
			continue
		}

		from := ""
		if len(tx.AccountKeys) > 0 {
			from = tx.AccountKeys[0]
		}

		return &tokenDeposit{from: from, amount: delta.Shift(-int32(post.Decimals)), decimals: post.Decimals}, nil
	}

	return nil, nil
}

func postTokenBalance(tx *chain.Transaction, account string) (chain.TokenBalance, bool) {
	idx := tx.AccountIndex(account)
	if idx < 0 {
		return chain.TokenBalance{}, false
	}

	for _, b := range tx.Meta.PostTokenBalances {
		if b.AccountIndex == idx {
			return b, true
		}
	}

	return chain.TokenBalance{}, false
}
