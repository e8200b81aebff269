package cli

import (
	"context"
	"fmt"
	"math"

	"github.com/gabapcia/solcustody/internal/custody"
	"github.com/gabapcia/solcustody/internal/withdrawal"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
)

// transactionIDFlag is shared by the withdrawal commands. A missing id is
// generated so the ledger entry can still be looked up from the output.
func transactionIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "transaction-id",
		Usage: "Ledger id of the withdrawal (generated when omitted)",
	}
}

func decimalsFlag() cli.Flag {
	return &cli.UintFlag{
		Name:     "decimals",
		Usage:    "Decimals of the mint",
		Required: true,
	}
}

func decimalsValue(c *cli.Command) (uint8, error) {
	d := c.Uint("decimals")
	if d > math.MaxUint8 {
		return 0, fmt.Errorf("decimals out of range: %d", d)
	}

	return uint8(d), nil
}

func transactionID(c *cli.Command) string {
	if id := c.String("transaction-id"); id != "" {
		return id
	}

	return uuid.NewString()
}

// withdrawCommand sends SOL out of a custodial wallet.
//
// Usage example:
//
//	solcustody withdraw --wallet-id 0197... --to 9WzD... --amount 0.25
func withdrawCommand(svc custody.Service, p *printer) *cli.Command {
	return &cli.Command{
		Name:        "withdraw",
		Description: "Transfers SOL from a custodial wallet and records the outcome in the ledger.",
		Usage:       "Withdraws SOL. Amount is in SOL.",
		Flags: []cli.Flag{
			transactionIDFlag(),
			&cli.StringFlag{
				Name:     "wallet-id",
				Usage:    "Custodial wallet to debit",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "to",
				Usage:    "Destination address",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "amount",
				Usage:    "Amount in SOL",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			req := withdrawal.NativeWithdrawal{
				TransactionID: transactionID(c),
				WalletID:      c.String("wallet-id"),
				Amount:        c.String("amount"),
				To:            c.String("to"),
			}

			p.Step(ctx, "Withdrawal "+req.TransactionID)
			return svc.HandleWithdrawal(ctx, req, p)
		},
	}
}

// withdrawTokenCommand sends SPL tokens out of a custodial wallet.
//
// Usage example:
//
//	solcustody withdraw-token --wallet-id 0197... --mint EPjF... --decimals 6 --to 9WzD... --amount 12.5
func withdrawTokenCommand(svc custody.Service, p *printer) *cli.Command {
	return &cli.Command{
		Name:        "withdraw-token",
		Description: "Transfers SPL tokens from a custodial wallet. Fees are paid by the master wallet.",
		Usage:       "Withdraws tokens. Amount is in display units.",
		Flags: []cli.Flag{
			transactionIDFlag(),
			&cli.StringFlag{
				Name:     "wallet-id",
				Usage:    "Custodial wallet to debit",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "mint",
				Usage:    "Token mint address",
				Required: true,
			},
			decimalsFlag(),
			&cli.StringFlag{
				Name:     "to",
				Usage:    "Destination owner address",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "amount",
				Usage:    "Amount in display units",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			decimals, err := decimalsValue(c)
			if err != nil {
				return err
			}

			req := withdrawal.TokenWithdrawal{
				TransactionID: transactionID(c),
				WalletID:      c.String("wallet-id"),
				Mint:          c.String("mint"),
				Amount:        c.String("amount"),
				To:            c.String("to"),
				Decimals:      decimals,
			}

			p.Step(ctx, "Withdrawal "+req.TransactionID)
			return svc.HandleTokenWithdrawal(ctx, req, p)
		},
	}
}
