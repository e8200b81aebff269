package cli

import (
	"context"

	"github.com/gabapcia/solcustody/internal/custody"

	"github.com/urfave/cli/v3"
)

// walletCommand groups wallet management.
//
// Usage example:
//
//	solcustody wallet create
func walletCommand(svc custody.Service, p *printer) *cli.Command {
	return &cli.Command{
		Name:  "wallet",
		Usage: "Manages custodial wallets.",
		Commands: []*cli.Command{
			{
				Name:        "create",
				Description: "Generates a new mnemonic backed wallet and stores its sealed key.",
				Usage:       "Creates a wallet and prints its address, keys and id.",
				Action: func(ctx context.Context, c *cli.Command) error {
					w, err := svc.CreateWallet(ctx)
					if err != nil {
						return err
					}

					return p.JSON(w)
				},
			},
		},
	}
}

// balanceCommand prints the SOL balance of an address.
//
// Usage example:
//
//	solcustody balance --address 9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM
func balanceCommand(svc custody.Service, p *printer) *cli.Command {
	return &cli.Command{
		Name:        "balance",
		Description: "Prints the native balance of an address in SOL.",
		Usage:       "Reads the SOL balance of an address.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "address",
				Usage:    "Wallet address to read",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			balance, err := svc.GetBalance(ctx, c.String("address"))
			if err != nil {
				return err
			}

			return p.JSON(map[string]string{"address": c.String("address"), "balance": balance})
		},
	}
}

// historyCommand prints the recent transactions of an address.
//
// Usage example:
//
//	solcustody history --address 9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM
func historyCommand(svc custody.Service, p *printer) *cli.Command {
	return &cli.Command{
		Name:        "history",
		Description: "Prints the recent normalized transactions of an address.",
		Usage:       "Reads the transaction history of an address.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "address",
				Usage:    "Wallet address to read",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			records, err := svc.FetchTransactions(ctx, c.String("address"))
			if err != nil {
				return err
			}

			return p.JSON(records)
		},
	}
}
