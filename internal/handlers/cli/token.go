package cli

import (
	"context"
	"errors"

	"github.com/gabapcia/solcustody/internal/custody"
	"github.com/gabapcia/solcustody/internal/tokenissue"

	"github.com/urfave/cli/v3"
)

// ErrMasterWalletRequired is returned by the token commands when neither the
// flag nor the configuration name a master wallet.
var ErrMasterWalletRequired = errors.New("master wallet id is required")

// tokenCommand groups SPL token issuance.
//
// Usage example:
//
//	solcustody token deploy --decimals 6
//	solcustody token mint --mint EPjF... --decimals 6 --holder 9WzD... --amount 1000000
func tokenCommand(svc custody.Service, p *printer, defaultMaster string) *cli.Command {
	masterFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:  "master-wallet-id",
			Usage: "Master wallet paying fees and holding the mint authority",
			Value: defaultMaster,
		}
	}

	masterWallet := func(c *cli.Command) (string, error) {
		id := c.String("master-wallet-id")
		if id == "" {
			return "", ErrMasterWalletRequired
		}

		return id, nil
	}

	return &cli.Command{
		Name:  "token",
		Usage: "Issues SPL tokens from the master wallet.",
		Commands: []*cli.Command{
			{
				Name:        "deploy",
				Description: "Creates a new mint whose mint authority is the master wallet.",
				Usage:       "Deploys a token and prints its mint address.",
				Flags:       []cli.Flag{masterFlag(), decimalsFlag()},
				Action: func(ctx context.Context, c *cli.Command) error {
					master, err := masterWallet(c)
					if err != nil {
						return err
					}

					decimals, err := decimalsValue(c)
					if err != nil {
						return err
					}

					mint, err := svc.DeployToken(ctx, tokenissue.DeployRequest{MasterWalletID: master, Decimals: decimals}, p)
					if err != nil {
						return err
					}

					return p.JSON(map[string]string{"mint": mint})
				},
			},
			{
				Name:        "mint",
				Description: "Mints supply of a mint owned by the master wallet to a holder.",
				Usage:       "Mints tokens. Amount is in display units.",
				Flags: []cli.Flag{
					masterFlag(),
					decimalsFlag(),
					&cli.StringFlag{
						Name:     "mint",
						Usage:    "Token mint address",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "holder",
						Usage:    "Owner address receiving the supply",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "amount",
						Usage:    "Amount in display units",
						Required: true,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					master, err := masterWallet(c)
					if err != nil {
						return err
					}

					decimals, err := decimalsValue(c)
					if err != nil {
						return err
					}

					return svc.MintInitialSupply(ctx, tokenissue.MintRequest{
						MasterWalletID: master,
						Mint:           c.String("mint"),
						Amount:         c.String("amount"),
						Decimals:       decimals,
						Holder:         c.String("holder"),
					}, p)
				},
			},
		},
	}
}
