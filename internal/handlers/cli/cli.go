// Package cli is the operator command line of the custody core.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/gabapcia/solcustody/internal/custody"

	"github.com/urfave/cli/v3"
)

type config struct {
	out            io.Writer
	masterWalletID string
}

// Option customizes the CLI application.
type Option func(*config)

// WithOutput sets where command results and progress are printed. Default: stdout.
func WithOutput(w io.Writer) Option {
	return func(c *config) {
		c.out = w
	}
}

// WithMasterWallet sets the default master wallet of the token commands.
func WithMasterWallet(walletID string) Option {
	return func(c *config) {
		c.masterWalletID = walletID
	}
}

// Run initializes and executes the solcustody CLI application.
//
// It registers all available commands, including:
//
//   - `wallet create`: Generates a new custodial wallet.
//   - `balance` and `history`: Read the state of an address.
//   - `watch` and `watch-token`: Wait for a deposit into an address.
//   - `withdraw` and `withdraw-token`: Send funds out of a custodial wallet.
//   - `token deploy` and `token mint`: Issue SPL tokens from the master wallet.
func Run(ctx context.Context, svc custody.Service, opts ...Option) error {
	return newApp(svc, opts...).Run(ctx, os.Args)
}

func newApp(svc custody.Service, opts ...Option) *cli.Command {
	cfg := config{out: os.Stdout}
	for _, opt := range opts {
		opt(&cfg)
	}

	p := newPrinter(cfg.out)

	return &cli.Command{
		EnableShellCompletion: true,
		Name:                  "solcustody",
		Description:           "Command-line interface for the custodial Solana wallet core.",
		Usage:                 "solcustody [command] [flags]",
		Writer:                cfg.out,
		Commands: []*cli.Command{
			walletCommand(svc, p),
			balanceCommand(svc, p),
			historyCommand(svc, p),
			watchCommand(svc, p),
			watchTokenCommand(svc, p),
			withdrawCommand(svc, p),
			withdrawTokenCommand(svc, p),
			tokenCommand(svc, p, cfg.masterWalletID),
		},
	}
}
