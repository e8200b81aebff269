package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gabapcia/solcustody/internal/custody"
	"github.com/gabapcia/solcustody/internal/depositwatch"
	"github.com/gabapcia/solcustody/internal/progress"

	"github.com/urfave/cli/v3"
)

// ErrMonitorEnded is returned by the watch commands when the monitor stopped
// without processing a deposit.
var ErrMonitorEnded = errors.New("deposit monitor ended without a deposit")

// stopTimeout bounds the unsubscribe issued after an interrupt.
const stopTimeout = 10 * time.Second

// watchObserver prints progress and reports the first failure.
type watchObserver struct {
	*printer
	failed chan string
}

func (o *watchObserver) Fail(ctx context.Context, msg string) {
	o.printer.Fail(ctx, msg)
	select {
	case o.failed <- msg:
	default:
	}
}

type startFunc func(ctx context.Context, onProcessed depositwatch.ProcessedFunc, observer progress.Observer) error

// waitForDeposit starts a monitor and blocks until it processes a deposit,
// reports a failure, or the process is interrupted. An interrupt cancels the
// monitor.
func waitForDeposit(ctx context.Context, svc custody.Service, p *printer, address, mint string, start startFunc) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	processed := make(chan depositwatch.DepositRecord, 1)
	observer := &watchObserver{printer: p, failed: make(chan string, 1)}

	onProcessed := func(_ context.Context, record depositwatch.DepositRecord) {
		processed <- record
	}
	if err := start(ctx, onProcessed, observer); err != nil {
		return err
	}

	select {
	case record := <-processed:
		return p.JSON(record)
	case msg := <-observer.failed:
		return fmt.Errorf("%w: %s", ErrMonitorEnded, msg)
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()

	if err := svc.StopMonitoring(stopCtx, address, mint); err != nil && !errors.Is(err, depositwatch.ErrNotMonitoring) {
		return err
	}

	return nil
}

// watchCommand waits for a native SOL deposit.
//
// Usage example:
//
//	solcustody watch --wallet-id 0197... --address 9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM
//
// The command blocks until the deposit is processed, the monitor ends, or it
// receives an interrupt (SIGINT or SIGTERM).
func watchCommand(svc custody.Service, p *printer) *cli.Command {
	return &cli.Command{
		Name:        "watch",
		Description: "Waits for an incoming SOL deposit into a custodial wallet.",
		Usage:       "Monitors an address until one deposit is processed. Terminates on Ctrl+C.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "wallet-id",
				Usage:    "Custodial wallet id the deposit is credited to",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "address",
				Usage:    "Wallet address to watch",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			req := depositwatch.MonitorRequest{
				WalletID: c.String("wallet-id"),
				Address:  c.String("address"),
			}

			return waitForDeposit(ctx, svc, p, req.Address, "", func(ctx context.Context, onProcessed depositwatch.ProcessedFunc, observer progress.Observer) error {
				return svc.MonitorDeposits(ctx, req, onProcessed, observer)
			})
		},
	}
}

// watchTokenCommand waits for an SPL token deposit.
//
// Usage example:
//
//	solcustody watch-token --wallet-id 0197... --address 9WzD... --mint EPjFWdd5...
func watchTokenCommand(svc custody.Service, p *printer) *cli.Command {
	return &cli.Command{
		Name:        "watch-token",
		Description: "Waits for an incoming SPL token deposit into a custodial wallet.",
		Usage:       "Monitors the token account of an owner until one deposit is processed. Terminates on Ctrl+C.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "wallet-id",
				Usage:    "Custodial wallet id the deposit is credited to",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "address",
				Usage:    "Owner address of the token account",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "mint",
				Usage:    "Token mint address",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			req := depositwatch.TokenMonitorRequest{
				WalletID: c.String("wallet-id"),
				Address:  c.String("address"),
				Mint:     c.String("mint"),
			}

			return waitForDeposit(ctx, svc, p, req.Address, req.Mint, func(ctx context.Context, onProcessed depositwatch.ProcessedFunc, observer progress.Observer) error {
				return svc.MonitorTokenDeposits(ctx, req, onProcessed, observer)
			})
		},
	}
}
