package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gabapcia/solcustody/internal/config"
	"github.com/gabapcia/solcustody/internal/custody"
	"github.com/gabapcia/solcustody/internal/depositsink"
	"github.com/gabapcia/solcustody/internal/depositwatch"
	"github.com/gabapcia/solcustody/internal/handlers/cli"
	"github.com/gabapcia/solcustody/internal/history"
	"github.com/gabapcia/solcustody/internal/infra/blockchain/solana"
	"github.com/gabapcia/solcustody/internal/infra/notifier/webhook"
	"github.com/gabapcia/solcustody/internal/infra/storage/postgres"
	"github.com/gabapcia/solcustody/internal/infra/storage/redis"
	"github.com/gabapcia/solcustody/internal/pkg/logger"
	"github.com/gabapcia/solcustody/internal/pkg/telemetry"
	"github.com/gabapcia/solcustody/internal/pkg/transport/jsonrpc"
	"github.com/gabapcia/solcustody/internal/tokenissue"
	"github.com/gabapcia/solcustody/internal/walletkey"
	"github.com/gabapcia/solcustody/internal/withdrawal"

	"github.com/joho/godotenv"
)

const serviceName = "solcustody"

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// A missing .env is fine; the environment alone may carry the config.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Telemetry {
		shutdown, err := telemetry.Init(ctx, serviceName)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	if err := logger.Init(logger.WithLevel(cfg.LogLevel)); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	conn, err := cfg.Connection()
	if err != nil {
		return err
	}

	cache, err := redis.NewClient(ctx, cfg.Redis.Addr,
		redis.WithCredentials(cfg.Redis.Username, cfg.Redis.Password),
		redis.WithDB(cfg.Redis.DB),
	)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer cache.Close()

	pool, err := postgres.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := pool.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}

	vault, err := walletkey.NewVault(cfg.VaultMasterKey)
	if err != nil {
		return err
	}

	var (
		wallets  = postgres.NewWalletRepository(pool)
		ledger   = postgres.NewLedgerRepository(pool)
		deposits = postgres.NewDepositRepository(pool)
		keys     = walletkey.NewKeyStore(wallets, vault)
	)

	chainClient := solana.NewClient(conn, jsonrpc.NewClient(conn.RPCURL))
	defer chainClient.Close()

	var sinkOpts []depositsink.Option
	if cfg.Webhook.URL != "" {
		sinkOpts = append(sinkOpts, depositsink.WithNotifier(webhook.New(cfg.Webhook.URL, webhook.WithSecret(cfg.Webhook.Secret))))
	}

	sink := depositsink.New(deposits, sinkOpts...)
	if err := sink.Redeliver(ctx); err != nil {
		logger.Warn(ctx, "pending deposit notifications not delivered", "error", err)
	}

	svc := custody.New(
		custody.Components{
			History: history.New(chainClient,
				history.WithCache(cache),
				history.WithCacheExpiration(cfg.History.CacheExpiration),
			),
			Deposits: depositwatch.New(chainClient, sink,
				depositwatch.WithMonitorGuard(cache.NewMonitorGuard(cfg.Deposits.GuardTTL)),
				depositwatch.WithGuardRefresh(cfg.Deposits.GuardRefresh),
				depositwatch.WithInactivityTimeout(cfg.Deposits.InactivityTimeout),
				depositwatch.WithTransactionPolling(cfg.Deposits.PollAttempts, cfg.Deposits.PollDelay),
			),
			Withdrawals: withdrawal.New(chainClient, keys, ledger,
				withdrawal.WithMasterWallet(cfg.MasterWalletID),
			),
			Tokens: tokenissue.New(chainClient, keys),
		},
		custody.WithChainActive(cfg.Solana.Active),
		custody.WithWalletStore(wallets, vault),
	)
	defer svc.Close(context.WithoutCancel(ctx))

	logger.Info(ctx, "solcustody ready",
		"solana.network", string(conn.Network),
		"solana.active", cfg.Solana.Active,
	)

	return cli.Run(ctx, svc, cli.WithMasterWallet(cfg.MasterWalletID))
}
