// Package config loads the process configuration from SOLCUSTODY_* environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/gabapcia/solcustody/internal/chain"
	"github.com/gabapcia/solcustody/internal/infra/blockchain/solana"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable name.
const Prefix = "SOLCUSTODY"

// Solana selects the cluster and whether mutating operations are allowed.
type Solana struct {
	Network    string `envconfig:"NETWORK" default:"devnet"`
	RPCURL     string `envconfig:"RPC_URL"`
	WSURL      string `envconfig:"WS_URL"`
	Commitment string `envconfig:"COMMITMENT" default:"confirmed"`
	Active     bool   `envconfig:"ACTIVE" default:"true"`
}

// Deposits tunes the deposit monitors.
type Deposits struct {
	InactivityTimeout time.Duration `envconfig:"INACTIVITY_TIMEOUT" default:"1h"`
	PollAttempts      uint          `envconfig:"POLL_ATTEMPTS" default:"30"`
	PollDelay         time.Duration `envconfig:"POLL_DELAY" default:"5s"`
	GuardTTL          time.Duration `envconfig:"GUARD_TTL" default:"3m"`
	GuardRefresh      time.Duration `envconfig:"GUARD_REFRESH" default:"1m"`
}

// History tunes the transaction history reads.
type History struct {
	CacheExpiration time.Duration `envconfig:"CACHE_EXPIRATION" default:"5m"`
}

// Redis holds the connection settings of the cache and monitor claims.
type Redis struct {
	Addr     string `envconfig:"ADDR" default:"localhost:6379"`
	Username string `envconfig:"USERNAME"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
}

// Postgres holds the connection settings of the wallet, ledger and deposit store.
type Postgres struct {
	DSN string `envconfig:"DSN" required:"true"`
}

// Webhook configures deposit notifications. An empty URL disables them.
type Webhook struct {
	URL    string `envconfig:"URL"`
	Secret string `envconfig:"SECRET"`
}

// Config is the full process configuration.
type Config struct {
	Solana   Solana
	Deposits Deposits
	History  History
	Redis    Redis
	Postgres Postgres
	Webhook  Webhook

	MasterWalletID string `envconfig:"MASTER_WALLET_ID"`
	VaultMasterKey string `envconfig:"VAULT_MASTER_KEY" required:"true"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	Telemetry      bool   `envconfig:"TELEMETRY" default:"false"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if cfg.Deposits.PollAttempts == 0 {
		return Config{}, fmt.Errorf("load config: %s_DEPOSITS_POLL_ATTEMPTS must be positive", Prefix)
	}

	return cfg, nil
}

// Connection builds the cluster connection described by the Solana settings.
func (c Config) Connection() (solana.Connection, error) {
	network, err := solana.ParseNetwork(c.Solana.Network)
	if err != nil {
		return solana.Connection{}, err
	}

	commitment, err := parseCommitment(c.Solana.Commitment)
	if err != nil {
		return solana.Connection{}, err
	}

	return solana.NewConnection(network, c.Solana.RPCURL, c.Solana.WSURL, commitment)
}

func parseCommitment(s string) (chain.Commitment, error) {
	switch c := chain.Commitment(s); c {
	case chain.Processed, chain.Confirmed, chain.Finalized:
		return c, nil
	default:
		return "", fmt.Errorf("unsupported commitment %q", s)
	}
}
