// Package solana talks to a Solana cluster. It implements the chain access
// interfaces of the history, depositwatch, withdrawal and tokenissue services on
// top of a JSON-RPC client for queries and a single WebSocket connection for
// subscriptions.
package solana

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gabapcia/solcustody/internal/chain"
	"github.com/gabapcia/solcustody/internal/depositwatch"
	"github.com/gabapcia/solcustody/internal/history"
	"github.com/gabapcia/solcustody/internal/pkg/resilience/retry"
	"github.com/gabapcia/solcustody/internal/pkg/transport/jsonrpc"
	"github.com/gabapcia/solcustody/internal/tokenissue"
	"github.com/gabapcia/solcustody/internal/withdrawal"
)

var (
	// ErrTransactionFailed is returned by ConfirmTransaction when the cluster
	// reports an execution error for the signature.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrNotConfirmed is returned by ConfirmTransaction when the signature does not
	// reach the requested commitment in time.
	ErrNotConfirmed = errors.New("transaction not confirmed")
)

// config holds optional client settings.
type config struct {
	confirmAttempts uint
	confirmDelay    time.Duration
	ws              wsConfig
}

// Option customizes the client.
type Option func(*config)

// WithConfirmPolling sets how many times and how often ConfirmTransaction polls
// signature statuses. Default: 30 attempts, 2 seconds apart.
func WithConfirmPolling(attempts uint, delay time.Duration) Option {
	return func(c *config) {
		c.confirmAttempts = attempts
		c.confirmDelay = delay
	}
}

// WithPingInterval sets the WebSocket keepalive interval. Default: 30 seconds.
func WithPingInterval(d time.Duration) Option {
	return func(c *config) {
		c.ws.pingInterval = d
	}
}

// client implements the chain access interfaces for one Connection.
type client struct {
	conn Connection
	rpc  jsonrpc.Client
	ws   *wsClient
	cfg  config
}

var (
	_ history.Chain      = (*client)(nil)
	_ depositwatch.Chain = (*client)(nil)
	_ withdrawal.Chain   = (*client)(nil)
	_ tokenissue.Chain   = (*client)(nil)
)

// NewClient returns a client for conn. Queries go through rpc. Subscriptions
// share one WebSocket connection to conn.WSURL, dialed on first use.
func NewClient(conn Connection, rpc jsonrpc.Client, opts ...Option) *client {
	cfg := config{
		confirmAttempts: 30,
		confirmDelay:    2 * time.Second,
		ws:              defaultWSConfig(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &client{
		conn: conn,
		rpc:  rpc,
		ws:   newWSClient(conn.WSURL, cfg.ws),
		cfg:  cfg,
	}
}

// Close releases the WebSocket connection. Live subscription channels are closed.
func (c *client) Close() error {
	return c.ws.Close()
}

// GetBalance returns the lamport balance of address.
func (c *client) GetBalance(ctx context.Context, address string) (uint64, error) {
	var res contextValue[uint64]
	if err := c.rpc.Call(ctx, &res, "getBalance", address, map[string]any{"commitment": c.conn.Commitment}); err != nil {
		return 0, err
	}

	return res.Value, nil
}

// GetSignaturesForAddress lists up to limit recent signatures involving address, newest first.
func (c *client) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]chain.SignatureInfo, error) {
	var res []rpcSignatureInfo
	if err := c.rpc.Call(ctx, &res, "getSignaturesForAddress", address, map[string]any{
		"limit":      limit,
		"commitment": c.conn.Commitment,
	}); err != nil {
		return nil, err
	}

	infos := make([]chain.SignatureInfo, 0, len(res))
	for _, r := range res {
		infos = append(infos, r.toDomain())
	}

	return infos, nil
}

// GetTransaction fetches a transaction at the given commitment. It returns nil
// without error when the cluster does not know the signature yet.
func (c *client) GetTransaction(ctx context.Context, signature string, commitment chain.Commitment) (*chain.Transaction, error) {
	if commitment == "" {
		commitment = c.conn.Commitment
	}

	var res *rpcTransaction
	if err := c.rpc.Call(ctx, &res, "getTransaction", signature, map[string]any{
		"encoding":                       "jsonParsed",
		"commitment":                     commitment,
		"maxSupportedTransactionVersion": 0,
	}); err != nil {
		return nil, err
	}

	if res == nil {
		return nil, nil
	}

	tx := res.toDomain()
	return &tx, nil
}

// GetBlock fetches the block at slot with fully parsed transactions.
func (c *client) GetBlock(ctx context.Context, slot uint64) (*chain.Block, error) {
	var res *rpcBlock
	if err := c.rpc.Call(ctx, &res, "getBlock", slot, map[string]any{
		"encoding":                       "jsonParsed",
		"transactionDetails":             "full",
		"rewards":                        false,
		"commitment":                     chain.Confirmed,
		"maxSupportedTransactionVersion": 0,
	}); err != nil {
		return nil, err
	}

	if res == nil {
		return nil, fmt.Errorf("block %d not available", slot)
	}

	block := res.toDomain(slot)
	return &block, nil
}

// GetLatestBlockhash returns the most recent blockhash.
func (c *client) GetLatestBlockhash(ctx context.Context) (string, error) {
	var res contextValue[rpcBlockhash]
	if err := c.rpc.Call(ctx, &res, "getLatestBlockhash", map[string]any{"commitment": c.conn.Commitment}); err != nil {
		return "", err
	}

	return res.Value.Blockhash, nil
}

// SendTransaction broadcasts a base64 encoded signed transaction and returns its signature.
func (c *client) SendTransaction(ctx context.Context, encoded string) (string, error) {
	var signature string
	if err := c.rpc.Call(ctx, &signature, "sendTransaction", encoded, map[string]any{
		"encoding":            "base64",
		"preflightCommitment": c.conn.Commitment,
	}); err != nil {
		return "", err
	}

	return signature, nil
}

// GetSignatureStatus returns the status of signature, or nil when unknown.
func (c *client) GetSignatureStatus(ctx context.Context, signature string) (*chain.SignatureStatus, error) {
	var res contextValue[[]*rpcSignatureStatus]
	if err := c.rpc.Call(ctx, &res, "getSignatureStatuses", []string{signature}, map[string]any{
		"searchTransactionHistory": true,
	}); err != nil {
		return nil, err
	}

	if len(res.Value) == 0 || res.Value[0] == nil {
		return nil, nil
	}

	s := res.Value[0]
	return &chain.SignatureStatus{
		Slot:               s.Slot,
		Confirmations:      s.Confirmations,
		Err:                s.Err,
		ConfirmationStatus: s.ConfirmationStatus,
	}, nil
}

// reached reports whether status satisfies the wanted commitment.
func reached(status string, want chain.Commitment) bool {
	rank := map[string]int{
		string(chain.Processed): 1,
		string(chain.Confirmed): 2,
		string(chain.Finalized): 3,
	}

	return rank[status] >= rank[string(want)]
}

// ConfirmTransaction polls the signature status until it reaches commitment.
// It fails with ErrTransactionFailed when the cluster reports an execution error
// and with ErrNotConfirmed when polling runs out.
func (c *client) ConfirmTransaction(ctx context.Context, signature string, commitment chain.Commitment) error {
	if commitment == "" {
		commitment = c.conn.Commitment
	}

	r := retry.New(
		retry.WithAttempts(c.cfg.confirmAttempts),
		retry.WithDelay(c.cfg.confirmDelay),
		retry.WithFixedDelay(),
	)

	return r.Execute(ctx, func() error {
		status, err := c.GetSignatureStatus(ctx, signature)
		if err != nil {
			return err
		}

		if status == nil {
			return fmt.Errorf("%w: %s", ErrNotConfirmed, signature)
		}

		if status.Err != nil {
			return retry.Unrecoverable(fmt.Errorf("%w: %s: %v", ErrTransactionFailed, signature, status.Err))
		}

		if !reached(status.ConfirmationStatus, commitment) {
			return fmt.Errorf("%w: %s is %s", ErrNotConfirmed, signature, status.ConfirmationStatus)
		}

		return nil
	})
}

// GetTokenAccountBalance returns the balance of a token account.
func (c *client) GetTokenAccountBalance(ctx context.Context, account string) (chain.TokenAmount, error) {
	var res contextValue[rpcTokenAmount]
	if err := c.rpc.Call(ctx, &res, "getTokenAccountBalance", account, map[string]any{"commitment": c.conn.Commitment}); err != nil {
		return chain.TokenAmount{}, err
	}

	return chain.TokenAmount{
		Amount:         res.Value.Amount,
		Decimals:       res.Value.Decimals,
		UIAmountString: res.Value.UIAmountString,
	}, nil
}

// AccountExists reports whether address holds an account on chain.
func (c *client) AccountExists(ctx context.Context, address string) (bool, error) {
	var res contextValue[*struct {
		Lamports uint64 `json:"lamports"`
	}]
	if err := c.rpc.Call(ctx, &res, "getAccountInfo", address, map[string]any{
		"encoding":   "base64",
		"commitment": c.conn.Commitment,
	}); err != nil {
		return false, err
	}

	return res.Value != nil, nil
}

// GetMinimumBalanceForRentExemption returns the lamports needed to keep an
// account of size bytes rent exempt.
func (c *client) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	var lamports uint64
	if err := c.rpc.Call(ctx, &lamports, "getMinimumBalanceForRentExemption", size); err != nil {
		return 0, err
	}

	return lamports, nil
}
