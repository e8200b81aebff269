package solana

import (
	"errors"
	"fmt"

	"github.com/gabapcia/solcustody/internal/chain"
)

// ErrUnknownNetwork is returned when a network tier name is not recognized.
var ErrUnknownNetwork = errors.New("unknown solana network")

// Network is a Solana cluster tier.
type Network string

const (
	MainnetBeta Network = "mainnet-beta"
	Testnet     Network = "testnet"
	Devnet      Network = "devnet"
)

// endpoints maps each tier to its public RPC and WebSocket endpoints.
var endpoints = map[Network]struct{ rpc, ws string }{
	MainnetBeta: {"https://api.mainnet-beta.solana.com", "wss://api.mainnet-beta.solana.com"},
	Testnet:     {"https://api.testnet.solana.com", "wss://api.testnet.solana.com"},
	Devnet:      {"https://api.devnet.solana.com", "wss://api.devnet.solana.com"},
}

// ParseNetwork validates a tier name.
func ParseNetwork(s string) (Network, error) {
	n := Network(s)
	if _, ok := endpoints[n]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownNetwork, s)
	}

	return n, nil
}

// Connection describes the cluster endpoint shared by every service. It is
// built once by the composition root and never mutated.
type Connection struct {
	Network    Network
	RPCURL     string
	WSURL      string
	Commitment chain.Commitment
}

// NewConnection returns the Connection for a network tier. Non-empty rpcURL or
// wsURL override the tier's public endpoints.
func NewConnection(network Network, rpcURL, wsURL string, commitment chain.Commitment) (Connection, error) {
	ep, ok := endpoints[network]
	if !ok {
		return Connection{}, fmt.Errorf("%w: %q", ErrUnknownNetwork, network)
	}

	if rpcURL == "" {
		rpcURL = ep.rpc
	}
	if wsURL == "" {
		wsURL = ep.ws
	}
	if commitment == "" {
		commitment = chain.Confirmed
	}

	return Connection{
		Network:    network,
		RPCURL:     rpcURL,
		WSURL:      wsURL,
		Commitment: commitment,
	}, nil
}
