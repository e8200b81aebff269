// Package chain holds the Solana ledger model shared by the custody services.
// Infrastructure clients decode RPC payloads into these types and the services
// consume them through narrow interfaces of their own.
package chain

import (
	"encoding/json"
	"time"
)

// ID is the chain identifier used by the key store and the ledger.
const ID = "solana"

// Commitment is the durability level requested for a query or subscription.
type Commitment string

const (
	Processed Commitment = "processed"
	Confirmed Commitment = "confirmed"
	Finalized Commitment = "finalized"
)

// SignatureInfo is one entry of an address' signature listing, newest first.
type SignatureInfo struct {
	Signature          string
	Slot               uint64
	BlockTime          *int64
	Err                any
	ConfirmationStatus string
}

// SignatureStatus is the cluster view of a submitted transaction.
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64
	Err                any
	ConfirmationStatus string
}

// Transaction is a fetched transaction together with its execution metadata.
type Transaction struct {
	Slot         uint64
	BlockTime    *int64
	Signatures   []string
	AccountKeys  []string
	Instructions []Instruction
	Meta         *Meta
}

// Time returns the block time of the transaction, or fallback when the cluster
// did not report one.
func (t Transaction) Time(fallback time.Time) time.Time {
	if t.BlockTime == nil {
		return fallback.UTC()
	}

	return time.Unix(*t.BlockTime, 0).UTC()
}

// AccountIndex returns the position of address in the transaction account list, or -1.
func (t Transaction) AccountIndex(address string) int {
	for i, k := range t.AccountKeys {
		if k == address {
			return i
		}
	}

	return -1
}

// Instruction is a top level instruction. Parsed is nil when the RPC node could
// not decode the instruction for its program.
type Instruction struct {
	Program   string
	ProgramID string
	Parsed    *ParsedInstruction
}

// ParsedInstruction is the decoded form of a known program instruction. Info keeps
// the program specific payload for the consumer to decode.
type ParsedInstruction struct {
	Type string
	Info json.RawMessage
}

// Meta is the execution metadata of a transaction.
type Meta struct {
	Err               any
	Fee               uint64
	PreBalances       []uint64
	PostBalances      []uint64
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// Failed reports whether the transaction executed with an error.
func (m Meta) Failed() bool {
	return m.Err != nil
}

// TokenBalance is a token account balance captured before or after a transaction.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       string // base units
	Decimals     uint8
}

// TokenAmount is the balance of a token account.
type TokenAmount struct {
	Amount         string // base units
	Decimals       uint8
	UIAmountString string
}

// Block is a confirmed block with its full transactions.
type Block struct {
	Slot         uint64
	BlockTime    *int64
	Transactions []Transaction
}

// SubscriptionKind names the subscription family a handle belongs to.
type SubscriptionKind string

const (
	LogsSubscription    SubscriptionKind = "logs"
	ProgramSubscription SubscriptionKind = "program"
)

// SubscriptionHandle identifies one live chain subscription.
type SubscriptionHandle struct {
	ID   uint64
	Kind SubscriptionKind
}

// LogEvent is emitted when a transaction mentioning a watched address is processed.
type LogEvent struct {
	Signature string
	Slot      uint64
	Err       any
}

// AccountEvent is emitted when a watched token account changes.
type AccountEvent struct {
	Pubkey string
	Slot   uint64
}

// LogSubscription delivers LogEvents until the subscription ends, at which point
// Events is closed.
type LogSubscription struct {
	Handle SubscriptionHandle
	Events <-chan LogEvent
}

// AccountSubscription delivers AccountEvents until the subscription ends, at
// which point Events is closed.
type AccountSubscription struct {
	Handle SubscriptionHandle
	Events <-chan AccountEvent
}
