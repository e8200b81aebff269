package depositwatch

import "time"

// StatusCompleted is the status of every detected deposit.
const StatusCompleted = "COMPLETED"

// NativeAssetID identifies native SOL deposits towards the Broadcaster.
const NativeAssetID = "SOL"

// DepositRecord is a detected incoming transfer.
type DepositRecord struct {
	WalletID  string    `json:"walletId"`
	Hash      string    `json:"hash"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Amount    string    `json:"amount"` // display units
	Mint      string    `json:"mint,omitempty"`
	Decimals  uint8     `json:"decimals"`
	Fee       string    `json:"fee"`
	Status    string    `json:"status"`
	Slot      uint64    `json:"slot"`
	Timestamp time.Time `json:"timestamp"`
}
