package history

import (
	"encoding/json"
	"time"

	"github.com/gabapcia/solcustody/internal/chain"
	"github.com/gabapcia/solcustody/internal/pkg/sol"
)

// Status is the outcome of a transaction.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
)

// notAvailable marks fields that could not be determined.
const notAvailable = "N/A"

// TransactionRecord is the canonical, display ready view of a transaction.
// Amount and Fee are in SOL.
type TransactionRecord struct {
	Timestamp     string `json:"timestamp"`
	Hash          string `json:"hash"`
	From          string `json:"from"`
	To            string `json:"to"`
	Amount        string `json:"amount"`
	Fee           string `json:"fee"`
	Status        Status `json:"status"`
	IsError       bool   `json:"isError"`
	Confirmations string `json:"confirmations"`
}

// systemTransferInfo is the parsed payload of a system transfer instruction.
type systemTransferInfo struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Lamports    uint64 `json:"lamports"`
}

// Normalize converts tx into a TransactionRecord from the point of view of
// address. fallback is used as the timestamp when the block time is unknown.
//
// Only system transfer instructions are considered. When several of them touch
// address, the last one scanned is reported.
func Normalize(tx chain.Transaction, address, confirmations string, fallback time.Time) TransactionRecord {
	rec := TransactionRecord{
		Timestamp:     tx.Time(fallback).Format(time.RFC3339),
		From:          notAvailable,
		To:            notAvailable,
		Amount:        "0",
		Fee:           "0",
		Status:        StatusSuccess,
		Confirmations: confirmations,
	}

	if len(tx.Signatures) > 0 {
		rec.Hash = tx.Signatures[0]
	}

	if rec.Confirmations == "" {
		rec.Confirmations = notAvailable
	}

	if tx.Meta != nil {
		rec.Fee = sol.LamportsToSOL(tx.Meta.Fee)
		if tx.Meta.Failed() {
			rec.Status = StatusFailed
		}
	}
	rec.IsError = rec.Status == StatusFailed

	for _, ix := range tx.Instructions {
		if ix.ProgramID != sol.SystemProgramID.String() || ix.Parsed == nil || ix.Parsed.Type != "transfer" {
			continue
		}

		var info systemTransferInfo
		if err := json.Unmarshal(ix.Parsed.Info, &info); err != nil {
			continue
		}

		if info.Source != address && info.Destination != address {
			continue
		}

		rec.From = info.Source
		rec.To = info.Destination
		rec.Amount = sol.LamportsToSOL(info.Lamports)
	}

	return rec
}
