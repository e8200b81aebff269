package solana

import (
	"bytes"
	"encoding/json"

	"github.com/gabapcia/solcustody/internal/chain"
)

// contextValue is the {context, value} envelope used by most RPC methods.
type contextValue[T any] struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value T `json:"value"`
}

type rpcSignatureInfo struct {
	Signature          string `json:"signature"`
	Slot               uint64 `json:"slot"`
	BlockTime          *int64 `json:"blockTime"`
	Err                any    `json:"err"`
	ConfirmationStatus string `json:"confirmationStatus"`
}

func (s rpcSignatureInfo) toDomain() chain.SignatureInfo {
	return chain.SignatureInfo{
		Signature:          s.Signature,
		Slot:               s.Slot,
		BlockTime:          s.BlockTime,
		Err:                s.Err,
		ConfirmationStatus: s.ConfirmationStatus,
	}
}

type rpcSignatureStatus struct {
	Slot               uint64  `json:"slot"`
	Confirmations      *uint64 `json:"confirmations"`
	Err                any     `json:"err"`
	ConfirmationStatus string  `json:"confirmationStatus"`
}

// rpcAccountKey accepts both the jsonParsed object form and a bare string.
type rpcAccountKey struct {
	Pubkey string `json:"pubkey"`
}

func (k *rpcAccountKey) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &k.Pubkey)
	}

	type plain rpcAccountKey
	return json.Unmarshal(data, (*plain)(k))
}

type rpcInstruction struct {
	Program   string          `json:"program"`
	ProgramID string          `json:"programId"`
	Parsed    json.RawMessage `json:"parsed"`
}

func (i rpcInstruction) toDomain() chain.Instruction {
	ix := chain.Instruction{
		Program:   i.Program,
		ProgramID: i.ProgramID,
	}

	// some programs (memo) report a bare string instead of {type, info}
	if bytes.HasPrefix(bytes.TrimSpace(i.Parsed), []byte("{")) {
		var parsed struct {
			Type string          `json:"type"`
			Info json.RawMessage `json:"info"`
		}
		if err := json.Unmarshal(i.Parsed, &parsed); err == nil {
			ix.Parsed = &chain.ParsedInstruction{Type: parsed.Type, Info: parsed.Info}
		}
	}

	return ix
}

type rpcTokenBalance struct {
	AccountIndex  int    `json:"accountIndex"`
	Mint          string `json:"mint"`
	Owner         string `json:"owner"`
	UITokenAmount struct {
		Amount         string `json:"amount"`
		Decimals       uint8  `json:"decimals"`
		UIAmountString string `json:"uiAmountString"`
	} `json:"uiTokenAmount"`
}

func (b rpcTokenBalance) toDomain() chain.TokenBalance {
	return chain.TokenBalance{
		AccountIndex: b.AccountIndex,
		Mint:         b.Mint,
		Owner:        b.Owner,
		Amount:       b.UITokenAmount.Amount,
		Decimals:     b.UITokenAmount.Decimals,
	}
}

type rpcMeta struct {
	Err               any               `json:"err"`
	Fee               uint64            `json:"fee"`
	PreBalances       []uint64          `json:"preBalances"`
	PostBalances      []uint64          `json:"postBalances"`
	PreTokenBalances  []rpcTokenBalance `json:"preTokenBalances"`
	PostTokenBalances []rpcTokenBalance `json:"postTokenBalances"`
}

func (m *rpcMeta) toDomain() *chain.Meta {
	if m == nil {
		return nil
	}

	meta := &chain.Meta{
		Err:          m.Err,
		Fee:          m.Fee,
		PreBalances:  m.PreBalances,
		PostBalances: m.PostBalances,
	}
	for _, b := range m.PreTokenBalances {
		meta.PreTokenBalances = append(meta.PreTokenBalances, b.toDomain())
	}
	for _, b := range m.PostTokenBalances {
		meta.PostTokenBalances = append(meta.PostTokenBalances, b.toDomain())
	}

	return meta
}

type rpcTransaction struct {
	Slot        uint64   `json:"slot"`
	BlockTime   *int64   `json:"blockTime"`
	Meta        *rpcMeta `json:"meta"`
	Transaction struct {
		Signatures []string `json:"signatures"`
		Message    struct {
			AccountKeys  []rpcAccountKey  `json:"accountKeys"`
			Instructions []rpcInstruction `json:"instructions"`
		} `json:"message"`
	} `json:"transaction"`
}

func (t rpcTransaction) toDomain() chain.Transaction {
	tx := chain.Transaction{
		Slot:       t.Slot,
		BlockTime:  t.BlockTime,
		Signatures: t.Transaction.Signatures,
		Meta:       t.Meta.toDomain(),
	}
	for _, k := range t.Transaction.Message.AccountKeys {
		tx.AccountKeys = append(tx.AccountKeys, k.Pubkey)
	}
	for _, ix := range t.Transaction.Message.Instructions {
		tx.Instructions = append(tx.Instructions, ix.toDomain())
	}

	return tx
}

type rpcBlock struct {
	BlockTime    *int64           `json:"blockTime"`
	Transactions []rpcTransaction `json:"transactions"`
}

func (b rpcBlock) toDomain(slot uint64) chain.Block {
	block := chain.Block{
		Slot:      slot,
		BlockTime: b.BlockTime,
	}
	for _, t := range b.Transactions {
		tx := t.toDomain()
		tx.Slot = slot
		tx.BlockTime = b.BlockTime
		block.Transactions = append(block.Transactions, tx)
	}

	return block
}

type rpcTokenAmount struct {
	Amount         string `json:"amount"`
	Decimals       uint8  `json:"decimals"`
	UIAmountString string `json:"uiAmountString"`
}

type rpcBlockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}
