package sol

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrMissingSignature is returned when a transaction is signed or serialized
	// without every required signer.
	ErrMissingSignature = errors.New("transaction is missing a required signature")

	// ErrInvalidBlockhash is returned when the recent blockhash is not a base58 32-byte hash.
	ErrInvalidBlockhash = errors.New("invalid blockhash")
)

// Transaction is a legacy transaction compiled by solana-go.
type Transaction struct {
	*solana.Transaction
}

// NewTransaction compiles instructions into an unsigned transaction paid by feePayer.
func NewTransaction(feePayer PublicKey, blockhash string, instructions ...Instruction) (*Transaction, error) {
	hash, err := solana.HashFromBase58(blockhash)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidBlockhash, blockhash, err)
	}

	tx, err := solana.NewTransaction(instructions, hash, solana.TransactionPayer(feePayer))
	if err != nil {
		return nil, fmt.Errorf("compile transaction: %w", err)
	}

	return &Transaction{Transaction: tx}, nil
}

// signers returns the accounts whose signatures the message requires, fee payer first.
func (tx *Transaction) signers() []PublicKey {
	return tx.Message.AccountKeys[:tx.Message.Header.NumRequiredSignatures]
}

// Sign signs the message with keys, which must cover exactly the message's
// required signers.
func (tx *Transaction) Sign(keys ...ed25519.PrivateKey) error {
	signers := tx.signers()

	byAddress := make(map[PublicKey]solana.PrivateKey, len(keys))
	for _, key := range keys {
		address := PublicKeyFromEd25519(key.Public().(ed25519.PublicKey))
		if !slices.Contains(signers, address) {
			return fmt.Errorf("key %s is not a signer of this transaction", address)
		}
		byAddress[address] = solana.PrivateKey(key)
	}
	for _, signer := range signers {
		if _, ok := byAddress[signer]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingSignature, signer)
		}
	}

	tx.Signatures = nil
	_, err := tx.Transaction.Sign(func(address solana.PublicKey) *solana.PrivateKey {
		key, ok := byAddress[address]
		if !ok {
			return nil
		}
		return &key
	})
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}

	return nil
}

// Signature returns the base58 form of the fee payer signature, which is the
// transaction id on chain.
func (tx *Transaction) Signature() string {
	if len(tx.Signatures) == 0 {
		return ""
	}

	return tx.Signatures[0].String()
}

// MarshalBinary serializes the signed transaction.
func (tx *Transaction) MarshalBinary() ([]byte, error) {
	if len(tx.Signatures) != len(tx.signers()) || slices.Contains(tx.Signatures, solana.Signature{}) {
		return nil, ErrMissingSignature
	}

	return tx.Transaction.MarshalBinary()
}

// Base64 returns the serialized transaction encoded for sendTransaction.
func (tx *Transaction) Base64() (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}
