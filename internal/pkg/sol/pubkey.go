// Package sol holds the Solana primitives the custody services build on:
// public keys, associated token addresses, unit conversion and signed legacy
// transactions, on top of github.com/gagliardetto/solana-go.
package sol

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ErrInvalidPublicKey is returned when a string is not a base58 encoded 32-byte key.
var ErrInvalidPublicKey = errors.New("invalid public key")

// Well known program ids.
var (
	SystemProgramID                 = solana.SystemProgramID
	TokenProgramID                  = solana.TokenProgramID
	AssociatedTokenAccountProgramID = solana.SPLAssociatedTokenAccountProgramID
)

// PublicKey is a Solana account address.
type PublicKey = solana.PublicKey

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %q: %v", ErrInvalidPublicKey, s, err)
	}

	return pk, nil
}

// MustPublicKey is like ParsePublicKey but panics on error. Use it for constants only.
func MustPublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}

	return pk
}

// PublicKeyFromEd25519 converts an ed25519 public key into a PublicKey.
func PublicKeyFromEd25519(pub ed25519.PublicKey) PublicKey {
	return solana.PublicKeyFromBytes(pub)
}

// FindAssociatedTokenAddress returns the associated token account of owner for mint.
func FindAssociatedTokenAddress(owner, mint PublicKey) (PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	return ata, err
}
