// Package walletkey creates custodial Solana wallets and turns stored key
// material back into signing keys.
//
// Decrypted keys returned by this package are meant to live only for the
// duration of a single signing operation. They are never logged or cached.
package walletkey

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gabapcia/solcustody/internal/pkg/sol"

	"github.com/mr-tron/base58"
	"github.com/tyler-smith/go-bip39"
)

// DerivationPath is the standard Solana BIP-44 path (coin type 501).
const DerivationPath = "m/44'/501'/0'/0'"

// hardenedOffset marks a hardened child index.
const hardenedOffset uint32 = 0x80000000

// derivationIndexes are the hardened components of DerivationPath.
var derivationIndexes = []uint32{44, 501, 0, 0}

// ErrInvalidKeyLength is returned when stored key material is neither a 32-byte
// seed nor a 64-byte secret key.
var ErrInvalidKeyLength = errors.New("invalid key length")

// Wallet is the key material of a freshly created wallet.
type Wallet struct {
	Address        string
	Mnemonic       string
	PublicKey      string
	PrivateKey     string // base58 encoded 64-byte secret key
	DerivationPath string
}

// CreateWallet generates a 12-word BIP-39 mnemonic and derives the wallet's
// ed25519 key along DerivationPath using SLIP-0010.
func CreateWallet() (Wallet, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return Wallet{}, err
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return Wallet{}, err
	}

	return WalletFromMnemonic(mnemonic)
}

// WalletFromMnemonic rebuilds the wallet for an existing mnemonic.
func WalletFromMnemonic(mnemonic string) (Wallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return Wallet{}, errors.New("invalid mnemonic")
	}

	seed := bip39.NewSeed(mnemonic, "")
	key, _ := deriveSLIP10(seed, derivationIndexes...)

	priv := ed25519.NewKeyFromSeed(key)
	address := sol.PublicKeyFromEd25519(priv.Public().(ed25519.PublicKey)).String()

	return Wallet{
		Address:        address,
		Mnemonic:       mnemonic,
		PublicKey:      address,
		PrivateKey:     base58.Encode(priv),
		DerivationPath: DerivationPath,
	}, nil
}

// deriveSLIP10 walks hardened ed25519 child derivation from the master key of seed.
// It returns the final private key and chain code.
func deriveSLIP10(seed []byte, indexes ...uint32) ([]byte, []byte) {
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)
	key, chainCode := sum[:32], sum[32:]

	for _, idx := range indexes {
		data := make([]byte, 0, 37)
		data = append(data, 0)
		data = append(data, key...)
		data = binary.BigEndian.AppendUint32(data, idx|hardenedOffset)

		mac = hmac.New(sha512.New, chainCode)
		mac.Write(data)
		sum = mac.Sum(nil)
		key, chainCode = sum[:32], sum[32:]
	}

	return key, chainCode
}

// KeypairFromSecret rebuilds a signing key from raw stored material. A 64-byte
// value is used as a secret key as-is. A 32-byte value is treated as an ed25519
// seed and expanded with the public key it derives. Any other length fails with
// ErrInvalidKeyLength.
func KeypairFromSecret(raw []byte) (ed25519.PrivateKey, error) {
	switch len(raw) {
	case ed25519.PrivateKeySize:
		key := make(ed25519.PrivateKey, ed25519.PrivateKeySize)
		copy(key, raw)
		return key, nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	default:
		return nil, fmt.Errorf("%w: got %d bytes, expected %d or %d", ErrInvalidKeyLength, len(raw), ed25519.SeedSize, ed25519.PrivateKeySize)
	}
}

// DecodePrivateKey decodes a base58 private key and rebuilds its signing key.
func DecodePrivateKey(encoded string) (ed25519.PrivateKey, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}

	return KeypairFromSecret(raw)
}

// Address returns the base58 address of key.
func Address(key ed25519.PrivateKey) string {
	return sol.PublicKeyFromEd25519(key.Public().(ed25519.PublicKey)).String()
}
