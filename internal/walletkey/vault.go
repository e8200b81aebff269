package walletkey

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrInvalidMasterKey is returned when the vault key is not a base64 encoded 32-byte key.
	ErrInvalidMasterKey = errors.New("invalid vault master key")

	// ErrCiphertextTooShort is returned when a blob is shorter than the GCM nonce.
	ErrCiphertextTooShort = errors.New("ciphertext too short")
)

// Secret is the decrypted content of a stored wallet blob.
type Secret struct {
	PrivateKey string `json:"privateKey"`
	Mnemonic   string `json:"mnemonic,omitempty"`
}

// Vault encrypts wallet secrets at rest with AES-256-GCM. Blobs are the base64
// encoding of nonce || ciphertext.
type Vault struct {
	aead cipher.AEAD
}

// NewVault builds a Vault from a base64 encoded 32-byte master key.
func NewVault(masterKey string) (*Vault, error) {
	key, err := base64.StdEncoding.DecodeString(masterKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMasterKey, err)
	}

	if len(key) != 32 {
		return nil, fmt.Errorf("%w: must be 32 bytes, got %d", ErrInvalidMasterKey, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Vault{aead: aead}, nil
}

// GenerateMasterKey returns a random base64 encoded key suitable for NewVault.
func GenerateMasterKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(key), nil
}

// Seal encrypts s into a storable blob.
func (v *Vault) Seal(s Secret) (string, error) {
	plaintext, err := json.Marshal(s)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	return base64.StdEncoding.EncodeToString(v.aead.Seal(nonce, nonce, plaintext, nil)), nil
}

// Open decrypts a blob produced by Seal.
func (v *Vault) Open(blob string) (Secret, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return Secret{}, fmt.Errorf("decode blob: %w", err)
	}

	nonceSize := v.aead.NonceSize()
	if len(raw) < nonceSize {
		return Secret{}, ErrCiphertextTooShort
	}

	plaintext, err := v.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return Secret{}, fmt.Errorf("decrypt blob: %w", err)
	}

	var s Secret
	if err := json.Unmarshal(plaintext, &s); err != nil {
		return Secret{}, fmt.Errorf("decode secret: %w", err)
	}

	return s, nil
}

// BlobFinder looks up the encrypted key blob of a wallet.
type BlobFinder interface {
	FindEncryptedKey(ctx context.Context, walletID, chain string) (string, error)
}

// KeyStore pairs blob lookup with vault decryption.
type KeyStore struct {
	blobs BlobFinder
	vault *Vault
}

// NewKeyStore returns a KeyStore reading blobs from blobs and opening them with vault.
func NewKeyStore(blobs BlobFinder, vault *Vault) *KeyStore {
	return &KeyStore{blobs: blobs, vault: vault}
}

// Find returns the encrypted blob stored for walletID on chain.
func (k *KeyStore) Find(ctx context.Context, walletID, chain string) (string, error) {
	return k.blobs.FindEncryptedKey(ctx, walletID, chain)
}

// Decrypt opens blob.
func (k *KeyStore) Decrypt(_ context.Context, blob string) (Secret, error) {
	return k.vault.Open(blob)
}
