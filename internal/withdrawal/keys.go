package withdrawal

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/gabapcia/solcustody/internal/chain"
	"github.com/gabapcia/solcustody/internal/pkg/sol"
	"github.com/gabapcia/solcustody/internal/walletkey"
)

// signer is the decrypted key of one wallet.
type signer struct {
	key     ed25519.PrivateKey
	address sol.PublicKey
}

func (s *service) loadSigner(ctx context.Context, walletID string) (signer, error) {
	blob, err := s.keys.Find(ctx, walletID, chain.ID)
	if err != nil {
		return signer{}, fmt.Errorf("find key of wallet %s: %w", walletID, err)
	}

	secret, err := s.keys.Decrypt(ctx, blob)
	if err != nil {
		return signer{}, fmt.Errorf("decrypt key of wallet %s: %w", walletID, err)
	}

	key, err := walletkey.DecodePrivateKey(secret.PrivateKey)
	if err != nil {
		return signer{}, fmt.Errorf("decode key of wallet %s: %w", walletID, err)
	}

	return signer{
		key:     key,
		address: sol.PublicKeyFromEd25519(key.Public().(ed25519.PublicKey)),
	}, nil
}
