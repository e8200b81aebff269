package postgres

import (
	"context"
	"fmt"

	"github.com/gabapcia/solcustody/internal/custody"
	"github.com/gabapcia/solcustody/internal/walletkey"
)

// WalletRepository stores sealed wallet keys.
type WalletRepository struct {
	pool *Pool
}

// NewWalletRepository creates a WalletRepository.
func NewWalletRepository(pool *Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

var (
	_ custody.WalletStore  = (*WalletRepository)(nil)
	_ walletkey.BlobFinder = (*WalletRepository)(nil)
)

// SaveWallet inserts a new wallet.
func (r *WalletRepository) SaveWallet(ctx context.Context, w custody.StoredWallet) error {
	const query = `
		INSERT INTO wallets (id, chain, address, encrypted_key, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.pool.Exec(ctx, query, w.ID, w.Chain, w.Address, w.EncryptedKey, w.CreatedAt); err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}

	return nil
}

// FindEncryptedKey returns the sealed key of walletID on chain.
func (r *WalletRepository) FindEncryptedKey(ctx context.Context, walletID, chain string) (string, error) {
	const query = `SELECT encrypted_key FROM wallets WHERE id = $1 AND chain = $2`

	var blob string
	if err := r.pool.QueryRow(ctx, query, walletID, chain).Scan(&blob); err != nil {
		if isNotFoundError(err) {
			return "", fmt.Errorf("wallet %s: %w", walletID, ErrNotFound)
		}
		return "", fmt.Errorf("select wallet key: %w", err)
	}

	return blob, nil
}

// FindAddress returns the address of walletID on chain.
func (r *WalletRepository) FindAddress(ctx context.Context, walletID, chain string) (string, error) {
	const query = `SELECT address FROM wallets WHERE id = $1 AND chain = $2`

	var address string
	if err := r.pool.QueryRow(ctx, query, walletID, chain).Scan(&address); err != nil {
		if isNotFoundError(err) {
			return "", fmt.Errorf("wallet %s: %w", walletID, ErrNotFound)
		}
		return "", fmt.Errorf("select wallet address: %w", err)
	}

	return address, nil
}
