package postgres

import (
	"context"
	"fmt"

	"github.com/gabapcia/solcustody/internal/depositwatch"

	"github.com/jackc/pgx/v5"
)

// DepositRepository stores detected deposits and tracks their notification.
type DepositRepository struct {
	pool *Pool
}

// NewDepositRepository creates a DepositRepository.
func NewDepositRepository(pool *Pool) *DepositRepository {
	return &DepositRepository{pool: pool}
}

// SaveDeposit stores d unless it already exists and reports whether its
// notification is still outstanding. A deposit is unique per signature and asset.
func (r *DepositRepository) SaveDeposit(ctx context.Context, d depositwatch.DepositRecord, assetID string) (bool, error) {
	const query = `
		WITH inserted AS (
			INSERT INTO deposits (
				signature, asset_id, wallet_id, from_address, to_address, amount, decimals, fee, status, slot, block_time
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (signature, asset_id) DO NOTHING
			RETURNING notified_at
		)
		SELECT notified_at IS NULL FROM inserted
		UNION ALL
		SELECT notified_at IS NULL FROM deposits
		WHERE signature = $1 AND asset_id = $2 AND NOT EXISTS (SELECT 1 FROM inserted)
	`

	var pending bool
	err := r.pool.QueryRow(ctx, query,
		d.Hash,
		assetID,
		d.WalletID,
		d.From,
		d.To,
		d.Amount,
		int16(d.Decimals),
		d.Fee,
		d.Status,
		int64(d.Slot),
		d.Timestamp,
	).Scan(&pending)
	if err != nil {
		return false, fmt.Errorf("save deposit: %w", err)
	}

	return pending, nil
}

// MarkNotified records that the deposit was delivered downstream.
func (r *DepositRepository) MarkNotified(ctx context.Context, signature, assetID string) error {
	const query = `UPDATE deposits SET notified_at = now() WHERE signature = $1 AND asset_id = $2`

	if _, err := r.pool.Exec(ctx, query, signature, assetID); err != nil {
		return fmt.Errorf("mark deposit notified: %w", err)
	}

	return nil
}

// PendingDeposits returns the deposits whose notification has not succeeded yet,
// oldest first.
func (r *DepositRepository) PendingDeposits(ctx context.Context) ([]depositwatch.DepositRecord, error) {
	const query = `
		SELECT signature, asset_id, wallet_id, from_address, to_address, amount, decimals, fee, status, slot, block_time
		FROM deposits WHERE notified_at IS NULL
		ORDER BY created_at, signature
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select pending deposits: %w", err)
	}

	return scanDeposits(rows)
}

// ListDeposits returns the deposits of walletID, newest first.
func (r *DepositRepository) ListDeposits(ctx context.Context, walletID string) ([]depositwatch.DepositRecord, error) {
	const query = `
		SELECT signature, asset_id, wallet_id, from_address, to_address, amount, decimals, fee, status, slot, block_time
		FROM deposits WHERE wallet_id = $1
		ORDER BY block_time DESC, signature
	`

	rows, err := r.pool.Query(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("select deposits: %w", err)
	}

	return scanDeposits(rows)
}

func scanDeposits(rows pgx.Rows) ([]depositwatch.DepositRecord, error) {
	defer rows.Close()

	var out []depositwatch.DepositRecord
	for rows.Next() {
		var (
			d        depositwatch.DepositRecord
			assetID  string
			decimals int16
			slot     int64
		)
		if err := rows.Scan(&d.Hash, &assetID, &d.WalletID, &d.From, &d.To, &d.Amount, &decimals, &d.Fee, &d.Status, &slot, &d.Timestamp); err != nil {
			return nil, fmt.Errorf("scan deposit: %w", err)
		}

		d.Decimals = uint8(decimals)
		d.Slot = uint64(slot)
		if assetID != depositwatch.NativeAssetID {
			d.Mint = assetID
		}
		out = append(out, d)
	}

	return out, rows.Err()
}
