package postgres

import (
	"context"
	"fmt"

	"github.com/gabapcia/solcustody/internal/withdrawal"
)

// LedgerRepository records withdrawal outcomes.
type LedgerRepository struct {
	pool *Pool
}

// NewLedgerRepository creates a LedgerRepository.
func NewLedgerRepository(pool *Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

var _ withdrawal.Ledger = (*LedgerRepository)(nil)

// Update writes the outcome of withdrawal id, creating the record if needed.
func (r *LedgerRepository) Update(ctx context.Context, id string, u withdrawal.LedgerUpdate) error {
	const query = `
		INSERT INTO withdrawal_ledger (id, status, trx_id, description, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), now())
		ON CONFLICT (id) DO UPDATE SET
			status      = EXCLUDED.status,
			trx_id      = EXCLUDED.trx_id,
			description = EXCLUDED.description,
			updated_at  = EXCLUDED.updated_at
	`

	if _, err := r.pool.Exec(ctx, query, id, string(u.Status), u.TrxID, u.Description); err != nil {
		return fmt.Errorf("update withdrawal ledger: %w", err)
	}

	return nil
}

// Get returns the current ledger state of id.
func (r *LedgerRepository) Get(ctx context.Context, id string) (withdrawal.LedgerUpdate, error) {
	const query = `
		SELECT status, COALESCE(trx_id, ''), COALESCE(description, '')
		FROM withdrawal_ledger WHERE id = $1
	`

	var (
		u      withdrawal.LedgerUpdate
		status string
	)
	if err := r.pool.QueryRow(ctx, query, id).Scan(&status, &u.TrxID, &u.Description); err != nil {
		if isNotFoundError(err) {
			return withdrawal.LedgerUpdate{}, fmt.Errorf("withdrawal %s: %w", id, ErrNotFound)
		}
		return withdrawal.LedgerUpdate{}, fmt.Errorf("select withdrawal ledger: %w", err)
	}

	u.Status = withdrawal.Status(status)
	return u, nil
}
