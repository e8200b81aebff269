package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gabapcia/solcustody/internal/chain"
	"github.com/gabapcia/solcustody/internal/custody"
	"github.com/gabapcia/solcustody/internal/depositwatch"
	"github.com/gabapcia/solcustody/internal/withdrawal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestPool starts a PostgreSQL container, applies the migrations and
// returns a connected pool. The container is removed when the test ends.
func setupTestPool(t *testing.T) *Pool {
	t.Helper()

	if os.Getenv("SOLCUSTODY_INTEGRATION") != "1" {
		t.Skip("set SOLCUSTODY_INTEGRATION=1 to run postgres integration tests")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("solcustody"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pool.Migrate(ctx))

	return pool
}

func TestPostgres(t *testing.T) {
	pool := setupTestPool(t)
	ctx := t.Context()

	t.Run("migrations are idempotent", func(t *testing.T) {
		require.NoError(t, pool.Migrate(ctx))

		var applied int
		require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM schema_migrations`).Scan(&applied))
		assert.Equal(t, 2, applied)
	})

	t.Run("wallets", func(t *testing.T) {
		repo := NewWalletRepository(pool)

		w := custody.StoredWallet{
			ID:           "wallet-1",
			Chain:        chain.ID,
			Address:      "11111111111111111111111111111111",
			EncryptedKey: "sealed",
			CreatedAt:    time.Now().UTC(),
		}
		require.NoError(t, repo.SaveWallet(ctx, w))
		assert.Error(t, repo.SaveWallet(ctx, w))

		blob, err := repo.FindEncryptedKey(ctx, "wallet-1", chain.ID)
		require.NoError(t, err)
		assert.Equal(t, "sealed", blob)

		address, err := repo.FindAddress(ctx, "wallet-1", chain.ID)
		require.NoError(t, err)
		assert.Equal(t, w.Address, address)

		_, err = repo.FindEncryptedKey(ctx, "wallet-1", "ethereum")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ledger", func(t *testing.T) {
		repo := NewLedgerRepository(pool)

		require.NoError(t, repo.Update(ctx, "tx-1", withdrawal.LedgerUpdate{Status: withdrawal.StatusFailed, Description: "insufficient funds"}))

		got, err := repo.Get(ctx, "tx-1")
		require.NoError(t, err)
		assert.Equal(t, withdrawal.StatusFailed, got.Status)
		assert.Equal(t, "insufficient funds", got.Description)
		assert.Empty(t, got.TrxID)

		require.NoError(t, repo.Update(ctx, "tx-1", withdrawal.LedgerUpdate{Status: withdrawal.StatusCompleted, TrxID: "sig"}))

		got, err = repo.Get(ctx, "tx-1")
		require.NoError(t, err)
		assert.Equal(t, withdrawal.StatusCompleted, got.Status)
		assert.Equal(t, "sig", got.TrxID)
		assert.Empty(t, got.Description)

		_, err = repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("deposits", func(t *testing.T) {
		repo := NewDepositRepository(pool)

		d := depositwatch.DepositRecord{
			WalletID:  "wallet-1",
			Hash:      "sig-1",
			From:      "sender",
			To:        "receiver",
			Amount:    "0.5",
			Decimals:  9,
			Fee:       "0.000005",
			Status:    depositwatch.StatusCompleted,
			Slot:      42,
			Timestamp: time.Unix(1700000000, 0).UTC(),
		}

		pending, err := repo.SaveDeposit(ctx, d, depositwatch.NativeAssetID)
		require.NoError(t, err)
		assert.True(t, pending)

		pending, err = repo.SaveDeposit(ctx, d, depositwatch.NativeAssetID)
		require.NoError(t, err)
		assert.True(t, pending, "undelivered replay stays pending")

		token := d
		token.Mint = "mint"
		token.Amount = "3"
		pending, err = repo.SaveDeposit(ctx, token, "mint")
		require.NoError(t, err)
		assert.True(t, pending)

		outstanding, err := repo.PendingDeposits(ctx)
		require.NoError(t, err)
		assert.Len(t, outstanding, 2)

		require.NoError(t, repo.MarkNotified(ctx, d.Hash, depositwatch.NativeAssetID))

		pending, err = repo.SaveDeposit(ctx, d, depositwatch.NativeAssetID)
		require.NoError(t, err)
		assert.False(t, pending)

		outstanding, err = repo.PendingDeposits(ctx)
		require.NoError(t, err)
		require.Len(t, outstanding, 1)
		assert.Equal(t, "mint", outstanding[0].Mint)

		list, err := repo.ListDeposits(ctx, "wallet-1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.ElementsMatch(t, []string{"", "mint"}, []string{list[0].Mint, list[1].Mint})
		assert.Equal(t, d.Timestamp, list[0].Timestamp.UTC())
	})
}
