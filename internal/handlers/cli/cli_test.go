package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/gabapcia/solcustody/internal/custody"
	"github.com/gabapcia/solcustody/internal/history"
	"github.com/gabapcia/solcustody/internal/tokenissue"
	"github.com/gabapcia/solcustody/internal/walletkey"
	"github.com/gabapcia/solcustody/internal/withdrawal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testAddress = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	testMint    = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func runApp(t *testing.T, svc custody.Service, args []string, opts ...Option) (string, error) {
	t.Helper()

	var out bytes.Buffer
	opts = append(opts, WithOutput(&out))
	err := newApp(svc, opts...).Run(t.Context(), append([]string{"solcustody"}, args...))
	return out.String(), err
}

func TestRun(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
	}()

	t.Run("help", func(t *testing.T) {
		svc := NewCustodyMock(t)
		os.Args = []string{"solcustody", "--help"}

		var out bytes.Buffer
		assert.NoError(t, Run(t.Context(), svc, WithOutput(&out)))
		assert.Contains(t, out.String(), "withdraw-token")
	})

	t.Run("dispatches to the service", func(t *testing.T) {
		svc := NewCustodyMock(t)
		svc.On("GetBalance", mock.Anything, testAddress).Return("1.5", nil).Once()
		os.Args = []string{"solcustody", "balance", "--address", testAddress}

		var out bytes.Buffer
		require.NoError(t, Run(t.Context(), svc, WithOutput(&out)))
		assert.Contains(t, out.String(), `"balance": "1.5"`)
	})
}

func TestWalletCommands(t *testing.T) {
	t.Run("wallet create", func(t *testing.T) {
		svc := NewCustodyMock(t)
		svc.On("CreateWallet", mock.Anything).Return(custody.CreatedWallet{
			ID:     "0197a1b2",
			Wallet: walletkey.Wallet{Address: testAddress},
		}, nil).Once()

		out, err := runApp(t, svc, []string{"wallet", "create"})
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, "0197a1b2", got["id"])
		assert.Equal(t, testAddress, got["Address"])
	})

	t.Run("wallet create error", func(t *testing.T) {
		svc := NewCustodyMock(t)
		svc.On("CreateWallet", mock.Anything).Return(custody.CreatedWallet{}, custody.ErrChainInactive).Once()

		_, err := runApp(t, svc, []string{"wallet", "create"})
		assert.ErrorIs(t, err, custody.ErrChainInactive)
	})

	t.Run("history", func(t *testing.T) {
		svc := NewCustodyMock(t)
		svc.On("FetchTransactions", mock.Anything, testAddress).Return([]history.TransactionRecord{
			{Hash: "sig-1", Amount: "0.5", Status: history.StatusSuccess},
		}, nil).Once()

		out, err := runApp(t, svc, []string{"history", "--address", testAddress})
		require.NoError(t, err)

		var got []history.TransactionRecord
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "sig-1", got[0].Hash)
	})

	t.Run("missing address", func(t *testing.T) {
		svc := NewCustodyMock(t)

		_, err := runApp(t, svc, []string{"balance"})
		assert.Error(t, err)
	})
}

func TestWithdrawCommands(t *testing.T) {
	t.Run("withdraw", func(t *testing.T) {
		svc := NewCustodyMock(t)
		want := withdrawal.NativeWithdrawal{TransactionID: "tx-1", WalletID: "w-1", Amount: "0.25", To: testAddress}
		svc.On("HandleWithdrawal", mock.Anything, want, mock.Anything).Return(nil).Once()

		_, err := runApp(t, svc, []string{"withdraw", "--transaction-id", "tx-1", "--wallet-id", "w-1", "--to", testAddress, "--amount", "0.25"})
		require.NoError(t, err)
	})

	t.Run("withdraw generates a transaction id", func(t *testing.T) {
		svc := NewCustodyMock(t)
		svc.On("HandleWithdrawal", mock.Anything, mock.MatchedBy(func(r withdrawal.NativeWithdrawal) bool {
			return r.TransactionID != "" && r.WalletID == "w-1"
		}), mock.Anything).Return(nil).Once()

		out, err := runApp(t, svc, []string{"withdraw", "--wallet-id", "w-1", "--to", testAddress, "--amount", "1"})
		require.NoError(t, err)
		assert.Contains(t, out, "==> Withdrawal ")
	})

	t.Run("withdraw-token", func(t *testing.T) {
		svc := NewCustodyMock(t)
		want := withdrawal.TokenWithdrawal{
			TransactionID: "tx-2",
			WalletID:      "w-1",
			Mint:          testMint,
			Amount:        "12.5",
			To:            testAddress,
			Decimals:      6,
		}
		svc.On("HandleTokenWithdrawal", mock.Anything, want, mock.Anything).Return(withdrawal.ErrInsufficientFunds).Once()

		_, err := runApp(t, svc, []string{
			"withdraw-token", "--transaction-id", "tx-2", "--wallet-id", "w-1",
			"--mint", testMint, "--decimals", "6", "--to", testAddress, "--amount", "12.5",
		})
		assert.ErrorIs(t, err, withdrawal.ErrInsufficientFunds)
	})

	t.Run("withdraw-token decimals out of range", func(t *testing.T) {
		svc := NewCustodyMock(t)

		_, err := runApp(t, svc, []string{
			"withdraw-token", "--wallet-id", "w-1",
			"--mint", testMint, "--decimals", "300", "--to", testAddress, "--amount", "1",
		})
		assert.Error(t, err)
	})
}

func TestTokenCommands(t *testing.T) {
	t.Run("deploy with the configured master wallet", func(t *testing.T) {
		svc := NewCustodyMock(t)
		svc.On("DeployToken", mock.Anything, tokenissue.DeployRequest{MasterWalletID: "master", Decimals: 9}, mock.Anything).
			Return(testMint, nil).Once()

		out, err := runApp(t, svc, []string{"token", "deploy", "--decimals", "9"}, WithMasterWallet("master"))
		require.NoError(t, err)
		assert.Contains(t, out, testMint)
	})

	t.Run("deploy without a master wallet", func(t *testing.T) {
		svc := NewCustodyMock(t)

		_, err := runApp(t, svc, []string{"token", "deploy", "--decimals", "9"})
		assert.ErrorIs(t, err, ErrMasterWalletRequired)
	})

	t.Run("mint with an explicit master wallet", func(t *testing.T) {
		svc := NewCustodyMock(t)
		want := tokenissue.MintRequest{
			MasterWalletID: "other",
			Mint:           testMint,
			Amount:         "1000",
			Decimals:       6,
			Holder:         testAddress,
		}
		svc.On("MintInitialSupply", mock.Anything, want, mock.Anything).Return(nil).Once()

		_, err := runApp(t, svc, []string{
			"token", "mint", "--master-wallet-id", "other", "--mint", testMint,
			"--decimals", "6", "--holder", testAddress, "--amount", "1000",
		}, WithMasterWallet("master"))
		require.NoError(t, err)
	})
}

func TestPrinter(t *testing.T) {
	var out bytes.Buffer
	p := newPrinter(&out)

	ctx := context.Background()
	p.Step(ctx, "building")
	p.Success(ctx, "sent")
	p.Fail(ctx, "rejected")

	assert.Equal(t, "==> building\nok: sent\nerror: rejected\n", out.String())
}
