package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gabapcia/solcustody/internal/depositwatch"
	httptransport "github.com/gabapcia/solcustody/internal/pkg/transport/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() depositwatch.DepositRecord {
	return depositwatch.DepositRecord{
		WalletID:  "w-1",
		Hash:      "sig-1",
		To:        "addr",
		Amount:    "0.5",
		Status:    depositwatch.StatusCompleted,
		Timestamp: time.Unix(1700000000, 0).UTC(),
	}
}

func fastClient() Option {
	return WithHTTPClient(httptransport.NewClient(
		httptransport.WithRetryWaitMin(time.Millisecond),
		httptransport.WithRetryWaitMax(time.Millisecond),
	))
}

func TestNotifyDeposit(t *testing.T) {
	t.Run("posts a signed event", func(t *testing.T) {
		var (
			gotBody      []byte
			gotSignature string
			gotDelivery  string
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			gotSignature = r.Header.Get(SignatureHeader)
			gotDelivery = r.Header.Get(DeliveryHeader)
			gotBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusAccepted)
		}))
		defer srv.Close()

		n := New(srv.URL, WithSecret("s3cret"), fastClient())
		require.NoError(t, n.NotifyDeposit(t.Context(), testRecord(), depositwatch.NativeAssetID))

		var ev Event
		require.NoError(t, json.Unmarshal(gotBody, &ev))
		assert.Equal(t, EventDepositDetected, ev.Event)
		assert.Equal(t, depositwatch.NativeAssetID, ev.AssetID)
		assert.Equal(t, "sig-1", ev.Deposit.Hash)
		assert.Equal(t, Sign("s3cret", gotBody), gotSignature)
		assert.NotEmpty(t, gotDelivery)
	})

	t.Run("unsigned without a secret", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.Header.Get(SignatureHeader))
		}))
		defer srv.Close()

		require.NoError(t, New(srv.URL, fastClient()).NotifyDeposit(t.Context(), testRecord(), "mint"))
	})

	t.Run("retries server errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
			}
		}))
		defer srv.Close()

		require.NoError(t, New(srv.URL, fastClient()).NotifyDeposit(t.Context(), testRecord(), "mint"))
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		err := New(srv.URL, fastClient()).NotifyDeposit(t.Context(), testRecord(), "mint")
		assert.ErrorIs(t, err, ErrUnexpectedStatus)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestSign(t *testing.T) {
	// RFC 4231 test case 2.
	assert.Equal(t,
		"5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843",
		Sign("Jefe", []byte("what do ya want for nothing?")),
	)
}
