package depositsink

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gabapcia/solcustody/internal/depositwatch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type StoreMock struct {
	mock.Mock
}

func NewStoreMock(t *testing.T) *StoreMock {
	m := &StoreMock{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *StoreMock) SaveDeposit(ctx context.Context, record depositwatch.DepositRecord, assetID string) (bool, error) {
	args := m.Called(ctx, record, assetID)
	return args.Bool(0), args.Error(1)
}

func (m *StoreMock) MarkNotified(ctx context.Context, signature, assetID string) error {
	return m.Called(ctx, signature, assetID).Error(0)
}

func (m *StoreMock) PendingDeposits(ctx context.Context) ([]depositwatch.DepositRecord, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]depositwatch.DepositRecord)
	return records, args.Error(1)
}

type NotifierMock struct {
	mock.Mock
}

func NewNotifierMock(t *testing.T) *NotifierMock {
	m := &NotifierMock{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *NotifierMock) NotifyDeposit(ctx context.Context, record depositwatch.DepositRecord, assetID string) error {
	return m.Called(ctx, record, assetID).Error(0)
}

// memoryStore keeps deposits keyed by signature and asset with their delivery state.
type memoryStore struct {
	mu       sync.Mutex
	order    []string
	records  map[string]depositwatch.DepositRecord
	notified map[string]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records:  make(map[string]depositwatch.DepositRecord),
		notified: make(map[string]bool),
	}
}

func (s *memoryStore) SaveDeposit(_ context.Context, record depositwatch.DepositRecord, assetID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := record.Hash + "/" + assetID
	if _, ok := s.records[key]; !ok {
		s.records[key] = record
		s.order = append(s.order, key)
	}
	return !s.notified[key], nil
}

func (s *memoryStore) MarkNotified(_ context.Context, signature, assetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notified[signature+"/"+assetID] = true
	return nil
}

func (s *memoryStore) PendingDeposits(context.Context) ([]depositwatch.DepositRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []depositwatch.DepositRecord
	for _, key := range s.order {
		if !s.notified[key] {
			out = append(out, s.records[key])
		}
	}
	return out, nil
}

func TestStoreAndBroadcastTransaction(t *testing.T) {
	record := depositwatch.DepositRecord{
		WalletID: "w-1",
		Hash:     "sig-1",
		Amount:   "0.5",
		Status:   depositwatch.StatusCompleted,
	}

	t.Run("first insert notifies and marks the deposit delivered", func(t *testing.T) {
		store := NewStoreMock(t)
		notifier := NewNotifierMock(t)

		store.On("SaveDeposit", mock.Anything, record, depositwatch.NativeAssetID).Return(true, nil).Once()
		notifier.On("NotifyDeposit", mock.Anything, record, depositwatch.NativeAssetID).Return(nil).Once()
		store.On("MarkNotified", mock.Anything, "sig-1", depositwatch.NativeAssetID).Return(nil).Once()

		err := New(store, WithNotifier(notifier)).StoreAndBroadcastTransaction(t.Context(), record, depositwatch.NativeAssetID)
		require.NoError(t, err)
	})

	t.Run("replay of a delivered deposit does not notify", func(t *testing.T) {
		store := NewStoreMock(t)
		notifier := NewNotifierMock(t)

		store.On("SaveDeposit", mock.Anything, record, "mint").Return(false, nil).Once()

		err := New(store, WithNotifier(notifier)).StoreAndBroadcastTransaction(t.Context(), record, "mint")
		require.NoError(t, err)
		notifier.AssertNotCalled(t, "NotifyDeposit", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("store error", func(t *testing.T) {
		store := NewStoreMock(t)
		storeErr := errors.New("db down")

		store.On("SaveDeposit", mock.Anything, record, "mint").Return(false, storeErr).Once()

		err := New(store).StoreAndBroadcastTransaction(t.Context(), record, "mint")
		assert.ErrorIs(t, err, storeErr)
	})

	t.Run("notify error leaves the deposit pending", func(t *testing.T) {
		store := NewStoreMock(t)
		notifier := NewNotifierMock(t)
		notifyErr := errors.New("webhook down")

		store.On("SaveDeposit", mock.Anything, record, "mint").Return(true, nil).Once()
		notifier.On("NotifyDeposit", mock.Anything, record, "mint").Return(notifyErr).Once()

		err := New(store, WithNotifier(notifier)).StoreAndBroadcastTransaction(t.Context(), record, "mint")
		assert.ErrorIs(t, err, notifyErr)
		store.AssertNotCalled(t, "MarkNotified", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("mark error is returned", func(t *testing.T) {
		store := NewStoreMock(t)
		notifier := NewNotifierMock(t)
		markErr := errors.New("db down")

		store.On("SaveDeposit", mock.Anything, record, "mint").Return(true, nil).Once()
		notifier.On("NotifyDeposit", mock.Anything, record, "mint").Return(nil).Once()
		store.On("MarkNotified", mock.Anything, "sig-1", "mint").Return(markErr).Once()

		err := New(store, WithNotifier(notifier)).StoreAndBroadcastTransaction(t.Context(), record, "mint")
		assert.ErrorIs(t, err, markErr)
	})

	t.Run("replay after a failed notification delivers", func(t *testing.T) {
		store := newMemoryStore()
		notifier := NewNotifierMock(t)
		sink := New(store, WithNotifier(notifier))

		notifier.On("NotifyDeposit", mock.Anything, record, "mint").Return(errors.New("webhook down")).Once()
		require.Error(t, sink.StoreAndBroadcastTransaction(t.Context(), record, "mint"))

		notifier.On("NotifyDeposit", mock.Anything, record, "mint").Return(nil).Once()
		require.NoError(t, sink.StoreAndBroadcastTransaction(t.Context(), record, "mint"))

		require.NoError(t, sink.StoreAndBroadcastTransaction(t.Context(), record, "mint"))
		notifier.AssertNumberOfCalls(t, "NotifyDeposit", 2)
	})

	t.Run("nil notifier keeps the default", func(t *testing.T) {
		store := NewStoreMock(t)
		store.On("SaveDeposit", mock.Anything, record, "mint").Return(true, nil).Once()
		store.On("MarkNotified", mock.Anything, "sig-1", "mint").Return(nil).Once()

		require.NoError(t, New(store, WithNotifier(nil)).StoreAndBroadcastTransaction(t.Context(), record, "mint"))
	})
}

func TestRedeliver(t *testing.T) {
	native := depositwatch.DepositRecord{WalletID: "w-1", Hash: "sig-1", Amount: "0.5"}
	token := depositwatch.DepositRecord{WalletID: "w-1", Hash: "sig-2", Amount: "3", Mint: "mint"}

	t.Run("delivers every pending deposit", func(t *testing.T) {
		store := newMemoryStore()
		notifier := NewNotifierMock(t)
		sink := New(store, WithNotifier(notifier))

		notifier.On("NotifyDeposit", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("webhook down")).Twice()
		require.Error(t, sink.StoreAndBroadcastTransaction(t.Context(), native, depositwatch.NativeAssetID))
		require.Error(t, sink.StoreAndBroadcastTransaction(t.Context(), token, "mint"))

		notifier.On("NotifyDeposit", mock.Anything, native, depositwatch.NativeAssetID).Return(nil).Once()
		notifier.On("NotifyDeposit", mock.Anything, token, "mint").Return(nil).Once()
		require.NoError(t, sink.Redeliver(t.Context()))

		pending, err := store.PendingDeposits(t.Context())
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("keeps going after a failure", func(t *testing.T) {
		store := NewStoreMock(t)
		notifier := NewNotifierMock(t)
		notifyErr := errors.New("webhook down")

		store.On("PendingDeposits", mock.Anything).Return([]depositwatch.DepositRecord{native, token}, nil).Once()
		notifier.On("NotifyDeposit", mock.Anything, native, depositwatch.NativeAssetID).Return(notifyErr).Once()
		notifier.On("NotifyDeposit", mock.Anything, token, "mint").Return(nil).Once()
		store.On("MarkNotified", mock.Anything, "sig-2", "mint").Return(nil).Once()

		err := New(store, WithNotifier(notifier)).Redeliver(t.Context())
		assert.ErrorIs(t, err, notifyErr)
	})

	t.Run("list error", func(t *testing.T) {
		store := NewStoreMock(t)
		listErr := errors.New("db down")

		store.On("PendingDeposits", mock.Anything).Return(nil, listErr).Once()

		assert.ErrorIs(t, New(store).Redeliver(t.Context()), listErr)
	})
}
