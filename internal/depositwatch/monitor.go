package depositwatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gabapcia/solcustody/internal/chain"
	"github.com/gabapcia/solcustody/internal/pkg/logger"

	"github.com/google/uuid"
)

const unsubscribeTimeout = 10 * time.Second

// State is the lifecycle state of a monitor.
type State string

const (
	StateActive    State = "active"
	StateDetected  State = "detected"
	StateTimedOut  State = "timed_out"
	StateCancelled State = "cancelled"
	StateDropped   State = "dropped"
)

type monitorKey struct {
	address string
	mint    string
}

func (k monitorKey) String() string {
	if k.mint == "" {
		return fmt.Sprintf("deposit:native:%s", k.address)
	}

	return fmt.Sprintf("deposit:token:%s:%s", k.address, k.mint)
}

type monitor struct {
	key    monitorKey
	owner  string
	handle chain.SubscriptionHandle
	cancel context.CancelFunc

	once  sync.Once
	state State
	done  chan struct{}
}

// reserve registers key in process and in the guard.
func (s *service) reserve(ctx context.Context, key monitorKey) (*monitor, error) {
	s.mu.Lock()
	if _, ok := s.monitors[key]; ok {
		s.mu.Unlock()
		return nil, ErrAlreadyMonitoring
	}

	m := &monitor{key: key, owner: uuid.NewString(), state: StateActive, done: make(chan struct{})}
	s.monitors[key] = m
	s.mu.Unlock()

	claimed, err := s.cfg.guard.Claim(ctx, key.String(), m.owner)
	if err != nil || !claimed {
		s.forget(m)
		if err != nil {
			return nil, err
		}
		return nil, ErrAlreadyMonitoring
	}

	return m, nil
}

func (s *service) forget(m *monitor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.monitors[m.key] == m {
		delete(s.monitors, m.key)
	}
}

// release undoes reserve for a monitor that never started.
func (s *service) release(ctx context.Context, m *monitor) {
	s.forget(m)
	if err := s.cfg.guard.Release(ctx, m.key.String(), m.owner); err != nil {
		logger.Warn(ctx, "failed to release deposit monitor guard", "monitor.key", m.key.String(), "error", err)
	}
}

// teardown ends m exactly once: it unsubscribes, drops the registration and
// records the final state.
func (s *service) teardown(ctx context.Context, m *monitor, state State) {
	m.once.Do(func() {
		m.state = state

		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unsubscribeTimeout)
		defer cancel()

		if state != StateDropped {
			if err := s.chain.Unsubscribe(uctx, m.handle); err != nil {
				logger.Warn(ctx, "failed to unsubscribe deposit monitor",
					"monitor.key", m.key.String(),
					"subscription.id", m.handle.ID,
					"error", err,
				)
			}
		}

		s.release(uctx, m)
		m.cancel()
		close(m.done)

		logger.Info(ctx, "deposit monitor stopped",
			"monitor.key", m.key.String(),
			"monitor.state", string(state),
		)
	})
}

func (s *service) lookup(key monitorKey) (*monitor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.monitors[key]
	return m, ok
}

// activate records the subscription of a reserved monitor, makes it
// cancellable and keeps its guard claim alive while ctx runs.
func (s *service) activate(ctx context.Context, m *monitor, handle chain.SubscriptionHandle, cancel context.CancelFunc) {
	s.mu.Lock()
	m.handle = handle
	m.cancel = cancel
	s.mu.Unlock()

	go s.heartbeat(ctx, m)
}

func (s *service) cancel(key monitorKey) error {
	s.mu.Lock()
	var cancel context.CancelFunc
	if m, ok := s.monitors[key]; ok {
		cancel = m.cancel
	}
	s.mu.Unlock()

	if cancel == nil {
		return ErrNotMonitoring
	}

	cancel()
	return nil
}

// Cancel implements Service.
func (s *service) Cancel(_ context.Context, address string) error {
	return s.cancel(monitorKey{address: address})
}

// CancelToken implements Service.
func (s *service) CancelToken(_ context.Context, address, mint string) error {
	return s.cancel(monitorKey{address: address, mint: mint})
}

// Close implements Service. It waits for every monitor to stop or for ctx to end.
func (s *service) Close(ctx context.Context) {
	s.mu.Lock()
	running := make([]*monitor, 0, len(s.monitors))
	for _, m := range s.monitors {
		if m.cancel != nil {
			running = append(running, m)
		}
	}
	s.mu.Unlock()

	for _, m := range running {
		m.cancel()
	}

	for _, m := range running {
		select {
		case <-m.done:
		case <-ctx.Done():
			return
		}
	}
}

// Active implements Service.
func (s *service) Active(address, mint string) bool {
	_, ok := s.lookup(monitorKey{address: address, mint: mint})
	return ok
}
