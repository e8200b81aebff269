package depositwatch

import (
	"context"
	"time"

	"github.com/gabapcia/solcustody/internal/pkg/logger"
)

// MonitorGuard claims monitor keys across processes. Every claim carries the
// owner token of the monitor holding it.
type MonitorGuard interface {
	// Claim reserves key for owner and reports whether it was free.
	Claim(ctx context.Context, key, owner string) (bool, error)

	// Refresh extends the claim of owner on key. It reports false when owner
	// no longer holds it.
	Refresh(ctx context.Context, key, owner string) (bool, error)

	// Release frees key if owner still holds it.
	Release(ctx context.Context, key, owner string) error
}

type nopGuard struct{}

var _ MonitorGuard = nopGuard{}

func (nopGuard) Claim(context.Context, string, string) (bool, error)   { return true, nil }
func (nopGuard) Refresh(context.Context, string, string) (bool, error) { return true, nil }
func (nopGuard) Release(context.Context, string, string) error         { return nil }

// heartbeat keeps the guard claim of m alive until ctx ends. A lost claim is
// taken back when it is free again.
func (s *service) heartbeat(ctx context.Context, m *monitor) {
	ticker := time.NewTicker(s.cfg.guardRefresh)
	defer ticker.Stop()

	key := m.key.String()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		held, err := s.cfg.guard.Refresh(ctx, key, m.owner)
		if err != nil {
			logger.Warn(ctx, "failed to refresh deposit monitor guard", "monitor.key", key, "error", err)
			continue
		}
		if held {
			continue
		}

		reclaimed, err := s.cfg.guard.Claim(ctx, key, m.owner)
		if err != nil || !reclaimed {
			logger.Warn(ctx, "deposit monitor guard held by another owner", "monitor.key", key, "error", err)
			continue
		}

		logger.Info(ctx, "deposit monitor guard reclaimed", "monitor.key", key)
	}
}
