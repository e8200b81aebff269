// Package retry runs operations that can fail transiently, such as RPC reads
// and transaction confirmation polls, on top of avast/retry-go.
//
// Delays grow exponentially by default. Polling loops that need a constant
// spacing between attempts use WithFixedDelay:
//
//	err := retry.New(
//	    retry.WithAttempts(30),
//	    retry.WithDelay(5*time.Second),
//	    retry.WithFixedDelay(),
//	).Execute(ctx, poll)
package retry

import (
	"context"
	"time"

	retry "github.com/avast/retry-go/v4"
)

// Retry executes an operation until it succeeds, the attempts run out, or the
// context is done.
type Retry interface {
	// Execute calls operation at least once. It returns nil on the first
	// success, the context error on cancellation, and otherwise the last
	// error (or every error, see WithLastErrorOnly).
	Execute(ctx context.Context, operation func() error) error
}

type config struct {
	attempts    uint
	delay       time.Duration
	maxDelay    time.Duration
	lastErrOnly bool
	fixedDelay  bool
	onRetry     func(attempt uint, err error)
}

// Option customizes a Retry.
type Option func(*config)

type retrier struct {
	cfg config
}

var _ Retry = (*retrier)(nil)

// New returns a Retry. Defaults: 3 attempts, exponential backoff from 1s
// capped at 5s, last error only.
func New(opts ...Option) Retry {
	cfg := config{
		attempts:    3,
		delay:       time.Second,
		maxDelay:    5 * time.Second,
		lastErrOnly: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &retrier{cfg: cfg}
}

func (r *retrier) delayType() retry.DelayTypeFunc {
	if r.cfg.fixedDelay {
		return retry.FixedDelay
	}

	return retry.BackOffDelay
}

// Execute implements Retry.
func (r *retrier) Execute(ctx context.Context, operation func() error) error {
	options := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(r.cfg.attempts),
		retry.Delay(r.cfg.delay),
		retry.MaxDelay(r.cfg.maxDelay),
		retry.DelayType(r.delayType()),
		retry.LastErrorOnly(r.cfg.lastErrOnly),
	}
	if r.cfg.onRetry != nil {
		options = append(options, retry.OnRetry(r.cfg.onRetry))
	}

	return retry.Do(operation, options...)
}

// WithAttempts sets the total number of attempts, the first one included.
func WithAttempts(n uint) Option {
	return func(c *config) {
		c.attempts = n
	}
}

// WithDelay sets the delay before the first retry. With WithFixedDelay it is
// the delay before every retry.
func WithDelay(d time.Duration) Option {
	return func(c *config) {
		c.delay = d
	}
}

// WithMaxDelay caps the backoff delay.
func WithMaxDelay(d time.Duration) Option {
	return func(c *config) {
		c.maxDelay = d
	}
}

// WithLastErrorOnly chooses between returning the final error (true) and the
// combined errors of every attempt (false).
func WithLastErrorOnly(b bool) Option {
	return func(c *config) {
		c.lastErrOnly = b
	}
}

// WithFixedDelay keeps the delay between attempts constant.
func WithFixedDelay() Option {
	return func(c *config) {
		c.fixedDelay = true
	}
}

// WithOnRetry registers a callback invoked after every failed attempt that will
// be retried. Attempts are numbered from zero.
func WithOnRetry(fn func(attempt uint, err error)) Option {
	return func(c *config) {
		c.onRetry = fn
	}
}

// Unrecoverable wraps err so that Execute stops retrying immediately and
// returns it.
func Unrecoverable(err error) error {
	return retry.Unrecoverable(err)
}
