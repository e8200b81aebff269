// Package http builds the retrying HTTP clients used for JSON-RPC calls and
// webhook delivery. It wraps retryablehttp.Client and can route its retry
// logs through the service logger.
package http

import (
	"context"
	"time"

	"github.com/gabapcia/solcustody/internal/pkg/logger"

	"github.com/hashicorp/go-retryablehttp"
)

// config holds internal settings for the HTTP client.
type config struct {
	timeout      time.Duration // maximum duration for a single HTTP request
	retryWaitMin time.Duration // minimum delay between retry attempts
	retryWaitMax time.Duration // maximum delay between retry attempts
	retryMax     int           // maximum number of retry attempts
	component    string        // when set, retry logs go to the service logger tagged with it
}

// Option defines a functional option for configuring the HTTP client.
type Option func(*config)

// NewClient creates and returns a retryablehttp.Client configured with
// the provided options. If no options are given, default values are used:
//
//   - timeout:      5 seconds
//   - retryWaitMin: 1 second
//   - retryWaitMax: 5 seconds
//   - retryMax:     2 retries
func NewClient(opts ...Option) *retryablehttp.Client {
	cfg := config{
		timeout:      5 * time.Second,
		retryWaitMin: 1 * time.Second,
		retryWaitMax: 5 * time.Second,
		retryMax:     2,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	client := retryablehttp.NewClient()
	client.Logger = nil
	if cfg.component != "" {
		client.Logger = leveledLogger{component: cfg.component}
	}
	client.HTTPClient.Timeout = cfg.timeout
	client.RetryWaitMin = cfg.retryWaitMin
	client.RetryWaitMax = cfg.retryWaitMax
	client.RetryMax = cfg.retryMax
	return client
}

// WithTimeout sets the maximum duration allowed for a single HTTP request.
// Default: 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithRetryWaitMin sets the minimum delay between retry attempts.
// Default: 1 second.
func WithRetryWaitMin(d time.Duration) Option {
	return func(c *config) {
		c.retryWaitMin = d
	}
}

// WithRetryWaitMax sets the maximum delay between retry attempts.
// Default: 5 seconds.
func WithRetryWaitMax(d time.Duration) Option {
	return func(c *config) {
		c.retryWaitMax = d
	}
}

// WithRetryMax sets the maximum number of retry attempts for failed requests.
// Default: 2 retries.
func WithRetryMax(n int) Option {
	return func(c *config) {
		c.retryMax = n
	}
}

// WithLogging routes the client's request and retry logs to the service
// logger, tagged with component. Default: silent.
func WithLogging(component string) Option {
	return func(c *config) {
		c.component = component
	}
}

// leveledLogger adapts the service logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	component string
}

var _ retryablehttp.LeveledLogger = leveledLogger{}

func (l leveledLogger) kv(keysAndValues []any) []any {
	return append([]any{"http.component", l.component}, keysAndValues...)
}

func (l leveledLogger) Error(msg string, keysAndValues ...any) {
	logger.Error(context.Background(), msg, l.kv(keysAndValues)...)
}

func (l leveledLogger) Info(msg string, keysAndValues ...any) {
	logger.Info(context.Background(), msg, l.kv(keysAndValues)...)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...any) {
	logger.Debug(context.Background(), msg, l.kv(keysAndValues)...)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...any) {
	logger.Warn(context.Background(), msg, l.kv(keysAndValues)...)
}
