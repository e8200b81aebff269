// Package redis implements the history cache and the cross-process deposit
// monitor guard on top of Redis.
package redis

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

// keyPrefix namespaces every key written by this package.
const keyPrefix = "solcustody"

// Option customizes the connection.
type Option func(*redis.Options)

// WithCredentials authenticates with an ACL user. An empty username selects
// the default user.
func WithCredentials(username, password string) Option {
	return func(o *redis.Options) {
		o.Username = username
		o.Password = password
	}
}

// WithDB selects the logical database. Default: 0.
func WithDB(db int) Option {
	return func(o *redis.Options) {
		o.DB = db
	}
}

type client struct {
	conn *redis.Client
}

// Close releases the connection pool.
func (c *client) Close() error {
	return c.conn.Close()
}

// NewClient connects to the Redis server at addr and checks it answers PING.
func NewClient(ctx context.Context, addr string, opts ...Option) (*client, error) {
	options := &redis.Options{Addr: addr}
	for _, opt := range opts {
		opt(options)
	}

	conn := redis.NewClient(options)
	if err := conn.Ping(ctx).Err(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}

	return &client{conn: conn}, nil
}
