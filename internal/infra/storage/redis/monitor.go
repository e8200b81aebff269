package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/gabapcia/solcustody/internal/depositwatch"

	redis "github.com/redis/go-redis/v9"
)

// refreshScript extends a claim only while it still belongs to the caller.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// releaseScript deletes a claim only while it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// monitorGuardKey returns the claim key of a deposit monitor.
//
// Format: "solcustody:monitor:{key}"
func monitorGuardKey(key string) string {
	return fmt.Sprintf("%s:monitor:%s", keyPrefix, key)
}

// MonitorGuard claims deposit monitor keys with SETNX. The value is the owner
// token of the claiming monitor, and claims expire after a TTL unless the
// owner refreshes them, so a crashed process cannot hold a key forever.
type MonitorGuard struct {
	client *client
	ttl    time.Duration
}

// NewMonitorGuard returns a guard whose claims live for ttl between refreshes.
func (c *client) NewMonitorGuard(ttl time.Duration) *MonitorGuard {
	return &MonitorGuard{client: c, ttl: ttl}
}

// Claim implements depositwatch.MonitorGuard.
func (g *MonitorGuard) Claim(ctx context.Context, key, owner string) (bool, error) {
	return g.client.conn.SetNX(ctx, monitorGuardKey(key), owner, g.ttl).Result()
}

// Refresh implements depositwatch.MonitorGuard.
func (g *MonitorGuard) Refresh(ctx context.Context, key, owner string) (bool, error) {
	n, err := refreshScript.Run(ctx, g.client.conn, []string{monitorGuardKey(key)}, owner, g.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

// Release implements depositwatch.MonitorGuard.
func (g *MonitorGuard) Release(ctx context.Context, key, owner string) error {
	return releaseScript.Run(ctx, g.client.conn, []string{monitorGuardKey(key)}, owner).Err()
}

// Ensure MonitorGuard satisfies the depositwatch interface at compile time.
var _ depositwatch.MonitorGuard = (*MonitorGuard)(nil)
