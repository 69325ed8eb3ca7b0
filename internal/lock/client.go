// Package lock implements a lease-based mutual-exclusion client over a
// shared Redis instance, used to coordinate reservation writes across
// service instances.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/cimillas/slotwise/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only while the stored token still matches
// the holder's. A holder whose lease expired and was re-acquired by someone
// else must not be able to release the new holder's lease.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the expiry only while the stored token still matches.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

const (
	defaultAcquireAttempts = 3
	defaultAcquireBackoff  = 50 * time.Millisecond
)

// Lease is an acquired lock handle. Only the holder carrying Token may
// release or extend it. Leases are ephemeral: Redis reclaims them after TTL
// if the holder crashes.
type Lease struct {
	Key   string
	Token string
	TTL   time.Duration
}

// Client acquires short-lived named leases. Safe for concurrent use.
type Client struct {
	rdb      *redis.Client
	attempts int
	backoff  time.Duration
}

func NewClient(rdb *redis.Client, opts ...Option) *Client {
	c := &Client{
		rdb:      rdb,
		attempts: defaultAcquireAttempts,
		backoff:  defaultAcquireBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Option func(*Client)

// WithAcquireRetry overrides the bounded retry behaviour of Acquire.
func WithAcquireRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// Acquire attempts an atomic set-if-absent with expiry for key. It retries
// contention a bounded number of times with a fixed backoff and then fails
// with domain.ErrLockConflict; it never blocks indefinitely. Transport
// failures and caller cancellation wrap domain.ErrCoordinationUnavailable.
func (c *Client) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	token := uuid.NewString()
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Lease{}, fmt.Errorf("%w: %v", domain.ErrCoordinationUnavailable, ctx.Err())
			case <-time.After(c.backoff):
			}
		}
		ok, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return Lease{}, fmt.Errorf("%w: %v", domain.ErrCoordinationUnavailable, err)
		}
		if ok {
			return Lease{Key: key, Token: token, TTL: ttl}, nil
		}
	}
	return Lease{}, domain.ErrLockConflict
}

// Release removes the lease via compare-and-delete. Releasing a lease that
// already expired or changed hands is a no-op.
func (c *Client) Release(ctx context.Context, lease Lease) error {
	if err := releaseScript.Run(ctx, c.rdb, []string{lease.Key}, lease.Token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("%w: %v", domain.ErrCoordinationUnavailable, err)
	}
	return nil
}

// Extend resets the lease expiry to ttl via compare-and-expire. It returns
// false when the lease is no longer held by this token.
func (c *Client) Extend(ctx context.Context, lease Lease, ttl time.Duration) (bool, error) {
	res, err := extendScript.Run(ctx, c.rdb, []string{lease.Key}, lease.Token, ttl.Milliseconds()).Int64()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("%w: %v", domain.ErrCoordinationUnavailable, err)
	}
	return res == 1, nil
}

// TTL reports the remaining lifetime of the lease stored at key. held is
// false when no lease exists, which lets callers distinguish "absent" from
// "held by someone" while deciding whether to retry.
func (c *Client) TTL(ctx context.Context, key string) (remaining time.Duration, held bool, err error) {
	d, err := c.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", domain.ErrCoordinationUnavailable, err)
	}
	if d < 0 {
		// -2 means the key is absent, -1 means no expiry was set.
		return 0, false, nil
	}
	return d, true, nil
}
