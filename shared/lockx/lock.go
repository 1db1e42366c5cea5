// Package lockx implements a single-holder lease on Redis. Release and
// Refresh are token-guarded so a worker that lost its lease cannot stomp
// on the next holder's.
package lockx

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

const refreshScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`

// Lock is a held lease. Zero value is not usable; obtain one via Acquire.
type Lock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// Acquire takes the lease, or reports ok=false when another holder has it.
func Acquire(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (*Lock, bool, error) {
	if client == nil {
		return nil, false, errors.New("redis client not initialized")
	}
	if ttl <= 0 {
		return nil, false, errors.New("ttl must be > 0")
	}
	token := uuid.NewString()
	ok, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &Lock{client: client, key: key, token: token, ttl: ttl}, true, nil
}

// Release drops the lease if this lock still holds it.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil || l.client == nil {
		return errors.New("lock not held")
	}
	return l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Err()
}

// Refresh extends the lease by its original TTL. Returns false when the
// lease was already lost.
func (l *Lock) Refresh(ctx context.Context) (bool, error) {
	if l == nil || l.client == nil {
		return false, errors.New("lock not held")
	}
	n, err := l.client.Eval(ctx, refreshScript, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
