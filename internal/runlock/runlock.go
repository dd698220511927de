// Package runlock keeps two seeder processes from writing to the same
// database at once.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/george-bobby/app-opencats-sub001/pkg/errors"
)

// ErrHeld is returned by Acquire when another run owns the lock.
var ErrHeld = fmt.Errorf("seed run already in progress: %w", apperrors.ErrConflict)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the TTL only while the key still holds our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Locker hands out run locks stored in Redis.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a Locker whose locks expire after ttl unless refreshed.
func New(client *redis.Client, ttl time.Duration) *Locker {
	return &Locker{client: client, ttl: ttl}
}

// Lock is a held run lock.
type Lock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// Acquire takes the lock named key for runID. It fails with ErrHeld when the
// lock is owned by someone else.
func (l *Locker) Acquire(ctx context.Context, key, runID string) (*Lock, error) {
	token := runID
	if token == "" {
		token = uuid.NewString()
	}
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock %s: %w", key, err)
	}
	if !ok {
		owner, err := l.client.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("read run lock owner: %w", err)
		}
		return nil, fmt.Errorf("%w (owner %s)", ErrHeld, owner)
	}
	return &Lock{client: l.client, key: key, token: token, ttl: l.ttl}, nil
}

// Token returns the value stored under the lock key.
func (k *Lock) Token() string { return k.token }

// Refresh extends the lock's expiry. It fails when the lock was lost.
func (k *Lock) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, k.client, []string{k.key}, k.token, k.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("refresh run lock %s: %w", k.key, err)
	}
	if n == 0 {
		return fmt.Errorf("refresh run lock %s: lock lost", k.key)
	}
	return nil
}

// KeepAlive refreshes the lock every ttl/3 until ctx is done. Errors are
// passed to onErr and do not stop the loop.
func (k *Lock) KeepAlive(ctx context.Context, onErr func(error)) {
	ticker := time.NewTicker(k.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := k.Refresh(ctx); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}

// Release drops the lock if it is still ours.
func (k *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, k.client, []string{k.key}, k.token).Err(); err != nil {
		return fmt.Errorf("release run lock %s: %w", k.key, err)
	}
	return nil
}
