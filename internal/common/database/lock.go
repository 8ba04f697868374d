package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("lock not acquired")
	ErrLockNotHeld     = errors.New("lock not held")
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RunLocker hands out per-query-profile locks so at most one matching run
// clears and rewrites a profile's results at a time.
type RunLocker struct {
	rdb       redis.Cmdable
	keyPrefix string
	ttl       time.Duration
}

func NewRunLocker(rdb redis.Cmdable, keyPrefix string, ttl time.Duration) *RunLocker {
	if keyPrefix == "" {
		keyPrefix = "matching:run:"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RunLocker{rdb: rdb, keyPrefix: keyPrefix, ttl: ttl}
}

// RunLock is a held lock. Release is safe to call more than once.
type RunLock struct {
	rdb   redis.Cmdable
	key   string
	token string
}

func (l *RunLocker) Key(queryProfileID int64) string {
	return l.keyPrefix + strconv.FormatInt(queryProfileID, 10)
}

// Acquire returns ErrLockNotAcquired when another run holds the profile.
func (l *RunLocker) Acquire(ctx context.Context, queryProfileID int64) (*RunLock, error) {
	key := l.Key(queryProfileID)
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}
	return &RunLock{rdb: l.rdb, key: key, token: token}, nil
}

// Release deletes the key only if it still carries this lock's token.
func (lock *RunLock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, lock.rdb, []string{lock.key}, lock.token).Int64()
	if err != nil {
		return fmt.Errorf("release %s: %w", lock.key, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
