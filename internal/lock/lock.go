// Package lock provides the per-user checkout lock. Redis is used when
// configured so that the lock holds across server replicas; otherwise the
// lock is local to the process.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/bookstore-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the key.
var ErrLockHeld = errors.New("lock is held by another request")

// Release gives the lock back. It is safe to call more than once.
type Release func()

type Locker interface {
	// Acquire takes key for at most ttl without waiting.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// CheckoutKey is the lock key for a user's checkout.
func CheckoutKey(userID uint) string {
	return fmt.Sprintf("lock:checkout:%d", userID)
}

// releaseScript deletes the key only if it still carries our token, so an
// expired lock re-taken by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client redis.UniversalClient
}

func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				logger.Warn("Failed to release lock, it will expire on its own", map[string]interface{}{
					"key":   key,
					"error": err.Error(),
				})
			}
		})
	}, nil
}

type localEntry struct {
	token   uint64
	expires time.Time
}

// LocalLocker is an in-process Locker with the same expiry semantics.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localEntry
	next  uint64
	nowFn func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localEntry), nowFn: time.Now}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if entry, ok := l.held[key]; ok && now.Before(entry.expires) {
		return nil, ErrLockHeld
	}

	l.next++
	token := l.next
	l.held[key] = localEntry{token: token, expires: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if entry, ok := l.held[key]; ok && entry.token == token {
				delete(l.held, key)
			}
		})
	}, nil
}
