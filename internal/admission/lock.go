package admission

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/modgate/modgate/internal/shared"
)

// ErrLocked means another admission of the same module is in flight and the
// caller gave up waiting.
var ErrLocked = errors.New("admission: module admission already in progress")

const (
	lockTTL       = 30 * time.Second
	lockRetryWait = 100 * time.Millisecond
	lockAttempts  = 20
)

// releaseScript deletes the lock only when it still holds our token, so an
// expired lock reclaimed by another admission is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker serializes concurrent admissions of the same module. A nil Locker
// disables locking, which is fine for single-process setups and tests that
// do not exercise concurrency.
type Locker struct {
	client *redis.Client
}

// NewLocker wraps the redis client.
func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

// acquire takes the per-module lock, polling briefly before giving up with
// ErrLocked. The returned release is safe to call after the TTL expired.
func (l *Locker) acquire(ctx context.Context, moduleName string) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	key := shared.ModuleAdmissionLockKey(shared.NormalizeName(moduleName))
	token := uuid.NewString()
	for attempt := 0; attempt < lockAttempts; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryWait):
		}
	}
	return nil, ErrLocked
}
