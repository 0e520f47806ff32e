package lock

import (
    "context"
    "crypto/rand"
    "encoding/hex"
    "time"

    "github.com/redis/go-redis/v9"
)

// Unlock must not delete a lease that expired and was re-acquired by someone
// else, so deletion compares the holder token inside the store.
var unlockScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

const acquirePollInterval = 50 * time.Millisecond

// RedisManager implements Manager on Redis: SET NX PX gives atomic
// acquisition with a server-enforced lease, and a random per-acquisition
// token scopes Unlock to the acquisition that took the lock.
type RedisManager struct {
    rdb *redis.Client
}

func NewRedisManager(rdb *redis.Client) *RedisManager {
    return &RedisManager{rdb: rdb}
}

func (m *RedisManager) TryLock(ctx context.Context, name string, wait, lease time.Duration) (string, bool, error) {
    token, err := newToken()
    if err != nil {
        return "", false, err
    }
    deadline := time.Now().Add(wait)
    for {
        ok, err := m.rdb.SetNX(ctx, name, token, lease).Result()
        if err != nil {
            return "", false, err
        }
        if ok {
            return token, true, nil
        }
        if time.Now().After(deadline) {
            return "", false, nil
        }
        select {
        case <-ctx.Done():
            return "", false, ctx.Err()
        case <-time.After(acquirePollInterval):
        }
    }
}

func (m *RedisManager) Unlock(ctx context.Context, name, token string) {
    if token == "" {
        return
    }
    // Best effort: a failed delete means the lease will expire on its own.
    _, _ = unlockScript.Run(ctx, m.rdb, []string{name}, token).Result()
}

func newToken() (string, error) {
    b := make([]byte, 16)
    if _, err := rand.Read(b); err != nil {
        return "", err
    }
    return hex.EncodeToString(b), nil
}
