package lock

import (
    "context"
    "strconv"
    "sync"
    "time"
)

type lease struct {
    token   string
    expires time.Time
}

// MemoryManager implements Manager as an in-process lease table under one
// mutex.  It honors the same contract as the Redis backend (bounded wait,
// auto-expiring lease, holder-only unlock) for single-node deployments and
// tests.
type MemoryManager struct {
    mu        sync.Mutex
    leases    map[string]lease
    nextToken uint64
}

func NewMemoryManager() *MemoryManager {
    return &MemoryManager{leases: make(map[string]lease)}
}

func (m *MemoryManager) TryLock(ctx context.Context, name string, wait, lease time.Duration) (string, bool, error) {
    deadline := time.Now().Add(wait)
    for {
        if token, ok := m.tryAcquire(name, lease); ok {
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

func (m *MemoryManager) tryAcquire(name string, d time.Duration) (string, bool) {
    m.mu.Lock()
    defer m.mu.Unlock()
    now := time.Now()
    if cur, ok := m.leases[name]; ok && now.Before(cur.expires) {
        return "", false
    }
    // Free, or the previous lease expired without an unlock.
    m.nextToken++
    token := strconv.FormatUint(m.nextToken, 10)
    m.leases[name] = lease{token: token, expires: now.Add(d)}
    return token, true
}

func (m *MemoryManager) Unlock(_ context.Context, name, token string) {
    if token == "" {
        return
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    if cur, ok := m.leases[name]; ok && cur.token == token {
        delete(m.leases, name)
    }
}
