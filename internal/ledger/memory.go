package ledger

import (
    "context"
    "log"
    "sync"

    "github.com/minirail/train-seat-reservation/internal/model"
)

// MemoryLedger holds the counters in process memory under one mutex.  It is
// the single-node deployment backend and what the concurrency tests run
// against; the contract is identical to the Redis backend.
type MemoryLedger struct {
    mu        sync.Mutex
    counters  map[string]int
    onRelease ReleaseFunc
}

func NewMemoryLedger() *MemoryLedger {
    return &MemoryLedger{counters: make(map[string]int)}
}

// OnRelease registers the listener notified after every increment.  Must be
// called during wiring, before concurrent use.
func (l *MemoryLedger) OnRelease(fn ReleaseFunc) { l.onRelease = fn }

func (l *MemoryLedger) Decrement(_ context.Context, key model.InventoryKey, n int) (bool, error) {
    l.mu.Lock()
    defer l.mu.Unlock()
    current, ok := l.counters[key.StockKey()]
    if !ok {
        log.Printf("ledger: consistency warning: missing counter %s", key.StockKey())
        return false, nil
    }
    if current < n {
        return false, nil
    }
    l.counters[key.StockKey()] = current - n
    return true, nil
}

func (l *MemoryLedger) Increment(_ context.Context, key model.InventoryKey, n int) error {
    l.mu.Lock()
    l.counters[key.StockKey()] += n
    fn := l.onRelease
    l.mu.Unlock()
    if fn != nil {
        go fn(key)
    }
    return nil
}

func (l *MemoryLedger) Read(_ context.Context, key model.InventoryKey) (int, bool, error) {
    l.mu.Lock()
    defer l.mu.Unlock()
    n, ok := l.counters[key.StockKey()]
    return n, ok, nil
}

func (l *MemoryLedger) Set(_ context.Context, key model.InventoryKey, n int) error {
    l.mu.Lock()
    defer l.mu.Unlock()
    l.counters[key.StockKey()] = n
    return nil
}
