package ledger

import (
    "context"
    "fmt"
    "log"
    "strconv"

    "github.com/redis/go-redis/v9"

    "github.com/minirail/train-seat-reservation/internal/model"
)

// The check-and-subtract has to happen inside the store: a client-side read
// followed by a write would hand two concurrent buyers the same seat.  The
// script's return codes distinguish success (1), insufficient stock (0) and
// a counter that was never seeded (-1).
var decrScript = redis.NewScript(`
    local key = KEYS[1]
    local quantity = tonumber(ARGV[1])
    if quantity == nil then
        return -2
    end
    local current = redis.call('GET', key)
    if current == false then
        return -1
    end
    current = tonumber(current)
    if current == nil then
        return -3
    end
    if current >= quantity then
        redis.call('DECRBY', key, quantity)
        return 1
    end
    return 0
`)

var incrScript = redis.NewScript(`
    local quantity = tonumber(ARGV[1])
    if quantity == nil then
        return -1
    end
    redis.call('INCRBY', KEYS[1], quantity)
    return 1
`)

// RedisLedger keeps the counters in Redis, one string value per stock key,
// mutated only through server-side Lua so every operation is atomic.
type RedisLedger struct {
    rdb       *redis.Client
    onRelease ReleaseFunc
}

func NewRedisLedger(rdb *redis.Client) *RedisLedger {
    return &RedisLedger{rdb: rdb}
}

// OnRelease registers the listener notified after every successful increment.
// Must be called during wiring, before concurrent use.
func (l *RedisLedger) OnRelease(fn ReleaseFunc) { l.onRelease = fn }

func (l *RedisLedger) Decrement(ctx context.Context, key model.InventoryKey, n int) (bool, error) {
    res, err := decrScript.Run(ctx, l.rdb, []string{key.StockKey()}, n).Int64()
    if err != nil {
        return false, fmt.Errorf("ledger decrement %s: %w", key.StockKey(), err)
    }
    switch res {
    case 1:
        return true, nil
    case 0:
        return false, nil
    case -1:
        // The counter should have been seeded at startup; treat as sold out
        // rather than failing the request.
        log.Printf("ledger: consistency warning: missing counter %s", key.StockKey())
        return false, nil
    default:
        return false, fmt.Errorf("ledger decrement %s: unexpected script result %d", key.StockKey(), res)
    }
}

func (l *RedisLedger) Increment(ctx context.Context, key model.InventoryKey, n int) error {
    res, err := incrScript.Run(ctx, l.rdb, []string{key.StockKey()}, n).Int64()
    if err != nil {
        return fmt.Errorf("ledger increment %s: %w", key.StockKey(), err)
    }
    if res != 1 {
        return fmt.Errorf("ledger increment %s: unexpected script result %d", key.StockKey(), res)
    }
    if l.onRelease != nil {
        go l.onRelease(key)
    }
    return nil
}

func (l *RedisLedger) Read(ctx context.Context, key model.InventoryKey) (int, bool, error) {
    val, err := l.rdb.Get(ctx, key.StockKey()).Result()
    if err == redis.Nil {
        return 0, false, nil
    }
    if err != nil {
        return 0, false, fmt.Errorf("ledger read %s: %w", key.StockKey(), err)
    }
    n, err := strconv.Atoi(val)
    if err != nil {
        return 0, false, fmt.Errorf("ledger read %s: malformed counter %q", key.StockKey(), val)
    }
    return n, true, nil
}

func (l *RedisLedger) Set(ctx context.Context, key model.InventoryKey, n int) error {
    if err := l.rdb.Set(ctx, key.StockKey(), strconv.Itoa(n), 0).Err(); err != nil {
        return fmt.Errorf("ledger set %s: %w", key.StockKey(), err)
    }
    return nil
}
