package ledger

import (
    "context"
    "sync"
    "testing"
    "time"

    "github.com/minirail/train-seat-reservation/internal/model"
)

func testKey() model.InventoryKey {
    return model.InventoryKey{
        TrainID:         1,
        DepartureStopID: 1,
        ArrivalStopID:   2,
        TravelDate:      time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
        CarriageTypeID:  3,
    }
}

func TestStockKeyFormat(t *testing.T) {
    want := "stock:1:1:2:2025-07-01:3"
    if got := testKey().StockKey(); got != want {
        t.Errorf("stock key = %q, want %q", got, want)
    }
}

func TestDecrementInsufficient(t *testing.T) {
    l := NewMemoryLedger()
    ctx := context.Background()
    if err := l.Set(ctx, testKey(), 2); err != nil {
        t.Fatal(err)
    }
    if ok, _ := l.Decrement(ctx, testKey(), 3); ok {
        t.Error("decrement beyond stock must fail")
    }
    if n, _, _ := l.Read(ctx, testKey()); n != 2 {
        t.Errorf("failed decrement must not change the counter, got %d", n)
    }
}

func TestDecrementMissingKey(t *testing.T) {
    l := NewMemoryLedger()
    ok, err := l.Decrement(context.Background(), testKey(), 1)
    if err != nil {
        t.Fatalf("missing key is a sold-out signal, not an error: %v", err)
    }
    if ok {
        t.Error("missing key must decrement as failure")
    }
}

func TestIncrementRestoresDecrement(t *testing.T) {
    l := NewMemoryLedger()
    ctx := context.Background()
    _ = l.Set(ctx, testKey(), 5)
    if ok, _ := l.Decrement(ctx, testKey(), 2); !ok {
        t.Fatal("decrement within stock must succeed")
    }
    if err := l.Increment(ctx, testKey(), 2); err != nil {
        t.Fatal(err)
    }
    if n, _, _ := l.Read(ctx, testKey()); n != 5 {
        t.Errorf("round trip = %d, want 5", n)
    }
}

func TestConcurrentDecrementNoOversell(t *testing.T) {
    l := NewMemoryLedger()
    ctx := context.Background()
    const seats = 10
    const buyers = 100
    _ = l.Set(ctx, testKey(), seats)

    var wg sync.WaitGroup
    var mu sync.Mutex
    sold := 0
    for i := 0; i < buyers; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            ok, err := l.Decrement(ctx, testKey(), 1)
            if err != nil {
                t.Error(err)
                return
            }
            if ok {
                mu.Lock()
                sold++
                mu.Unlock()
            }
        }()
    }
    wg.Wait()

    if sold != seats {
        t.Errorf("sold %d tickets for %d seats", sold, seats)
    }
    if n, _, _ := l.Read(ctx, testKey()); n != 0 {
        t.Errorf("final counter = %d, want 0", n)
    }
}

func TestSingleSeatTwoBuyers(t *testing.T) {
    l := NewMemoryLedger()
    ctx := context.Background()
    _ = l.Set(ctx, testKey(), 1)

    results := make(chan bool, 2)
    for i := 0; i < 2; i++ {
        go func() {
            ok, _ := l.Decrement(ctx, testKey(), 1)
            results <- ok
        }()
    }
    first, second := <-results, <-results
    if first == second {
        t.Errorf("exactly one of two buyers must win, got %v and %v", first, second)
    }
    if n, _, _ := l.Read(ctx, testKey()); n != 0 {
        t.Errorf("final counter = %d, want 0", n)
    }
}

func TestIncrementNotifiesReleaseListener(t *testing.T) {
    l := NewMemoryLedger()
    released := make(chan model.InventoryKey, 1)
    l.OnRelease(func(key model.InventoryKey) { released <- key })

    _ = l.Set(context.Background(), testKey(), 0)
    if err := l.Increment(context.Background(), testKey(), 1); err != nil {
        t.Fatal(err)
    }
    select {
    case key := <-released:
        if key.StockKey() != testKey().StockKey() {
            t.Errorf("listener got key %s, want %s", key.StockKey(), testKey().StockKey())
        }
    case <-time.After(time.Second):
        t.Fatal("release listener was not notified")
    }
}
