package service

import (
    "context"
    "log"
    "time"

    "github.com/minirail/train-seat-reservation/internal/ledger"
)

// DefaultReconcileInterval is how often the ledger is pushed back into the
// durable shadow. Short on purpose: the shadow is what survives a cache
// loss, so its staleness window should stay small.
const DefaultReconcileInterval = 30 * time.Second

// Reconciler keeps the durable inventory shadow trailing the live ledger.
// Data only flows ledger → database on the periodic path; the reverse
// (SeedFromDatabase) never runs automatically because a live ledger is
// authoritative and overwriting it from a stale shadow would resurrect
// sold stock.
type Reconciler struct {
    inventory InventoryStore
    stock     ledger.Ledger
    interval  time.Duration
}

func NewReconciler(inventory InventoryStore, stock ledger.Ledger, interval time.Duration) *Reconciler {
    if interval <= 0 {
        interval = DefaultReconcileInterval
    }
    return &Reconciler{inventory: inventory, stock: stock, interval: interval}
}

// Run syncs on a ticker until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
    ticker := time.NewTicker(r.interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            if err := r.SyncOnce(ctx); err != nil {
                log.Printf("reconciler: sync failed: %v", err)
            }
        }
    }
}

// SyncOnce walks every inventory row and overwrites the durable count with
// the ledger value wherever the two disagree. Keys missing from the ledger
// are logged and left alone; only SeedFromDatabase may create counters.
func (r *Reconciler) SyncOnce(ctx context.Context) error {
    records, err := r.inventory.All(ctx)
    if err != nil {
        return err
    }
    corrected := 0
    for _, rec := range records {
        live, ok, err := r.stock.Read(ctx, rec.Key)
        if err != nil {
            return err
        }
        if !ok {
            log.Printf("reconciler: consistency warning: no live counter for %s", rec.Key.StockKey())
            continue
        }
        if live == rec.AvailableSeats {
            continue
        }
        if err := r.inventory.SyncFromLedger(ctx, rec.InventoryID, live); err != nil {
            return err
        }
        corrected++
    }
    if corrected > 0 {
        log.Printf("reconciler: corrected %d inventory rows from ledger", corrected)
    }
    return nil
}

// SeedFromDatabase writes every durable count into the ledger, creating or
// overwriting counters. Operators invoke this explicitly on a cold start
// or after a cache loss; it must not run while traffic is being served.
func (r *Reconciler) SeedFromDatabase(ctx context.Context) error {
    records, err := r.inventory.All(ctx)
    if err != nil {
        return err
    }
    for _, rec := range records {
        if err := r.stock.Set(ctx, rec.Key, rec.AvailableSeats); err != nil {
            return err
        }
    }
    log.Printf("reconciler: seeded %d counters from database", len(records))
    return nil
}
