package service

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/minirail/train-seat-reservation/internal/ledger"
    "github.com/minirail/train-seat-reservation/internal/lock"
    "github.com/minirail/train-seat-reservation/internal/model"
    "github.com/minirail/train-seat-reservation/internal/repository"
)

// Default timing for the order timeout sweep.
const (
    DefaultOrderTimeout = 15 * time.Minute
    DefaultReapInterval = time.Minute
)

// Reaper cancels orders that sat unpaid past the deadline, returning their
// stock and seats. Every step is a guarded transition or an idempotent
// release, so a sweep that dies halfway is simply finished by the next one.
type Reaper struct {
    tickets  TicketStore
    stock    ledger.Ledger
    seats    SeatReleaser
    locks    lock.Manager
    timeout  time.Duration
    interval time.Duration
    now      func() time.Time
}

func NewReaper(tickets TicketStore, stock ledger.Ledger, seats SeatReleaser, locks lock.Manager, timeout, interval time.Duration) *Reaper {
    if timeout <= 0 {
        timeout = DefaultOrderTimeout
    }
    if interval <= 0 {
        interval = DefaultReapInterval
    }
    return &Reaper{
        tickets:  tickets,
        stock:    stock,
        seats:    seats,
        locks:    locks,
        timeout:  timeout,
        interval: interval,
        now:      time.Now,
    }
}

// Run sweeps on a ticker until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
    ticker := time.NewTicker(r.interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            if err := r.SweepOnce(ctx); err != nil {
                log.Printf("reaper: sweep failed: %v", err)
            }
        }
    }
}

// SweepOnce cancels every pending-payment order older than the timeout.
// Orders that fail individually are logged and skipped so one bad row
// cannot stall the rest of the sweep.
func (r *Reaper) SweepOnce(ctx context.Context) error {
    cutoff := r.now().UTC().Add(-r.timeout)
    expired, err := r.tickets.PendingOrdersOlderThan(ctx, cutoff)
    if err != nil {
        return err
    }
    for _, o := range expired {
        if err := r.reapOrder(ctx, o); err != nil {
            log.Printf("reaper: order %d: %v", o.OrderID, err)
        }
    }
    return nil
}

// reapOrder cancels one expired order under its refund lock. The refund
// lock is the same one a user-initiated refund takes, so the two paths
// cannot double-return the same ticket.
func (r *Reaper) reapOrder(ctx context.Context, o model.Order) error {
    name := lock.RefundLockName(o.OrderID)
    token, ok, err := r.locks.TryLock(ctx, name, lockWait, lockLease)
    if err != nil {
        return err
    }
    if !ok {
        return fmt.Errorf("%w: refund lock %s", ErrBusy, name)
    }
    defer r.locks.Unlock(ctx, name, token)

    tickets, err := r.tickets.TicketsByOrder(ctx, o.OrderID)
    if err != nil {
        return err
    }
    for _, t := range tickets {
        if t.Status != model.TicketPendingPayment {
            continue
        }
        err := r.tickets.MoveTicketStatus(ctx, t.TicketID, model.TicketPendingPayment, model.TicketRefunded)
        if errors.Is(err, repository.ErrConflict) {
            continue // paid or already reaped in the meantime
        }
        if err != nil {
            return err
        }
        if err := r.stock.Increment(ctx, t.Key, 1); err != nil {
            log.Printf("reaper: stock return for ticket %d failed: %v", t.TicketID, err)
        }
        if t.CarriageNumber != nil && t.SeatNumber != nil {
            if err := r.seats.ReleaseSeat(ctx, t.Key.TrainID, *t.CarriageNumber, *t.SeatNumber,
                t.Key.TravelDate, t.Key.DepartureStopID, t.Key.ArrivalStopID); err != nil {
                log.Printf("reaper: seat release for ticket %d failed: %v", t.TicketID, err)
            }
        }
    }

    // Re-read the order: payment may have slipped in between the scan and
    // the lock.
    fresh, err := r.tickets.Order(ctx, o.OrderID)
    if err != nil {
        return err
    }
    if fresh.Status != model.OrderPendingPayment {
        return nil
    }
    if err := r.tickets.SetOrderTotals(ctx, o.OrderID, 0, 0); err != nil {
        return err
    }
    return r.tickets.SetOrderStatus(ctx, o.OrderID, model.OrderCancelled)
}
