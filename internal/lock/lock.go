// Package lock provides named, leased mutual exclusion for multi-step
// workflows.  Booking, refund and change each take the lock for their
// resource before touching the stock ledger or seat bitmaps, so no two
// workflows for the same train+date or the same order ever interleave their
// critical sections.  Leases always expire: a holder that crashes without
// unlocking only stalls the resource for the lease duration, never forever.
package lock

import (
    "context"
    "fmt"
    "time"
)

// Manager is the locking contract.  TryLock blocks up to wait and then gives
// up; callers must treat a false return as "system busy, retry later", not as
// a distinct failure.  A successful acquisition returns an opaque token that
// scopes Unlock to that acquisition: after the lease expires and someone else
// takes the lock, the stale holder's Unlock no longer matches and is a no-op.
// Unlock with an empty or unknown token is likewise a no-op.
type Manager interface {
    TryLock(ctx context.Context, name string, wait, lease time.Duration) (token string, ok bool, err error)
    Unlock(ctx context.Context, name, token string)
}

// BookingLockName serializes booking workflows per train and travel date.
func BookingLockName(trainID int, travelDate time.Time) string {
    return fmt.Sprintf("booking:%d:%s", trainID, travelDate.Format("2006-01-02"))
}

// RefundLockName serializes refund workflows per order.
func RefundLockName(orderID int64) string {
    return fmt.Sprintf("refund:%d", orderID)
}

// ChangeLockName serializes change workflows per original order.
func ChangeLockName(orderID int64) string {
    return fmt.Sprintf("change:%d", orderID)
}
