// Package ledger is the atomic counter store for live "seats remaining".
// Each inventory key owns one counter; decrement and increment are single
// indivisible operations on it, so concurrent callers can never observe a
// read-modify-write window.  The ledger is the source of truth during normal
// operation; the relational store only carries a periodically reconciled
// shadow.
package ledger

import (
    "context"

    "github.com/minirail/train-seat-reservation/internal/model"
)

// Ledger is the counter contract.  Decrement returning false is not an
// error: it is the normal sold-out signal, including the case of a counter
// that was never seeded (logged as a consistency warning by the backends).
type Ledger interface {
    // Decrement atomically checks current >= n and subtracts, reporting
    // whether it did.  It never takes a counter below zero.
    Decrement(ctx context.Context, key model.InventoryKey, n int) (bool, error)
    // Increment unconditionally adds n back and notifies the release
    // listener, if one is registered.
    Increment(ctx context.Context, key model.InventoryKey, n int) error
    // Read returns the counter value and whether the key exists.
    Read(ctx context.Context, key model.InventoryKey) (int, bool, error)
    // Set seeds or overwrites the counter.
    Set(ctx context.Context, key model.InventoryKey, n int) error
}

// ReleaseFunc is invoked after a successful Increment.  The waitlist engine
// registers one to fulfill queued demand against the freed key.  It runs on
// its own goroutine; implementations must tolerate concurrent calls.
type ReleaseFunc func(key model.InventoryKey)
