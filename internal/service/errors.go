// Package service orchestrates the booking, refund, change, payment and
// waitlist workflows over the stock ledger, the lock manager, the seat
// allocator and the relational stores. Every externally visible failure is
// one of the sentinel errors below, wrapped with detail; handlers map them
// to HTTP statuses and nothing in this package ever panics across its
// boundary.
package service

import "errors"

// ErrBusy is returned when a workflow could not take its lock within the
// wait budget, or when the broker rejected the order message after stock
// was already returned. The request may be retried as-is.
var ErrBusy = errors.New("system busy, please retry")

// ErrSoldOut is returned when the ledger reports insufficient stock for the
// requested key. It is an expected outcome, not a fault.
var ErrSoldOut = errors.New("sold out")

// ErrInvalidState is returned when the target entity exists but is not in a
// status the operation accepts: paying a cancelled order, refunding a used
// ticket, booking a journey that overlaps one the passenger already holds.
var ErrInvalidState = errors.New("invalid state for operation")

// ErrForbidden is returned when the caller does not own the target order or
// the passenger is not registered under the caller's account.
var ErrForbidden = errors.New("forbidden")

// ErrNotFound is returned when the target entity does not exist.
var ErrNotFound = errors.New("not found")
