// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without string matching. For example, ErrNotFound signals
// that a requested row does not exist, while ErrConflict signals that
// an update lost to conflicting state (a status that already moved on,
// a seat column written by a concurrent workflow).
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row. Handlers
// should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an update cannot be performed because
// of conflicting state, such as paying an order that is no longer
// pending payment. Handlers should translate this into an HTTP 409
// response.
var ErrConflict = errors.New("conflict")
