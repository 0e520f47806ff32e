// Package seatmap encodes per-seat, per-date occupancy as bitmaps and
// allocates physical seats against them.  Every stop on a route owns two bits
// in the bitmap: the low bit of the pair means "arrives at this stop", the
// high bit means "departs from this stop".  A booked interval sets the
// departure bit of its first stop, the arrival bit of its last stop, and both
// bits for every stop strictly in between.  Two intervals conflict exactly
// when their masks share a bit, so availability is a single AND.
package seatmap

import "time"

// BaseDate anchors the rolling window of tracked travel dates.  Date index 1
// is BaseDate itself, index WindowDays is BaseDate+WindowDays-1.
var BaseDate = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

// WindowDays is the size of the rolling date window.
const WindowDays = 10

// DateIndex maps a travel date onto the window, returning 1..WindowDays, or
// -1 when the date falls outside it.  Callers must treat -1 as "cannot book".
func DateIndex(date time.Time) int {
    d := int(date.Truncate(24*time.Hour).Sub(BaseDate.Truncate(24*time.Hour)).Hours() / 24)
    if d < 0 || d >= WindowDays {
        return -1
    }
    return d + 1
}

// IntervalMask builds the occupancy mask for the ride from the stop with
// sequence number departureSeq to the stop with sequence number arrivalSeq.
// Sequence numbers start at 1.  An inverted or empty interval yields 0, which
// never conflicts and never occupies; callers must validate the interval
// before relying on the mask.
func IntervalMask(departureSeq, arrivalSeq int) uint64 {
    if departureSeq <= 0 || departureSeq >= arrivalSeq {
        return 0
    }
    var mask uint64
    mask |= 1 << uint(2*(departureSeq-1)+1) // departs first stop
    mask |= 1 << uint(2*(arrivalSeq-1))     // arrives last stop
    for s := departureSeq + 1; s < arrivalSeq; s++ {
        mask |= 0b11 << uint(2*(s-1)) // passes through
    }
    return mask
}

// Available reports whether the interval described by mask is free on bitmap.
func Available(bitmap, mask uint64) bool {
    return bitmap&mask == 0
}

// Occupy marks the interval as booked.
func Occupy(bitmap, mask uint64) uint64 {
    return bitmap | mask
}

// Release clears the interval.  Releasing an already-free interval is a
// no-op, which makes refund and reaper paths safely re-runnable.
func Release(bitmap, mask uint64) uint64 {
    return bitmap &^ mask
}
