package seatmap

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/minirail/train-seat-reservation/internal/model"
)

// ErrNoSeat is returned when every candidate seat of the requested class is
// occupied for some part of the interval, or the date is outside the window.
var ErrNoSeat = errors.New("no seat available")

// ClassSeat is a seat joined with the carriage it sits in, which is what the
// allocator scans and what a ticket records.
type ClassSeat struct {
    model.Seat
    CarriageNumber string
}

// SeatStore is the persistence the allocator needs.  The *sql.DB-backed
// repository satisfies it; tests use an in-memory fake.
type SeatStore interface {
    // ListForClass returns every seat of the carriage class on the train, in
    // a stable order so the scan is deterministic.
    ListForClass(ctx context.Context, trainID, carriageTypeID int) ([]ClassSeat, error)
    // Find locates one seat by its printed carriage and seat numbers.
    Find(ctx context.Context, trainID int, carriageNumber, seatNumber string) (ClassSeat, error)
    // SaveBitmap persists one date column of one seat.
    SaveBitmap(ctx context.Context, seatID int64, dateIndex int, bitmap uint64) error
}

// StopStore resolves a stop to its sequence number along the train's route.
type StopStore interface {
    Sequence(ctx context.Context, trainID int, stopID int64) (int, error)
}

// Assignment names the physical seat a ticket was given.
type Assignment struct {
    SeatID         int64
    CarriageNumber string
    SeatNumber     string
}

// Allocator finds, marks and releases physical seats.  Callers must hold the
// per-resource booking or refund lock around every mutating call: the
// scan-then-mark in FindAndAssign is only safe because no other workflow for
// the same train and date can interleave.
type Allocator struct {
    seats SeatStore
    stops StopStore
}

func NewAllocator(seats SeatStore, stops StopStore) *Allocator {
    return &Allocator{seats: seats, stops: stops}
}

// FindAndAssign scans the candidate seats of the class and occupies the first
// one free for the whole interval, persisting the updated bitmap before
// returning.  Assignment and occupancy-marking are one step so a concurrent
// workflow (excluded by the lock, but also by this ordering) can never be
// handed the same seat.
func (a *Allocator) FindAndAssign(ctx context.Context, trainID, carriageTypeID int, date time.Time, departureStopID, arrivalStopID int64) (*Assignment, error) {
    idx := DateIndex(date)
    if idx == -1 {
        return nil, ErrNoSeat
    }
    mask, err := a.intervalMask(ctx, trainID, departureStopID, arrivalStopID)
    if err != nil {
        return nil, err
    }
    if mask == 0 {
        return nil, fmt.Errorf("invalid interval: stop %d to %d on train %d", departureStopID, arrivalStopID, trainID)
    }
    seats, err := a.seats.ListForClass(ctx, trainID, carriageTypeID)
    if err != nil {
        return nil, err
    }
    for _, s := range seats {
        bm := s.Bitmaps[idx-1]
        if !Available(bm, mask) {
            continue
        }
        if err := a.seats.SaveBitmap(ctx, s.SeatID, idx, Occupy(bm, mask)); err != nil {
            return nil, err
        }
        return &Assignment{SeatID: s.SeatID, CarriageNumber: s.CarriageNumber, SeatNumber: s.SeatNumber}, nil
    }
    return nil, ErrNoSeat
}

// ReleaseSeat clears the interval on the named seat.  Releasing an interval
// that is already clear changes nothing, so refund, change-conversion and the
// timeout reaper can all call it without coordinating.
func (a *Allocator) ReleaseSeat(ctx context.Context, trainID int, carriageNumber, seatNumber string, date time.Time, departureStopID, arrivalStopID int64) error {
    idx := DateIndex(date)
    if idx == -1 {
        return nil
    }
    mask, err := a.intervalMask(ctx, trainID, departureStopID, arrivalStopID)
    if err != nil {
        return err
    }
    s, err := a.seats.Find(ctx, trainID, carriageNumber, seatNumber)
    if err != nil {
        return err
    }
    released := Release(s.Bitmaps[idx-1], mask)
    if released == s.Bitmaps[idx-1] {
        return nil
    }
    return a.seats.SaveBitmap(ctx, s.SeatID, idx, released)
}

func (a *Allocator) intervalMask(ctx context.Context, trainID int, departureStopID, arrivalStopID int64) (uint64, error) {
    dep, err := a.stops.Sequence(ctx, trainID, departureStopID)
    if err != nil {
        return 0, fmt.Errorf("departure stop %d: %w", departureStopID, err)
    }
    arr, err := a.stops.Sequence(ctx, trainID, arrivalStopID)
    if err != nil {
        return 0, fmt.Errorf("arrival stop %d: %w", arrivalStopID, err)
    }
    return IntervalMask(dep, arr), nil
}
