package model

import (
    "fmt"
    "time"
)

// InventoryKey identifies one sellable seat class on one train segment on one
// travel date.  It is the unit of atomicity for all stock operations: two
// keys never share a counter, and no operation spans more than one key.
//
// Fields:
//  TrainID         – train the segment belongs to.
//  DepartureStopID – stop where the segment begins.
//  ArrivalStopID   – stop where the segment ends.
//  TravelDate      – calendar date of travel (time component ignored).
//  CarriageTypeID  – carriage class being sold (e.g. second class, sleeper).
type InventoryKey struct {
    TrainID         int
    DepartureStopID int64
    ArrivalStopID   int64
    TravelDate      time.Time
    CarriageTypeID  int
}

// StockKey renders the cache key for this inventory key.  The format is
// stable across restarts; changing it orphans live counters.
func (k InventoryKey) StockKey() string {
    return fmt.Sprintf("stock:%d:%d:%d:%s:%d",
        k.TrainID, k.DepartureStopID, k.ArrivalStopID,
        k.TravelDate.Format("2006-01-02"), k.CarriageTypeID)
}

// InventoryRecord is the durable shadow of one ledger counter.  AvailableSeats
// here trails the live ledger value between reconciliation cycles; the ledger
// is authoritative whenever both disagree.
//
// Fields:
//  TotalSeats     – capacity for this key; AvailableSeats never exceeds it.
//  AvailableSeats – shadow of the ledger counter.
//  PriceCents     – base fare in cents for this key.
//  CacheVersion   – bumped every time the shadow is overwritten from the ledger.
//  DBVersion      – bumped on every durable write.
//  LastUpdated    – timestamp of the last durable write.
type InventoryRecord struct {
    InventoryID    int64
    Key            InventoryKey
    TotalSeats     int
    AvailableSeats int
    PriceCents     int64
    CacheVersion   int
    DBVersion      int
    LastUpdated    time.Time
}
