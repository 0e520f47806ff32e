package model

// BitmapWindowDays is the number of travel dates each seat row tracks.  The
// date_1..date_10 columns hold one occupancy bitmap per day of the rolling
// window anchored at the allocator's base date.
const BitmapWindowDays = 10

// Seat is one physical seat in one carriage.  Each Bitmaps entry encodes, for
// its date, which station-to-station sub-intervals are occupied (two bits per
// stop: arrival bit low, departure bit high).
type Seat struct {
    SeatID         int64
    CarriageID     int64
    SeatNumber     string
    Bitmaps        [BitmapWindowDays]uint64 // seats.date_1 .. seats.date_10
}

// TrainCarriage ties a carriage to its train, its printable number and the
// carriage class sold for it.
type TrainCarriage struct {
    CarriageID     int64
    TrainID        int
    CarriageNumber string
    CarriageTypeID int
}
