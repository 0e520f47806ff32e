package model

import "time"

// Train is reference data for one scheduled service.
type Train struct {
    TrainID     int
    TrainNumber string
}

// TrainStop places a stop on a train's route.  SequenceNumber orders the
// stops along the route and is what the seat bitmap interval math consumes.
// ArrivalTime/DepartureTime are clock times on the travel date; an arrival
// earlier than the departure means the leg crosses midnight.
type TrainStop struct {
    StopID         int64
    TrainID        int
    StationID      int64
    SequenceNumber int
    ArrivalTime    *time.Time
    DepartureTime  *time.Time
}

// Station is reference data for a physical station.
type Station struct {
    StationID   int64
    StationName string
    City        string
}

// CarriageType names a carriage class (second class, first class, sleeper...).
type CarriageType struct {
    CarriageTypeID int
    TypeName       string
}
