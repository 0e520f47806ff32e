package service

import (
    "context"
    "fmt"
    "time"
)

// TimeConflict rejects bookings that would put one passenger on two
// overlapping journeys. Journeys compare as half-open absolute intervals
// built from the travel date and the stops' clock times; an arrival clock
// at or before the departure clock means the leg crosses midnight and the
// arrival lands on the next day.
type TimeConflict struct {
    tickets  TicketStore
    schedule ScheduleStore
}

func NewTimeConflict(tickets TicketStore, schedule ScheduleStore) *TimeConflict {
    return &TimeConflict{tickets: tickets, schedule: schedule}
}

// Check returns an ErrInvalidState-wrapped error when the proposed journey
// overlaps any valid ticket the passenger already holds. Tickets listed in
// exclude are ignored, which is how a change avoids conflicting with the
// tickets it replaces. Stops with no schedule times cannot conflict.
func (c *TimeConflict) Check(ctx context.Context, passengerID int64, trainID int, departureStopID, arrivalStopID int64, travelDate time.Time, exclude ...int64) error {
    dep, err := c.schedule.GetStop(ctx, trainID, departureStopID)
    if err != nil {
        return err
    }
    arr, err := c.schedule.GetStop(ctx, trainID, arrivalStopID)
    if err != nil {
        return err
    }
    if dep.DepartureTime == nil || arr.ArrivalTime == nil {
        return nil
    }
    newStart, newEnd := journeyWindow(travelDate, *dep.DepartureTime, *arr.ArrivalTime)

    journeys, err := c.tickets.JourneysByPassenger(ctx, passengerID)
    if err != nil {
        return err
    }
    excluded := make(map[int64]bool, len(exclude))
    for _, id := range exclude {
        excluded[id] = true
    }
    for _, j := range journeys {
        if excluded[j.TicketID] {
            continue
        }
        start, end := journeyWindow(j.TravelDate, j.DepartureTime, j.ArrivalTime)
        if newStart.Before(end) && start.Before(newEnd) {
            return fmt.Errorf("%w: passenger %d already travels %s to %s",
                ErrInvalidState, passengerID, start.Format(time.RFC3339), end.Format(time.RFC3339))
        }
    }
    return nil
}

// journeyWindow anchors the clock times of a journey on its travel date.
// Only the clock component of dep and arr matters; their date component is
// whatever the schedule rows happened to be stored with.
func journeyWindow(travelDate, dep, arr time.Time) (time.Time, time.Time) {
    y, m, d := travelDate.Date()
    start := time.Date(y, m, d, dep.Hour(), dep.Minute(), dep.Second(), 0, time.UTC)
    end := time.Date(y, m, d, arr.Hour(), arr.Minute(), arr.Second(), 0, time.UTC)
    if !end.After(start) {
        end = end.AddDate(0, 0, 1)
    }
    return start, end
}
