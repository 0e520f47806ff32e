// Package queue defines message payloads exchanged over the message broker
// and the publisher/consumer pair that moves them.
package queue

// OrderQueueName is the queue booking publishes to and the materializer
// consumes from.
const OrderQueueName = "order.created"

// OrderPassenger is one passenger of a booked order as carried on the wire.
type OrderPassenger struct {
    PassengerID int64 `json:"passenger_id"`
    TicketType  uint8 `json:"ticket_type"`
}

// OrderCreatedMessage is published after the stock ledger accepted a booking.
// It carries everything the consumer needs to materialize the order rows and
// assign seats without re-deriving request state: the inventory key fields,
// the passengers and the pre-generated order number. TravelDate is formatted
// 2006-01-02.
type OrderCreatedMessage struct {
    OrderNumber     string           `json:"order_number"`
    UserID          int64            `json:"user_id"`
    TrainID         int              `json:"train_id"`
    DepartureStopID int64            `json:"departure_stop_id"`
    ArrivalStopID   int64            `json:"arrival_stop_id"`
    TravelDate      string           `json:"travel_date"`
    CarriageTypeID  int              `json:"carriage_type_id"`
    Passengers      []OrderPassenger `json:"passengers"`
    BookedAt        string           `json:"booked_at"`
}
