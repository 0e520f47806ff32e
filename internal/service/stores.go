package service

import (
    "context"
    "time"

    "github.com/minirail/train-seat-reservation/internal/model"
    "github.com/minirail/train-seat-reservation/internal/repository"
    "github.com/minirail/train-seat-reservation/internal/seatmap"
)

// The store interfaces below are what the workflows consume. The SQL-backed
// implementations in storage.go satisfy them in production; tests substitute
// in-memory fakes. Methods that bundle several statements are atomic in the
// implementation (one transaction); single-statement methods rely on the
// guarded UPDATE they issue.

// TicketStore is the order/ticket persistence surface.
type TicketStore interface {
    // CreateOrderWithTickets inserts the order and its tickets atomically,
    // populating generated IDs.
    CreateOrderWithTickets(ctx context.Context, order *model.Order, tickets []*model.Ticket) error
    Order(ctx context.Context, orderID int64) (*model.Order, error)
    Ticket(ctx context.Context, ticketID int64) (*model.Ticket, error)
    TicketsByOrder(ctx context.Context, orderID int64) ([]model.Ticket, error)
    // MarkOrderPaid flips pending-payment to paid; repository.ErrConflict
    // when the order already left pending-payment.
    MarkOrderPaid(ctx context.Context, orderID int64, method string, paidAt time.Time) error
    SetOrderStatus(ctx context.Context, orderID int64, status uint8) error
    SetOrderTotals(ctx context.Context, orderID, totalAmountCents int64, ticketCount int) error
    // MoveTicketStatus is a guarded transition; repository.ErrConflict when
    // the ticket is no longer in from.
    MoveTicketStatus(ctx context.Context, ticketID int64, from, to uint8) error
    SetTicketsStatus(ctx context.Context, ticketIDs []int64, status uint8) error
    AssignSeat(ctx context.Context, ticketID int64, carriageNumber, seatNumber string) error
    PendingOrdersOlderThan(ctx context.Context, cutoff time.Time) ([]model.Order, error)
    JourneysByPassenger(ctx context.Context, passengerID int64) ([]repository.TicketJourney, error)
}

// InventoryStore is the durable inventory shadow.
type InventoryStore interface {
    ByKey(ctx context.Context, key model.InventoryKey) (*model.InventoryRecord, error)
    All(ctx context.Context) ([]model.InventoryRecord, error)
    ByTrainAndDate(ctx context.Context, trainID int, travelDate string) ([]model.InventoryRecord, error)
    SyncFromLedger(ctx context.Context, inventoryID int64, available int) error
}

// WaitlistStore is the waitlist persistence surface.
type WaitlistStore interface {
    Create(ctx context.Context, order *model.WaitlistOrder, items []*model.WaitlistItem) error
    Order(ctx context.Context, waitlistID int64) (*model.WaitlistOrder, error)
    Items(ctx context.Context, waitlistID int64) ([]model.WaitlistItem, error)
    Item(ctx context.Context, itemID int64) (*model.WaitlistItem, error)
    Fulfillable(ctx context.Context, key model.InventoryKey, now time.Time) ([]model.WaitlistItem, error)
    MoveItemStatus(ctx context.Context, itemID int64, from, to uint8) error
    // SetItemTicket links a fulfilled item to the ticket it materialized.
    SetItemTicket(ctx context.Context, itemID, ticketID int64) error
    MoveItemsStatus(ctx context.Context, waitlistID int64, from, to uint8) error
    SetOrderStatus(ctx context.Context, waitlistID int64, status uint8) error
}

// RelationStore answers account/passenger membership.
type RelationStore interface {
    Exists(ctx context.Context, userID, passengerID int64) (bool, error)
}

// ScheduleStore resolves stop schedule times for the conflict check.
type ScheduleStore interface {
    GetStop(ctx context.Context, trainID int, stopID int64) (*model.TrainStop, error)
}

// SeatAssigner finds and occupies a physical seat for an interval.
type SeatAssigner interface {
    FindAndAssign(ctx context.Context, trainID, carriageTypeID int, date time.Time, departureStopID, arrivalStopID int64) (*seatmap.Assignment, error)
}

// SeatReleaser clears an interval on a named seat.
type SeatReleaser interface {
    ReleaseSeat(ctx context.Context, trainID int, carriageNumber, seatNumber string, date time.Time, departureStopID, arrivalStopID int64) error
}

// ChangeMapStore records in-flight change pairings (new ticket to original
// ticket) until payment converts them. GetByOriginal is the reverse lookup
// the in-flight guard uses: one pending replacement per original ticket.
type ChangeMapStore interface {
    Set(ctx context.Context, newTicketID, originalTicketID, passengerID int64) error
    Get(ctx context.Context, newTicketID int64) (originalTicketID, passengerID int64, ok bool, err error)
    GetByOriginal(ctx context.Context, originalTicketID int64) (newTicketID int64, ok bool, err error)
    Delete(ctx context.Context, newTicketID int64) error
}
