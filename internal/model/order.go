package model

import "time"

// Order status codes.  The numeric values are persisted and must not change.
const (
    OrderPendingPayment uint8 = 0
    OrderPaid           uint8 = 1
    OrderCompleted      uint8 = 2
    OrderCancelled      uint8 = 3
)

// Ticket status codes.  Lifecycle: pending-payment → unused → used, refunded
// or changed.  A ticket in {pending, unused, used} counts as valid; an order
// with zero valid tickets is cancelled.
const (
    TicketPendingPayment uint8 = 0
    TicketUnused         uint8 = 1
    TicketUsed           uint8 = 2
    TicketRefunded       uint8 = 3
    TicketChanged        uint8 = 4
)

// Ticket fare types and their price multipliers (applied to the inventory
// base fare; see PriceForType).
const (
    TicketTypeAdult    uint8 = 1
    TicketTypeChild    uint8 = 2
    TicketTypeStudent  uint8 = 3
    TicketTypeDisabled uint8 = 4
    TicketTypeMilitary uint8 = 5
)

// Order aggregates the tickets bought in one booking.  TotalAmountCents and
// TicketCount shrink as tickets are refunded; when the last valid ticket
// goes, the order flips to cancelled.
type Order struct {
    OrderID          int64
    OrderNumber      string
    UserID           int64
    Status           uint8
    TotalAmountCents int64
    TicketCount      int
    OrderTime        time.Time
    PaymentTime      *time.Time
    PaymentMethod    *string
}

// Ticket is one passenger's seat on one segment.  CarriageNumber and
// SeatNumber stay nil until the allocator assigns a physical seat.
type Ticket struct {
    TicketID       int64
    TicketNumber   string
    OrderID        int64
    PassengerID    int64
    Key            InventoryKey
    CarriageNumber *string
    SeatNumber     *string
    PriceCents     int64
    Status         uint8
    TicketType     uint8
    CreatedTime    time.Time
}

// ValidTicket reports whether the status counts toward an order staying alive.
func ValidTicket(status uint8) bool {
    return status == TicketPendingPayment || status == TicketUnused || status == TicketUsed
}

// PriceForType applies the fare-type multiplier to a base fare in cents.
func PriceForType(baseCents int64, ticketType uint8) int64 {
    switch ticketType {
    case TicketTypeChild, TicketTypeDisabled, TicketTypeMilitary:
        return baseCents / 2
    case TicketTypeStudent:
        return baseCents * 8 / 10
    default:
        return baseCents
    }
}
