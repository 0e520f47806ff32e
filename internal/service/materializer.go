package service

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/minirail/train-seat-reservation/internal/lock"
    "github.com/minirail/train-seat-reservation/internal/model"
    "github.com/minirail/train-seat-reservation/internal/queue"
    "github.com/minirail/train-seat-reservation/internal/repository"
    "github.com/minirail/train-seat-reservation/internal/seatmap"
)

// Materializer turns accepted order messages into durable rows. Booking
// already took the stock; this side creates the pending-payment order and
// tickets and assigns physical seats under the booking lock, so the seat
// scan cannot interleave with another workflow for the same train and date.
type Materializer struct {
    tickets   TicketStore
    inventory InventoryStore
    assigner  SeatAssigner
    locks     lock.Manager
    now       func() time.Time
}

func NewMaterializer(tickets TicketStore, inventory InventoryStore, assigner SeatAssigner, locks lock.Manager) *Materializer {
    return &Materializer{
        tickets:   tickets,
        inventory: inventory,
        assigner:  assigner,
        locks:     locks,
        now:       time.Now,
    }
}

// HandleOrder processes one message. A returned error rejects the message;
// the stock it represents stays taken, which the reconciliation loop will
// surface as a ledger/DB divergence for an operator to resolve.
func (m *Materializer) HandleOrder(ctx context.Context, msg queue.OrderCreatedMessage) error {
    travelDate, err := time.Parse("2006-01-02", msg.TravelDate)
    if err != nil {
        return fmt.Errorf("order %s: bad travel date %q: %w", msg.OrderNumber, msg.TravelDate, err)
    }
    if len(msg.Passengers) == 0 {
        return fmt.Errorf("order %s: no passengers", msg.OrderNumber)
    }
    key := model.InventoryKey{
        TrainID:         msg.TrainID,
        DepartureStopID: msg.DepartureStopID,
        ArrivalStopID:   msg.ArrivalStopID,
        TravelDate:      travelDate,
        CarriageTypeID:  msg.CarriageTypeID,
    }
    rec, err := m.inventory.ByKey(ctx, key)
    if errors.Is(err, repository.ErrNotFound) {
        return fmt.Errorf("order %s: no inventory for %s", msg.OrderNumber, key.StockKey())
    }
    if err != nil {
        return err
    }

    now := m.now().UTC()
    order := &model.Order{
        OrderNumber: msg.OrderNumber,
        UserID:      msg.UserID,
        Status:      model.OrderPendingPayment,
        OrderTime:   now,
    }
    var tickets []*model.Ticket
    for _, p := range msg.Passengers {
        price := model.PriceForType(rec.PriceCents, p.TicketType)
        order.TotalAmountCents += price
        order.TicketCount++
        tickets = append(tickets, &model.Ticket{
            TicketNumber: newTicketNumber(),
            PassengerID:  p.PassengerID,
            Key:          key,
            PriceCents:   price,
            Status:       model.TicketPendingPayment,
            TicketType:   p.TicketType,
            CreatedTime:  now,
        })
    }
    if err := m.tickets.CreateOrderWithTickets(ctx, order, tickets); err != nil {
        return fmt.Errorf("order %s: persist: %w", msg.OrderNumber, err)
    }

    name := lock.BookingLockName(key.TrainID, key.TravelDate)
    token, ok, err := m.locks.TryLock(ctx, name, lockWait, lockLease)
    if err != nil {
        return err
    }
    if !ok {
        // Tickets exist without seats; the next materialized order for this
        // train will not collide with them, and payment does not require a
        // seat. Log and move on rather than losing the order.
        log.Printf("materializer: booking lock %s unavailable, order %s left unassigned", name, msg.OrderNumber)
        return nil
    }
    defer m.locks.Unlock(ctx, name, token)

    for _, t := range tickets {
        asg, err := m.assigner.FindAndAssign(ctx, key.TrainID, key.CarriageTypeID,
            key.TravelDate, key.DepartureStopID, key.ArrivalStopID)
        if errors.Is(err, seatmap.ErrNoSeat) {
            log.Printf("materializer: no physical seat for ticket %d on order %s", t.TicketID, msg.OrderNumber)
            continue
        }
        if err != nil {
            return fmt.Errorf("order %s: assign seat: %w", msg.OrderNumber, err)
        }
        if err := m.tickets.AssignSeat(ctx, t.TicketID, asg.CarriageNumber, asg.SeatNumber); err != nil {
            return fmt.Errorf("order %s: record seat: %w", msg.OrderNumber, err)
        }
    }
    return nil
}
