package service

import (
    "context"
    "errors"
    "fmt"
    "log"
    "strings"
    "time"

    "github.com/google/uuid"

    "github.com/minirail/train-seat-reservation/internal/ledger"
    "github.com/minirail/train-seat-reservation/internal/lock"
    "github.com/minirail/train-seat-reservation/internal/model"
    "github.com/minirail/train-seat-reservation/internal/queue"
    "github.com/minirail/train-seat-reservation/internal/repository"
)

// Lock budgets shared by the booking, refund and change workflows. The
// lease is generous relative to the wait so a holder that stalls mid-flow
// still expires well before callers give up retrying.
const (
    lockWait  = 5 * time.Second
    lockLease = 30 * time.Second
)

// PublishFunc sends the order message to the broker. queue.PublishOrderCreated
// is the production implementation.
type PublishFunc func(ctx context.Context, msg queue.OrderCreatedMessage) error

// BookingPassenger is one passenger of a booking or change request.
type BookingPassenger struct {
    PassengerID int64
    TicketType  uint8
}

// BookingRequest asks for one ticket per passenger on a single inventory key.
type BookingRequest struct {
    UserID     int64
    Key        model.InventoryKey
    Passengers []BookingPassenger
}

// ChangeRequest moves the listed unused tickets of a paid order onto a new
// inventory key. The new tickets start pending payment; the originals stay
// untouched until that payment settles.
type ChangeRequest struct {
    UserID    int64
    OrderID   int64
    TicketIDs []int64
    NewKey    model.InventoryKey
}

// TicketService runs the booking, refund and change workflows.
type TicketService struct {
    tickets    TicketStore
    inventory  InventoryStore
    relations  RelationStore
    conflicts  *TimeConflict
    stock      ledger.Ledger
    locks      lock.Manager
    seats      SeatReleaser
    assigner   SeatAssigner
    changeMaps ChangeMapStore
    publish    PublishFunc
    now        func() time.Time
}

func NewTicketService(
    tickets TicketStore,
    inventory InventoryStore,
    relations RelationStore,
    conflicts *TimeConflict,
    stock ledger.Ledger,
    locks lock.Manager,
    seats SeatReleaser,
    assigner SeatAssigner,
    changeMaps ChangeMapStore,
    publish PublishFunc,
) *TicketService {
    return &TicketService{
        tickets:    tickets,
        inventory:  inventory,
        relations:  relations,
        conflicts:  conflicts,
        stock:      stock,
        locks:      locks,
        seats:      seats,
        assigner:   assigner,
        changeMaps: changeMaps,
        publish:    publish,
        now:        time.Now,
    }
}

// newOrderNumber generates a printable order number. Uniqueness comes from
// the UUID; the prefix keeps ticket and waitlist numbers tellable apart in
// logs and support tickets.
func newOrderNumber(prefix string) string {
    return prefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:20]
}

func newTicketNumber() string {
    return "T" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:24]
}

// BookTickets validates the request, reserves stock on the ledger and hands
// the order to the broker for asynchronous materialization. It returns the
// order number the consumer will persist. Stock taken before a failure is
// always returned: the decrement loop rolls back on the first refusal, and
// a publish failure rolls back the whole batch.
func (s *TicketService) BookTickets(ctx context.Context, req BookingRequest) (string, error) {
    if len(req.Passengers) == 0 {
        return "", fmt.Errorf("%w: no passengers", ErrInvalidState)
    }
    for _, p := range req.Passengers {
        ok, err := s.relations.Exists(ctx, req.UserID, p.PassengerID)
        if err != nil {
            return "", err
        }
        if !ok {
            return "", fmt.Errorf("%w: passenger %d not registered under account %d", ErrForbidden, p.PassengerID, req.UserID)
        }
        if err := s.conflicts.Check(ctx, p.PassengerID, req.Key.TrainID,
            req.Key.DepartureStopID, req.Key.ArrivalStopID, req.Key.TravelDate); err != nil {
            return "", err
        }
    }
    if _, err := s.inventory.ByKey(ctx, req.Key); err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return "", fmt.Errorf("%w: no inventory for %s", ErrNotFound, req.Key.StockKey())
        }
        return "", err
    }

    name := lock.BookingLockName(req.Key.TrainID, req.Key.TravelDate)
    token, ok, err := s.locks.TryLock(ctx, name, lockWait, lockLease)
    if err != nil {
        return "", err
    }
    if !ok {
        return "", fmt.Errorf("%w: booking lock %s", ErrBusy, name)
    }
    defer s.locks.Unlock(ctx, name, token)

    taken := 0
    for range req.Passengers {
        ok, err := s.stock.Decrement(ctx, req.Key, 1)
        if err != nil {
            s.rollbackStock(ctx, req.Key, taken)
            return "", err
        }
        if !ok {
            s.rollbackStock(ctx, req.Key, taken)
            return "", fmt.Errorf("%w: %s", ErrSoldOut, req.Key.StockKey())
        }
        taken++
    }

    msg := queue.OrderCreatedMessage{
        OrderNumber:     newOrderNumber("O"),
        UserID:          req.UserID,
        TrainID:         req.Key.TrainID,
        DepartureStopID: req.Key.DepartureStopID,
        ArrivalStopID:   req.Key.ArrivalStopID,
        TravelDate:      req.Key.TravelDate.Format("2006-01-02"),
        CarriageTypeID:  req.Key.CarriageTypeID,
        BookedAt:        s.now().UTC().Format(time.RFC3339),
    }
    for _, p := range req.Passengers {
        msg.Passengers = append(msg.Passengers, queue.OrderPassenger{
            PassengerID: p.PassengerID,
            TicketType:  p.TicketType,
        })
    }
    if err := s.publish(ctx, msg); err != nil {
        s.rollbackStock(ctx, req.Key, taken)
        return "", fmt.Errorf("%w: order message rejected: %v", ErrBusy, err)
    }
    return msg.OrderNumber, nil
}

func (s *TicketService) rollbackStock(ctx context.Context, key model.InventoryKey, n int) {
    if n == 0 {
        return
    }
    if err := s.stock.Increment(ctx, key, n); err != nil {
        log.Printf("ticket-service: rollback of %d on %s failed: %v", n, key.StockKey(), err)
    }
}

// RefundTickets refunds the listed tickets of a paid order, or every unused
// ticket when the list is empty. Each refunded ticket returns its stock,
// frees its seat and shrinks the order's totals; the order flips to
// cancelled when no valid ticket remains.
func (s *TicketService) RefundTickets(ctx context.Context, userID, orderID int64, ticketIDs []int64) error {
    name := lock.RefundLockName(orderID)
    token, ok, err := s.locks.TryLock(ctx, name, lockWait, lockLease)
    if err != nil {
        return err
    }
    if !ok {
        return fmt.Errorf("%w: refund lock %s", ErrBusy, name)
    }
    defer s.locks.Unlock(ctx, name, token)

    order, err := s.ownedOrder(ctx, userID, orderID)
    if err != nil {
        return err
    }
    if order.Status != model.OrderPaid {
        return fmt.Errorf("%w: order %d is not paid", ErrInvalidState, orderID)
    }
    all, err := s.tickets.TicketsByOrder(ctx, orderID)
    if err != nil {
        return err
    }
    targets, err := selectTickets(all, ticketIDs)
    if err != nil {
        return err
    }
    for _, t := range targets {
        if t.Status != model.TicketUnused {
            return fmt.Errorf("%w: ticket %d is not refundable", ErrInvalidState, t.TicketID)
        }
    }

    for _, t := range targets {
        err := s.tickets.MoveTicketStatus(ctx, t.TicketID, model.TicketUnused, model.TicketRefunded)
        if errors.Is(err, repository.ErrConflict) {
            continue // already refunded by a concurrent sweep
        }
        if err != nil {
            return err
        }
        s.returnTicket(ctx, t)
    }
    return settleOrder(ctx, s.tickets, orderID)
}

// returnTicket gives a ticket's stock and seat back. Both steps are
// idempotent, so a retry after a partial failure cannot double-return.
func (s *TicketService) returnTicket(ctx context.Context, t model.Ticket) {
    if err := s.stock.Increment(ctx, t.Key, 1); err != nil {
        log.Printf("ticket-service: stock return for ticket %d failed: %v", t.TicketID, err)
    }
    if t.CarriageNumber == nil || t.SeatNumber == nil {
        return
    }
    if err := s.seats.ReleaseSeat(ctx, t.Key.TrainID, *t.CarriageNumber, *t.SeatNumber,
        t.Key.TravelDate, t.Key.DepartureStopID, t.Key.ArrivalStopID); err != nil {
        log.Printf("ticket-service: seat release for ticket %d failed: %v", t.TicketID, err)
    }
}

// settleOrder recomputes an order's amount and ticket count from its
// surviving valid tickets and cancels the order when none remain. Refund,
// change conversion and waitlist unwinding all settle through here.
func settleOrder(ctx context.Context, store TicketStore, orderID int64) error {
    all, err := store.TicketsByOrder(ctx, orderID)
    if err != nil {
        return err
    }
    var total int64
    count := 0
    for _, t := range all {
        if model.ValidTicket(t.Status) {
            total += t.PriceCents
            count++
        }
    }
    if err := store.SetOrderTotals(ctx, orderID, total, count); err != nil {
        return err
    }
    if count == 0 {
        return store.SetOrderStatus(ctx, orderID, model.OrderCancelled)
    }
    return nil
}

// ChangeTickets books replacement tickets on the new key for the listed
// unused tickets of a paid order. The replacements form a new
// pending-payment order with seats already assigned; change mappings tie
// each replacement to its original so payment can convert them. Nothing
// about the original order changes here.
func (s *TicketService) ChangeTickets(ctx context.Context, req ChangeRequest) (string, error) {
    if len(req.TicketIDs) == 0 {
        return "", fmt.Errorf("%w: no tickets selected", ErrInvalidState)
    }
    name := lock.ChangeLockName(req.OrderID)
    token, ok, err := s.locks.TryLock(ctx, name, lockWait, lockLease)
    if err != nil {
        return "", err
    }
    if !ok {
        return "", fmt.Errorf("%w: change lock %s", ErrBusy, name)
    }
    defer s.locks.Unlock(ctx, name, token)

    order, err := s.ownedOrder(ctx, req.UserID, req.OrderID)
    if err != nil {
        return "", err
    }
    if order.Status != model.OrderPaid {
        return "", fmt.Errorf("%w: order %d is not paid", ErrInvalidState, req.OrderID)
    }
    all, err := s.tickets.TicketsByOrder(ctx, req.OrderID)
    if err != nil {
        return "", err
    }
    originals, err := selectTickets(all, req.TicketIDs)
    if err != nil {
        return "", err
    }
    for _, t := range originals {
        if t.Status != model.TicketUnused {
            return "", fmt.Errorf("%w: ticket %d is not changeable", ErrInvalidState, t.TicketID)
        }
        if _, pending, err := s.changeMaps.GetByOriginal(ctx, t.TicketID); err != nil {
            return "", err
        } else if pending {
            return "", fmt.Errorf("%w: ticket %d already has a change in flight", ErrInvalidState, t.TicketID)
        }
        if err := s.conflicts.Check(ctx, t.PassengerID, req.NewKey.TrainID,
            req.NewKey.DepartureStopID, req.NewKey.ArrivalStopID, req.NewKey.TravelDate,
            req.TicketIDs...); err != nil {
            return "", err
        }
    }

    rec, err := s.inventory.ByKey(ctx, req.NewKey)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return "", fmt.Errorf("%w: no inventory for %s", ErrNotFound, req.NewKey.StockKey())
        }
        return "", err
    }

    bookingName := lock.BookingLockName(req.NewKey.TrainID, req.NewKey.TravelDate)
    bookingToken, ok, err := s.locks.TryLock(ctx, bookingName, lockWait, lockLease)
    if err != nil {
        return "", err
    }
    if !ok {
        return "", fmt.Errorf("%w: booking lock %s", ErrBusy, bookingName)
    }
    defer s.locks.Unlock(ctx, bookingName, bookingToken)

    taken := 0
    for range originals {
        ok, err := s.stock.Decrement(ctx, req.NewKey, 1)
        if err != nil {
            s.rollbackStock(ctx, req.NewKey, taken)
            return "", err
        }
        if !ok {
            s.rollbackStock(ctx, req.NewKey, taken)
            return "", fmt.Errorf("%w: %s", ErrSoldOut, req.NewKey.StockKey())
        }
        taken++
    }

    now := s.now().UTC()
    newOrder := &model.Order{
        OrderNumber: newOrderNumber("C"),
        UserID:      req.UserID,
        Status:      model.OrderPendingPayment,
        OrderTime:   now,
    }
    var newTickets []*model.Ticket
    for _, orig := range originals {
        price := model.PriceForType(rec.PriceCents, orig.TicketType)
        newOrder.TotalAmountCents += price
        newOrder.TicketCount++
        newTickets = append(newTickets, &model.Ticket{
            TicketNumber: newTicketNumber(),
            PassengerID:  orig.PassengerID,
            Key:          req.NewKey,
            PriceCents:   price,
            Status:       model.TicketPendingPayment,
            TicketType:   orig.TicketType,
            CreatedTime:  now,
        })
    }
    if err := s.tickets.CreateOrderWithTickets(ctx, newOrder, newTickets); err != nil {
        s.rollbackStock(ctx, req.NewKey, taken)
        return "", err
    }

    for i, t := range newTickets {
        asg, err := s.assigner.FindAndAssign(ctx, req.NewKey.TrainID, req.NewKey.CarriageTypeID,
            req.NewKey.TravelDate, req.NewKey.DepartureStopID, req.NewKey.ArrivalStopID)
        if err != nil {
            log.Printf("ticket-service: seat assignment for change ticket %d failed: %v", t.TicketID, err)
        } else if err := s.tickets.AssignSeat(ctx, t.TicketID, asg.CarriageNumber, asg.SeatNumber); err != nil {
            log.Printf("ticket-service: seat record for change ticket %d failed: %v", t.TicketID, err)
        }
        if err := s.changeMaps.Set(ctx, t.TicketID, originals[i].TicketID, t.PassengerID); err != nil {
            s.revertChange(ctx, req.NewKey, taken, newOrder.OrderID, newTickets[:i])
            return "", err
        }
    }
    return newOrder.OrderNumber, nil
}

// revertChange unwinds a half-built replacement order when recording its
// change mappings fails. Mappings set so far are removed, assigned seats
// freed, the replacement tickets retired, the order cancelled and the
// stock it took returned. Steps that fail are logged and skipped; the
// original tickets were never touched.
func (s *TicketService) revertChange(ctx context.Context, key model.InventoryKey, taken int, orderID int64, mapped []*model.Ticket) {
    for _, t := range mapped {
        if err := s.changeMaps.Delete(ctx, t.TicketID); err != nil {
            log.Printf("ticket-service: mapping cleanup for ticket %d failed: %v", t.TicketID, err)
        }
    }
    fresh, err := s.tickets.TicketsByOrder(ctx, orderID)
    if err != nil {
        log.Printf("ticket-service: revert scan for order %d failed: %v", orderID, err)
    }
    ids := make([]int64, 0, len(fresh))
    for _, t := range fresh {
        ids = append(ids, t.TicketID)
        if t.CarriageNumber != nil && t.SeatNumber != nil {
            if err := s.seats.ReleaseSeat(ctx, key.TrainID, *t.CarriageNumber, *t.SeatNumber,
                key.TravelDate, key.DepartureStopID, key.ArrivalStopID); err != nil {
                log.Printf("ticket-service: seat release for ticket %d failed: %v", t.TicketID, err)
            }
        }
    }
    if err := s.tickets.SetTicketsStatus(ctx, ids, model.TicketRefunded); err != nil {
        log.Printf("ticket-service: ticket retire for order %d failed: %v", orderID, err)
    }
    if err := s.tickets.SetOrderTotals(ctx, orderID, 0, 0); err != nil {
        log.Printf("ticket-service: totals reset for order %d failed: %v", orderID, err)
    }
    if err := s.tickets.SetOrderStatus(ctx, orderID, model.OrderCancelled); err != nil {
        log.Printf("ticket-service: cancel for order %d failed: %v", orderID, err)
    }
    s.rollbackStock(ctx, key, taken)
}

func (s *TicketService) ownedOrder(ctx context.Context, userID, orderID int64) (*model.Order, error) {
    order, err := s.tickets.Order(ctx, orderID)
    if errors.Is(err, repository.ErrNotFound) {
        return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
    }
    if err != nil {
        return nil, err
    }
    if order.UserID != userID {
        return nil, fmt.Errorf("%w: order %d", ErrForbidden, orderID)
    }
    return order, nil
}

// selectTickets resolves the requested ticket IDs against the order's
// tickets, or returns every unused ticket when no IDs were given.
func selectTickets(all []model.Ticket, ticketIDs []int64) ([]model.Ticket, error) {
    if len(ticketIDs) == 0 {
        var unused []model.Ticket
        for _, t := range all {
            if t.Status == model.TicketUnused {
                unused = append(unused, t)
            }
        }
        if len(unused) == 0 {
            return nil, fmt.Errorf("%w: no refundable tickets", ErrInvalidState)
        }
        return unused, nil
    }
    byID := make(map[int64]model.Ticket, len(all))
    for _, t := range all {
        byID[t.TicketID] = t
    }
    out := make([]model.Ticket, 0, len(ticketIDs))
    for _, id := range ticketIDs {
        t, ok := byID[id]
        if !ok {
            return nil, fmt.Errorf("%w: ticket %d not in order", ErrNotFound, id)
        }
        out = append(out, t)
    }
    return out, nil
}
