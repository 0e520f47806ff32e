package service

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/minirail/train-seat-reservation/internal/ledger"
    "github.com/minirail/train-seat-reservation/internal/model"
    "github.com/minirail/train-seat-reservation/internal/repository"
)

// PaymentService settles pending-payment orders. Paying an ordinary order
// just activates its tickets; paying a change order additionally converts
// the mapped originals: they flip to changed, their stock goes back and
// their seats free up, and the original order is cancelled once drained.
type PaymentService struct {
    tickets    TicketStore
    stock      ledger.Ledger
    seats      SeatReleaser
    changeMaps ChangeMapStore
    now        func() time.Time
}

func NewPaymentService(tickets TicketStore, stock ledger.Ledger, seats SeatReleaser, changeMaps ChangeMapStore) *PaymentService {
    return &PaymentService{
        tickets:    tickets,
        stock:      stock,
        seats:      seats,
        changeMaps: changeMaps,
        now:        time.Now,
    }
}

// PayOrder marks the order paid and its tickets unused. The status guard on
// the order update makes double payment harmless: the second caller gets
// ErrInvalidState and nothing else happens.
func (s *PaymentService) PayOrder(ctx context.Context, userID, orderID int64, method string) error {
    order, err := s.tickets.Order(ctx, orderID)
    if errors.Is(err, repository.ErrNotFound) {
        return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
    }
    if err != nil {
        return err
    }
    if order.UserID != userID {
        return fmt.Errorf("%w: order %d", ErrForbidden, orderID)
    }

    err = s.tickets.MarkOrderPaid(ctx, orderID, method, s.now().UTC())
    if errors.Is(err, repository.ErrConflict) {
        return fmt.Errorf("%w: order %d is not pending payment", ErrInvalidState, orderID)
    }
    if err != nil {
        return err
    }

    all, err := s.tickets.TicketsByOrder(ctx, orderID)
    if err != nil {
        return err
    }
    var activated []int64
    for _, t := range all {
        if t.Status == model.TicketPendingPayment {
            activated = append(activated, t.TicketID)
        }
    }
    if err := s.tickets.SetTicketsStatus(ctx, activated, model.TicketUnused); err != nil {
        return err
    }

    // Convert any change mappings the paid tickets carry.
    touched := make(map[int64]bool)
    for _, t := range all {
        origID, _, ok, err := s.changeMaps.Get(ctx, t.TicketID)
        if err != nil {
            return err
        }
        if !ok {
            continue
        }
        orig, err := s.convertOriginal(ctx, origID)
        if err != nil {
            return err
        }
        if orig != nil {
            touched[orig.OrderID] = true
        }
        if err := s.changeMaps.Delete(ctx, t.TicketID); err != nil {
            log.Printf("payment-service: change mapping cleanup for ticket %d failed: %v", t.TicketID, err)
        }
    }
    for origOrderID := range touched {
        if err := settleOrder(ctx, s.tickets, origOrderID); err != nil {
            return err
        }
    }
    return nil
}

// convertOriginal retires one replaced ticket: status to changed, stock
// back, seat freed. A ticket that already left unused is skipped so the
// conversion is idempotent.
func (s *PaymentService) convertOriginal(ctx context.Context, origID int64) (*model.Ticket, error) {
    orig, err := s.tickets.Ticket(ctx, origID)
    if errors.Is(err, repository.ErrNotFound) {
        log.Printf("payment-service: mapped original ticket %d missing", origID)
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    err = s.tickets.MoveTicketStatus(ctx, origID, model.TicketUnused, model.TicketChanged)
    if errors.Is(err, repository.ErrConflict) {
        return orig, nil
    }
    if err != nil {
        return nil, err
    }
    if err := s.stock.Increment(ctx, orig.Key, 1); err != nil {
        log.Printf("payment-service: stock return for changed ticket %d failed: %v", origID, err)
    }
    if orig.CarriageNumber != nil && orig.SeatNumber != nil {
        if err := s.seats.ReleaseSeat(ctx, orig.Key.TrainID, *orig.CarriageNumber, *orig.SeatNumber,
            orig.Key.TravelDate, orig.Key.DepartureStopID, orig.Key.ArrivalStopID); err != nil {
            log.Printf("payment-service: seat release for changed ticket %d failed: %v", origID, err)
        }
    }
    return orig, nil
}
