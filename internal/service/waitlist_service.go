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

// DefaultWaitlistExpiry bounds how long a paid waitlist entry stays
// eligible for fulfillment.
const DefaultWaitlistExpiry = 24 * time.Hour

// WaitlistRequest queues demand for an inventory key that booking could not
// satisfy.
type WaitlistRequest struct {
    UserID     int64
    Key        model.InventoryKey
    Passengers []BookingPassenger
}

// WaitlistService owns queued demand. Entries are created pending payment,
// move to pending fulfillment when paid, and are served strictly oldest
// first whenever stock returns to their key. Fulfillment is driven by the
// ledger's release listener, so a refund anywhere immediately wakes the
// queue for that key. A fulfilled item is the real thing: fulfillment
// materializes a paid single-ticket order for the passenger.
type WaitlistService struct {
    waitlist  WaitlistStore
    tickets   TicketStore
    inventory InventoryStore
    relations RelationStore
    stock     ledger.Ledger
    expiry    time.Duration
    now       func() time.Time
}

func NewWaitlistService(waitlist WaitlistStore, tickets TicketStore, inventory InventoryStore, relations RelationStore, stock ledger.Ledger) *WaitlistService {
    return &WaitlistService{
        waitlist:  waitlist,
        tickets:   tickets,
        inventory: inventory,
        relations: relations,
        stock:     stock,
        expiry:    DefaultWaitlistExpiry,
        now:       time.Now,
    }
}

// SetExpiry overrides the fulfillment window, normally from deployment
// config.  Must be called before the service starts handling requests.
func (s *WaitlistService) SetExpiry(d time.Duration) {
    if d > 0 {
        s.expiry = d
    }
}

// Create queues one item per passenger against the key, priced the same way
// a direct booking would be. The entry starts pending payment; nothing is
// reserved yet.
func (s *WaitlistService) Create(ctx context.Context, req WaitlistRequest) (int64, error) {
    if len(req.Passengers) == 0 {
        return 0, fmt.Errorf("%w: no passengers", ErrInvalidState)
    }
    for _, p := range req.Passengers {
        ok, err := s.relations.Exists(ctx, req.UserID, p.PassengerID)
        if err != nil {
            return 0, err
        }
        if !ok {
            return 0, fmt.Errorf("%w: passenger %d not registered under account %d", ErrForbidden, p.PassengerID, req.UserID)
        }
    }
    rec, err := s.inventory.ByKey(ctx, req.Key)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return 0, fmt.Errorf("%w: no inventory for %s", ErrNotFound, req.Key.StockKey())
        }
        return 0, err
    }

    now := s.now().UTC()
    order := &model.WaitlistOrder{
        OrderNumber: newOrderNumber("W"),
        UserID:      req.UserID,
        Status:      model.WaitlistOrderPendingPayment,
        OrderTime:   now,
        ExpireTime:  now.Add(s.expiry),
    }
    var items []*model.WaitlistItem
    for _, p := range req.Passengers {
        price := model.PriceForType(rec.PriceCents, p.TicketType)
        order.TotalAmountCents += price
        order.ItemCount++
        items = append(items, &model.WaitlistItem{
            PassengerID: p.PassengerID,
            Key:         req.Key,
            TicketType:  p.TicketType,
            PriceCents:  price,
            Status:      model.WaitlistItemPendingPayment,
            CreatedTime: now,
        })
    }
    if err := s.waitlist.Create(ctx, order, items); err != nil {
        return 0, err
    }
    return order.WaitlistID, nil
}

// Pay moves a pending-payment waitlist order and its items to pending
// fulfillment, then immediately tries the queue in case stock is already
// there.
func (s *WaitlistService) Pay(ctx context.Context, userID, waitlistID int64) error {
    order, err := s.ownedWaitlist(ctx, userID, waitlistID)
    if err != nil {
        return err
    }
    if order.Status != model.WaitlistOrderPendingPayment {
        return fmt.Errorf("%w: waitlist order %d is not pending payment", ErrInvalidState, waitlistID)
    }
    if err := s.waitlist.MoveItemsStatus(ctx, waitlistID,
        model.WaitlistItemPendingPayment, model.WaitlistItemPendingFulfillment); err != nil {
        return err
    }
    if err := s.waitlist.SetOrderStatus(ctx, waitlistID, model.WaitlistOrderPendingFulfillment); err != nil {
        return err
    }
    items, err := s.waitlist.Items(ctx, waitlistID)
    if err != nil {
        return err
    }
    for _, key := range distinctKeys(items) {
        s.FulfillReleased(ctx, key)
    }
    return nil
}

// Cancel withdraws an entry that has not been fulfilled. Pending items flip
// to cancelled; fulfilled items are left alone and keep their stock.
func (s *WaitlistService) Cancel(ctx context.Context, userID, waitlistID int64) error {
    order, err := s.ownedWaitlist(ctx, userID, waitlistID)
    if err != nil {
        return err
    }
    if order.Status == model.WaitlistOrderCancelled {
        return nil
    }
    if order.Status == model.WaitlistOrderFulfilled {
        return fmt.Errorf("%w: waitlist order %d is fulfilled, refund instead", ErrInvalidState, waitlistID)
    }
    if err := s.waitlist.MoveItemsStatus(ctx, waitlistID,
        model.WaitlistItemPendingPayment, model.WaitlistItemCancelled); err != nil {
        return err
    }
    if err := s.waitlist.MoveItemsStatus(ctx, waitlistID,
        model.WaitlistItemPendingFulfillment, model.WaitlistItemCancelled); err != nil {
        return err
    }
    return s.refreshOrderStatus(ctx, waitlistID)
}

// Refund returns fulfilled items. With no IDs it refunds every fulfilled
// item of the order; otherwise only the listed ones. Each refund gives the
// item's stock back, which in turn wakes the queue for that key.
func (s *WaitlistService) Refund(ctx context.Context, userID, waitlistID int64, itemIDs []int64) error {
    if _, err := s.ownedWaitlist(ctx, userID, waitlistID); err != nil {
        return err
    }
    items, err := s.waitlist.Items(ctx, waitlistID)
    if err != nil {
        return err
    }
    targets := items
    if len(itemIDs) > 0 {
        byID := make(map[int64]model.WaitlistItem, len(items))
        for _, it := range items {
            byID[it.ItemID] = it
        }
        targets = targets[:0:0]
        for _, id := range itemIDs {
            it, ok := byID[id]
            if !ok {
                return fmt.Errorf("%w: item %d not in waitlist order %d", ErrNotFound, id, waitlistID)
            }
            targets = append(targets, it)
        }
    }
    refunded := 0
    for _, it := range targets {
        if it.Status != model.WaitlistItemFulfilled {
            if len(itemIDs) > 0 {
                return fmt.Errorf("%w: item %d is not fulfilled", ErrInvalidState, it.ItemID)
            }
            continue
        }
        err := s.waitlist.MoveItemStatus(ctx, it.ItemID, model.WaitlistItemFulfilled, model.WaitlistItemCancelled)
        if errors.Is(err, repository.ErrConflict) {
            continue
        }
        if err != nil {
            return err
        }
        s.unwindFulfilled(ctx, it)
        refunded++
    }
    if refunded == 0 && len(itemIDs) == 0 {
        return fmt.Errorf("%w: nothing to refund", ErrInvalidState)
    }
    return s.refreshOrderStatus(ctx, waitlistID)
}

// FulfillReleased serves queued demand for one key, oldest first, taking
// one unit of stock per item and materializing a paid order for it. The
// first refusal stops the scan: the item stays pending and keeps its place
// in line for the next release. Whatever stops the scan, the refresh loop
// still runs so orders whose items were already claimed settle into their
// derived status. Errors are logged, never returned: this runs on the
// ledger's release path and must not disturb the releasing workflow.
func (s *WaitlistService) FulfillReleased(ctx context.Context, key model.InventoryKey) {
    items, err := s.waitlist.Fulfillable(ctx, key, s.now().UTC())
    if err != nil {
        log.Printf("waitlist-service: fulfillable scan for %s failed: %v", key.StockKey(), err)
        return
    }
    orders := make(map[int64]bool)
    for _, it := range items {
        ok, err := s.stock.Decrement(ctx, key, 1)
        if err != nil {
            log.Printf("waitlist-service: decrement for item %d failed: %v", it.ItemID, err)
            break
        }
        if !ok {
            break // stock gone again; the item waits for the next release
        }
        err = s.waitlist.MoveItemStatus(ctx, it.ItemID,
            model.WaitlistItemPendingFulfillment, model.WaitlistItemFulfilled)
        if errors.Is(err, repository.ErrConflict) {
            // Someone cancelled the item between scan and claim.
            if incErr := s.stock.Increment(ctx, key, 1); incErr != nil {
                log.Printf("waitlist-service: stock return after lost claim on item %d failed: %v", it.ItemID, incErr)
            }
            continue
        }
        if err != nil {
            log.Printf("waitlist-service: status move for item %d failed: %v", it.ItemID, err)
            if incErr := s.stock.Increment(ctx, key, 1); incErr != nil {
                log.Printf("waitlist-service: stock return for item %d failed: %v", it.ItemID, incErr)
            }
            break
        }
        if err := s.materializeItem(ctx, it); err != nil {
            log.Printf("waitlist-service: order materialization for item %d failed: %v", it.ItemID, err)
            // Hand the claim back so the next release serves the item again.
            if mvErr := s.waitlist.MoveItemStatus(ctx, it.ItemID,
                model.WaitlistItemFulfilled, model.WaitlistItemPendingFulfillment); mvErr != nil {
                log.Printf("waitlist-service: claim return for item %d failed: %v", it.ItemID, mvErr)
            }
            if incErr := s.stock.Increment(ctx, key, 1); incErr != nil {
                log.Printf("waitlist-service: stock return for item %d failed: %v", it.ItemID, incErr)
            }
            break
        }
        orders[it.WaitlistID] = true
    }
    for waitlistID := range orders {
        if err := s.refreshOrderStatus(ctx, waitlistID); err != nil {
            log.Printf("waitlist-service: status refresh for order %d failed: %v", waitlistID, err)
        }
    }
}

// materializeItem turns one claimed item into the real purchase: a paid
// single-ticket order for the passenger at the price the item locked in.
// The ticket starts unused, same as a booked ticket after payment.
func (s *WaitlistService) materializeItem(ctx context.Context, it model.WaitlistItem) error {
    wo, err := s.waitlist.Order(ctx, it.WaitlistID)
    if err != nil {
        return err
    }
    now := s.now().UTC()
    method := "waitlist"
    order := &model.Order{
        OrderNumber:      newOrderNumber("O"),
        UserID:           wo.UserID,
        Status:           model.OrderPaid,
        TotalAmountCents: it.PriceCents,
        TicketCount:      1,
        OrderTime:        now,
        PaymentTime:      &now,
        PaymentMethod:    &method,
    }
    ticket := &model.Ticket{
        TicketNumber: newTicketNumber(),
        PassengerID:  it.PassengerID,
        Key:          it.Key,
        PriceCents:   it.PriceCents,
        Status:       model.TicketUnused,
        TicketType:   it.TicketType,
        CreatedTime:  now,
    }
    if err := s.tickets.CreateOrderWithTickets(ctx, order, []*model.Ticket{ticket}); err != nil {
        return err
    }
    return s.waitlist.SetItemTicket(ctx, it.ItemID, ticket.TicketID)
}

// unwindFulfilled takes back what fulfillment produced for one item: the
// materialized ticket flips to refunded, its order settles, and the unit of
// stock returns to the ledger. A ticket that already left unused was
// unwound through the order refund path, which returned its stock there.
func (s *WaitlistService) unwindFulfilled(ctx context.Context, it model.WaitlistItem) {
    if it.TicketID != 0 {
        err := s.tickets.MoveTicketStatus(ctx, it.TicketID, model.TicketUnused, model.TicketRefunded)
        if errors.Is(err, repository.ErrConflict) {
            return
        }
        if err != nil {
            log.Printf("waitlist-service: ticket unwind for item %d failed: %v", it.ItemID, err)
            return
        }
        if t, err := s.tickets.Ticket(ctx, it.TicketID); err == nil {
            if err := settleOrder(ctx, s.tickets, t.OrderID); err != nil {
                log.Printf("waitlist-service: order settle for ticket %d failed: %v", it.TicketID, err)
            }
        }
    }
    if err := s.stock.Increment(ctx, it.Key, 1); err != nil {
        log.Printf("waitlist-service: stock return for item %d failed: %v", it.ItemID, err)
    }
}

// refreshOrderStatus re-derives the order status from its items and writes
// it back when it moved.
func (s *WaitlistService) refreshOrderStatus(ctx context.Context, waitlistID int64) error {
    order, err := s.waitlist.Order(ctx, waitlistID)
    if err != nil {
        return err
    }
    items, err := s.waitlist.Items(ctx, waitlistID)
    if err != nil {
        return err
    }
    derived := model.DeriveWaitlistOrderStatus(order.Status, items)
    if derived == order.Status {
        return nil
    }
    return s.waitlist.SetOrderStatus(ctx, waitlistID, derived)
}

func (s *WaitlistService) ownedWaitlist(ctx context.Context, userID, waitlistID int64) (*model.WaitlistOrder, error) {
    order, err := s.waitlist.Order(ctx, waitlistID)
    if errors.Is(err, repository.ErrNotFound) {
        return nil, fmt.Errorf("%w: waitlist order %d", ErrNotFound, waitlistID)
    }
    if err != nil {
        return nil, err
    }
    if order.UserID != userID {
        return nil, fmt.Errorf("%w: waitlist order %d", ErrForbidden, waitlistID)
    }
    return order, nil
}

func distinctKeys(items []model.WaitlistItem) []model.InventoryKey {
    seen := make(map[string]bool, len(items))
    var out []model.InventoryKey
    for _, it := range items {
        k := it.Key.StockKey()
        if seen[k] {
            continue
        }
        seen[k] = true
        out = append(out, it.Key)
    }
    return out
}
