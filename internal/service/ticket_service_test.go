package service

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/minirail/train-seat-reservation/internal/ledger"
    "github.com/minirail/train-seat-reservation/internal/lock"
    "github.com/minirail/train-seat-reservation/internal/model"
)

func testKey() model.InventoryKey {
    return model.InventoryKey{
        TrainID:         1,
        DepartureStopID: 10,
        ArrivalStopID:   20,
        TravelDate:      time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC),
        CarriageTypeID:  3,
    }
}

type bookingEnv struct {
    svc       *TicketService
    tickets   *fakeTicketStore
    inventory *fakeInventoryStore
    stock     *ledger.MemoryLedger
    locks     *lock.MemoryManager
    seats     *fakeSeats
    maps      *fakeChangeMaps
    publisher *capturingPublisher
}

func newBookingEnv(t *testing.T, available int) *bookingEnv {
    t.Helper()
    env := &bookingEnv{
        tickets:   newFakeTicketStore(),
        inventory: newFakeInventoryStore(),
        stock:     ledger.NewMemoryLedger(),
        locks:     lock.NewMemoryManager(),
        seats:     &fakeSeats{},
        maps:      newFakeChangeMaps(),
        publisher: &capturingPublisher{},
    }
    key := testKey()
    env.inventory.add(model.InventoryRecord{
        InventoryID: 1, Key: key, TotalSeats: 100, AvailableSeats: available, PriceCents: 10000,
    })
    if err := env.stock.Set(context.Background(), key, available); err != nil {
        t.Fatalf("seed ledger: %v", err)
    }
    schedule := newFakeSchedule()
    schedule.addStop(1, 10, 1, "", "08:00")
    schedule.addStop(1, 20, 2, "12:00", "")
    relations := newFakeRelations([2]int64{7, 100}, [2]int64{7, 101})
    env.svc = NewTicketService(env.tickets, env.inventory, relations,
        NewTimeConflict(env.tickets, schedule), env.stock, env.locks,
        env.seats, env.seats, env.maps, env.publisher.publish)
    return env
}

func TestBookTicketsPublishesAndDecrements(t *testing.T) {
    env := newBookingEnv(t, 10)
    ctx := context.Background()

    orderNumber, err := env.svc.BookTickets(ctx, BookingRequest{
        UserID: 7,
        Key:    testKey(),
        Passengers: []BookingPassenger{
            {PassengerID: 100, TicketType: model.TicketTypeAdult},
            {PassengerID: 101, TicketType: model.TicketTypeChild},
        },
    })
    if err != nil {
        t.Fatalf("book: %v", err)
    }
    if orderNumber == "" {
        t.Fatal("expected an order number")
    }
    if n, _, _ := env.stock.Read(ctx, testKey()); n != 8 {
        t.Fatalf("ledger = %d, want 8", n)
    }
    if len(env.publisher.messages) != 1 {
        t.Fatalf("published %d messages, want 1", len(env.publisher.messages))
    }
    msg := env.publisher.messages[0]
    if msg.OrderNumber != orderNumber || len(msg.Passengers) != 2 {
        t.Fatalf("unexpected message %+v", msg)
    }
}

func TestBookTicketsSoldOutRollsBack(t *testing.T) {
    env := newBookingEnv(t, 1)
    ctx := context.Background()

    _, err := env.svc.BookTickets(ctx, BookingRequest{
        UserID: 7,
        Key:    testKey(),
        Passengers: []BookingPassenger{
            {PassengerID: 100, TicketType: model.TicketTypeAdult},
            {PassengerID: 101, TicketType: model.TicketTypeAdult},
        },
    })
    if !errors.Is(err, ErrSoldOut) {
        t.Fatalf("err = %v, want ErrSoldOut", err)
    }
    // The one seat taken before the refusal must be back.
    if n, _, _ := env.stock.Read(ctx, testKey()); n != 1 {
        t.Fatalf("ledger = %d, want 1 after rollback", n)
    }
    if len(env.publisher.messages) != 0 {
        t.Fatal("no message should be published on sold out")
    }
}

func TestBookTicketsPublishFailureReturnsStock(t *testing.T) {
    env := newBookingEnv(t, 5)
    env.publisher.fail = true
    ctx := context.Background()

    _, err := env.svc.BookTickets(ctx, BookingRequest{
        UserID:     7,
        Key:        testKey(),
        Passengers: []BookingPassenger{{PassengerID: 100, TicketType: model.TicketTypeAdult}},
    })
    if !errors.Is(err, ErrBusy) {
        t.Fatalf("err = %v, want ErrBusy", err)
    }
    if n, _, _ := env.stock.Read(ctx, testKey()); n != 5 {
        t.Fatalf("ledger = %d, want 5 after rollback", n)
    }
}

func TestBookTicketsUnknownPassenger(t *testing.T) {
    env := newBookingEnv(t, 5)
    _, err := env.svc.BookTickets(context.Background(), BookingRequest{
        UserID:     7,
        Key:        testKey(),
        Passengers: []BookingPassenger{{PassengerID: 999, TicketType: model.TicketTypeAdult}},
    })
    if !errors.Is(err, ErrForbidden) {
        t.Fatalf("err = %v, want ErrForbidden", err)
    }
}

func TestBookTicketsBusyWhenLockHeld(t *testing.T) {
    env := newBookingEnv(t, 5)
    ctx := context.Background()
    name := lock.BookingLockName(1, testKey().TravelDate)
    if _, ok, _ := env.locks.TryLock(ctx, name, time.Second, time.Minute); !ok {
        t.Fatal("setup: could not take booking lock")
    }

    _, err := env.svc.BookTickets(ctx, BookingRequest{
        UserID:     7,
        Key:        testKey(),
        Passengers: []BookingPassenger{{PassengerID: 100, TicketType: model.TicketTypeAdult}},
    })
    if !errors.Is(err, ErrBusy) {
        t.Fatalf("err = %v, want ErrBusy", err)
    }
    if n, _, _ := env.stock.Read(ctx, testKey()); n != 5 {
        t.Fatalf("ledger = %d, want 5 untouched", n)
    }
}

// seedPaidOrder creates a paid order with unused, seat-assigned tickets
// directly through the fake store.
func seedPaidOrder(env *bookingEnv, userID int64, prices ...int64) (*model.Order, []*model.Ticket) {
    order := &model.Order{
        OrderNumber: "OTEST",
        UserID:      userID,
        Status:      model.OrderPaid,
        OrderTime:   time.Now().UTC(),
    }
    var tickets []*model.Ticket
    for i, price := range prices {
        carriage := "1"
        seat := string(rune('A' + i))
        tickets = append(tickets, &model.Ticket{
            TicketNumber:   "TTEST",
            PassengerID:    int64(100 + i),
            Key:            testKey(),
            CarriageNumber: &carriage,
            SeatNumber:     &seat,
            PriceCents:     price,
            Status:         model.TicketUnused,
            TicketType:     model.TicketTypeAdult,
            CreatedTime:    time.Now().UTC(),
        })
        order.TotalAmountCents += price
        order.TicketCount++
    }
    _ = env.tickets.CreateOrderWithTickets(context.Background(), order, tickets)
    return order, tickets
}

func TestRefundTicketsReturnsStockAndSeat(t *testing.T) {
    env := newBookingEnv(t, 5)
    ctx := context.Background()
    order, tickets := seedPaidOrder(env, 7, 10000, 10000)

    err := env.svc.RefundTickets(ctx, 7, order.OrderID, []int64{tickets[0].TicketID})
    if err != nil {
        t.Fatalf("refund: %v", err)
    }
    if n, _, _ := env.stock.Read(ctx, testKey()); n != 6 {
        t.Fatalf("ledger = %d, want 6", n)
    }
    if len(env.seats.released) != 1 {
        t.Fatalf("released %d seats, want 1", len(env.seats.released))
    }
    got, _ := env.tickets.Ticket(ctx, tickets[0].TicketID)
    if got.Status != model.TicketRefunded {
        t.Fatalf("ticket status = %d, want refunded", got.Status)
    }
    fresh, _ := env.tickets.Order(ctx, order.OrderID)
    if fresh.Status != model.OrderPaid || fresh.TicketCount != 1 || fresh.TotalAmountCents != 10000 {
        t.Fatalf("order after partial refund = %+v", fresh)
    }
}

func TestRefundAllCancelsOrder(t *testing.T) {
    env := newBookingEnv(t, 5)
    ctx := context.Background()
    order, _ := seedPaidOrder(env, 7, 10000, 10000)

    if err := env.svc.RefundTickets(ctx, 7, order.OrderID, nil); err != nil {
        t.Fatalf("refund: %v", err)
    }
    fresh, _ := env.tickets.Order(ctx, order.OrderID)
    if fresh.Status != model.OrderCancelled {
        t.Fatalf("order status = %d, want cancelled", fresh.Status)
    }
    if n, _, _ := env.stock.Read(ctx, testKey()); n != 7 {
        t.Fatalf("ledger = %d, want 7", n)
    }
}

func TestRefundRejectsForeignOrder(t *testing.T) {
    env := newBookingEnv(t, 5)
    order, _ := seedPaidOrder(env, 7, 10000)

    err := env.svc.RefundTickets(context.Background(), 8, order.OrderID, nil)
    if !errors.Is(err, ErrForbidden) {
        t.Fatalf("err = %v, want ErrForbidden", err)
    }
}

func TestRefundRejectsUnpaidOrder(t *testing.T) {
    env := newBookingEnv(t, 5)
    ctx := context.Background()
    order, _ := seedPaidOrder(env, 7, 10000)
    _ = env.tickets.SetOrderStatus(ctx, order.OrderID, model.OrderPendingPayment)

    err := env.svc.RefundTickets(ctx, 7, order.OrderID, nil)
    if !errors.Is(err, ErrInvalidState) {
        t.Fatalf("err = %v, want ErrInvalidState", err)
    }
}

func TestChangeTicketsCreatesPendingOrderAndMapping(t *testing.T) {
    env := newBookingEnv(t, 5)
    ctx := context.Background()
    order, tickets := seedPaidOrder(env, 7, 10000)

    newKey := testKey()
    newKey.TravelDate = time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC)
    env.inventory.add(model.InventoryRecord{
        InventoryID: 2, Key: newKey, TotalSeats: 100, AvailableSeats: 50, PriceCents: 12000,
    })
    if err := env.stock.Set(ctx, newKey, 50); err != nil {
        t.Fatal(err)
    }

    newNumber, err := env.svc.ChangeTickets(ctx, ChangeRequest{
        UserID:    7,
        OrderID:   order.OrderID,
        TicketIDs: []int64{tickets[0].TicketID},
        NewKey:    newKey,
    })
    if err != nil {
        t.Fatalf("change: %v", err)
    }
    if newNumber == "" {
        t.Fatal("expected a new order number")
    }
    if n, _, _ := env.stock.Read(ctx, newKey); n != 49 {
        t.Fatalf("new key ledger = %d, want 49", n)
    }
    // Original untouched until payment.
    if n, _, _ := env.stock.Read(ctx, testKey()); n != 5 {
        t.Fatalf("old key ledger = %d, want 5", n)
    }
    orig, _ := env.tickets.Ticket(ctx, tickets[0].TicketID)
    if orig.Status != model.TicketUnused {
        t.Fatalf("original status = %d, want unused", orig.Status)
    }
    // One mapping must point the replacement at the original.
    found := false
    for newID := range env.maps.mappings {
        origID, _, ok, _ := env.maps.Get(ctx, newID)
        if ok && origID == tickets[0].TicketID {
            found = true
        }
    }
    if !found {
        t.Fatal("no change mapping recorded")
    }
}

func TestChangeTicketsSoldOutOnNewKey(t *testing.T) {
    env := newBookingEnv(t, 5)
    ctx := context.Background()
    order, tickets := seedPaidOrder(env, 7, 10000)

    newKey := testKey()
    newKey.TravelDate = time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC)
    env.inventory.add(model.InventoryRecord{
        InventoryID: 2, Key: newKey, TotalSeats: 100, AvailableSeats: 0, PriceCents: 12000,
    })
    if err := env.stock.Set(ctx, newKey, 0); err != nil {
        t.Fatal(err)
    }

    _, err := env.svc.ChangeTickets(ctx, ChangeRequest{
        UserID:    7,
        OrderID:   order.OrderID,
        TicketIDs: []int64{tickets[0].TicketID},
        NewKey:    newKey,
    })
    if !errors.Is(err, ErrSoldOut) {
        t.Fatalf("err = %v, want ErrSoldOut", err)
    }
    orig, _ := env.tickets.Ticket(ctx, tickets[0].TicketID)
    if orig.Status != model.TicketUnused {
        t.Fatalf("original status = %d, want unused after failed change", orig.Status)
    }
}

func TestChangeTicketsRejectsSecondChangeInFlight(t *testing.T) {
    env := newBookingEnv(t, 5)
    ctx := context.Background()
    order, tickets := seedPaidOrder(env, 7, 10000)

    newKey := testKey()
    newKey.TravelDate = time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC)
    env.inventory.add(model.InventoryRecord{
        InventoryID: 2, Key: newKey, TotalSeats: 100, AvailableSeats: 50, PriceCents: 12000,
    })
    if err := env.stock.Set(ctx, newKey, 50); err != nil {
        t.Fatal(err)
    }

    req := ChangeRequest{
        UserID:    7,
        OrderID:   order.OrderID,
        TicketIDs: []int64{tickets[0].TicketID},
        NewKey:    newKey,
    }
    if _, err := env.svc.ChangeTickets(ctx, req); err != nil {
        t.Fatalf("first change: %v", err)
    }

    _, err := env.svc.ChangeTickets(ctx, req)
    if !errors.Is(err, ErrInvalidState) {
        t.Fatalf("err = %v, want ErrInvalidState while a change is in flight", err)
    }
    if n, _, _ := env.stock.Read(ctx, newKey); n != 49 {
        t.Fatalf("new key ledger = %d, want 49 untouched by the rejected change", n)
    }
}

func TestChangeTicketsRevertsWhenMappingFails(t *testing.T) {
    env := newBookingEnv(t, 5)
    ctx := context.Background()
    order, tickets := seedPaidOrder(env, 7, 10000)
    env.maps.failSet = true

    newKey := testKey()
    newKey.TravelDate = time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC)
    env.inventory.add(model.InventoryRecord{
        InventoryID: 2, Key: newKey, TotalSeats: 100, AvailableSeats: 50, PriceCents: 12000,
    })
    if err := env.stock.Set(ctx, newKey, 50); err != nil {
        t.Fatal(err)
    }

    _, err := env.svc.ChangeTickets(ctx, ChangeRequest{
        UserID:    7,
        OrderID:   order.OrderID,
        TicketIDs: []int64{tickets[0].TicketID},
        NewKey:    newKey,
    })
    if err == nil {
        t.Fatal("change must fail when the mapping store is down")
    }
    if n, _, _ := env.stock.Read(ctx, newKey); n != 50 {
        t.Fatalf("new key ledger = %d, want 50 after revert", n)
    }
    if len(env.maps.mappings) != 0 {
        t.Fatalf("%d mappings left behind", len(env.maps.mappings))
    }
    if len(env.seats.released) != 1 {
        t.Fatalf("released %d seats, want the one the revert freed", len(env.seats.released))
    }
    orig, _ := env.tickets.Ticket(ctx, tickets[0].TicketID)
    if orig.Status != model.TicketUnused {
        t.Fatalf("original status = %d, want unused", orig.Status)
    }
    for id, o := range env.tickets.orders {
        if id == order.OrderID {
            continue
        }
        if o.Status != model.OrderCancelled || o.TicketCount != 0 {
            t.Fatalf("replacement order not reverted: %+v", o)
        }
    }
}
