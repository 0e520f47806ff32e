package service

import (
    "context"
    "testing"
    "time"

    "github.com/minirail/train-seat-reservation/internal/model"
)

// seedPendingOrder plants a pending-payment order with seat-assigned
// pending tickets at the given age.
func seedPendingOrder(env *bookingEnv, age time.Duration, prices ...int64) (*model.Order, []*model.Ticket) {
    order := &model.Order{
        OrderNumber: "OPEND",
        UserID:      7,
        Status:      model.OrderPendingPayment,
        OrderTime:   time.Now().UTC().Add(-age),
    }
    var tickets []*model.Ticket
    for i, price := range prices {
        carriage := "2"
        seat := string(rune('A' + i))
        tickets = append(tickets, &model.Ticket{
            TicketNumber:   "TPEND",
            PassengerID:    int64(100 + i),
            Key:            testKey(),
            CarriageNumber: &carriage,
            SeatNumber:     &seat,
            PriceCents:     price,
            Status:         model.TicketPendingPayment,
            TicketType:     model.TicketTypeAdult,
            CreatedTime:    order.OrderTime,
        })
        order.TotalAmountCents += price
        order.TicketCount++
    }
    _ = env.tickets.CreateOrderWithTickets(context.Background(), order, tickets)
    return order, tickets
}

func TestReaperCancelsExpiredOrder(t *testing.T) {
    env := newBookingEnv(t, 5)
    ctx := context.Background()
    reaper := NewReaper(env.tickets, env.stock, env.seats, env.locks, 15*time.Minute, time.Minute)
    order, tickets := seedPendingOrder(env, time.Hour, 10000, 10000)

    if err := reaper.SweepOnce(ctx); err != nil {
        t.Fatalf("sweep: %v", err)
    }
    fresh, _ := env.tickets.Order(ctx, order.OrderID)
    if fresh.Status != model.OrderCancelled || fresh.TicketCount != 0 {
        t.Fatalf("order after sweep = %+v", fresh)
    }
    for _, tk := range tickets {
        got, _ := env.tickets.Ticket(ctx, tk.TicketID)
        if got.Status != model.TicketRefunded {
            t.Fatalf("ticket %d status = %d, want refunded", tk.TicketID, got.Status)
        }
    }
    if n, _, _ := env.stock.Read(ctx, testKey()); n != 7 {
        t.Fatalf("ledger = %d, want 7", n)
    }
    if len(env.seats.released) != 2 {
        t.Fatalf("released %d seats, want 2", len(env.seats.released))
    }
}

func TestReaperLeavesFreshOrdersAlone(t *testing.T) {
    env := newBookingEnv(t, 5)
    ctx := context.Background()
    reaper := NewReaper(env.tickets, env.stock, env.seats, env.locks, 15*time.Minute, time.Minute)
    order, _ := seedPendingOrder(env, time.Minute, 10000)

    if err := reaper.SweepOnce(ctx); err != nil {
        t.Fatalf("sweep: %v", err)
    }
    fresh, _ := env.tickets.Order(ctx, order.OrderID)
    if fresh.Status != model.OrderPendingPayment {
        t.Fatalf("order status = %d, want untouched", fresh.Status)
    }
    if n, _, _ := env.stock.Read(ctx, testKey()); n != 5 {
        t.Fatalf("ledger = %d, want 5", n)
    }
}

func TestReaperSweepIsIdempotent(t *testing.T) {
    env := newBookingEnv(t, 5)
    ctx := context.Background()
    reaper := NewReaper(env.tickets, env.stock, env.seats, env.locks, 15*time.Minute, time.Minute)
    seedPendingOrder(env, time.Hour, 10000)

    if err := reaper.SweepOnce(ctx); err != nil {
        t.Fatalf("first sweep: %v", err)
    }
    if err := reaper.SweepOnce(ctx); err != nil {
        t.Fatalf("second sweep: %v", err)
    }
    // Stock returned exactly once.
    if n, _, _ := env.stock.Read(ctx, testKey()); n != 6 {
        t.Fatalf("ledger = %d, want 6", n)
    }
}

func TestReaperSkipsOrderPaidMidSweep(t *testing.T) {
    env := newBookingEnv(t, 5)
    ctx := context.Background()
    reaper := NewReaper(env.tickets, env.stock, env.seats, env.locks, 15*time.Minute, time.Minute)
    order, tickets := seedPendingOrder(env, time.Hour, 10000)

    // Payment lands before the sweep reaches the order.
    _ = env.tickets.MarkOrderPaid(ctx, order.OrderID, "card", time.Now().UTC())
    _ = env.tickets.SetTicketsStatus(ctx, []int64{tickets[0].TicketID}, model.TicketUnused)

    if err := reaper.SweepOnce(ctx); err != nil {
        t.Fatalf("sweep: %v", err)
    }
    fresh, _ := env.tickets.Order(ctx, order.OrderID)
    if fresh.Status != model.OrderPaid {
        t.Fatalf("order status = %d, want paid", fresh.Status)
    }
    if n, _, _ := env.stock.Read(ctx, testKey()); n != 5 {
        t.Fatalf("ledger = %d, want 5 untouched", n)
    }
}
