package service

import (
    "context"
    "testing"

    "github.com/minirail/train-seat-reservation/internal/model"
    "github.com/minirail/train-seat-reservation/internal/queue"
)

func testOrderMessage() queue.OrderCreatedMessage {
    return queue.OrderCreatedMessage{
        OrderNumber:     "O42",
        UserID:          7,
        TrainID:         1,
        DepartureStopID: 10,
        ArrivalStopID:   20,
        TravelDate:      "2025-07-02",
        CarriageTypeID:  3,
        Passengers: []queue.OrderPassenger{
            {PassengerID: 100, TicketType: model.TicketTypeAdult},
            {PassengerID: 101, TicketType: model.TicketTypeChild},
        },
    }
}

func TestMaterializerCreatesPricedOrderWithSeats(t *testing.T) {
    env := newBookingEnv(t, 10)
    ctx := context.Background()
    mat := NewMaterializer(env.tickets, env.inventory, env.seats, env.locks)

    if err := mat.HandleOrder(ctx, testOrderMessage()); err != nil {
        t.Fatalf("handle: %v", err)
    }
    var order *model.Order
    for _, o := range env.tickets.orders {
        if o.OrderNumber == "O42" {
            order = o
        }
    }
    if order == nil {
        t.Fatal("order not materialized")
    }
    if order.Status != model.OrderPendingPayment {
        t.Fatalf("order status = %d, want pending payment", order.Status)
    }
    // Adult full fare plus child half fare.
    if order.TotalAmountCents != 10000+5000 || order.TicketCount != 2 {
        t.Fatalf("order totals = %d/%d, want 15000/2", order.TotalAmountCents, order.TicketCount)
    }
    tickets, _ := env.tickets.TicketsByOrder(ctx, order.OrderID)
    if len(tickets) != 2 {
        t.Fatalf("%d tickets, want 2", len(tickets))
    }
    for _, tk := range tickets {
        if tk.Status != model.TicketPendingPayment {
            t.Fatalf("ticket status = %d, want pending payment", tk.Status)
        }
        if tk.CarriageNumber == nil || tk.SeatNumber == nil {
            t.Fatalf("ticket %d has no seat assigned", tk.TicketID)
        }
    }
}

func TestMaterializerToleratesSeatExhaustion(t *testing.T) {
    env := newBookingEnv(t, 10)
    env.seats.fail = true
    ctx := context.Background()
    mat := NewMaterializer(env.tickets, env.inventory, env.seats, env.locks)

    if err := mat.HandleOrder(ctx, testOrderMessage()); err != nil {
        t.Fatalf("handle: %v", err)
    }
    var orderID int64
    for id, o := range env.tickets.orders {
        if o.OrderNumber == "O42" {
            orderID = id
        }
    }
    tickets, _ := env.tickets.TicketsByOrder(ctx, orderID)
    if len(tickets) != 2 {
        t.Fatalf("%d tickets, want 2 despite missing seats", len(tickets))
    }
    for _, tk := range tickets {
        if tk.CarriageNumber != nil {
            t.Fatal("no seat should be assigned when the allocator is exhausted")
        }
    }
}

func TestMaterializerRejectsUnknownInventory(t *testing.T) {
    env := newBookingEnv(t, 10)
    mat := NewMaterializer(env.tickets, env.inventory, env.seats, env.locks)

    msg := testOrderMessage()
    msg.TrainID = 99
    if err := mat.HandleOrder(context.Background(), msg); err == nil {
        t.Fatal("expected an error for unknown inventory")
    }
    if len(env.tickets.orders) != 0 {
        t.Fatal("no order should be created for unknown inventory")
    }
}
