package handler

import (
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/minirail/train-seat-reservation/internal/model"
    "github.com/minirail/train-seat-reservation/internal/service"
)

// TicketHandler exposes the booking, refund, change and payment workflows.
// Authentication is out of scope for this service: callers identify
// themselves with a user_id field, which an upstream gateway is expected
// to have verified.
type TicketHandler struct {
    Tickets  *service.TicketService
    Payments *service.PaymentService
}

func NewTicketHandler(tickets *service.TicketService, payments *service.PaymentService) *TicketHandler {
    if tickets == nil || payments == nil {
        panic("nil service passed to NewTicketHandler")
    }
    return &TicketHandler{Tickets: tickets, Payments: payments}
}

// keyPayload is the wire shape of an inventory key.
type keyPayload struct {
    TrainID         int    `json:"train_id"`
    DepartureStopID int64  `json:"departure_stop_id"`
    ArrivalStopID   int64  `json:"arrival_stop_id"`
    TravelDate      string `json:"travel_date"`
    CarriageTypeID  int    `json:"carriage_type_id"`
}

func (p keyPayload) toKey() (model.InventoryKey, error) {
    date, err := time.Parse("2006-01-02", p.TravelDate)
    if err != nil {
        return model.InventoryKey{}, err
    }
    return model.InventoryKey{
        TrainID:         p.TrainID,
        DepartureStopID: p.DepartureStopID,
        ArrivalStopID:   p.ArrivalStopID,
        TravelDate:      date,
        CarriageTypeID:  p.CarriageTypeID,
    }, nil
}

type passengerPayload struct {
    PassengerID int64 `json:"passenger_id"`
    TicketType  uint8 `json:"ticket_type"`
}

func toBookingPassengers(in []passengerPayload) []service.BookingPassenger {
    out := make([]service.BookingPassenger, 0, len(in))
    for _, p := range in {
        out = append(out, service.BookingPassenger{PassengerID: p.PassengerID, TicketType: p.TicketType})
    }
    return out
}

// Book handles POST /v1/tickets/book.  The request body carries the user,
// the inventory key and one entry per passenger.  On success it returns
// 202 Accepted with the order number: the durable order appears shortly
// after, once the consumer materializes it.
func (h *TicketHandler) Book(c echo.Context) error {
    var body struct {
        UserID     int64              `json:"user_id"`
        Key        keyPayload         `json:"key"`
        Passengers []passengerPayload `json:"passengers"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.UserID == 0 || len(body.Passengers) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id and passengers are required"})
    }
    key, err := body.Key.toKey()
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid travel_date, want YYYY-MM-DD"})
    }
    orderNumber, err := h.Tickets.BookTickets(c.Request().Context(), service.BookingRequest{
        UserID:     body.UserID,
        Key:        key,
        Passengers: toBookingPassengers(body.Passengers),
    })
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusAccepted, echo.Map{"order_number": orderNumber})
}

// Refund handles POST /v1/tickets/refund.  With no ticket_ids the whole
// order's unused tickets are refunded.
func (h *TicketHandler) Refund(c echo.Context) error {
    var body struct {
        UserID    int64   `json:"user_id"`
        OrderID   int64   `json:"order_id"`
        TicketIDs []int64 `json:"ticket_ids"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.UserID == 0 || body.OrderID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id and order_id are required"})
    }
    if err := h.Tickets.RefundTickets(c.Request().Context(), body.UserID, body.OrderID, body.TicketIDs); err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"status": "refunded"})
}

// Change handles POST /v1/tickets/change.  It books replacements on the
// new key and returns the pending-payment order number; the originals stay
// valid until that order is paid.
func (h *TicketHandler) Change(c echo.Context) error {
    var body struct {
        UserID    int64      `json:"user_id"`
        OrderID   int64      `json:"order_id"`
        TicketIDs []int64    `json:"ticket_ids"`
        NewKey    keyPayload `json:"new_key"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.UserID == 0 || body.OrderID == 0 || len(body.TicketIDs) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id, order_id and ticket_ids are required"})
    }
    newKey, err := body.NewKey.toKey()
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid travel_date, want YYYY-MM-DD"})
    }
    orderNumber, err := h.Tickets.ChangeTickets(c.Request().Context(), service.ChangeRequest{
        UserID:    body.UserID,
        OrderID:   body.OrderID,
        TicketIDs: body.TicketIDs,
        NewKey:    newKey,
    })
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"order_number": orderNumber})
}

// Pay handles POST /v1/orders/:orderId/pay.
func (h *TicketHandler) Pay(c echo.Context) error {
    orderID, err := strconv.ParseInt(c.Param("orderId"), 10, 64)
    if err != nil || orderID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
    }
    var body struct {
        UserID int64  `json:"user_id"`
        Method string `json:"method"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.UserID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id is required"})
    }
    if body.Method == "" {
        body.Method = "unknown"
    }
    if err := h.Payments.PayOrder(c.Request().Context(), body.UserID, orderID, body.Method); err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"status": "paid"})
}
