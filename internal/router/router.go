package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"

    "github.com/minirail/train-seat-reservation/internal/handler"
)

// RegisterRoutes wires every endpoint of the inventory core onto the
// provided Echo instance.  The ticket workflows live under /v1/tickets,
// payment under /v1/orders, the waitlist under /v1/waitlist and the
// display read at /v1/inventory.  /health serves load balancers.
func RegisterRoutes(e *echo.Echo, t *handler.TicketHandler, w *handler.WaitlistHandler, inv *handler.InventoryHandler) {
    e.GET("/health", handler.Health)

    tickets := e.Group("/v1/tickets")
    tickets.POST("/book", t.Book)
    tickets.POST("/refund", t.Refund)
    tickets.POST("/change", t.Change)

    e.POST("/v1/orders/:orderId/pay", t.Pay)

    waitlist := e.Group("/v1/waitlist")
    waitlist.POST("", w.Create)
    waitlist.POST("/:id/pay", w.Pay)
    waitlist.POST("/:id/cancel", w.Cancel)
    waitlist.POST("/:id/refund", w.Refund)

    e.GET("/v1/inventory", inv.Availability)
}
