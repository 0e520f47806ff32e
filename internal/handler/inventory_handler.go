package handler

import (
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/minirail/train-seat-reservation/internal/service"
)

// InventoryHandler exposes the lock-free availability read.  The counts it
// returns are advisory: booking re-checks against the live ledger, so a
// display that is a few seconds stale is acceptable.
type InventoryHandler struct {
    Inventory *service.InventoryService
}

func NewInventoryHandler(inventory *service.InventoryService) *InventoryHandler {
    if inventory == nil {
        panic("nil service passed to NewInventoryHandler")
    }
    return &InventoryHandler{Inventory: inventory}
}

// Availability handles GET /v1/inventory?train_id=&travel_date=.
func (h *InventoryHandler) Availability(c echo.Context) error {
    trainID, err := strconv.Atoi(c.QueryParam("train_id"))
    if err != nil || trainID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "train_id is required"})
    }
    date, err := time.Parse("2006-01-02", c.QueryParam("travel_date"))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid travel_date, want YYYY-MM-DD"})
    }
    entries, err := h.Inventory.Availability(c.Request().Context(), trainID, date)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"inventory": entries})
}
