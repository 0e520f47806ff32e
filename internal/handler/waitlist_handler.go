package handler

import (
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/minirail/train-seat-reservation/internal/service"
)

// WaitlistHandler exposes the waitlist lifecycle: create, pay, cancel and
// refund.
type WaitlistHandler struct {
    Waitlist *service.WaitlistService
}

func NewWaitlistHandler(waitlist *service.WaitlistService) *WaitlistHandler {
    if waitlist == nil {
        panic("nil service passed to NewWaitlistHandler")
    }
    return &WaitlistHandler{Waitlist: waitlist}
}

// Create handles POST /v1/waitlist.  The body mirrors the booking request;
// the entry is created pending payment.
func (h *WaitlistHandler) Create(c echo.Context) error {
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
    id, err := h.Waitlist.Create(c.Request().Context(), service.WaitlistRequest{
        UserID:     body.UserID,
        Key:        key,
        Passengers: toBookingPassengers(body.Passengers),
    })
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"waitlist_id": id})
}

// Pay handles POST /v1/waitlist/:id/pay.
func (h *WaitlistHandler) Pay(c echo.Context) error {
    waitlistID, userID, errResp := h.idAndUser(c)
    if errResp != nil {
        return errResp(c)
    }
    if err := h.Waitlist.Pay(c.Request().Context(), userID, waitlistID); err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"status": "pending_fulfillment"})
}

// Cancel handles POST /v1/waitlist/:id/cancel.
func (h *WaitlistHandler) Cancel(c echo.Context) error {
    waitlistID, userID, errResp := h.idAndUser(c)
    if errResp != nil {
        return errResp(c)
    }
    if err := h.Waitlist.Cancel(c.Request().Context(), userID, waitlistID); err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"status": "cancelled"})
}

// Refund handles POST /v1/waitlist/:id/refund.  An optional item_ids list
// narrows the refund to specific fulfilled items.
func (h *WaitlistHandler) Refund(c echo.Context) error {
    waitlistID, err := strconv.ParseInt(c.Param("id"), 10, 64)
    if err != nil || waitlistID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid waitlist id"})
    }
    var body struct {
        UserID  int64   `json:"user_id"`
        ItemIDs []int64 `json:"item_ids"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.UserID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id is required"})
    }
    if err := h.Waitlist.Refund(c.Request().Context(), body.UserID, waitlistID, body.ItemIDs); err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"status": "refunded"})
}

// idAndUser parses the path ID and the user_id body field shared by the
// pay and cancel endpoints.
func (h *WaitlistHandler) idAndUser(c echo.Context) (int64, int64, func(echo.Context) error) {
    waitlistID, err := strconv.ParseInt(c.Param("id"), 10, 64)
    if err != nil || waitlistID == 0 {
        return 0, 0, func(c echo.Context) error {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid waitlist id"})
        }
    }
    var body struct {
        UserID int64 `json:"user_id"`
    }
    if err := c.Bind(&body); err != nil || body.UserID == 0 {
        return 0, 0, func(c echo.Context) error {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id is required"})
        }
    }
    return waitlistID, body.UserID, nil
}
