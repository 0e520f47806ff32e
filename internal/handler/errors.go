package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/minirail/train-seat-reservation/internal/service"
)

// writeError maps the service error taxonomy onto HTTP statuses.  Busy is
// 503 so clients and load balancers treat it as retryable; sold out and
// invalid state are conflicts with current resource state; anything
// unrecognized is a 500 with a generic message so internals never leak.
func writeError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, service.ErrBusy):
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrSoldOut):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrInvalidState):
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
    default:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }
}
