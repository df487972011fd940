// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"codeberg.org/oliverandrich/bankgate/internal/services/access"
	"github.com/labstack/echo/v4"
)

// httpError maps service errors to HTTP responses. Rate limit errors
// carry a Retry-After header so well-behaved clients can back off.
func httpError(c echo.Context, err error) error {
	var rateLimited *access.RateLimitedError
	if errors.As(err, &rateLimited) {
		seconds := int(rateLimited.RetryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many code requests")
	}

	switch {
	case errors.Is(err, access.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	case errors.Is(err, access.ErrInvalidChannel),
		errors.Is(err, access.ErrWeakCode),
		errors.Is(err, access.ErrEmptyCode):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, access.ErrNoDestination):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, access.ErrRateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many code requests")
	case errors.Is(err, access.ErrCodeExpired):
		return echo.NewHTTPError(http.StatusGone, "access code expired")
	case errors.Is(err, access.ErrNoCode):
		return echo.NewHTTPError(http.StatusConflict, "no access code set")
	case errors.Is(err, access.ErrAccessDenied):
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	case errors.Is(err, access.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "operation not permitted")
	case errors.Is(err, access.ErrDeliveryFailed):
		return echo.NewHTTPError(http.StatusBadGateway, "code delivery failed")
	default:
		return err
	}
}
