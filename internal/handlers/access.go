// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/bankgate/internal/auth"
	"codeberg.org/oliverandrich/bankgate/internal/i18n"
	"codeberg.org/oliverandrich/bankgate/internal/models"
	"github.com/labstack/echo/v4"
)

type issueCodeRequest struct {
	Channel string `json:"channel"`
}

// IssueCode requests a one-time access code for the authenticated user,
// delivered over the requested channel.
func (h *Handlers) IssueCode(c echo.Context) error {
	ctx := c.Request().Context()
	user := auth.GetUser(ctx)

	var req issueCodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := h.access.IssueCode(ctx, user.ID, models.Channel(req.Channel))
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success":    true,
		"message":    i18n.T(ctx, "access_code_sent"),
		"method":     result.Method,
		"expires_in": result.ExpiresIn,
	})
}

type verifyCodeRequest struct {
	Code string `json:"code"`
}

// VerifyCode checks a submitted access code for the authenticated user
// and unlocks banking data access on a match.
func (h *Handlers) VerifyCode(c echo.Context) error {
	ctx := c.Request().Context()
	user := auth.GetUser(ctx)

	var req verifyCodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.access.VerifyCode(ctx, user.ID, req.Code); err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": i18n.T(ctx, "access_granted"),
	})
}

type setAccessCodeRequest struct {
	Code string `json:"code"`
}

// SetPermanentAccessCode stores a permanent access code for the target
// user. Restricted to administrative roles.
func (h *Handlers) SetPermanentAccessCode(c echo.Context) error {
	ctx := c.Request().Context()

	var req setAccessCodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.access.SetPermanentAccessCode(ctx, c.Param("id"), req.Code); err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// ListAuditEntries returns the most recent audit entries for a user.
// Restricted to administrative roles.
func (h *Handlers) ListAuditEntries(c echo.Context) error {
	ctx := c.Request().Context()
	if !h.access.IsAdmin(ctx) {
		return echo.NewHTTPError(http.StatusForbidden, "operation not permitted")
	}

	entries, err := h.repo.ListAuditEntries(ctx, c.Param("id"), 0)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"entries": entries})
}
