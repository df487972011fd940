// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers contains the HTTP handlers of the access API.
package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/bankgate/internal/repository"
	"codeberg.org/oliverandrich/bankgate/internal/services/access"
	"github.com/labstack/echo/v4"
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	repo   *repository.Repository
	access *access.Service
}

// New creates a new Handlers instance.
func New(repo *repository.Repository, accessService *access.Service) *Handlers {
	return &Handlers{repo: repo, access: accessService}
}

// Health returns a simple health check response.
func (h *Handlers) Health(c echo.Context) error {
	if err := h.repo.DB().PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
