// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package server assembles the HTTP API: configuration, database,
// middleware, routes and the TLS listener.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/bankgate/internal/config"
	"codeberg.org/oliverandrich/bankgate/internal/database"
	"codeberg.org/oliverandrich/bankgate/internal/handlers"
	"codeberg.org/oliverandrich/bankgate/internal/i18n"
	"codeberg.org/oliverandrich/bankgate/internal/repository"
	"codeberg.org/oliverandrich/bankgate/internal/services/access"
	"codeberg.org/oliverandrich/bankgate/internal/services/delivery"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database (migrations run on open)
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	// Repository and services
	repo := repository.New(db)
	accessService := access.New(access.Config{
		Repo:  repo,
		Email: emailSender(cfg),
		SMS:   smsSender(cfg),
		Limits: access.RateLimits{
			Email: access.ChannelLimit{Max: cfg.Access.EmailLimitMax, Window: cfg.Access.EmailLimitWindow},
			Phone: access.ChannelLimit{Max: cfg.Access.PhoneLimitMax, Window: cfg.Access.PhoneLimitWindow},
		},
		CodeTTL:    cfg.Access.CodeTTL,
		AdminRoles: cfg.Access.AdminRoles,
	})

	// Session cookie codec
	sessions, err := newSessionCodec(cfg.Session)
	if err != nil {
		return fmt.Errorf("failed to init session codec: %w", err)
	}

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e, cfg, sessions)
	setupRoutes(e, repo, accessService)

	return startWithGracefulShutdown(e, cfg)
}

func setupRoutes(e *echo.Echo, repo *repository.Repository, accessService *access.Service) {
	h := handlers.New(repo, accessService)

	e.GET("/health", h.Health)

	api := e.Group("/api", requireAuth())
	api.POST("/access/code", h.IssueCode)
	api.POST("/access/verify", h.VerifyCode)
	api.PUT("/admin/users/:id/access-code", h.SetPermanentAccessCode)
	api.GET("/admin/users/:id/audit", h.ListAuditEntries)
}

// emailSender picks the SMTP sender when a mail server is configured,
// console delivery otherwise.
func emailSender(cfg *config.Config) delivery.Sender {
	if cfg.SMTP.Host == "" {
		return &delivery.ConsoleSender{Channel: "email"}
	}
	return delivery.NewSMTPSender(delivery.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		StartTLS: cfg.SMTP.StartTLS,
	})
}

// smsSender picks the HTTP gateway sender when one is configured, console
// delivery otherwise.
func smsSender(cfg *config.Config) delivery.Sender {
	if cfg.SMS.GatewayURL == "" {
		return &delivery.ConsoleSender{Channel: "sms"}
	}
	return delivery.NewSMSSender(delivery.SMSConfig{
		URL:    cfg.SMS.GatewayURL,
		Token:  cfg.SMS.Token,
		Sender: cfg.SMS.Sender,
	})
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	// Setup TLS
	tlsResult, err := SetupTLS(cfg)
	if err != nil {
		return fmt.Errorf("TLS setup failed: %w", err)
	}

	// Channel for server errors
	errChan := make(chan error, 2)

	// HTTP redirect server for ACME mode
	var httpServer *http.Server

	switch tlsResult.Mode {
	case TLSModeOff:
		// Plain HTTP on configured port
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeACME:
		// HTTPS on :443
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(e, ":443", tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		// HTTP redirect server on :80
		httpServer = &http.Server{
			Addr:              ":80",
			Handler:           tlsResult.HTTPHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("HTTP→HTTPS redirect active", "addr", ":80")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeSelfSigned, TLSModeManual:
		// HTTPS on configured port
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(e, addr, tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown main server", "error", err)
	}

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown HTTP redirect server", "error", err)
		}
	}

	slog.Info("server stopped")
	return nil
}

// startTLSServer starts the Echo server with a custom TLS configuration.
func startTLSServer(e *echo.Echo, addr string, tlsConfig *tls.Config) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	e.TLSListener = tls.NewListener(ln, tlsConfig)
	e.TLSServer.TLSConfig = tlsConfig
	return e.Server.Serve(e.TLSListener)
}
