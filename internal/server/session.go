// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/bankgate/internal/auth"
	"codeberg.org/oliverandrich/bankgate/internal/config"
	"github.com/gorilla/securecookie"
	"github.com/labstack/echo/v4"
)

// sessionCodec decodes the signed session cookie issued by the frontend.
// This service never writes sessions; it only reads the caller identity
// the frontend established.
type sessionCodec struct {
	codec      *securecookie.SecureCookie
	cookieName string
}

func newSessionCodec(cfg config.SessionConfig) (*sessionCodec, error) {
	hashKey, err := sessionKey(cfg.HashKey)
	if err != nil {
		return nil, fmt.Errorf("session hash key: %w", err)
	}

	var blockKey []byte
	if cfg.BlockKey != "" {
		blockKey, err = hex.DecodeString(cfg.BlockKey)
		if err != nil {
			return nil, fmt.Errorf("session block key: %w", err)
		}
	}

	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(cfg.MaxAge)
	return &sessionCodec{codec: sc, cookieName: cfg.CookieName}, nil
}

// sessionKey decodes the configured hash key, or generates an ephemeral
// one for development when none is set.
func sessionKey(configured string) ([]byte, error) {
	if configured != "" {
		return hex.DecodeString(configured)
	}
	slog.Warn("no session hash key configured, generating ephemeral key")
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// decode extracts the caller identity from the request's session cookie.
// Returns nil for missing, malformed or expired cookies.
func (s *sessionCodec) decode(c echo.Context) *auth.User {
	cookie, err := c.Cookie(s.cookieName)
	if err != nil {
		return nil
	}

	values := map[string]string{}
	if err := s.codec.Decode(s.cookieName, cookie.Value, &values); err != nil {
		return nil
	}
	if values["user_id"] == "" {
		return nil
	}
	return &auth.User{ID: values["user_id"], Role: values["role"]}
}

// Encode builds a session cookie value for the given identity. The server
// itself never sets cookies; this is exported for tests and tooling that
// need to impersonate the frontend.
func (s *sessionCodec) Encode(user *auth.User) (string, error) {
	return s.codec.Encode(s.cookieName, map[string]string{
		"user_id": user.ID,
		"role":    user.Role,
	})
}
