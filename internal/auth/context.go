// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth provides request identity context helpers. The service
// never authenticates anyone itself; the session middleware decodes the
// identity established by the frontend and stores it here.
package auth

import (
	"context"

	"codeberg.org/oliverandrich/bankgate/internal/ctxkeys"
)

// User is the authenticated caller identity attached to a request.
type User struct {
	ID   string
	Role string
}

// SetUser returns a context carrying the authenticated user.
func SetUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, ctxkeys.User{}, user)
}

// GetUser returns the authenticated user from the context, or nil if not
// authenticated.
func GetUser(ctx context.Context) *User {
	if user, ok := ctx.Value(ctxkeys.User{}).(*User); ok {
		return user
	}
	return nil
}

// IsAuthenticated returns true if the context has an authenticated user.
func IsAuthenticated(ctx context.Context) bool {
	return GetUser(ctx) != nil
}

// WithClientIP returns a context carrying the caller's source address,
// recorded on audit entries.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxkeys.ClientIP{}, ip)
}

// ClientIP returns the caller's source address, or "" when unknown.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ctxkeys.ClientIP{}).(string); ok {
		return ip
	}
	return ""
}
