// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ctxkeys defines typed context keys used across packages.
package ctxkeys

// User is the context key for the authenticated caller identity.
type User struct{}

// ClientIP is the context key for the caller's source address.
type ClientIP struct{}
