// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package access

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUserNotFound is returned when the target user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrNoDestination is returned when the requested channel has no
	// usable destination on the user's profile.
	ErrNoDestination = errors.New("no destination for channel")

	// ErrInvalidChannel is returned for channels other than email or phone.
	ErrInvalidChannel = errors.New("invalid delivery channel")

	// ErrRateLimited is returned when the issuance window is exhausted.
	ErrRateLimited = errors.New("rate limited")

	// ErrAccessDenied is returned when a submitted code matches neither
	// the active one-time code nor the permanent access hash.
	ErrAccessDenied = errors.New("access denied")

	// ErrCodeExpired is returned when the stored one-time code has lapsed
	// and the submission matched nothing else.
	ErrCodeExpired = errors.New("access code expired")

	// ErrNoCode is returned when no code is set for the user at all.
	ErrNoCode = errors.New("no access code set")

	// ErrEmptyCode is returned when the submission is blank.
	ErrEmptyCode = errors.New("empty access code")

	// ErrDeliveryFailed is returned when a code was issued but could not
	// be handed to the delivery gateway.
	ErrDeliveryFailed = errors.New("code delivery failed")

	// ErrForbidden is returned when the caller's role may not perform an
	// administrative operation.
	ErrForbidden = errors.New("operation not permitted")

	// ErrWeakCode is returned when an admin tries to set a permanent code
	// that is too short.
	ErrWeakCode = errors.New("permanent code too short")
)

// RateLimitedError carries how long the caller has to wait before the
// sliding window frees a slot. It unwraps to ErrRateLimited.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Unwrap() error {
	return ErrRateLimited
}
