// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package delivery hands one-time access codes to the outside world.
// Senders are fire-and-forget from the caller's perspective: the code is
// already persisted before delivery starts, and a failed send never rolls
// the issuance back.
package delivery

import (
	"context"
	"log/slog"
)

// Message is a rendered, locale-resolved notification. Subject is only
// used by channels that have one.
type Message struct {
	Subject string
	Body    string
}

// Sender delivers a message to a single destination, an email address or
// an E.164 phone number depending on the implementation. Method names the
// transport for responses and logs.
type Sender interface {
	Method() string
	Send(ctx context.Context, destination string, msg Message) error
}

// ConsoleSender writes messages to the log instead of sending them. Used
// in development and as the fallback when no gateway is configured.
type ConsoleSender struct {
	Channel string
}

func (s *ConsoleSender) Method() string { return "console" }

func (s *ConsoleSender) Send(ctx context.Context, destination string, msg Message) error {
	slog.InfoContext(ctx, "delivery (console)",
		slog.String("channel", s.Channel),
		slog.String("destination", destination),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body))
	return nil
}
