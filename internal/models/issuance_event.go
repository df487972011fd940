// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

// Channel is the delivery medium for one-time access codes.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
)

// Valid reports whether c is a known delivery channel.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelPhone
}

// IssuanceEvent is one entry in the per-channel rolling issuance log.
// Events count attempts, not successful deliveries; the issuer records one
// regardless of the downstream delivery outcome.
type IssuanceEvent struct {
	ID       int64     `db:"id" json:"id"`
	UserID   string    `db:"user_id" json:"user_id"`
	Channel  Channel   `db:"channel" json:"channel"`
	IssuedAt time.Time `db:"issued_at" json:"issued_at"`
}
