// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

// Audit actions recorded by the access service. Every grant, denial,
// issuance and expiry-clear produces exactly one entry.
const (
	AuditActionCodeRequested    = "access_code_requested"
	AuditActionAccess           = "banking_access"
	AuditActionCodeExpired      = "access_code_expired"
	AuditActionPermanentCodeSet = "banking_access_code_set"
)

// Audit methods describing how an authorization decision was made.
const (
	AuditMethodTemporaryCode = "temporary_code"
	AuditMethodPermanentHash = "permanent_hash"
)

// AuditEntry is an immutable record of a security-relevant decision.
// The repository only ever inserts these; there is no update or delete.
type AuditEntry struct { //nolint:govet // fieldalignment not critical for models
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	Action        string    `db:"action" json:"action"`
	Method        string    `db:"method" json:"method"`
	Success       bool      `db:"success" json:"success"`
	SourceAddress string    `db:"source_address" json:"source_address"`
	PerformedBy   string    `db:"performed_by" json:"performed_by"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
