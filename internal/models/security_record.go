// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

// SecurityRecord holds the per-user authorization state for banking data
// access. Rows are never deleted, only fields are cleared. At most one of
// OneTimeCode/OneTimeCodeExpiresAt is set without the other.
type SecurityRecord struct { //nolint:govet // fieldalignment not critical for models
	UserID               string     `db:"user_id" json:"user_id"`
	PermanentAccessHash  *string    `db:"permanent_access_hash" json:"-"`
	OneTimeCode          *string    `db:"one_time_code" json:"-"`
	OneTimeCodeExpiresAt *time.Time `db:"one_time_code_expires_at" json:"-"`
	FailedAttemptCount   int        `db:"failed_attempt_count" json:"failed_attempt_count"`
	LastGrantedAt        *time.Time `db:"last_granted_at" json:"last_granted_at"`
	LastFailedAt         *time.Time `db:"last_failed_at" json:"last_failed_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// CodeState classifies the one-time code stored on a record at a given
// point in time.
type CodeState int

const (
	// NoActiveCode means no one-time code has been issued.
	NoActiveCode CodeState = iota
	// ActiveCode means an unexpired one-time code is present.
	ActiveCode
	// ExpiredCode means a code is still stored but past its expiry.
	// Readers must treat it as absent (lazy expiry); the verifier clears
	// it on the next submission.
	ExpiredCode
)

// CodeState evaluates the stored fields against the given clock. It is a
// pure function: expiry is decided here, never by a background job.
func (r *SecurityRecord) CodeState(now time.Time) CodeState {
	if r.OneTimeCode == nil || *r.OneTimeCode == "" {
		return NoActiveCode
	}
	if r.OneTimeCodeExpiresAt == nil || !now.Before(*r.OneTimeCodeExpiresAt) {
		return ExpiredCode
	}
	return ActiveCode
}

// SetOneTimeCode stores a fresh code together with its expiry.
func (r *SecurityRecord) SetOneTimeCode(code string, expiresAt time.Time) {
	r.OneTimeCode = &code
	r.OneTimeCodeExpiresAt = &expiresAt
}

// ClearOneTimeCode removes the one-time code and its expiry together,
// preserving the invariant that neither field is set without the other.
func (r *SecurityRecord) ClearOneTimeCode() {
	r.OneTimeCode = nil
	r.OneTimeCodeExpiresAt = nil
}

// HasPermanentHash reports whether an administrator has configured a
// permanent access code for this user.
func (r *SecurityRecord) HasPermanentHash() bool {
	return r.PermanentAccessHash != nil && *r.PermanentAccessHash != ""
}
