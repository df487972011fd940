// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

// User is the resolved read model for a caller of the access service.
// Identity resolution (which directory entry a request belongs to) happens
// upstream; this service only ever sees an unambiguous user ID.
type User struct { //nolint:govet // fieldalignment not critical for models
	ID          string    `db:"id" json:"id"`
	Email       string    `db:"email" json:"email"`
	PhonePrefix string    `db:"phone_prefix" json:"phone_prefix"`
	PhoneNumber string    `db:"phone_number" json:"phone_number"`
	Role        string    `db:"role" json:"role"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// HasEmail reports whether the user has an email address on file.
func (u *User) HasEmail() bool {
	return u.Email != ""
}

// HasPhone reports whether the user has a phone number on file.
func (u *User) HasPhone() bool {
	return u.PhoneNumber != ""
}
