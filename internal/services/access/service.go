// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package access implements the authorization gate in front of sensitive
// banking data: one-time codes delivered by email or SMS, permanent
// access codes set by administrators, sliding-window issuance limits and
// an append-only audit trail.
package access

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/bankgate/internal/auth"
	"codeberg.org/oliverandrich/bankgate/internal/repository"
	"codeberg.org/oliverandrich/bankgate/internal/services/delivery"
)

const (
	defaultCodeTTL         = 15 * time.Minute
	defaultDeliveryTimeout = 10 * time.Second
)

// defaultAdminRoles lists the roles allowed to set permanent access codes.
var defaultAdminRoles = []string{"admin", "owner", "finance_admin"}

// Config wires a Service. Repo is required; everything else has a
// sensible default.
type Config struct {
	Repo  *repository.Repository
	Email delivery.Sender
	SMS   delivery.Sender

	Limits          RateLimits
	CodeTTL         time.Duration
	DeliveryTimeout time.Duration
	AdminRoles      []string

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service owns all state transitions on security records. Every
// read-modify-write runs in a single database transaction, so concurrent
// requests for the same user serialize at the database.
type Service struct {
	repo            *repository.Repository
	email           delivery.Sender
	sms             delivery.Sender
	limits          RateLimits
	codeTTL         time.Duration
	deliveryTimeout time.Duration
	adminRoles      map[string]bool
	now             func() time.Time
}

// New creates a Service from the given config.
func New(config Config) *Service {
	s := &Service{
		repo:            config.Repo,
		email:           config.Email,
		sms:             config.SMS,
		limits:          config.Limits,
		codeTTL:         config.CodeTTL,
		deliveryTimeout: config.DeliveryTimeout,
		now:             config.Now,
	}
	if s.email == nil {
		s.email = &delivery.ConsoleSender{Channel: "email"}
	}
	if s.sms == nil {
		s.sms = &delivery.ConsoleSender{Channel: "sms"}
	}
	if s.limits == (RateLimits{}) {
		s.limits = DefaultRateLimits()
	}
	if s.codeTTL <= 0 {
		s.codeTTL = defaultCodeTTL
	}
	if s.deliveryTimeout <= 0 {
		s.deliveryTimeout = defaultDeliveryTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}

	roles := config.AdminRoles
	if len(roles) == 0 {
		roles = defaultAdminRoles
	}
	s.adminRoles = make(map[string]bool, len(roles))
	for _, role := range roles {
		s.adminRoles[role] = true
	}
	return s
}

// IsAdmin reports whether the calling context carries an identity with
// an administrative role.
func (s *Service) IsAdmin(ctx context.Context) bool {
	user := auth.GetUser(ctx)
	return user != nil && s.adminRoles[user.Role]
}
