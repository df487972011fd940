// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package access

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"
	"unicode"

	"codeberg.org/oliverandrich/bankgate/internal/auth"
	"codeberg.org/oliverandrich/bankgate/internal/i18n"
	"codeberg.org/oliverandrich/bankgate/internal/models"
	"codeberg.org/oliverandrich/bankgate/internal/repository"
	"codeberg.org/oliverandrich/bankgate/internal/services/delivery"
	"github.com/vinovest/sqlx"
)

// IssueResult describes a successfully issued code.
type IssueResult struct {
	// Method is the transport the code went out on.
	Method string
	// ExpiresIn is the code lifetime in seconds.
	ExpiresIn int
}

// IssueCode generates a fresh one-time code for the user and delivers it
// over the requested channel. Rate limiting, the issuance log append and
// the code write commit in one transaction; delivery happens after the
// commit so a gateway failure never voids the logged attempt.
func (s *Service) IssueCode(ctx context.Context, userID string, channel models.Channel) (*IssueResult, error) {
	if !channel.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChannel, channel)
	}

	now := s.now().UTC()
	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("generating code: %w", err)
	}

	var destination string
	err = s.repo.InTx(ctx, func(tx *sqlx.Tx) error {
		user, err := s.repo.GetUserByIDTx(ctx, tx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}

		// Destination resolution precedes the rate-limit append: a
		// request that cannot be delivered anywhere must not consume a
		// window slot.
		destination, err = destinationFor(user, channel)
		if err != nil {
			return err
		}

		if err := s.checkAndRecordIssuance(ctx, tx, userID, channel, now); err != nil {
			return err
		}

		rec, err := s.repo.GetSecurityRecordTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		rec.SetOneTimeCode(code, now.Add(s.codeTTL))
		return s.repo.SaveSecurityRecordTx(ctx, tx, rec)
	})
	if err != nil {
		return nil, err
	}

	deliveryErr := s.deliver(ctx, channel, destination, code)

	auditErr := s.repo.AppendAuditEntry(ctx, &models.AuditEntry{
		UserID:        userID,
		Action:        models.AuditActionCodeRequested,
		Method:        models.AuditMethodTemporaryCode,
		Success:       deliveryErr == nil,
		SourceAddress: auth.ClientIP(ctx),
		PerformedBy:   performedBy(ctx, userID),
	})
	if auditErr != nil {
		slog.ErrorContext(ctx, "appending audit entry", slog.Any("error", auditErr))
	}

	if deliveryErr != nil {
		slog.WarnContext(ctx, "code delivery failed",
			slog.String("user_id", userID),
			slog.String("channel", string(channel)),
			slog.Any("error", deliveryErr))
		return nil, fmt.Errorf("%w: %w", ErrDeliveryFailed, deliveryErr)
	}
	return &IssueResult{
		Method:    s.senderFor(channel).Method(),
		ExpiresIn: int(s.codeTTL / time.Second),
	}, nil
}

func (s *Service) senderFor(channel models.Channel) delivery.Sender {
	if channel == models.ChannelPhone {
		return s.sms
	}
	return s.email
}

func (s *Service) deliver(ctx context.Context, channel models.Channel, destination, code string) error {
	ctx, cancel := context.WithTimeout(ctx, s.deliveryTimeout)
	defer cancel()

	minutes := int(s.codeTTL / time.Minute)
	if channel == models.ChannelPhone {
		return s.sms.Send(ctx, destination, delivery.Message{
			Body: i18n.TData(ctx, "access_code_sms_body", map[string]any{"Code": code, "Minutes": minutes}),
		})
	}
	return s.email.Send(ctx, destination, delivery.Message{
		Subject: i18n.T(ctx, "access_code_email_subject"),
		Body:    i18n.TData(ctx, "access_code_email_body", map[string]any{"Code": code, "Minutes": minutes}),
	})
}

// generateCode draws a uniformly distributed six digit code from the
// system's CSPRNG.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func destinationFor(user *models.User, channel models.Channel) (string, error) {
	switch channel {
	case models.ChannelEmail:
		if !user.HasEmail() {
			return "", fmt.Errorf("%w: user has no email address", ErrNoDestination)
		}
		return user.Email, nil
	case models.ChannelPhone:
		if !user.HasPhone() {
			return "", fmt.Errorf("%w: user has no phone number", ErrNoDestination)
		}
		return normalizePhone(user.PhonePrefix, user.PhoneNumber), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidChannel, channel)
	}
}

// normalizePhone joins prefix and number into a single dialable string:
// whitespace stripped, exactly one leading plus, a stray zero directly
// after the country prefix dropped.
func normalizePhone(prefix, number string) string {
	var b strings.Builder
	for _, r := range prefix + number {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	s := "+" + strings.TrimLeft(b.String(), "+")
	if strings.HasPrefix(s, "+0") {
		s = "+" + strings.TrimPrefix(s, "+0")
	}
	return s
}

func performedBy(ctx context.Context, fallback string) string {
	if user := auth.GetUser(ctx); user != nil {
		return user.ID
	}
	return fallback
}
