// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package access

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/bankgate/internal/models"
	"github.com/vinovest/sqlx"
)

// ChannelLimit bounds code issuance for one delivery channel: at most
// Max attempts within a sliding Window.
type ChannelLimit struct {
	Max    int
	Window time.Duration
}

// RateLimits holds the per-channel issuance limits.
type RateLimits struct {
	Email ChannelLimit
	Phone ChannelLimit
}

// DefaultRateLimits returns the stock limits: SMS delivery costs money,
// so the phone window is stretched well beyond the email one.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Email: ChannelLimit{Max: 3, Window: 5 * time.Minute},
		Phone: ChannelLimit{Max: 3, Window: 60 * time.Minute},
	}
}

func (l RateLimits) forChannel(channel models.Channel) ChannelLimit {
	if channel == models.ChannelPhone {
		return l.Phone
	}
	return l.Email
}

// checkAndRecordIssuance enforces the sliding window inside the open
// transaction. It prunes events that left the window, counts the rest,
// and either records the new attempt or reports how long the caller has
// to wait for the oldest retained event to expire.
func (s *Service) checkAndRecordIssuance(ctx context.Context, tx *sqlx.Tx, userID string, channel models.Channel, now time.Time) error {
	limit := s.limits.forChannel(channel)
	cutoff := now.Add(-limit.Window)

	if err := s.repo.PruneIssuanceLogTx(ctx, tx, userID, channel, cutoff); err != nil {
		return err
	}

	count, oldest, err := s.repo.IssuanceWindowTx(ctx, tx, userID, channel, cutoff)
	if err != nil {
		return err
	}
	if count >= limit.Max {
		retryAfter := oldest.Add(limit.Window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return &RateLimitedError{RetryAfter: retryAfter}
	}

	return s.repo.RecordIssuanceTx(ctx, tx, userID, channel, now)
}
