// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package access

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"codeberg.org/oliverandrich/bankgate/internal/auth"
	"codeberg.org/oliverandrich/bankgate/internal/models"
	"codeberg.org/oliverandrich/bankgate/internal/repository"
	"github.com/vinovest/sqlx"
)

// minPermanentCodeLength guards against admins configuring trivially
// guessable permanent codes.
const minPermanentCodeLength = 4

// PermanentHash derives the stored digest for a permanent access code.
// The user ID is mixed in so equal codes on different users never share a
// hash. The submission is hashed as received, without trimming.
func PermanentHash(code, userID string) string {
	sum := sha256.Sum256([]byte(code + userID))
	return hex.EncodeToString(sum[:])
}

// VerifyCode checks a submitted code against the user's security record
// and records the outcome. The whole decision, including the failure
// counter and the audit entry, commits in one transaction.
//
// While a one-time code is active it is the only credential checked:
// the submission must match it (both sides trimmed) or the attempt is
// denied. The permanent access hash (computed over the untrimmed
// submission) is consulted only when no code is active.
func (s *Service) VerifyCode(ctx context.Context, userID, submitted string) error {
	now := s.now().UTC()
	trimmed := strings.TrimSpace(submitted)
	if trimmed == "" {
		return ErrEmptyCode
	}

	return s.repo.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.repo.GetUserByIDTx(ctx, tx, userID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		rec, err := s.repo.GetSecurityRecordTx(ctx, tx, userID)
		if err != nil {
			return err
		}

		switch rec.CodeState(now) {
		case models.ActiveCode:
			// An active code shadows the permanent hash: match it or be
			// denied.
			stored := strings.TrimSpace(*rec.OneTimeCode)
			if subtle.ConstantTimeCompare([]byte(trimmed), []byte(stored)) == 1 {
				return s.grantTx(ctx, tx, rec, models.AuditMethodTemporaryCode, now)
			}
			return s.denyTx(ctx, tx, rec, models.AuditMethodTemporaryCode, now, ErrAccessDenied)

		case models.ExpiredCode:
			// Lazy expiry: the lapsed code is cleared by the next
			// submission that observes it, with its own audit entry.
			// No fallthrough to the permanent hash on this attempt; a
			// retry against the now-clean record gets the normal paths.
			rec.ClearOneTimeCode()
			if err := s.repo.SaveSecurityRecordTx(ctx, tx, rec); err != nil {
				return err
			}
			if err := s.repo.AppendAuditEntryTx(ctx, tx, &models.AuditEntry{
				UserID:        userID,
				Action:        models.AuditActionCodeExpired,
				Method:        models.AuditMethodTemporaryCode,
				Success:       true,
				SourceAddress: auth.ClientIP(ctx),
				PerformedBy:   performedBy(ctx, userID),
			}); err != nil {
				return err
			}
			return ErrCodeExpired

		default: // NoActiveCode
			permanentMatch := rec.HasPermanentHash() &&
				subtle.ConstantTimeCompare(
					[]byte(PermanentHash(submitted, userID)),
					[]byte(*rec.PermanentAccessHash)) == 1
			if permanentMatch {
				return s.grantTx(ctx, tx, rec, models.AuditMethodPermanentHash, now)
			}
			if rec.HasPermanentHash() {
				return s.denyTx(ctx, tx, rec, models.AuditMethodPermanentHash, now, ErrAccessDenied)
			}
			// Nothing to verify against. The record is saved anyway so
			// the cleared state from a concurrent path persists.
			if err := s.repo.SaveSecurityRecordTx(ctx, tx, rec); err != nil {
				return err
			}
			return ErrNoCode
		}
	})
}

func (s *Service) grantTx(ctx context.Context, tx *sqlx.Tx, rec *models.SecurityRecord, method string, now time.Time) error {
	rec.ClearOneTimeCode()
	rec.FailedAttemptCount = 0
	rec.LastGrantedAt = &now
	if err := s.repo.SaveSecurityRecordTx(ctx, tx, rec); err != nil {
		return err
	}
	return s.repo.AppendAuditEntryTx(ctx, tx, &models.AuditEntry{
		UserID:        rec.UserID,
		Action:        models.AuditActionAccess,
		Method:        method,
		Success:       true,
		SourceAddress: auth.ClientIP(ctx),
		PerformedBy:   performedBy(ctx, rec.UserID),
	})
}

func (s *Service) denyTx(ctx context.Context, tx *sqlx.Tx, rec *models.SecurityRecord, method string, now time.Time, cause error) error {
	rec.FailedAttemptCount++
	rec.LastFailedAt = &now
	if err := s.repo.SaveSecurityRecordTx(ctx, tx, rec); err != nil {
		return err
	}
	if err := s.repo.AppendAuditEntryTx(ctx, tx, &models.AuditEntry{
		UserID:        rec.UserID,
		Action:        models.AuditActionAccess,
		Method:        method,
		Success:       false,
		SourceAddress: auth.ClientIP(ctx),
		PerformedBy:   performedBy(ctx, rec.UserID),
	}); err != nil {
		return err
	}
	return cause
}

// SetPermanentAccessCode stores a permanent access code for the target
// user. Only callers with an administrative role may do this; the code is
// hashed immediately and never persisted in clear text.
func (s *Service) SetPermanentAccessCode(ctx context.Context, targetUserID, code string) error {
	actor := auth.GetUser(ctx)
	if actor == nil || !s.adminRoles[actor.Role] {
		return ErrForbidden
	}
	if len(code) < minPermanentCodeLength {
		return fmt.Errorf("%w: need at least %d characters", ErrWeakCode, minPermanentCodeLength)
	}

	return s.repo.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.repo.GetUserByIDTx(ctx, tx, targetUserID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		rec, err := s.repo.GetSecurityRecordTx(ctx, tx, targetUserID)
		if err != nil {
			return err
		}
		hash := PermanentHash(code, targetUserID)
		rec.PermanentAccessHash = &hash
		if err := s.repo.SaveSecurityRecordTx(ctx, tx, rec); err != nil {
			return err
		}

		return s.repo.AppendAuditEntryTx(ctx, tx, &models.AuditEntry{
			UserID:        targetUserID,
			Action:        models.AuditActionPermanentCodeSet,
			Method:        models.AuditMethodPermanentHash,
			Success:       true,
			SourceAddress: auth.ClientIP(ctx),
			PerformedBy:   actor.ID,
		})
	})
}
