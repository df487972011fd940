// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"errors"
	"time"

	"codeberg.org/oliverandrich/bankgate/internal/models"
	"github.com/vinovest/sqlx"
)

// GetSecurityRecord retrieves a user's security record. A user without a
// row yet gets a zero-valued record; rows are created on first write.
func (r *Repository) GetSecurityRecord(ctx context.Context, userID string) (*models.SecurityRecord, error) {
	var rec models.SecurityRecord
	err := r.db.GetContext(ctx, &rec, `SELECT * FROM security_records WHERE user_id = ?`, userID)
	if errors.Is(wrapError(err), ErrNotFound) {
		return &models.SecurityRecord{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetSecurityRecordTx retrieves a user's security record inside an open
// transaction, creating a zero-valued record for users without a row.
func (r *Repository) GetSecurityRecordTx(ctx context.Context, tx *sqlx.Tx, userID string) (*models.SecurityRecord, error) {
	var rec models.SecurityRecord
	err := tx.GetContext(ctx, &rec, `SELECT * FROM security_records WHERE user_id = ?`, userID)
	if errors.Is(wrapError(err), ErrNotFound) {
		return &models.SecurityRecord{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveSecurityRecord writes the full record back in its own transaction.
func (r *Repository) SaveSecurityRecord(ctx context.Context, rec *models.SecurityRecord) error {
	return r.InTx(ctx, func(tx *sqlx.Tx) error {
		return r.SaveSecurityRecordTx(ctx, tx, rec)
	})
}

// SaveSecurityRecordTx writes the full record back inside an open
// transaction, inserting the row if the user has none yet.
func (r *Repository) SaveSecurityRecordTx(ctx context.Context, tx *sqlx.Tx, rec *models.SecurityRecord) error {
	rec.UpdatedAt = time.Now().UTC()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO security_records
		     (user_id, permanent_access_hash, one_time_code, one_time_code_expires_at,
		      failed_attempt_count, last_granted_at, last_failed_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		     permanent_access_hash = excluded.permanent_access_hash,
		     one_time_code = excluded.one_time_code,
		     one_time_code_expires_at = excluded.one_time_code_expires_at,
		     failed_attempt_count = excluded.failed_attempt_count,
		     last_granted_at = excluded.last_granted_at,
		     last_failed_at = excluded.last_failed_at,
		     updated_at = excluded.updated_at`,
		rec.UserID, rec.PermanentAccessHash, rec.OneTimeCode, rec.OneTimeCodeExpiresAt,
		rec.FailedAttemptCount, rec.LastGrantedAt, rec.LastFailedAt, rec.UpdatedAt)
	return err
}
