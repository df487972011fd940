// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"codeberg.org/oliverandrich/bankgate/internal/models"
	"github.com/vinovest/sqlx"
)

// PruneIssuanceLogTx discards issuance events older than cutoff for one
// user/channel pair, keeping the rolling log bounded to the active window.
func (r *Repository) PruneIssuanceLogTx(ctx context.Context, tx *sqlx.Tx, userID string, channel models.Channel, cutoff time.Time) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM issuance_events WHERE user_id = ? AND channel = ? AND issued_at < ?`,
		userID, channel, cutoff)
	return err
}

// IssuanceWindowTx returns the number of retained issuance events since
// cutoff and the timestamp of the oldest retained event.
func (r *Repository) IssuanceWindowTx(ctx context.Context, tx *sqlx.Tx, userID string, channel models.Channel, cutoff time.Time) (int, time.Time, error) {
	var count int
	err := tx.GetContext(ctx, &count,
		`SELECT count(*) FROM issuance_events
		  WHERE user_id = ? AND channel = ? AND issued_at >= ?`,
		userID, channel, cutoff)
	if err != nil {
		return 0, time.Time{}, err
	}
	if count == 0 {
		return 0, time.Time{}, nil
	}

	var oldest time.Time
	err = tx.GetContext(ctx, &oldest,
		`SELECT issued_at FROM issuance_events
		  WHERE user_id = ? AND channel = ? AND issued_at >= ?
		  ORDER BY issued_at ASC LIMIT 1`,
		userID, channel, cutoff)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, err
	}
	return count, oldest, nil
}

// RecordIssuanceTx appends one issuance event. The issuer calls this for
// every allowed attempt, whether or not delivery later succeeds.
func (r *Repository) RecordIssuanceTx(ctx context.Context, tx *sqlx.Tx, userID string, channel models.Channel, issuedAt time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO issuance_events (user_id, channel, issued_at) VALUES (?, ?, ?)`,
		userID, channel, issuedAt)
	return err
}

// CountIssuances returns the total number of logged issuance events for a
// user and channel, regardless of age.
func (r *Repository) CountIssuances(ctx context.Context, userID string, channel models.Channel) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT count(*) FROM issuance_events WHERE user_id = ? AND channel = ?`,
		userID, channel)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	return count, nil
}
