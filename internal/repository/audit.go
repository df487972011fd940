// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/bankgate/internal/models"
	"github.com/google/uuid"
	"github.com/vinovest/sqlx"
)

const insertAuditEntry = `INSERT INTO audit_entries
    (id, user_id, action, method, success, source_address, performed_by, created_at)
 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// AppendAuditEntry appends one audit entry. Entries are immutable; no
// update or delete statement for audit_entries exists in this package.
func (r *Repository) AppendAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	fillAuditEntry(entry)
	_, err := r.db.ExecContext(ctx, insertAuditEntry,
		entry.ID, entry.UserID, entry.Action, entry.Method, entry.Success,
		entry.SourceAddress, entry.PerformedBy, entry.CreatedAt)
	return err
}

// AppendAuditEntryTx appends one audit entry inside an open transaction,
// so a verification decision and its audit trail commit together.
func (r *Repository) AppendAuditEntryTx(ctx context.Context, tx *sqlx.Tx, entry *models.AuditEntry) error {
	fillAuditEntry(entry)
	_, err := tx.ExecContext(ctx, insertAuditEntry,
		entry.ID, entry.UserID, entry.Action, entry.Method, entry.Success,
		entry.SourceAddress, entry.PerformedBy, entry.CreatedAt)
	return err
}

// ListAuditEntries returns the most recent audit entries for a user,
// newest first.
func (r *Repository) ListAuditEntries(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.AuditEntry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT * FROM audit_entries WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func fillAuditEntry(entry *models.AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
}
