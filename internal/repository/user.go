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

// CreateUser inserts a new user read-model row. Contact data and role are
// synced in from the user directory; bankgate never edits them afterwards.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = "member"
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, phone_prefix, phone_number, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.PhonePrefix, user.PhoneNumber, user.Role, user.CreatedAt, user.UpdatedAt)
	return err
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByIDTx retrieves a user inside an open transaction.
func (r *Repository) GetUserByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.User, error) {
	var user models.User
	err := tx.GetContext(ctx, &user, `SELECT * FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// UpdateUserContact replaces a user's contact data from the directory.
func (r *Repository) UpdateUserContact(ctx context.Context, id, email, phonePrefix, phoneNumber string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = ?, phone_prefix = ?, phone_number = ?, updated_at = ? WHERE id = ?`,
		email, phonePrefix, phoneNumber, time.Now().UTC(), id)
	return err
}
