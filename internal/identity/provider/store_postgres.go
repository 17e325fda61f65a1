// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

// Storage layer for the identity provider, backed by PostgreSQL.
//
// # Error Mapping
//
// Storage-specific errors (pgx.ErrNoRows, unique violations) are mapped to
// domain-friendly [apperr.AppError] values here so that the service layer
// never inspects driver errors.

package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ziedbenboubaker/cbt-app/internal/platform/apperr"
)

// PostgresAccountRepository implements the AccountRepository interface using pgx.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new PostgreSQL implementation of the AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

/*
Create persists a new account record into the identity.account table.

Parameters:
  - ctx: context.Context
  - record: *AccountRecord (Entity to persist)

Returns:
  - error: apperr.AlreadyExists on a duplicate email, or database errors
*/
func (repository *PostgresAccountRepository) Create(ctx context.Context, record *AccountRecord) error {
	const query = `
		INSERT INTO identity.account (
			id, email, passwordhash, verified, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6)`

	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	_, err := repository.pool.Exec(ctx, query,
		record.ID,
		record.Email,
		record.PasswordHash,
		record.Verified,
		record.CreatedAt,
		record.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return apperr.AlreadyExists("This email is already registered")
		}
		return fmt.Errorf("postgres_account_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByEmail retrieves an account record by its unique email address.

Parameters:
  - ctx: context.Context
  - email: string

Returns:
  - *AccountRecord: Hydrated record
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresAccountRepository) FindByEmail(ctx context.Context, email string) (*AccountRecord, error) {
	const query = `
		SELECT id, email, passwordhash, verified, createdat, updatedat
		FROM identity.account
		WHERE email = $1`

	record := &AccountRecord{}
	err := repository.pool.QueryRow(ctx, query, email).Scan(
		&record.ID,
		&record.Email,
		&record.PasswordHash,
		&record.Verified,
		&record.CreatedAt,
		&record.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account")
		}
		return nil, fmt.Errorf("postgres_account_repo_find_by_email_failed: %w", err)
	}

	return record, nil
}

/*
FindByID retrieves an account record by its primary key.

Parameters:
  - ctx: context.Context
  - id: string

Returns:
  - *AccountRecord: Hydrated record
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresAccountRepository) FindByID(ctx context.Context, id string) (*AccountRecord, error) {
	const query = `
		SELECT id, email, passwordhash, verified, createdat, updatedat
		FROM identity.account
		WHERE id = $1`

	record := &AccountRecord{}
	err := repository.pool.QueryRow(ctx, query, id).Scan(
		&record.ID,
		&record.Email,
		&record.PasswordHash,
		&record.Verified,
		&record.CreatedAt,
		&record.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account")
		}
		return nil, fmt.Errorf("postgres_account_repo_find_by_id_failed: %w", err)
	}

	return record, nil
}

/*
MarkVerified updates the account's status to verified = true.

Parameters:
  - ctx: context.Context
  - id: string

Returns:
  - error: apperr.NotFound if the account vanished, or database errors
*/
func (repository *PostgresAccountRepository) MarkVerified(ctx context.Context, id string) error {
	const query = `
		UPDATE identity.account
		SET verified = TRUE, updatedat = $2
		WHERE id = $1`

	tag, err := repository.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_account_repo_mark_verified_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Account")
	}

	return nil
}

/*
UpdatePassword replaces only the account's password hash.

Parameters:
  - ctx: context.Context
  - id: string
  - newHash: string

Returns:
  - error: apperr.NotFound if the account vanished, or database errors
*/
func (repository *PostgresAccountRepository) UpdatePassword(ctx context.Context, id, newHash string) error {
	const query = `
		UPDATE identity.account
		SET passwordhash = $2, updatedat = $3
		WHERE id = $1`

	tag, err := repository.pool.Exec(ctx, query, id, newHash, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_account_repo_update_password_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Account")
	}

	return nil
}
