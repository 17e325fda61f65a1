// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

package provider

import (
	"context"
	"time"
)

// # Account Data Access

// AccountRecord is the persisted shape of an account, including the password
// hash that never leaves this package.
type AccountRecord struct {
	ID           string
	Email        string
	PasswordHash string
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccountRepository defines the data access contract for accounts.
type AccountRepository interface {

	/*
		Create persists a brand-new account record.

		Parameters:
		  - ctx: context.Context
		  - record: *AccountRecord

		Returns:
		  - error: Persistence failures (already classified)
	*/
	Create(ctx context.Context, record *AccountRecord) error

	/*
		FindByEmail returns the account record with the given email.

		Parameters:
		  - ctx: context.Context
		  - email: string

		Returns:
		  - *AccountRecord: Hydrated record
		  - error: apperr.NotFound or database failures
	*/
	FindByEmail(ctx context.Context, email string) (*AccountRecord, error)

	/*
		FindByID returns the account record with the given ID.

		Parameters:
		  - ctx: context.Context
		  - id: string

		Returns:
		  - *AccountRecord: Hydrated record
		  - error: apperr.NotFound or database failures
	*/
	FindByID(ctx context.Context, id string) (*AccountRecord, error)

	/*
		MarkVerified flips the account's verified flag to true.

		Parameters:
		  - ctx: context.Context
		  - id: string

		Returns:
		  - error: Persistence failures
	*/
	MarkVerified(ctx context.Context, id string) error

	/*
		UpdatePassword replaces only the account's password hash.

		Parameters:
		  - ctx: context.Context
		  - id: string
		  - newHash: string

		Returns:
		  - error: Persistence failures
	*/
	UpdatePassword(ctx context.Context, id, newHash string) error
}

// # Volatile Code Access

// CodeRepository defines the contract for storing one-time codes
// (email verification, password reset) with an expiry.
//
// Codes are stored by their SHA-256 hash: a leaked store never yields a
// usable code.
type CodeRepository interface {

	/*
		Set stores a code hash associated with an accountID for a limited duration.

		Parameters:
		  - ctx: context.Context
		  - codeHash: string
		  - accountID: string
		  - ttl: time.Duration

		Returns:
		  - error: Storage failures
	*/
	Set(ctx context.Context, codeHash, accountID string, ttl time.Duration) error

	/*
		Get retrieves the accountID associated with a code hash.

		Parameters:
		  - ctx: context.Context
		  - codeHash: string

		Returns:
		  - string: AccountID
		  - error: apperr.CodeInvalidOrExpired if absent or expired
	*/
	Get(ctx context.Context, codeHash string) (string, error)

	/*
		Delete removes a code hash after successful use.

		Parameters:
		  - ctx: context.Context
		  - codeHash: string

		Returns:
		  - error: Deletion failures
	*/
	Delete(ctx context.Context, codeHash string) error
}
