// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

/*
Package identity defines the contract with the identity provider.

The provider owns every account: the rest of the system only ever holds a
read-only snapshot, refreshed through the snapshot listener. The auth state
machine derives its state from these snapshots and from the outcomes of the
operations below; it never caches verification status as final.

# Architecture

  - Client: The single long-lived collaborator constructed once at startup and
    injected into the auth state machine (never an ambient singleton).
  - Account: Provider-issued read-only record.
  - Errors: Every operation fails with an already-classified [apperr.AppError];
    callers never see a raw provider error.
*/
package identity

import (
	"context"
	"time"
)

// # Domain Entities

// Account is the identity-provider-issued record for one user.
//
// The Verified flag is provider-authoritative. Consumers must treat any held
// Account as a snapshot that the next listener push may supersede.
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotListener receives the authoritative account state whenever it
// changes (sign-in, sign-out, verification flip). A nil account means
// "signed out".
type SnapshotListener func(account *Account)

// # Provider Contract

// Client is the identity-provider collaborator consumed by the auth state
// machine and the session gate.
//
// # Error Classification
//
// Implementations classify every failure into the closed taxonomy before
// returning:
//
//   - SignUp: ALREADY_EXISTS (email in use), VALIDATION_ERROR (weak password),
//     UPSTREAM_UNAVAILABLE, INTERNAL_ERROR.
//   - SignIn: CREDENTIAL_REJECTED (covers both wrong password and unknown
//     user, to prevent account enumeration), UPSTREAM_UNAVAILABLE, INTERNAL_ERROR.
//   - SendVerificationEmail: RATE_LIMITED, UPSTREAM_UNAVAILABLE, INTERNAL_ERROR.
//   - SendPasswordReset: NOT_FOUND, RATE_LIMITED, UPSTREAM_UNAVAILABLE, INTERNAL_ERROR.
//   - ApplyVerificationCode: CODE_INVALID_OR_EXPIRED, UPSTREAM_UNAVAILABLE, INTERNAL_ERROR.
type Client interface {

	/*
		SignUp creates a new, unverified account with the given credentials.

		Parameters:
		  - ctx: context.Context
		  - email: string
		  - password: string

		Returns:
		  - *Account: The created account snapshot
		  - error: Classified provider failure
	*/
	SignUp(ctx context.Context, email, password string) (*Account, error)

	/*
		SignIn authenticates the credentials and returns the account snapshot.

		Parameters:
		  - ctx: context.Context
		  - email: string
		  - password: string

		Returns:
		  - *Account: The authenticated account snapshot
		  - error: Classified provider failure
	*/
	SignIn(ctx context.Context, email, password string) (*Account, error)

	/*
		SignOut ends the provider-side session, if any. Idempotent.

		Parameters:
		  - ctx: context.Context
	*/
	SignOut(ctx context.Context) error

	/*
		SendVerificationEmail dispatches a verification message for the account.

		Parameters:
		  - ctx: context.Context
		  - account: *Account

		Returns:
		  - error: Classified provider failure
	*/
	SendVerificationEmail(ctx context.Context, account *Account) error

	/*
		SendPasswordReset dispatches a password-reset message to the email.

		Parameters:
		  - ctx: context.Context
		  - email: string

		Returns:
		  - error: Classified provider failure
	*/
	SendPasswordReset(ctx context.Context, email string) error

	/*
		ApplyVerificationCode consumes a one-time code proving email ownership.

		Parameters:
		  - ctx: context.Context
		  - code: string

		Returns:
		  - error: Classified provider failure
	*/
	ApplyVerificationCode(ctx context.Context, code string) error

	/*
		OnAccountSnapshotChanged registers the process-wide snapshot listener.

		Exactly one listener is active per process lifetime; registering again
		replaces the previous listener.
	*/
	OnAccountSnapshotChanged(listener SnapshotListener)
}
