// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

/*
Package authflow implements the authentication state machine that gates access
to the conversation.

Architecture:

  - State: A tagged variant describing where the user is in the account
    lifecycle. Exactly one State is active at a time.
  - Machine: Owns the State and exposes the declared transitions. Every
    mutation goes through the Machine; observers receive an immutable copy
    after each change.
  - Cooldown: The one periodic background activity — a one-second ticker
    decrementing the verification-resend cooldown, canceled automatically
    when the machine leaves the awaiting-verification state.
*/
package authflow

import (
	"github.com/ziedbenboubaker/cbt-app/internal/identity"
)

// Kind discriminates the auth state variants.
type Kind string

const (
	// KindAnonymous is the initial state: no account, no pending flow.
	KindAnonymous Kind = "anonymous"
	// KindAwaitingCredentials means a credential form is active (Mode
	// selects sign-in vs. sign-up).
	KindAwaitingCredentials Kind = "awaiting_credentials"
	// KindAwaitingVerification means the account exists but its email is
	// not yet verified. CooldownSeconds throttles the resend action.
	KindAwaitingVerification Kind = "awaiting_verification"
	// KindResettingPassword means the password-reset flow is active
	// (ResetStage tracks whether the reset email has been requested).
	KindResettingPassword Kind = "resetting_password"
	// KindAuthenticated means a verified account is signed in.
	KindAuthenticated Kind = "authenticated"
	// KindVerifyingCallback means the process was entered through a
	// verification-callback URL and the code is being applied.
	KindVerifyingCallback Kind = "verifying_callback"
	// KindVerificationSucceeded is the terminal callback result; the only
	// transition out is ReturnToLogin.
	KindVerificationSucceeded Kind = "verification_succeeded"
	// KindVerificationFailed is the terminal callback result for a rejected
	// code; the only transition out is ReturnToLogin.
	KindVerificationFailed Kind = "verification_failed"
)

// CredentialMode selects which credential form AwaitingCredentials shows.
type CredentialMode string

const (
	ModeSignIn CredentialMode = "login"
	ModeSignUp CredentialMode = "signup"
)

// ResetStage tracks progress through the password-reset flow.
type ResetStage string

const (
	// StageAwaitingInput: the email form is shown, nothing sent yet.
	StageAwaitingInput ResetStage = "awaiting_input"
	// StageRequestSent: the provider accepted the reset request.
	StageRequestSent ResetStage = "request_sent"
)

// State is the tagged auth-state variant. Only the fields relevant to the
// active Kind are populated; the rest stay at their zero values.
//
// State values handed to observers are copies: mutating one never affects
// the machine.
type State struct {
	Kind Kind `json:"kind"`

	// Mode is set when Kind == KindAwaitingCredentials.
	Mode CredentialMode `json:"mode,omitempty"`

	// Account is set for KindAwaitingVerification and KindAuthenticated.
	// It is the latest provider snapshot, refreshed on every push.
	Account *identity.Account `json:"account,omitempty"`

	// CooldownSeconds is set for KindAwaitingVerification: seconds until
	// the resend action becomes available again (0 = available now).
	CooldownSeconds int `json:"cooldown_seconds,omitempty"`

	// Stage is set when Kind == KindResettingPassword.
	Stage ResetStage `json:"stage,omitempty"`

	// Confirmation carries the user-facing confirmation text after a reset
	// request was accepted (Kind == KindResettingPassword, StageRequestSent).
	Confirmation string `json:"confirmation,omitempty"`

	// Code is set when Kind == KindVerifyingCallback.
	Code string `json:"code,omitempty"`

	// Failure carries the user-facing message for KindVerificationFailed.
	Failure string `json:"failure,omitempty"`
}

// IsTerminalCallback reports whether the state is one of the one-shot
// verification-callback results.
func (s State) IsTerminalCallback() bool {
	return s.Kind == KindVerificationSucceeded || s.Kind == KindVerificationFailed
}

// CanAcceptCredentials reports whether a credential submission (sign-in or
// sign-up) is valid from this state.
func (s State) CanAcceptCredentials() bool {
	return s.Kind == KindAnonymous || s.Kind == KindAwaitingCredentials
}
