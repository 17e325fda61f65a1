// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

/*
Package gate routes between the auth flow and the conversation.

Architecture:

  - Select: A pure function from (auth state, URL query) to a view selection.
    It has no side effects and is safe to re-evaluate at any time.
  - Handler: The HTTP delivery layer. It maps endpoints onto state-machine
    transitions and conversation operations, and issues the session token
    that carries caller continuity once an account is authenticated.
*/
package gate

import (
	"net/url"

	"github.com/ziedbenboubaker/cbt-app/internal/authflow"
	"github.com/ziedbenboubaker/cbt-app/internal/platform/apperr"
	"github.com/ziedbenboubaker/cbt-app/internal/platform/constants"
)

// View identifies which flow the client should render.
type View string

const (
	// ViewVerifyCallback: the one-shot verification-callback flow. Selected
	// whenever the URL carries callback mode, regardless of auth state, and
	// kept until the flow resolves and the user navigates back.
	ViewVerifyCallback View = "verify_callback"
	// ViewConversation: the gated conversation, verified accounts only.
	ViewConversation View = "conversation"
	// ViewSignIn / ViewSignUp: the credential forms.
	ViewSignIn View = "sign_in"
	ViewSignUp View = "sign_up"
	// ViewAwaitVerification: the "check your inbox" screen with the resend
	// action.
	ViewAwaitVerification View = "await_verification"
	// ViewPasswordReset: the password-reset flow, both stages.
	ViewPasswordReset View = "password_reset"
)

// ErrMissingCode is returned when the URL signals callback mode but carries
// no code. This is an explicit error state, never a silent fallback.
var ErrMissingCode = apperr.ValidationError("Verification code is missing", apperr.FieldError{
	Field:   constants.QueryParamCode,
	Message: "Required in verification-callback mode",
})

// IsCallback reports whether the query signals verification-callback mode.
func IsCallback(query url.Values) bool {
	return query.Get(constants.QueryParamMode) == constants.ModeVerifyEmail
}

/*
Select chooses the view for the given auth state and URL query.

Description: Pure and idempotent: the same inputs always yield the same
selection, and evaluation never mutates anything. Callback mode wins over
every auth state; otherwise the selection follows the state variant.

Parameters:
  - state: authflow.State
  - query: url.Values

Returns:
  - View: The selected view
  - error: ErrMissingCode when callback mode carries no code
*/
func Select(state authflow.State, query url.Values) (View, error) {

	if IsCallback(query) {
		if query.Get(constants.QueryParamCode) == "" {
			return ViewVerifyCallback, ErrMissingCode
		}
		return ViewVerifyCallback, nil
	}

	switch state.Kind {
	case authflow.KindAuthenticated:
		return ViewConversation, nil

	case authflow.KindAwaitingVerification:
		return ViewAwaitVerification, nil

	case authflow.KindResettingPassword:
		return ViewPasswordReset, nil

	case authflow.KindAwaitingCredentials:
		if state.Mode == authflow.ModeSignUp {
			return ViewSignUp, nil
		}
		return ViewSignIn, nil

	case authflow.KindVerifyingCallback,
		authflow.KindVerificationSucceeded,
		authflow.KindVerificationFailed:
		// The callback flow stays on screen until ReturnToLogin resolves it,
		// even when the query no longer carries the callback marker.
		return ViewVerifyCallback, nil

	default:
		return ViewSignIn, nil
	}
}
