// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

package authflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ziedbenboubaker/cbt-app/internal/identity"
	"github.com/ziedbenboubaker/cbt-app/internal/platform/apperr"
	"github.com/ziedbenboubaker/cbt-app/internal/platform/constants"
	"github.com/ziedbenboubaker/cbt-app/internal/platform/validate"
)

// User-facing copy for the reset and verification flows. The product ships in
// Arabic; these strings are shown verbatim.
const (
	resetConfirmationMessage   = "تم إرسال رابط إعادة تعيين كلمة المرور إلى بريدك الإلكتروني."
	verificationFailureMessage = "رمز التحقق غير صالح أو منتهي الصلاحية."
)

// Observer receives a copy of the state after every transition, including
// cooldown ticks and snapshot merges.
type Observer func(State)

// Machine owns the authentication state and serializes every transition.
//
// Provider calls are made with the machine unlocked so a synchronous snapshot
// push from the provider can never deadlock against an in-progress operation;
// the completion step re-checks the state before applying its transition.
type Machine struct {
	client identity.Client
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	observers   []Observer
	cooldownGen int
	tick        time.Duration

	// release tears down the active conversation session on sign-out.
	release func()
}

// NewMachine constructs the machine in the Anonymous state and registers it
// as the provider's snapshot listener.
func NewMachine(client identity.Client, logger *slog.Logger) *Machine {
	machine := &Machine{
		client: client,
		logger: logger,
		state:  State{Kind: KindAnonymous},
		tick:   constants.CooldownTickInterval,
	}

	client.OnAccountSnapshotChanged(machine.handleSnapshot)

	return machine
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnChange registers an observer. Observers are invoked outside the machine's
// lock, in registration order, after every transition.
func (m *Machine) OnChange(observer Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, observer)
}

// SetSessionReleaser installs the hook that tears down the conversation
// session when the user signs out.
func (m *Machine) SetSessionReleaser(release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release = release
}

// # Credential Transitions

/*
SwitchMode activates the credential form for the given mode.

Description: Valid from Anonymous, AwaitingCredentials, and ResettingPassword
(abandoning the reset). Selecting the mode already active is a no-op.

Parameters:
  - mode: CredentialMode

Returns:
  - error: CONFLICT when invoked from a state without a credential form
*/
func (m *Machine) SwitchMode(mode CredentialMode) error {
	m.mu.Lock()

	switch m.state.Kind {
	case KindAnonymous, KindAwaitingCredentials, KindResettingPassword:
	default:
		m.mu.Unlock()
		return apperr.Conflict("No credential form is active")
	}

	m.setStateLocked(State{Kind: KindAwaitingCredentials, Mode: mode})
	state := m.state
	m.mu.Unlock()

	m.notify(state)
	return nil
}

/*
StartSignIn authenticates the credentials through the identity provider.

Description: Valid only from Anonymous or AwaitingCredentials. On success the
machine advances to Authenticated when the account is verified, otherwise to
AwaitingVerification with the resend immediately available. On failure the
state is unchanged and the classified error is returned; the machine never
retries.

Parameters:
  - ctx: context.Context
  - email: string
  - password: string

Returns:
  - error: VALIDATION_ERROR, CONFLICT, or a classified provider failure
*/
func (m *Machine) StartSignIn(ctx context.Context, email, password string) error {

	validator := &validate.Validator{}
	if err := validator.
		Required("email", email).
		Email("email", email).
		Required("password", password).
		Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if !m.state.CanAcceptCredentials() {
		m.mu.Unlock()
		return apperr.Conflict("Sign-in is not available from the current state")
	}
	m.mu.Unlock()

	account, err := m.client.SignIn(ctx, email, password)
	if err != nil {
		return err
	}

	m.applyAccount(account)
	return nil
}

/*
StartSignUp creates a new account and advances toward verification.

Description: The password/repeat-password equality is checked locally before
any provider round-trip. After the account is created, the verification email
is dispatched best-effort: a send failure is logged but never blocks the
transition to AwaitingVerification, where the user can request a re-send.

Parameters:
  - ctx: context.Context
  - email: string
  - password: string
  - repeatPassword: string

Returns:
  - error: VALIDATION_ERROR, CONFLICT, or a classified provider failure
*/
func (m *Machine) StartSignUp(ctx context.Context, email, password, repeatPassword string) error {

	validator := &validate.Validator{}
	if err := validator.
		Required("email", email).
		Email("email", email).
		Required("password", password).
		Equal("repeat_password", password, repeatPassword, "Passwords do not match").
		Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if !m.state.CanAcceptCredentials() {
		m.mu.Unlock()
		return apperr.Conflict("Sign-up is not available from the current state")
	}
	m.mu.Unlock()

	account, err := m.client.SignUp(ctx, email, password)
	if err != nil {
		return err
	}

	// Best-effort dispatch: the account exists either way, and blocking here
	// would strand it before the screen where a re-send is possible.
	if err := m.client.SendVerificationEmail(ctx, account); err != nil {
		m.logger.Warn("verification_email_dispatch_failed",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	m.applyAccount(account)
	return nil
}

// # Verification Transitions

/*
ResendVerification requests a fresh verification email.

Description: Valid only from AwaitingVerification and only when the cooldown
has expired. A successful send resets the cooldown to 60 seconds and starts
the one-second decrement ticker. Invocations during an active cooldown are a
silent no-op, so rapid double-submission never double-sends.

Parameters:
  - ctx: context.Context

Returns:
  - error: CONFLICT outside AwaitingVerification, or a classified send failure
*/
func (m *Machine) ResendVerification(ctx context.Context) error {

	m.mu.Lock()
	if m.state.Kind != KindAwaitingVerification {
		m.mu.Unlock()
		return apperr.Conflict("No verification is pending")
	}
	if m.state.CooldownSeconds > 0 {
		m.mu.Unlock()
		return nil
	}
	account := m.state.Account
	m.mu.Unlock()

	if err := m.client.SendVerificationEmail(ctx, account); err != nil {
		return err
	}

	m.mu.Lock()
	if m.state.Kind != KindAwaitingVerification {
		// The state moved on while the send was in flight; nothing to throttle.
		m.mu.Unlock()
		return nil
	}
	m.state.CooldownSeconds = constants.ResendCooldownSeconds
	m.cooldownGen++
	gen := m.cooldownGen
	state := m.state
	m.mu.Unlock()

	go m.runCooldown(gen)

	m.notify(state)
	return nil
}

/*
CompleteEmailVerification applies a one-time verification code.

Description: Entered through the verification-callback URL. Valid from any
state that is not already Authenticated. The machine passes through
VerifyingCallback while the code is applied, then lands on the terminal
VerificationSucceeded or VerificationFailed, from which the only exit is
ReturnToLogin.

Parameters:
  - ctx: context.Context
  - code: string

Returns:
  - error: CONFLICT when already Authenticated, or the classified code failure
*/
func (m *Machine) CompleteEmailVerification(ctx context.Context, code string) error {

	m.mu.Lock()
	if m.state.Kind == KindAuthenticated {
		m.mu.Unlock()
		return apperr.Conflict("Already signed in with a verified account")
	}
	m.setStateLocked(State{Kind: KindVerifyingCallback, Code: code})
	inFlight := m.state
	m.mu.Unlock()

	m.notify(inFlight)

	err := m.client.ApplyVerificationCode(ctx, code)

	m.mu.Lock()
	if err != nil {
		m.setStateLocked(State{Kind: KindVerificationFailed, Failure: verificationFailureMessage})
	} else {
		m.setStateLocked(State{Kind: KindVerificationSucceeded})
	}
	state := m.state
	m.mu.Unlock()

	m.notify(state)
	return err
}

/*
ReturnToLogin leaves a finished or abandoned flow and returns to Anonymous.

Description: The only exit from the terminal callback results; also abandons
an in-progress credential form or password reset. Invalid from Authenticated
(use SignOut) and from AwaitingVerification (the account is live there).
*/
func (m *Machine) ReturnToLogin() error {
	m.mu.Lock()

	switch m.state.Kind {
	case KindVerificationSucceeded, KindVerificationFailed,
		KindAwaitingCredentials, KindResettingPassword:
	default:
		m.mu.Unlock()
		return apperr.Conflict("Nothing to return from")
	}

	m.setStateLocked(State{Kind: KindAnonymous})
	state := m.state
	m.mu.Unlock()

	m.notify(state)
	return nil
}

// # Password Reset

/*
BeginPasswordReset opens the password-reset flow.

Description: Valid from Anonymous or AwaitingCredentials. Moves to
ResettingPassword awaiting the email input; nothing is sent yet.
*/
func (m *Machine) BeginPasswordReset() error {
	m.mu.Lock()

	if !m.state.CanAcceptCredentials() {
		m.mu.Unlock()
		return apperr.Conflict("Password reset is not available from the current state")
	}

	m.setStateLocked(State{Kind: KindResettingPassword, Stage: StageAwaitingInput})
	state := m.state
	m.mu.Unlock()

	m.notify(state)
	return nil
}

/*
RequestPasswordReset asks the provider to send a reset email.

Description: Valid from ResettingPassword awaiting input. On success the flow
advances to the request-sent stage carrying the confirmation copy. The machine
adds nothing to the provider's error classification, so it reveals no more
about account existence than the provider already does.

Parameters:
  - ctx: context.Context
  - email: string

Returns:
  - error: VALIDATION_ERROR, CONFLICT, or a classified provider failure
*/
func (m *Machine) RequestPasswordReset(ctx context.Context, email string) error {

	validator := &validate.Validator{}
	if err := validator.
		Required("email", email).
		Email("email", email).
		Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.state.Kind != KindResettingPassword || m.state.Stage != StageAwaitingInput {
		m.mu.Unlock()
		return apperr.Conflict("No password-reset request is awaiting input")
	}
	m.mu.Unlock()

	if err := m.client.SendPasswordReset(ctx, email); err != nil {
		return err
	}

	m.mu.Lock()
	if m.state.Kind == KindResettingPassword {
		m.setStateLocked(State{
			Kind:         KindResettingPassword,
			Stage:        StageRequestSent,
			Confirmation: resetConfirmationMessage,
		})
	}
	state := m.state
	m.mu.Unlock()

	m.notify(state)
	return nil
}

// # Sign-out

/*
SignOut ends the session and reverts to Anonymous.

Description: Valid from Authenticated and from AwaitingVerification (leaving
an unverified account behind). Releases the conversation session first so its
model handle is never orphaned, then signs out of the provider.

Parameters:
  - ctx: context.Context

Returns:
  - error: CONFLICT when no account is signed in
*/
func (m *Machine) SignOut(ctx context.Context) error {

	m.mu.Lock()
	if m.state.Kind != KindAuthenticated && m.state.Kind != KindAwaitingVerification {
		m.mu.Unlock()
		return apperr.Conflict("No account is signed in")
	}
	release := m.release
	m.mu.Unlock()

	if release != nil {
		release()
	}

	if err := m.client.SignOut(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	m.setStateLocked(State{Kind: KindAnonymous})
	state := m.state
	m.mu.Unlock()

	m.notify(state)
	return nil
}

// # Snapshot Merge

// handleSnapshot applies an externally-pushed account snapshot as a pure
// merge: verification state is provider-authoritative and may auto-advance
// the machine, but a push never discards an in-progress flow unrelated to
// verification (credential forms, password reset, callback results).
func (m *Machine) handleSnapshot(account *identity.Account) {
	m.mu.Lock()

	var changed bool

	switch {
	case account == nil:
		// External sign-out only matters when we believe a session exists.
		if m.state.Kind == KindAuthenticated || m.state.Kind == KindAwaitingVerification {
			m.setStateLocked(State{Kind: KindAnonymous})
			changed = true
		}

	case m.state.Kind == KindAwaitingVerification && m.state.Account != nil && m.state.Account.ID == account.ID:
		if account.Verified {
			// Verified elsewhere (another tab, the callback flow): advance
			// without user action.
			m.setStateLocked(State{Kind: KindAuthenticated, Account: account})
		} else {
			m.state.Account = account
		}
		changed = true

	case m.state.Kind == KindAuthenticated && m.state.Account != nil && m.state.Account.ID == account.ID:
		m.state.Account = account
		changed = true
	}

	state := m.state
	m.mu.Unlock()

	if changed {
		m.notify(state)
	}
}

// # Internals

// applyAccount lands a successful credential operation: Authenticated for a
// verified account, AwaitingVerification (resend immediately available)
// otherwise.
func (m *Machine) applyAccount(account *identity.Account) {
	m.mu.Lock()

	if account.Verified {
		m.setStateLocked(State{Kind: KindAuthenticated, Account: account})
	} else {
		m.setStateLocked(State{Kind: KindAwaitingVerification, Account: account, CooldownSeconds: 0})
	}
	state := m.state
	m.mu.Unlock()

	m.notify(state)
}

// setStateLocked replaces the state and invalidates any running cooldown
// ticker when the machine leaves AwaitingVerification. Callers must hold mu.
func (m *Machine) setStateLocked(next State) {
	if m.state.Kind == KindAwaitingVerification && next.Kind != KindAwaitingVerification {
		m.cooldownGen++
	}
	m.state = next
}

// runCooldown decrements CooldownSeconds once per second until it reaches
// zero. The generation check stops a stale ticker the moment the machine has
// left AwaitingVerification, so an expired flow can never mutate later state.
func (m *Machine) runCooldown(gen int) {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		if m.state.Kind != KindAwaitingVerification || m.cooldownGen != gen {
			m.mu.Unlock()
			return
		}

		m.state.CooldownSeconds--
		done := m.state.CooldownSeconds <= 0
		if done {
			m.state.CooldownSeconds = 0
		}
		state := m.state
		m.mu.Unlock()

		m.notify(state)

		if done {
			return
		}
	}
}

// notify delivers a state copy to every observer, outside the lock.
func (m *Machine) notify(state State) {
	m.mu.Lock()
	observers := make([]Observer, len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	for _, observer := range observers {
		observer(state)
	}
}
