// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

/*
Package provider implements the production identity provider.

It backs the [identity.Client] contract with PostgreSQL (accounts), Redis
(one-time codes), bcrypt password hashing, and an SMTP relay for lifecycle
emails.

Architecture:

  - Service: Orchestrates account operations and classifies every failure
    into the closed error taxonomy before it escapes.
  - Repositories: Abstracted interfaces for Postgres (accounts) and Redis (codes).
  - Snapshots: A single dispatcher goroutine serializes account-snapshot
    pushes to the one process-wide listener, preserving emission order.
*/
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"unicode/utf8"

	"github.com/ziedbenboubaker/cbt-app/internal/identity"
	"github.com/ziedbenboubaker/cbt-app/internal/platform/apperr"
	"github.com/ziedbenboubaker/cbt-app/internal/platform/sec"
	"github.com/ziedbenboubaker/cbt-app/pkg/uuid"
)

// snapshotBuffer bounds the dispatch queue. Pushes are rare (sign-in,
// sign-out, verification flip), so a small buffer never fills in practice.
const snapshotBuffer = 16

// Service implements [identity.Client] against Postgres, Redis, and SMTP.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, sign-up,
// or sign-in logic must be reviewed carefully.
type Service struct {
	accounts      AccountRepository
	verifyCodes   CodeRepository
	resetCodes    CodeRepository
	mailer        Mailer
	verifyBaseURL string
	logger        *slog.Logger

	mu       sync.Mutex
	current  *identity.Account
	listener identity.SnapshotListener

	snapshots chan *identity.Account
	done      chan struct{}
}

// NewService constructs the provider with its dependencies and starts the
// snapshot dispatcher.
func NewService(
	accounts AccountRepository,
	verifyCodes CodeRepository,
	resetCodes CodeRepository,
	mailer Mailer,
	verifyBaseURL string,
	logger *slog.Logger,
) *Service {
	service := &Service{
		accounts:      accounts,
		verifyCodes:   verifyCodes,
		resetCodes:    resetCodes,
		mailer:        mailer,
		verifyBaseURL: verifyBaseURL,
		logger:        logger,
		snapshots:     make(chan *identity.Account, snapshotBuffer),
		done:          make(chan struct{}),
	}

	go service.dispatchSnapshots()

	return service
}

// Close stops the snapshot dispatcher. Pending pushes are dropped.
func (service *Service) Close() {
	close(service.done)
}

// # Credential Operations

/*
SignUp creates a new, unverified account.

Description: Checks the weak-password threshold, hashes the password, and
persists the account. A successful sign-up also signs the new account in
(snapshot push), mirroring the provider convention the UI flow expects.

Parameters:
  - ctx: context.Context
  - email: string
  - password: string

Returns:
  - *identity.Account: Created account snapshot
  - error: ALREADY_EXISTS, VALIDATION_ERROR, or connectivity failures
*/
func (service *Service) SignUp(ctx context.Context, email, password string) (*identity.Account, error) {

	// Provider-side weak-password rejection. Counted in runes, not bytes:
	// Arabic letters are multibyte and the threshold promises characters.
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, apperr.ValidationError("Password is too weak", apperr.FieldError{
			Field:   "password",
			Message: fmt.Sprintf("Minimum %d characters", MinPasswordLength),
		})
	}

	// Fast duplicate check. The unique constraint on email remains the
	// authority; this only produces a friendlier error without a write.
	if _, err := service.accounts.FindByEmail(ctx, email); err == nil {
		return nil, apperr.AlreadyExists("This email is already registered")
	}

	hashedPassword, err := sec.HashPassword(password)
	if err != nil {
		return nil, apperr.Unknown(err)
	}

	record := &AccountRecord{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hashedPassword,
		Verified:     false,
	}

	if err := service.accounts.Create(ctx, record); err != nil {
		return nil, service.classify(err)
	}

	account := snapshotOf(record)
	service.setCurrent(account)

	return account, nil
}

/*
SignIn authenticates the credentials.

Description: Looks up the account and performs a constant-time password
comparison. Unknown email and wrong password produce the same error to
prevent account enumeration.

Parameters:
  - ctx: context.Context
  - email: string
  - password: string

Returns:
  - *identity.Account: Authenticated account snapshot
  - error: CREDENTIAL_REJECTED or connectivity failures
*/
func (service *Service) SignIn(ctx context.Context, email, password string) (*identity.Account, error) {

	record, err := service.accounts.FindByEmail(ctx, email)
	if err != nil {
		if ae := apperr.As(err); ae != nil && ae.Code == "NOT_FOUND" {
			return nil, apperr.CredentialRejected("Invalid email or password")
		}
		return nil, service.classify(err)
	}

	if !sec.CheckPasswordHash(password, record.PasswordHash) {
		return nil, apperr.CredentialRejected("Invalid email or password")
	}

	account := snapshotOf(record)
	service.setCurrent(account)

	return account, nil
}

/*
SignOut ends the provider-side session. Idempotent.
*/
func (service *Service) SignOut(ctx context.Context) error {
	service.setCurrent(nil)
	return nil
}

// # Lifecycle Emails

/*
SendVerificationEmail dispatches a verification message for the account.

Description: Generates a one-time code, stores its hash with a 24h TTL, and
mails the callback link. The code itself exists only in the email.

Parameters:
  - ctx: context.Context
  - account: *identity.Account

Returns:
  - error: Classified storage or dispatch failures
*/
func (service *Service) SendVerificationEmail(ctx context.Context, account *identity.Account) error {

	code, err := sec.GenerateSecureToken(VerificationCodeLength)
	if err != nil {
		return apperr.Unknown(err)
	}

	if err := service.verifyCodes.Set(ctx, sec.HashToken(code), account.ID, VerificationCodeTTL); err != nil {
		return service.classify(err)
	}

	link := fmt.Sprintf("%s/?mode=verifyEmail&oobCode=%s", service.verifyBaseURL, code)
	body := "مرحباً،\n\nلتأكيد بريدك الإلكتروني، افتح الرابط التالي:\n" + link +
		"\n\nإذا لم تقم بإنشاء هذا الحساب، تجاهل هذه الرسالة."

	if err := service.mailer.Send(account.Email, "تأكيد البريد الإلكتروني", body); err != nil {
		return apperr.Network(err)
	}

	return nil
}

/*
SendPasswordReset dispatches a password-reset message to the email.

Parameters:
  - ctx: context.Context
  - email: string

Returns:
  - error: NOT_FOUND if no such account, or classified failures
*/
func (service *Service) SendPasswordReset(ctx context.Context, email string) error {

	record, err := service.accounts.FindByEmail(ctx, email)
	if err != nil {
		return service.classify(err)
	}

	code, err := sec.GenerateSecureToken(ResetCodeLength)
	if err != nil {
		return apperr.Unknown(err)
	}

	if err := service.resetCodes.Set(ctx, sec.HashToken(code), record.ID, ResetCodeTTL); err != nil {
		return service.classify(err)
	}

	link := fmt.Sprintf("%s/?mode=resetPassword&oobCode=%s", service.verifyBaseURL, code)
	body := "مرحباً،\n\nلإعادة تعيين كلمة المرور، افتح الرابط التالي:\n" + link +
		"\n\nصلاحية الرابط ساعة واحدة."

	if err := service.mailer.Send(record.Email, "إعادة تعيين كلمة المرور", body); err != nil {
		return apperr.Network(err)
	}

	return nil
}

// # Verification

/*
ApplyVerificationCode consumes a one-time code proving email ownership.

Description: Resolves the code, flips the account's verified flag, and — when
the verified account is the currently signed-in one — pushes a refreshed
snapshot so observers auto-advance without user action.

Parameters:
  - ctx: context.Context
  - code: string

Returns:
  - error: CODE_INVALID_OR_EXPIRED or classified failures
*/
func (service *Service) ApplyVerificationCode(ctx context.Context, code string) error {

	codeHash := sec.HashToken(code)

	accountID, err := service.verifyCodes.Get(ctx, codeHash)
	if err != nil {
		return service.classify(err)
	}

	if err := service.accounts.MarkVerified(ctx, accountID); err != nil {
		return service.classify(err)
	}

	// Cleanup of the used code is best-effort: the account is verified
	// either way, and the TTL bounds any leftover.
	_ = service.verifyCodes.Delete(ctx, codeHash)

	// Push the authoritative flip to the listener if this account is the
	// one currently signed in.
	service.mu.Lock()
	isCurrent := service.current != nil && service.current.ID == accountID
	service.mu.Unlock()

	if isCurrent {
		record, err := service.accounts.FindByID(ctx, accountID)
		if err == nil {
			service.setCurrent(snapshotOf(record))
		}
	}

	return nil
}

// # Snapshot Listener

/*
OnAccountSnapshotChanged registers the process-wide snapshot listener.
Registering again replaces the previous listener.
*/
func (service *Service) OnAccountSnapshotChanged(listener identity.SnapshotListener) {
	service.mu.Lock()
	defer service.mu.Unlock()
	service.listener = listener
}

// setCurrent replaces the current snapshot and queues a push.
func (service *Service) setCurrent(account *identity.Account) {
	service.mu.Lock()
	service.current = account
	service.mu.Unlock()

	select {
	case service.snapshots <- account:
	case <-service.done:
	}
}

// dispatchSnapshots delivers queued snapshots to the listener, one at a time
// and in emission order. Running on a single goroutine keeps listener calls
// serialized, so the listener never observes interleaved pushes.
func (service *Service) dispatchSnapshots() {
	for {
		select {
		case snapshot := <-service.snapshots:
			service.mu.Lock()
			listener := service.listener
			service.mu.Unlock()

			if listener != nil {
				listener(snapshot)
			}
		case <-service.done:
			return
		}
	}
}

// # Helpers

// snapshotOf converts a stored record into the read-only account snapshot.
func snapshotOf(record *AccountRecord) *identity.Account {
	return &identity.Account{
		ID:        record.ID,
		Email:     record.Email,
		Verified:  record.Verified,
		CreatedAt: record.CreatedAt,
	}
}

// classify maps an arbitrary failure to exactly one taxonomy kind.
// Already-classified errors pass through untouched.
func (service *Service) classify(err error) error {
	if apperr.IsAppError(err) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Network(err)
	}

	return apperr.Unknown(err)
}
