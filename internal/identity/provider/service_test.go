// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

package provider

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziedbenboubaker/cbt-app/internal/identity"
	"github.com/ziedbenboubaker/cbt-app/internal/platform/apperr"
	"github.com/ziedbenboubaker/cbt-app/internal/platform/sec"
)

// # Test Fakes

type memoryAccountRepo struct {
	mu       sync.Mutex
	byEmail  map[string]*AccountRecord
	failWith error
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{byEmail: make(map[string]*AccountRecord)}
}

func (r *memoryAccountRepo) Create(_ context.Context, record *AccountRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	if _, ok := r.byEmail[record.Email]; ok {
		return apperr.AlreadyExists("This email is already registered")
	}
	record.CreatedAt = time.Now()
	record.UpdatedAt = record.CreatedAt
	r.byEmail[record.Email] = record
	return nil
}

func (r *memoryAccountRepo) FindByEmail(_ context.Context, email string) (*AccountRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	record, ok := r.byEmail[email]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	return record, nil
}

func (r *memoryAccountRepo) FindByID(_ context.Context, id string) (*AccountRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.byEmail {
		if record.ID == id {
			return record, nil
		}
	}
	return nil, apperr.NotFound("Account")
}

func (r *memoryAccountRepo) MarkVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.byEmail {
		if record.ID == id {
			record.Verified = true
			return nil
		}
	}
	return apperr.NotFound("Account")
}

func (r *memoryAccountRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.byEmail {
		if record.ID == id {
			record.PasswordHash = passwordHash
			return nil
		}
	}
	return apperr.NotFound("Account")
}

type memoryCodeRepo struct {
	mu    sync.Mutex
	codes map[string]string
}

func newMemoryCodeRepo() *memoryCodeRepo {
	return &memoryCodeRepo{codes: make(map[string]string)}
}

func (r *memoryCodeRepo) Set(_ context.Context, codeHash, accountID string, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[codeHash] = accountID
	return nil
}

func (r *memoryCodeRepo) Get(_ context.Context, codeHash string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	accountID, ok := r.codes[codeHash]
	if !ok {
		return "", apperr.CodeInvalidOrExpired("The code is invalid or has expired")
	}
	return accountID, nil
}

func (r *memoryCodeRepo) Delete(_ context.Context, codeHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codes, codeHash)
	return nil
}

type recordingMailer struct {
	mu       sync.Mutex
	sent     []sentMail
	failWith error
}

type sentMail struct {
	to      string
	subject string
	body    string
}

func (m *recordingMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *recordingMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

// # Harness

type providerHarness struct {
	service  *Service
	accounts *memoryAccountRepo
	verify   *memoryCodeRepo
	reset    *memoryCodeRepo
	mailer   *recordingMailer
}

func newProviderHarness(t *testing.T) *providerHarness {
	t.Helper()

	h := &providerHarness{
		accounts: newMemoryAccountRepo(),
		verify:   newMemoryCodeRepo(),
		reset:    newMemoryCodeRepo(),
		mailer:   &recordingMailer{},
	}
	h.service = NewService(h.accounts, h.verify, h.reset, h.mailer, "https://app.example", slog.New(slog.NewJSONHandler(io.Discard, nil)))
	t.Cleanup(h.service.Close)

	return h
}

// waitSnapshots captures every snapshot push into a channel for assertion.
func (h *providerHarness) captureSnapshots() <-chan *identity.Account {
	pushed := make(chan *identity.Account, snapshotBuffer)
	h.service.OnAccountSnapshotChanged(func(account *identity.Account) {
		pushed <- account
	})
	return pushed
}

func receiveSnapshot(t *testing.T, pushed <-chan *identity.Account) *identity.Account {
	t.Helper()
	select {
	case snapshot := <-pushed:
		return snapshot
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot push")
		return nil
	}
}

// # Tests

func TestService_SignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("creates unverified account and pushes snapshot", func(t *testing.T) {
		h := newProviderHarness(t)
		pushed := h.captureSnapshots()

		account, err := h.service.SignUp(ctx, "sara@example.com", "correct horse battery")
		require.NoError(t, err)

		assert.Equal(t, "sara@example.com", account.Email)
		assert.False(t, account.Verified)
		assert.NotEmpty(t, account.ID)

		snapshot := receiveSnapshot(t, pushed)
		require.NotNil(t, snapshot)
		assert.Equal(t, account.ID, snapshot.ID)
	})

	t.Run("rejects weak password without touching storage", func(t *testing.T) {
		h := newProviderHarness(t)

		_, err := h.service.SignUp(ctx, "sara@example.com", "short")
		assert.Equal(t, "VALIDATION_ERROR", apperr.CodeOf(err))
		assert.Empty(t, h.accounts.byEmail)
	})

	t.Run("counts password length in characters, not bytes", func(t *testing.T) {
		h := newProviderHarness(t)

		// Four Arabic letters encode to eight bytes; still too weak.
		_, err := h.service.SignUp(ctx, "sara@example.com", "كلمه")
		assert.Equal(t, "VALIDATION_ERROR", apperr.CodeOf(err))
		assert.Empty(t, h.accounts.byEmail)

		// Eight Arabic letters meet the threshold.
		_, err = h.service.SignUp(ctx, "sara@example.com", "كلمةالسر")
		assert.NoError(t, err)
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		h := newProviderHarness(t)

		_, err := h.service.SignUp(ctx, "sara@example.com", "correct horse battery")
		require.NoError(t, err)

		_, err = h.service.SignUp(ctx, "sara@example.com", "another password 42")
		assert.Equal(t, "ALREADY_EXISTS", apperr.CodeOf(err))
	})
}

func TestService_SignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts valid credentials", func(t *testing.T) {
		h := newProviderHarness(t)

		created, err := h.service.SignUp(ctx, "sara@example.com", "correct horse battery")
		require.NoError(t, err)

		account, err := h.service.SignIn(ctx, "sara@example.com", "correct horse battery")
		require.NoError(t, err)
		assert.Equal(t, created.ID, account.ID)
	})

	t.Run("rejects wrong password and unknown email identically", func(t *testing.T) {
		h := newProviderHarness(t)

		_, err := h.service.SignUp(ctx, "sara@example.com", "correct horse battery")
		require.NoError(t, err)

		_, wrongPass := h.service.SignIn(ctx, "sara@example.com", "wrong password 42")
		_, unknownEmail := h.service.SignIn(ctx, "nobody@example.com", "correct horse battery")

		assert.Equal(t, "CREDENTIAL_REJECTED", apperr.CodeOf(wrongPass))
		assert.Equal(t, "CREDENTIAL_REJECTED", apperr.CodeOf(unknownEmail))
		assert.Equal(t, wrongPass.Error(), unknownEmail.Error())
	})
}

func TestService_SignOut(t *testing.T) {
	ctx := context.Background()
	h := newProviderHarness(t)
	pushed := h.captureSnapshots()

	_, err := h.service.SignUp(ctx, "sara@example.com", "correct horse battery")
	require.NoError(t, err)
	require.NotNil(t, receiveSnapshot(t, pushed))

	require.NoError(t, h.service.SignOut(ctx))
	assert.Nil(t, receiveSnapshot(t, pushed))

	// Idempotent: a second sign-out pushes nil again without error.
	require.NoError(t, h.service.SignOut(ctx))
	assert.Nil(t, receiveSnapshot(t, pushed))
}

func TestService_SendVerificationEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("mails a callback link carrying the code", func(t *testing.T) {
		h := newProviderHarness(t)

		account, err := h.service.SignUp(ctx, "sara@example.com", "correct horse battery")
		require.NoError(t, err)

		require.NoError(t, h.service.SendVerificationEmail(ctx, account))

		mail := h.mailer.last()
		assert.Equal(t, "sara@example.com", mail.to)
		assert.Contains(t, mail.body, "https://app.example/?mode=verifyEmail&oobCode=")

		// Only the hash is stored; the raw code lives in the email alone.
		code := extractCode(t, mail.body)
		_, err = h.verify.Get(ctx, sec.HashToken(code))
		assert.NoError(t, err)
		_, err = h.verify.Get(ctx, code)
		assert.Error(t, err)
	})

	t.Run("classifies mailer failure as upstream", func(t *testing.T) {
		h := newProviderHarness(t)
		h.mailer.failWith = assert.AnError

		account, err := h.service.SignUp(ctx, "sara@example.com", "correct horse battery")
		require.NoError(t, err)

		err = h.service.SendVerificationEmail(ctx, account)
		assert.Equal(t, "UPSTREAM_UNAVAILABLE", apperr.CodeOf(err))
	})
}

func TestService_SendPasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("mails a reset link for a known account", func(t *testing.T) {
		h := newProviderHarness(t)

		_, err := h.service.SignUp(ctx, "sara@example.com", "correct horse battery")
		require.NoError(t, err)

		require.NoError(t, h.service.SendPasswordReset(ctx, "sara@example.com"))
		assert.Contains(t, h.mailer.last().body, "mode=resetPassword")
	})

	t.Run("reports unknown email as not found", func(t *testing.T) {
		h := newProviderHarness(t)

		err := h.service.SendPasswordReset(ctx, "nobody@example.com")
		assert.Equal(t, "NOT_FOUND", apperr.CodeOf(err))
	})
}

func TestService_ApplyVerificationCode(t *testing.T) {
	ctx := context.Background()

	t.Run("marks verified, consumes the code, pushes refreshed snapshot", func(t *testing.T) {
		h := newProviderHarness(t)
		pushed := h.captureSnapshots()

		account, err := h.service.SignUp(ctx, "sara@example.com", "correct horse battery")
		require.NoError(t, err)
		require.NoError(t, h.service.SendVerificationEmail(ctx, account))

		signUpSnapshot := receiveSnapshot(t, pushed)
		require.NotNil(t, signUpSnapshot)
		require.False(t, signUpSnapshot.Verified)

		code := extractCode(t, h.mailer.last().body)
		require.NoError(t, h.service.ApplyVerificationCode(ctx, code))

		snapshot := receiveSnapshot(t, pushed)
		require.NotNil(t, snapshot)
		assert.Equal(t, account.ID, snapshot.ID)
		assert.True(t, snapshot.Verified)

		// One-time: replaying the same code is rejected.
		err = h.service.ApplyVerificationCode(ctx, code)
		assert.Equal(t, "CODE_INVALID_OR_EXPIRED", apperr.CodeOf(err))
	})

	t.Run("rejects an unknown code", func(t *testing.T) {
		h := newProviderHarness(t)

		err := h.service.ApplyVerificationCode(ctx, "never-issued")
		assert.Equal(t, "CODE_INVALID_OR_EXPIRED", apperr.CodeOf(err))
	})
}

// extractCode pulls the oobCode value out of an emailed link.
func extractCode(t *testing.T, body string) string {
	t.Helper()
	_, after, found := strings.Cut(body, "oobCode=")
	require.True(t, found, "email body carries no code")
	code, _, _ := strings.Cut(after, "\n")
	return strings.TrimSpace(code)
}
