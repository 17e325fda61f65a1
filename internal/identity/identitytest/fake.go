// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

/*
Package identitytest provides a scriptable in-memory [identity.Client] for
tests of the auth state machine and the session gate.

The fake is synchronous: snapshot pushes run inline on the calling goroutine,
which keeps test assertions deterministic without sleeps or channels.
*/
package identitytest

import (
	"context"
	"sync"

	"github.com/ziedbenboubaker/cbt-app/internal/identity"
	"github.com/ziedbenboubaker/cbt-app/internal/platform/apperr"
	"github.com/ziedbenboubaker/cbt-app/pkg/uuid"
)

// FakeClient is an in-memory [identity.Client]. The zero value is not usable;
// construct with [NewFakeClient].
//
// Error injection: set the per-operation Err fields to force the next call of
// that operation to fail with exactly that error, mimicking an
// already-classified provider failure.
type FakeClient struct {
	mu       sync.Mutex
	accounts map[string]*fakeAccount // keyed by email
	codes    map[string]string       // verification code -> account ID
	current  *identity.Account
	listener identity.SnapshotListener

	// Call log for assertions.
	VerificationSends int
	ResetSends        []string

	// Scripted failures, consumed per call site.
	SignUpErr     error
	SignInErr     error
	SendVerifyErr error
	SendResetErr  error
	ApplyCodeErr  error
}

type fakeAccount struct {
	id       string
	password string
	verified bool
}

// NewFakeClient returns an empty fake provider.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		accounts: make(map[string]*fakeAccount),
		codes:    make(map[string]string),
	}
}

// # Client Implementation

func (f *FakeClient) SignUp(_ context.Context, email, password string) (*identity.Account, error) {
	f.mu.Lock()
	if f.SignUpErr != nil {
		err := f.SignUpErr
		f.mu.Unlock()
		return nil, err
	}
	if _, ok := f.accounts[email]; ok {
		f.mu.Unlock()
		return nil, apperr.AlreadyExists("This email is already registered")
	}

	stored := &fakeAccount{id: uuid.New(), password: password}
	f.accounts[email] = stored
	account := &identity.Account{ID: stored.id, Email: email}
	f.current = account
	f.mu.Unlock()

	f.push(account)
	return account, nil
}

func (f *FakeClient) SignIn(_ context.Context, email, password string) (*identity.Account, error) {
	f.mu.Lock()
	if f.SignInErr != nil {
		err := f.SignInErr
		f.mu.Unlock()
		return nil, err
	}
	stored, ok := f.accounts[email]
	if !ok || stored.password != password {
		f.mu.Unlock()
		return nil, apperr.CredentialRejected("Invalid email or password")
	}

	account := &identity.Account{ID: stored.id, Email: email, Verified: stored.verified}
	f.current = account
	f.mu.Unlock()

	f.push(account)
	return account, nil
}

func (f *FakeClient) SignOut(_ context.Context) error {
	f.mu.Lock()
	f.current = nil
	f.mu.Unlock()

	f.push(nil)
	return nil
}

func (f *FakeClient) SendVerificationEmail(_ context.Context, account *identity.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendVerifyErr != nil {
		return f.SendVerifyErr
	}
	f.VerificationSends++
	f.codes["code-"+account.ID] = account.ID
	return nil
}

func (f *FakeClient) SendPasswordReset(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendResetErr != nil {
		return f.SendResetErr
	}
	if _, ok := f.accounts[email]; !ok {
		return apperr.NotFound("Account")
	}
	f.ResetSends = append(f.ResetSends, email)
	return nil
}

func (f *FakeClient) ApplyVerificationCode(_ context.Context, code string) error {
	f.mu.Lock()
	if f.ApplyCodeErr != nil {
		err := f.ApplyCodeErr
		f.mu.Unlock()
		return err
	}
	accountID, ok := f.codes[code]
	if !ok {
		f.mu.Unlock()
		return apperr.CodeInvalidOrExpired("The code is invalid or has expired")
	}
	delete(f.codes, code)

	var refreshed *identity.Account
	for email, stored := range f.accounts {
		if stored.id == accountID {
			stored.verified = true
			if f.current != nil && f.current.ID == accountID {
				refreshed = &identity.Account{ID: stored.id, Email: email, Verified: true}
				f.current = refreshed
			}
		}
	}
	f.mu.Unlock()

	if refreshed != nil {
		f.push(refreshed)
	}
	return nil
}

func (f *FakeClient) OnAccountSnapshotChanged(listener identity.SnapshotListener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listener = listener
}

// # Test Controls

// CodeFor returns the verification code the fake issued for the account, in
// place of reading a real email.
func (f *FakeClient) CodeFor(account *identity.Account) string {
	return "code-" + account.ID
}

// SeedAccount registers a pre-existing account without a snapshot push, for
// scenarios that start from a populated provider.
func (f *FakeClient) SeedAccount(email, password string, verified bool) *identity.Account {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored := &fakeAccount{id: uuid.New(), password: password, verified: verified}
	f.accounts[email] = stored
	return &identity.Account{ID: stored.id, Email: email, Verified: verified}
}

// PushSnapshot delivers an externally-triggered snapshot, simulating a change
// made outside this process (e.g. verification completed elsewhere).
func (f *FakeClient) PushSnapshot(account *identity.Account) {
	f.mu.Lock()
	f.current = account
	f.mu.Unlock()
	f.push(account)
}

// push delivers to the listener outside the fake's lock.
func (f *FakeClient) push(account *identity.Account) {
	f.mu.Lock()
	listener := f.listener
	f.mu.Unlock()

	if listener != nil {
		listener(account)
	}
}
