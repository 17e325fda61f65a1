// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

package provider

import "time"

// # Account Lifecycle Constraints

const (
	// MinPasswordLength is the provider-side weak-password threshold.
	MinPasswordLength = 8

	// VerificationCodeTTL is the duration an email verification code remains valid.
	// Long-lived (24 hours) as users might not check email immediately.
	VerificationCodeTTL = 24 * time.Hour

	// VerificationCodeLength is the byte length of the random verification code.
	VerificationCodeLength = 32

	// ResetCodeTTL is the duration a password reset code remains valid.
	// Short-lived (1 hour) for security.
	ResetCodeTTL = 1 * time.Hour

	// ResetCodeLength is the byte length of the random password reset code.
	ResetCodeLength = 32
)
