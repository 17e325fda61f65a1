// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

/*
Package constants provides centralized, immutable values for the entire service.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Account Lifecycle: Resend cooldown and verification-callback parameters.
  - Conversation: Export artifact names and the summary marker.

Using this package ensures magic strings and magic numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "cbt-companion-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of
	// the response. Model round-trips can be slow, so this is generous.
	DefaultWriteTimeout = 120 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	// It must exceed the model backend timeout so that a slow reply surfaces
	// as a classified backend failure, not a blunt request timeout.
	GlobalRequestTimeout = 90 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 50.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 75

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Account Lifecycle

const (
	// ResendCooldownSeconds is the cooldown applied after a successful
	// verification-email resend. Resend is unavailable until it decays to 0.
	ResendCooldownSeconds = 60

	// CooldownTickInterval is the decrement period of the resend cooldown.
	CooldownTickInterval = 1 * time.Second

	// SessionTokenIssuer is the 'iss' claim of gate session tokens.
	SessionTokenIssuer = "cbt-companion"

	// SessionTokenTTL is how long a gate session token stays valid.
	SessionTokenTTL = 12 * time.Hour

	// QueryParamMode selects verification-callback mode on app entry.
	QueryParamMode = "mode"

	// QueryParamCode carries the opaque one-time verification code.
	QueryParamCode = "oobCode"

	// ModeVerifyEmail is the QueryParamMode value for the verification callback.
	ModeVerifyEmail = "verifyEmail"
)

// # Conversation Artifacts

const (
	// TranscriptExportFilename is the fixed download name of a full-transcript export.
	TranscriptExportFilename = "cbt_conversation_history.txt"

	// SummaryExportFilename is the fixed download name of a single-summary export.
	SummaryExportFilename = "cbt_session_summary.txt"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldMessage = "message"
	FieldStatus  = "status"
)

// # Redis Prefixes (Volatile Token Taxonomy)

const (
	RedisPrefixResetToken  = "identity:reset_token:"
	RedisPrefixVerifyToken = "identity:verify_token:"
)
