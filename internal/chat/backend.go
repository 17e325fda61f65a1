// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

package chat

import "context"

// Session is an opaque handle to one stateful model conversation. The
// backend keeps the exchange history on its side; callers only move text in
// and out.
type Session interface {

	/*
		SendMessage forwards the user text and returns the model's reply.

		Parameters:
		  - ctx: context.Context
		  - text: string

		Returns:
		  - string: The reply text
		  - error: UPSTREAM_UNAVAILABLE or INTERNAL_ERROR, already classified
	*/
	SendMessage(ctx context.Context, text string) (string, error)

	// Close releases the handle. Idempotent.
	Close()
}

// ModelBackend creates model sessions. Implemented by the Gemini client and
// by test fakes.
type ModelBackend interface {

	/*
		CreateSession opens a session pre-seeded with the priming exchange:
		the hidden priming text as a user turn and the scripted opening reply
		as the model turn. Neither is part of the visible transcript.

		Parameters:
		  - ctx: context.Context
		  - primingText: string
		  - openingReply: string

		Returns:
		  - Session: The live session handle
		  - error: Classified backend failure
	*/
	CreateSession(ctx context.Context, primingText, openingReply string) (Session, error)
}
