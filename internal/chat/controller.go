// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ziedbenboubaker/cbt-app/internal/platform/apperr"
	"github.com/ziedbenboubaker/cbt-app/pkg/textnorm"
	"github.com/ziedbenboubaker/cbt-app/pkg/uuid"
)

// Controller owns one conversation: the ordered transcript and the model
// session behind it.
//
// Invariants:
//
//   - At most one send is in flight at a time (the pending flag).
//   - The transcript is append-only; a user message is never rolled back
//     even when the backend call that followed it failed.
//   - The pending flag is cleared on every exit path of Send.
type Controller struct {
	backend ModelBackend
	logger  *slog.Logger

	mu       sync.Mutex
	session  Session
	messages []Message
	pending  bool
}

// NewController constructs an uninitialized controller. Initialize must be
// called before the first Send.
func NewController(backend ModelBackend, logger *slog.Logger) *Controller {
	return &Controller{
		backend: backend,
		logger:  logger,
	}
}

/*
Initialize opens the model session and seeds the transcript.

Description: Called exactly once when a verified account signs in. The
priming protocol and the scripted opening reply are planted in the session's
hidden history; only the opening reply becomes a visible transcript entry.
Calling Initialize on an initialized controller is a conflict.

Parameters:
  - ctx: context.Context

Returns:
  - error: CONFLICT, or a classified backend failure
*/
func (c *Controller) Initialize(ctx context.Context) error {

	c.mu.Lock()
	if c.session != nil {
		c.mu.Unlock()
		return apperr.Conflict("Conversation is already initialized")
	}
	c.mu.Unlock()

	session, err := c.backend.CreateSession(ctx, PrimingText, OpeningMessage)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		// Lost the race to a concurrent Initialize; discard this handle.
		session.Close()
		return apperr.Conflict("Conversation is already initialized")
	}

	c.session = session
	c.messages = []Message{newMessage(RoleAssistant, OpeningMessage)}

	return nil
}

/*
Send forwards one user message and appends the assistant reply.

Description: Blank input (after trimming) and sends during an in-flight reply
are rejected locally without touching the backend. The user message is
appended optimistically before the backend call and is never rolled back. A
backend failure appends the fixed fallback apology instead of surfacing the
raw error; the error is logged server-side only.

Parameters:
  - ctx: context.Context
  - userText: string

Returns:
  - Message: The appended assistant message (real reply or fallback)
  - error: VALIDATION_ERROR, RATE_LIMITED (send in flight), or CONFLICT
*/
func (c *Controller) Send(ctx context.Context, userText string) (Message, error) {

	text := textnorm.Clean(userText)
	if text == "" {
		return Message{}, apperr.ValidationError("Message text must not be empty")
	}

	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return Message{}, apperr.Conflict("Conversation is not initialized")
	}
	if c.pending {
		c.mu.Unlock()
		return Message{}, apperr.RateLimited("A reply is still in flight")
	}

	// Optimistic append: the user message is part of the transcript from
	// this point on, success or failure.
	c.messages = append(c.messages, newMessage(RoleUser, text))
	c.pending = true
	session := c.session
	c.mu.Unlock()

	// Cleared on every exit path, including panics in the backend client.
	defer func() {
		c.mu.Lock()
		c.pending = false
		c.mu.Unlock()
	}()

	reply, err := session.SendMessage(ctx, text)
	if err != nil {
		c.logger.Error("model_reply_failed", slog.String("error", err.Error()))
		reply = FallbackMessage
	}

	assistant := newMessage(RoleAssistant, reply)

	c.mu.Lock()
	if c.session != session {
		// Sign-out released the conversation while the reply was in flight.
		c.mu.Unlock()
		return Message{}, apperr.Conflict("Conversation is no longer active")
	}
	c.messages = append(c.messages, assistant)
	c.mu.Unlock()

	return assistant, nil
}

// Messages returns a copy of the transcript in insertion order.
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	transcript := make([]Message, len(c.messages))
	copy(transcript, c.messages)
	return transcript
}

// Pending reports whether a send is currently in flight.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Export renders the current transcript as the downloadable text blob. Pure
// with respect to the transcript: exporting mutates nothing.
func (c *Controller) Export() string {
	return Export(c.Messages())
}

// Summary returns the message with the given ID if it is a session summary.
func (c *Controller) Summary(messageID string) (Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, message := range c.messages {
		if message.ID == messageID {
			if !message.IsSummary() {
				return Message{}, apperr.NotFound("Summary")
			}
			return message, nil
		}
	}

	return Message{}, apperr.NotFound("Summary")
}

// Close releases the model session. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()

	if session != nil {
		session.Close()
	}
}

func newMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
