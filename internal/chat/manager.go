// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

package chat

import (
	"context"
	"log/slog"
	"sync"
)

// Manager activates at most one conversation controller at a time: created
// lazily on first entry to the conversation view, released on sign-out.
type Manager struct {
	backend ModelBackend
	logger  *slog.Logger

	mu         sync.Mutex
	controller *Controller
}

// NewManager constructs a manager with no active conversation.
func NewManager(backend ModelBackend, logger *slog.Logger) *Manager {
	return &Manager{
		backend: backend,
		logger:  logger,
	}
}

/*
Activate returns the live controller, initializing one on first entry.

Description: Idempotent: repeated activation while a conversation is live
returns the same controller without re-initializing the model session. The
lock is not held across Initialize (a model-backend call), so a concurrent
Release never waits on the network.

Parameters:
  - ctx: context.Context

Returns:
  - *Controller: The active conversation controller
  - error: Classified backend failure on first initialization
*/
func (m *Manager) Activate(ctx context.Context) (*Controller, error) {

	m.mu.Lock()
	if m.controller != nil {
		existing := m.controller
		m.mu.Unlock()
		return existing, nil
	}
	m.mu.Unlock()

	controller := NewController(m.backend, m.logger)
	if err := controller.Initialize(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.controller != nil {
		// Lost the race to a concurrent activation; keep theirs.
		existing := m.controller
		m.mu.Unlock()
		controller.Close()
		return existing, nil
	}
	m.controller = controller
	m.mu.Unlock()

	return controller, nil
}

// Active returns the live controller, or nil when no conversation is active.
func (m *Manager) Active() *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.controller
}

// Release closes the active conversation, if any. Wired as the auth state
// machine's session releaser so sign-out always tears the session down.
func (m *Manager) Release() {
	m.mu.Lock()
	controller := m.controller
	m.controller = nil
	m.mu.Unlock()

	if controller != nil {
		controller.Close()
		m.logger.Info("conversation_session_released")
	}
}
