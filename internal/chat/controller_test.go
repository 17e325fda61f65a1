// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

package chat

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziedbenboubaker/cbt-app/internal/platform/apperr"
)

const (
	timeout      = 2 * time.Second
	pollInterval = 5 * time.Millisecond
)

// # Test Fakes

type fakeSession struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	sent    []string
	closed  bool

	// block, when non-nil, holds SendMessage until released. Used to keep a
	// send in flight while the test probes the pending flag.
	block chan struct{}
}

func (s *fakeSession) SendMessage(_ context.Context, text string) (string, error) {
	if s.block != nil {
		<-s.block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)

	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return "", err
		}
	}

	reply := "حسناً"
	if len(s.replies) > 0 {
		reply = s.replies[0]
		s.replies = s.replies[1:]
	}
	return reply, nil
}

func (s *fakeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

type fakeBackend struct {
	session    *fakeSession
	createErr  error
	primed     string
	opening    string
	createdCnt int

	// createStarted/createBlock, when non-nil, signal and hold CreateSession
	// so a test can overlap initialization with other manager calls.
	createStarted chan struct{}
	createBlock   chan struct{}
}

func (b *fakeBackend) CreateSession(_ context.Context, primingText, openingReply string) (Session, error) {
	if b.createStarted != nil {
		b.createStarted <- struct{}{}
	}
	if b.createBlock != nil {
		<-b.createBlock
	}
	if b.createErr != nil {
		return nil, b.createErr
	}
	b.primed = primingText
	b.opening = openingReply
	b.createdCnt++
	if b.session == nil {
		b.session = &fakeSession{}
	}
	return b.session, nil
}

func newTestController(t *testing.T, backend *fakeBackend) *Controller {
	t.Helper()

	controller := NewController(backend, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	require.NoError(t, controller.Initialize(context.Background()))
	return controller
}

// # Tests

func TestController_Initialize(t *testing.T) {
	t.Run("seeds the transcript with the opening message", func(t *testing.T) {
		backend := &fakeBackend{}
		controller := newTestController(t, backend)

		transcript := controller.Messages()
		require.Len(t, transcript, 1)
		assert.Equal(t, RoleAssistant, transcript[0].Role)
		assert.Equal(t, OpeningMessage, transcript[0].Content)

		// The priming exchange goes to the backend, not the transcript.
		assert.Equal(t, PrimingText, backend.primed)
		assert.Equal(t, OpeningMessage, backend.opening)
	})

	t.Run("second initialize is a conflict", func(t *testing.T) {
		backend := &fakeBackend{}
		controller := newTestController(t, backend)

		err := controller.Initialize(context.Background())
		assert.Equal(t, "CONFLICT", apperr.CodeOf(err))
		assert.Equal(t, 1, backend.createdCnt)
	})

	t.Run("backend failure propagates classified", func(t *testing.T) {
		backend := &fakeBackend{createErr: apperr.Network(assert.AnError)}
		controller := NewController(backend, slog.New(slog.NewJSONHandler(io.Discard, nil)))

		err := controller.Initialize(context.Background())
		assert.Equal(t, "UPSTREAM_UNAVAILABLE", apperr.CodeOf(err))
	})
}

func TestController_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("appends user then assistant on success", func(t *testing.T) {
		backend := &fakeBackend{session: &fakeSession{replies: []string{"أهلاً بك. ما الموقف الذي أثار هذا الشعور؟"}}}
		controller := newTestController(t, backend)

		reply, err := controller.Send(ctx, "أشعر بالقلق")
		require.NoError(t, err)
		assert.Equal(t, RoleAssistant, reply.Role)

		transcript := controller.Messages()
		require.Len(t, transcript, 3) // seed + user + assistant
		assert.Equal(t, RoleUser, transcript[1].Role)
		assert.Equal(t, "أشعر بالقلق", transcript[1].Content)
		assert.Equal(t, "أهلاً بك. ما الموقف الذي أثار هذا الشعور؟", transcript[2].Content)
		assert.False(t, controller.Pending())
	})

	t.Run("rejects blank input without touching the backend", func(t *testing.T) {
		backend := &fakeBackend{}
		controller := newTestController(t, backend)

		_, err := controller.Send(ctx, "   \n\t ")
		assert.Equal(t, "VALIDATION_ERROR", apperr.CodeOf(err))
		assert.Len(t, controller.Messages(), 1)
		assert.Empty(t, backend.session.sent)
	})

	t.Run("rejects a send while a reply is in flight", func(t *testing.T) {
		session := &fakeSession{block: make(chan struct{})}
		backend := &fakeBackend{session: session}
		controller := newTestController(t, backend)

		firstDone := make(chan struct{})
		go func() {
			defer close(firstDone)
			_, _ = controller.Send(ctx, "الرسالة الأولى")
		}()

		// Wait for the first send to be in flight, then probe.
		require.Eventually(t, controller.Pending, timeout, pollInterval)

		_, err := controller.Send(ctx, "الرسالة الثانية")
		assert.Equal(t, "RATE_LIMITED", apperr.CodeOf(err))

		close(session.block)
		<-firstDone

		// Only the first user message made it into the transcript.
		transcript := controller.Messages()
		require.Len(t, transcript, 3)
		assert.Equal(t, "الرسالة الأولى", transcript[1].Content)
	})

	t.Run("backend failure appends the fallback and keeps the user message", func(t *testing.T) {
		backend := &fakeBackend{session: &fakeSession{errs: []error{apperr.Network(assert.AnError)}}}
		controller := newTestController(t, backend)

		reply, err := controller.Send(ctx, "أشعر بالحزن")
		require.NoError(t, err)
		assert.Equal(t, FallbackMessage, reply.Content)

		transcript := controller.Messages()
		require.Len(t, transcript, 3)
		assert.Equal(t, "أشعر بالحزن", transcript[1].Content)
		assert.Equal(t, FallbackMessage, transcript[2].Content)
		assert.False(t, controller.Pending())
	})

	t.Run("sign-out during an in-flight reply drops the assistant append", func(t *testing.T) {
		session := &fakeSession{block: make(chan struct{})}
		backend := &fakeBackend{session: session}
		controller := newTestController(t, backend)

		done := make(chan error, 1)
		go func() {
			_, err := controller.Send(ctx, "أريد التوقف")
			done <- err
		}()

		// Release the conversation while the reply is still in flight.
		require.Eventually(t, controller.Pending, timeout, pollInterval)
		controller.Close()
		close(session.block)

		select {
		case err := <-done:
			assert.Equal(t, "CONFLICT", apperr.CodeOf(err))
		case <-time.After(timeout):
			t.Fatal("send did not return")
		}

		// The optimistic user message stays; nothing landed after release.
		transcript := controller.Messages()
		require.Len(t, transcript, 2)
		assert.Equal(t, RoleUser, transcript[1].Role)
		assert.False(t, controller.Pending())
	})

	t.Run("conflict before initialize", func(t *testing.T) {
		controller := NewController(&fakeBackend{}, slog.New(slog.NewJSONHandler(io.Discard, nil)))

		_, err := controller.Send(ctx, "مرحبا")
		assert.Equal(t, "CONFLICT", apperr.CodeOf(err))
	})
}

func TestController_Summary(t *testing.T) {
	ctx := context.Background()

	backend := &fakeBackend{session: &fakeSession{replies: []string{
		SummaryMarker + "\nالموقف: اجتماع العمل.",
	}}}
	controller := newTestController(t, backend)

	reply, err := controller.Send(ctx, "أريد إنهاء الجلسة")
	require.NoError(t, err)
	require.True(t, reply.IsSummary())

	summary, err := controller.Summary(reply.ID)
	require.NoError(t, err)
	assert.Equal(t, reply.Content, summary.Content)

	// A non-summary message is not downloadable as one.
	transcript := controller.Messages()
	_, err = controller.Summary(transcript[1].ID)
	assert.Equal(t, "NOT_FOUND", apperr.CodeOf(err))

	_, err = controller.Summary("missing")
	assert.Equal(t, "NOT_FOUND", apperr.CodeOf(err))
}

func TestController_Close(t *testing.T) {
	session := &fakeSession{}
	backend := &fakeBackend{session: session}
	controller := newTestController(t, backend)

	controller.Close()
	assert.True(t, session.closed)

	// Idempotent.
	controller.Close()

	_, err := controller.Send(context.Background(), "مرحبا")
	assert.Equal(t, "CONFLICT", apperr.CodeOf(err))
}

func TestManager(t *testing.T) {
	ctx := context.Background()

	t.Run("activate is idempotent", func(t *testing.T) {
		backend := &fakeBackend{}
		manager := NewManager(backend, slog.New(slog.NewJSONHandler(io.Discard, nil)))

		first, err := manager.Activate(ctx)
		require.NoError(t, err)
		second, err := manager.Activate(ctx)
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, 1, backend.createdCnt)
	})

	t.Run("release closes the session and allows a fresh activation", func(t *testing.T) {
		session := &fakeSession{}
		backend := &fakeBackend{session: session}
		manager := NewManager(backend, slog.New(slog.NewJSONHandler(io.Discard, nil)))

		_, err := manager.Activate(ctx)
		require.NoError(t, err)

		manager.Release()
		assert.True(t, session.closed)
		assert.Nil(t, manager.Active())

		_, err = manager.Activate(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, backend.createdCnt)
	})

	t.Run("release does not wait on an in-flight initialization", func(t *testing.T) {
		backend := &fakeBackend{
			createStarted: make(chan struct{}, 1),
			createBlock:   make(chan struct{}),
		}
		manager := NewManager(backend, slog.New(slog.NewJSONHandler(io.Discard, nil)))

		activated := make(chan error, 1)
		go func() {
			_, err := manager.Activate(ctx)
			activated <- err
		}()
		<-backend.createStarted

		// Sign-out must return promptly even while the backend call hangs.
		released := make(chan struct{})
		go func() {
			manager.Release()
			close(released)
		}()

		select {
		case <-released:
		case <-time.After(timeout):
			t.Fatal("release blocked behind session initialization")
		}

		close(backend.createBlock)
		require.NoError(t, <-activated)
		assert.NotNil(t, manager.Active())
	})

	t.Run("release without an active conversation is a no-op", func(t *testing.T) {
		manager := NewManager(&fakeBackend{}, slog.New(slog.NewJSONHandler(io.Discard, nil)))
		manager.Release()
	})
}
