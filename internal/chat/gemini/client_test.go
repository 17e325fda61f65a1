// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziedbenboubaker/cbt-app/internal/platform/apperr"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return server, NewClient(server.URL, "test-key", "gemini-2.5-pro")
}

func replyWith(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()

	response := generateResponse{
		Candidates: []candidate{
			{Content: content{Role: roleModel, Parts: []part{{Text: text}}}},
		},
	}
	require.NoError(t, json.NewEncoder(w).Encode(response))
}

func TestClient_SendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("replays priming and history on every call", func(t *testing.T) {
		var lastRequest generateRequest
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1beta/models/gemini-2.5-pro:generateContent", r.URL.Path)
			assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

			require.NoError(t, json.NewDecoder(r.Body).Decode(&lastRequest))
			replyWith(t, w, "ما الموقف الذي أثار هذا الشعور؟")
		})

		session, err := client.CreateSession(ctx, "بروتوكول الجلسة", "أنا جاهز للبدء.")
		require.NoError(t, err)

		reply, err := session.SendMessage(ctx, "أشعر بالقلق")
		require.NoError(t, err)
		assert.Equal(t, "ما الموقف الذي أثار هذا الشعور؟", reply)

		// priming user turn, scripted model turn, then the new user turn
		require.Len(t, lastRequest.Contents, 3)
		assert.Equal(t, "بروتوكول الجلسة", lastRequest.Contents[0].Parts[0].Text)
		assert.Equal(t, "أنا جاهز للبدء.", lastRequest.Contents[1].Parts[0].Text)
		assert.Equal(t, "أشعر بالقلق", lastRequest.Contents[2].Parts[0].Text)

		_, err = session.SendMessage(ctx, "في العمل")
		require.NoError(t, err)

		// Both sides of the first exchange are now part of the history.
		require.Len(t, lastRequest.Contents, 5)
		assert.Equal(t, roleModel, lastRequest.Contents[3].Role)
	})

	t.Run("server errors classify as upstream unavailable", func(t *testing.T) {
		_, client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		session, err := client.CreateSession(ctx, "p", "o")
		require.NoError(t, err)

		_, err = session.SendMessage(ctx, "مرحبا")
		assert.Equal(t, "UPSTREAM_UNAVAILABLE", apperr.CodeOf(err))
	})

	t.Run("api rejection classifies as internal", func(t *testing.T) {
		_, client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid"}}`))
		})

		session, err := client.CreateSession(ctx, "p", "o")
		require.NoError(t, err)

		_, err = session.SendMessage(ctx, "مرحبا")
		assert.Equal(t, "INTERNAL_ERROR", apperr.CodeOf(err))
	})

	t.Run("failed call does not grow the history", func(t *testing.T) {
		failing := true
		var lastRequest generateRequest
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&lastRequest))
			if failing {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			replyWith(t, w, "حسناً")
		})

		session, err := client.CreateSession(ctx, "p", "o")
		require.NoError(t, err)

		_, err = session.SendMessage(ctx, "الأولى")
		require.Error(t, err)

		failing = false
		_, err = session.SendMessage(ctx, "الثانية")
		require.NoError(t, err)

		// The failed turn was dropped: priming pair plus the retry only.
		require.Len(t, lastRequest.Contents, 3)
		assert.Equal(t, "الثانية", lastRequest.Contents[2].Parts[0].Text)
	})

	t.Run("close during an in-flight send fences the reply", func(t *testing.T) {
		arrived := make(chan struct{}, 1)
		release := make(chan struct{})
		_, client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			arrived <- struct{}{}
			<-release
			replyWith(t, w, "حسناً")
		})

		session, err := client.CreateSession(ctx, "p", "o")
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() {
			_, err := session.SendMessage(ctx, "مرحبا")
			done <- err
		}()

		// Close the session while the model call is still on the wire.
		<-arrived
		session.Close()
		close(release)

		select {
		case err := <-done:
			assert.Equal(t, "INTERNAL_ERROR", apperr.CodeOf(err))
		case <-time.After(2 * time.Second):
			t.Fatal("send did not return")
		}
	})

	t.Run("send on a closed session fails", func(t *testing.T) {
		_, client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			replyWith(t, w, "حسناً")
		})

		session, err := client.CreateSession(ctx, "p", "o")
		require.NoError(t, err)
		session.Close()

		_, err = session.SendMessage(ctx, "مرحبا")
		assert.Equal(t, "INTERNAL_ERROR", apperr.CodeOf(err))
	})
}
