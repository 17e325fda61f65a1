// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

/*
Package gemini implements the model backend against the Gemini REST API.

Each session keeps the full exchange history client-side and replays it on
every generateContent call, which is how the stateless REST surface models a
stateful chat. The priming exchange occupies the first two history turns and
is therefore part of every request without ever being visible to the user.
*/
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ziedbenboubaker/cbt-app/internal/chat"
	"github.com/ziedbenboubaker/cbt-app/internal/platform/apperr"
)

const (
	defaultRequestTimeout = 60 * time.Second

	// thinkingBudget caps the model's internal reasoning tokens per reply.
	thinkingBudget = 32768

	roleUser  = "user"
	roleModel = "model"
)

// Client creates Gemini-backed chat sessions. It implements
// [chat.ModelBackend].
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewClient constructs a Gemini client. baseURL is overridable so tests can
// point the client at a local server.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
	}
}

// # Wire Types

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ThinkingConfig *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type thinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type candidate struct {
	Content content `json:"content"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
	Error      *apiError   `json:"error"`
}

// # Backend Implementation

// CreateSession opens a session whose history starts with the priming text
// as a user turn and the scripted opening reply as the model turn.
func (c *Client) CreateSession(_ context.Context, primingText, openingReply string) (chat.Session, error) {
	return &session{
		client: c,
		history: []content{
			{Role: roleUser, Parts: []part{{Text: primingText}}},
			{Role: roleModel, Parts: []part{{Text: openingReply}}},
		},
	}, nil
}

// session is one stateful conversation. The chat controller guarantees at
// most one SendMessage is in flight, but Close arrives from the sign-out
// goroutine, so the fields stay behind a mutex.
type session struct {
	client *Client

	mu      sync.Mutex
	history []content
	closed  bool
}

/*
SendMessage appends the user turn, replays the full history to the model, and
appends the reply turn on success.

Description: A failed call leaves the history without the user turn, so the
session state never diverges from what the model has actually acknowledged.
The lock is not held across the network call; a Close that lands mid-flight
makes the send report a closed session instead of mutating freed history.

Parameters:
  - ctx: context.Context
  - text: string

Returns:
  - string: The model reply text
  - error: UPSTREAM_UNAVAILABLE or INTERNAL_ERROR
*/
func (s *session) SendMessage(ctx context.Context, text string) (string, error) {

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", apperr.Unknown(fmt.Errorf("send_on_closed_session"))
	}
	attempt := append(append([]content{}, s.history...), content{
		Role:  roleUser,
		Parts: []part{{Text: text}},
	})
	s.mu.Unlock()

	reply, err := s.client.generate(ctx, attempt)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", apperr.Unknown(fmt.Errorf("send_on_closed_session"))
	}

	s.history = append(attempt, content{Role: roleModel, Parts: []part{{Text: reply}}})
	return reply, nil
}

// Close marks the session unusable. The REST surface holds no server-side
// state to release.
func (s *session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.history = nil
}

// generate performs one generateContent call with the given history.
func (c *Client) generate(ctx context.Context, contents []content) (string, error) {

	payload, err := json.Marshal(generateRequest{
		Contents: contents,
		GenerationConfig: &generationConfig{
			ThinkingConfig: &thinkingConfig{ThinkingBudget: thinkingBudget},
		},
	})
	if err != nil {
		return "", apperr.Unknown(fmt.Errorf("marshal_generate_request: %w", err))
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", apperr.Unknown(fmt.Errorf("build_generate_request: %w", err))
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("x-goog-api-key", c.apiKey)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", apperr.Network(fmt.Errorf("gemini_request: %w", err))
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", apperr.Network(fmt.Errorf("read_gemini_response: %w", err))
	}

	if response.StatusCode >= http.StatusInternalServerError {
		return "", apperr.Network(fmt.Errorf("gemini_status_%d", response.StatusCode))
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", apperr.Unknown(fmt.Errorf("decode_gemini_response: %w", err))
	}

	if response.StatusCode != http.StatusOK {
		message := response.Status
		if decoded.Error != nil {
			message = decoded.Error.Message
		}
		return "", apperr.Unknown(fmt.Errorf("gemini_rejected: %s", message))
	}

	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", apperr.Unknown(fmt.Errorf("gemini_empty_candidates"))
	}

	var reply strings.Builder
	for _, p := range decoded.Candidates[0].Content.Parts {
		reply.WriteString(p.Text)
	}

	return reply.String(), nil
}
