// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

package gate

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ziedbenboubaker/cbt-app/internal/authflow"
	"github.com/ziedbenboubaker/cbt-app/internal/chat"
	"github.com/ziedbenboubaker/cbt-app/internal/platform/apperr"
	"github.com/ziedbenboubaker/cbt-app/internal/platform/constants"
	"github.com/ziedbenboubaker/cbt-app/internal/platform/middleware"
	requestutil "github.com/ziedbenboubaker/cbt-app/internal/platform/request"
	"github.com/ziedbenboubaker/cbt-app/internal/platform/respond"
	"github.com/ziedbenboubaker/cbt-app/internal/platform/sec"
	"github.com/ziedbenboubaker/cbt-app/internal/platform/validate"
)

// FieldMode is the mode-switch request field name. The credential fields are
// validated inside the state machine, not here.
const FieldMode = "mode"

// # Definitions & Constructors

// Handler implements the HTTP endpoints for the auth flow and the gated
// conversation.
type Handler struct {
	machine *authflow.Machine
	chats   *chat.Manager
	tokens  *sec.TokenService
	logger  *slog.Logger
}

// NewHandler constructs a [Handler] with its collaborators.
func NewHandler(machine *authflow.Machine, chats *chat.Manager, tokens *sec.TokenService, logger *slog.Logger) *Handler {
	return &Handler{
		machine: machine,
		chats:   chats,
		tokens:  tokens,
		logger:  logger,
	}
}

// Routes returns a [chi.Router] with the gate's endpoints.
//
// # Endpoints
//   - GET  /state                        : Current auth state and view selection.
//   - POST /auth/sign-in                 : Credential sign-in.
//   - POST /auth/sign-up                 : Account creation.
//   - GET  /auth/verify                  : Verification-callback entry.
//   - POST /conversation/messages       : Send one message (session required).
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Get("/state", handler.state)
	router.Post("/auth/sign-in", handler.signIn)
	router.Post("/auth/sign-up", handler.signUp)
	router.Post("/auth/mode", handler.switchMode)
	router.Post("/auth/verification/resend", handler.resendVerification)
	router.Get("/auth/verify", handler.verifyCallback)
	router.Post("/auth/return-to-login", handler.returnToLogin)
	router.Post("/auth/password-reset", handler.beginPasswordReset)
	router.Post("/auth/password-reset/request", handler.requestPasswordReset)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession)
		r.Post("/auth/sign-out", handler.signOut)
		r.Get("/conversation/messages", handler.listMessages)
		r.Post("/conversation/messages", handler.sendMessage)
		r.Get("/conversation/export", handler.exportTranscript)
		r.Get("/conversation/messages/{messageID}/summary", handler.exportSummary)
	})

	return router
}

// # Request Payloads

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	RepeatPassword string `json:"repeat_password"`
}

type switchModeRequest struct {
	Mode string `json:"mode"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// # State & Routing

/*
State reports the current auth state and the view selected for it.

GET /api/v1/state

Description: Evaluates the pure view selection against the current state and
the request's query parameters. Re-evaluating never changes anything.

Response:
  - 200: state, view, session_token (Authenticated only)
  - 400: ErrMissingCode: Callback mode without a code
*/
func (handler *Handler) state(writer http.ResponseWriter, request *http.Request) {
	handler.respondState(writer, request)
}

// # Credential Endpoints

/*
SignIn authenticates credentials and advances the auth state.

POST /api/v1/auth/sign-in

Description: A verified account lands on Authenticated and receives the
session token gating the conversation endpoints. An unverified account lands
on AwaitingVerification with no token.

Request:
  - Body: credentialsRequest (Email, Password)

Response:
  - 200: state, view, session_token (Authenticated only)
  - 401: CredentialRejected: Invalid email or password
  - 409: Conflict: Sign-in not available from the current state
*/
func (handler *Handler) signIn(writer http.ResponseWriter, request *http.Request) {
	var input credentialsRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.machine.StartSignIn(request.Context(), input.Email, input.Password); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.respondState(writer, request)
}

/*
SignUp creates an account and advances toward verification.

POST /api/v1/auth/sign-up

Description: Password equality is validated inside the state machine before
any provider call. The verification email is dispatched best-effort; the
response is AwaitingVerification either way.

Request:
  - Body: signUpRequest (Email, Password, RepeatPassword)

Response:
  - 200: state, view
  - 400: ValidationError: Mismatched passwords or weak password
  - 409: AlreadyExists: Email already registered
*/
func (handler *Handler) signUp(writer http.ResponseWriter, request *http.Request) {
	var input signUpRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.machine.StartSignUp(request.Context(), input.Email, input.Password, input.RepeatPassword); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.respondState(writer, request)
}

/*
SwitchMode toggles between the sign-in and sign-up forms.

POST /api/v1/auth/mode

Request:
  - Body: switchModeRequest (Mode: "login" | "signup")

Response:
  - 200: state, view
  - 400: ValidationError: Unknown mode
*/
func (handler *Handler) switchMode(writer http.ResponseWriter, request *http.Request) {
	var input switchModeRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	if err := validator.
		Required(FieldMode, input.Mode).
		OneOf(FieldMode, input.Mode, string(authflow.ModeSignIn), string(authflow.ModeSignUp)).
		Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.machine.SwitchMode(authflow.CredentialMode(input.Mode)); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.respondState(writer, request)
}

/*
SignOut releases the conversation and reverts to Anonymous.

POST /api/v1/auth/sign-out

Response:
  - 204: Signed out
  - 409: Conflict: No account signed in
*/
func (handler *Handler) signOut(writer http.ResponseWriter, request *http.Request) {
	if err := handler.machine.SignOut(request.Context()); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// # Verification Endpoints

/*
ResendVerification requests a fresh verification email.

POST /api/v1/auth/verification/resend

Description: A no-op while the cooldown is running; the response carries the
current cooldown either way so the client can render the countdown.

Response:
  - 200: state, view (CooldownSeconds inside state)
  - 409: Conflict: No verification pending
  - 429: RateLimited: Provider throttled the send
*/
func (handler *Handler) resendVerification(writer http.ResponseWriter, request *http.Request) {
	if err := handler.machine.ResendVerification(request.Context()); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.respondState(writer, request)
}

/*
VerifyCallback applies the one-time code from a verification link.

GET /api/v1/auth/verify?mode=verifyEmail&oobCode=...

Description: The entry point behind emailed verification links. A rejected
code resolves to the terminal failure state, rendered as a view rather than
an HTTP error; only a missing code or an entry outside callback mode is a
request-level failure.

Response:
  - 200: state, view (VerificationSucceeded or VerificationFailed)
  - 400: ErrMissingCode: Callback mode without a code
*/
func (handler *Handler) verifyCallback(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()

	if !IsCallback(query) {
		respond.Error(writer, request, apperr.ValidationError("Not a verification callback",
			apperr.FieldError{Field: constants.QueryParamMode, Message: "Expected " + constants.ModeVerifyEmail}))
		return
	}

	code := query.Get(constants.QueryParamCode)
	if code == "" {
		respond.Error(writer, request, ErrMissingCode)
		return
	}

	if err := handler.machine.CompleteEmailVerification(request.Context(), code); err != nil {
		// The machine already landed on the terminal failure state; the
		// client renders that, not the error.
		handler.logger.Info("verification_callback_rejected", slog.String("error", err.Error()))
	}

	handler.respondState(writer, request)
}

/*
ReturnToLogin leaves a terminal callback result or an abandoned flow.

POST /api/v1/auth/return-to-login

Response:
  - 200: state, view (back to Anonymous)
  - 409: Conflict: Nothing to return from
*/
func (handler *Handler) returnToLogin(writer http.ResponseWriter, request *http.Request) {
	if err := handler.machine.ReturnToLogin(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.respondState(writer, request)
}

// # Password Reset Endpoints

/*
BeginPasswordReset opens the password-reset flow.

POST /api/v1/auth/password-reset

Response:
  - 200: state, view (ResettingPassword awaiting input)
  - 409: Conflict: Not available from the current state
*/
func (handler *Handler) beginPasswordReset(writer http.ResponseWriter, request *http.Request) {
	if err := handler.machine.BeginPasswordReset(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.respondState(writer, request)
}

/*
RequestPasswordReset asks the provider to send the reset email.

POST /api/v1/auth/password-reset/request

Request:
  - Body: passwordResetRequest (Email)

Response:
  - 200: state, view (request sent, confirmation inside state)
  - 404: NotFound: Unknown email (provider classification, passed through)
*/
func (handler *Handler) requestPasswordReset(writer http.ResponseWriter, request *http.Request) {
	var input passwordResetRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if err := handler.machine.RequestPasswordReset(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.respondState(writer, request)
}

// # Conversation Endpoints

/*
SendMessage forwards one user message to the model session.

POST /api/v1/conversation/messages

Description: Activates the conversation on first use. Blank input is a
validation error; a send while a reply is in flight is throttled. A backend
failure still returns 200 with the fallback assistant message, so the client
always has something to render.

Request:
  - Body: sendMessageRequest (Text)

Response:
  - 200: message: The assistant reply (real or fallback)
  - 401: Unauthorized: No verified account signed in
  - 429: RateLimited: A reply is still in flight
*/
func (handler *Handler) sendMessage(writer http.ResponseWriter, request *http.Request) {
	var input sendMessageRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	controller, err := handler.conversation(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	message, err := controller.Send(request.Context(), input.Text)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{"message": message})
}

/*
ListMessages returns the transcript in insertion order.

GET /api/v1/conversation/messages

Response:
  - 200: messages, pending
  - 401: Unauthorized: No verified account signed in
*/
func (handler *Handler) listMessages(writer http.ResponseWriter, request *http.Request) {
	controller, err := handler.conversation(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		"messages": controller.Messages(),
		"pending":  controller.Pending(),
	})
}

/*
ExportTranscript downloads the full transcript as a text file.

GET /api/v1/conversation/export

Response:
  - 200: text/plain attachment (cbt_conversation_history.txt)
  - 401: Unauthorized: No verified account signed in
*/
func (handler *Handler) exportTranscript(writer http.ResponseWriter, request *http.Request) {
	controller, err := handler.conversation(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.TextAttachment(writer, constants.TranscriptExportFilename, controller.Export())
}

/*
ExportSummary downloads one session-summary message as a text file.

GET /api/v1/conversation/messages/{messageID}/summary

Response:
  - 200: text/plain attachment (cbt_session_summary.txt)
  - 404: NotFound: Message missing or not a summary
*/
func (handler *Handler) exportSummary(writer http.ResponseWriter, request *http.Request) {
	controller, err := handler.conversation(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	summary, err := controller.Summary(requestutil.Param(request, "messageID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.TextAttachment(writer, constants.SummaryExportFilename, summary.Content)
}

// # Internals

// conversation returns the active controller, activating one when a verified
// account is signed in.
func (handler *Handler) conversation(request *http.Request) (*chat.Controller, error) {
	state := handler.machine.State()

	if state.Kind != authflow.KindAuthenticated || state.Account == nil || !state.Account.Verified {
		return nil, apperr.Unauthorized("The conversation requires a verified, signed-in account")
	}

	return handler.chats.Activate(request.Context())
}

// respondState writes the current state, its view selection, and, once
// Authenticated, the session token for the conversation endpoints.
func (handler *Handler) respondState(writer http.ResponseWriter, request *http.Request) {
	state := handler.machine.State()

	view, err := Select(state, request.URL.Query())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	payload := map[string]any{
		"state": state,
		"view":  view,
	}

	if state.Kind == authflow.KindAuthenticated && state.Account != nil {
		token, err := handler.tokens.GenerateSessionToken(state.Account.ID, state.Account.Email, constants.SessionTokenTTL)
		if err != nil {
			respond.Error(writer, request, apperr.Unknown(err))
			return
		}
		payload["session_token"] = token
	}

	respond.OK(writer, payload)
}
