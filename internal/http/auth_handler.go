package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/backlog-scheduler/internal/application"
)

// sessionCookie carries the token for browser clients; API clients send
// "Authorization: Bearer <token>" instead.
const sessionCookie = "session_token"

type authService interface {
	Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error)
	RevokeSession(ctx context.Context, token string) error
}

// AuthHandler serves POST /sessions and DELETE /sessions/current.
type AuthHandler struct {
	service   authService
	responder responder
	logger    *slog.Logger
}

func NewAuthHandler(service authService, logger *slog.Logger) *AuthHandler {
	base := defaultLogger(logger)
	return &AuthHandler{service: service, responder: newResponder(base), logger: base}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string  `json:"token"`
	ExpiresAt string  `json:"expires_at"`
	User      userDTO `json:"user"`
}

func (h *AuthHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlerLogger(ctx, h.logger, "AuthHandler", "CreateSession", "error_kind", "bad_request").
			ErrorContext(ctx, "failed to decode session request", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	logger := handlerLogger(ctx, h.logger, "AuthHandler", "CreateSession", "email", email)

	result, err := h.service.Authenticate(ctx, application.AuthenticateParams{
		Email:       email,
		Password:    req.Password,
		Fingerprint: r.UserAgent(),
	})
	if err != nil {
		message := "authentication failed"
		if errors.Is(err, application.ErrInvalidCredentials) {
			message = "authentication rejected"
		}
		logger.ErrorContext(ctx, message, "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	session := result.Session
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt.UTC(),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set("X-Session-Token", session.Token)
	logger.InfoContext(ctx, "user authenticated", "user_id", result.User.ID)

	h.responder.writeJSON(ctx, w, http.StatusCreated, loginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
		User:      toUserDTO(result.User),
	})
}

func (h *AuthHandler) DeleteCurrentSession(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	logger := handlerLogger(ctx, h.logger, "AuthHandler", "DeleteCurrentSession")

	token := extractTokenFromRequest(r)
	if token == "" {
		logger.ErrorContext(ctx, "missing session token for current session revocation", "error_kind", "unauthorized")
		h.responder.writeError(ctx, w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}
	if err := h.service.RevokeSession(ctx, token); err != nil {
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	logger.InfoContext(ctx, "session revoked")
	h.responder.writeJSON(ctx, w, http.StatusNoContent, nil)
}

// extractTokenFromRequest prefers the bearer header over the cookie.
func extractTokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if token, ok := strings.CutPrefix(strings.TrimSpace(r.Header.Get("Authorization")), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}
