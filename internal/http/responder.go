package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/backlog-scheduler/internal/application"
	"github.com/example/backlog-scheduler/internal/logging"
)

var (
	errBadRequestBody      = errors.New("request body is not valid JSON")
	errInvalidGameID       = errors.New("game id is missing")
	errInvalidRunID        = errors.New("run id is missing")
	errMissingSessionToken = errors.New("a session token is required")
	errMissingPrincipal    = errors.New("authentication required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: statusCode(status), Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var vErr *application.ValidationError
	switch {
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   statusMessage(http.StatusUnprocessableEntity),
			Errors:    vErr.FieldErrors,
		})
	case errors.Is(err, application.ErrInvalidCredentials):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_INVALID_CREDENTIALS",
			Message:   "email or password is incorrect",
		})
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   statusMessage(http.StatusForbidden),
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{ErrorCode: "NOT_FOUND", Message: statusMessage(http.StatusNotFound)})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "ALREADY_EXISTS", Message: "the resource already exists"})
	case errors.Is(err, application.ErrConflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "CONFLICT", Message: "another change for this user won the race; retry the request"})
	case errors.Is(err, application.ErrIntegrity):
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{ErrorCode: "BACKLOG_INTEGRITY", Message: "stored backlog data is inconsistent"})
	default:
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{ErrorCode: "INTERNAL", Message: statusMessage(http.StatusInternalServerError)})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "the request is malformed"
	case http.StatusUnauthorized:
		return "authentication required"
	case http.StatusForbidden:
		return "you may not perform this operation"
	case http.StatusNotFound:
		return "the requested resource was not found"
	case http.StatusConflict:
		return "the request conflicts with the current state"
	case http.StatusUnprocessableEntity:
		return "the input is invalid"
	case http.StatusTooManyRequests:
		return "too many requests; slow down"
	default:
		return "internal server error"
	}
}

func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "AUTH_REQUIRED"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	default:
		return "INTERNAL"
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
