package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/backlog-scheduler/internal/application"
	"github.com/example/backlog-scheduler/internal/logging"
)

type fakeSessionValidator struct {
	principal application.Principal
	err       error
}

func (f fakeSessionValidator) ValidateSession(ctx context.Context, token string) (application.Principal, error) {
	if token != "valid-token" && f.err == nil {
		return application.Principal{}, application.ErrUnauthorized
	}
	return f.principal, f.err
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	return body
}

func TestSessionMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("rejects requests without valid session tokens", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name        string
			cookieToken *http.Cookie
			headerToken string
			validator   fakeSessionValidator
			wantStatus  int
			wantCode    string
		}{
			{
				name:       "missing credentials",
				wantStatus: http.StatusUnauthorized,
				wantCode:   "AUTH_REQUIRED",
			},
			{
				name:        "unknown bearer token",
				headerToken: "Bearer malformed",
				wantStatus:  http.StatusUnauthorized,
				wantCode:    "AUTH_SESSION_INVALID",
			},
			{
				name:        "revoked session",
				cookieToken: &http.Cookie{Name: "session_token", Value: "revoked-token"},
				validator:   fakeSessionValidator{err: application.ErrUnauthorized},
				wantStatus:  http.StatusUnauthorized,
				wantCode:    "AUTH_SESSION_INVALID",
			},
			{
				name:        "storage failure",
				cookieToken: &http.Cookie{Name: "session_token", Value: "valid-token"},
				validator:   fakeSessionValidator{err: errors.New("disk on fire")},
				wantStatus:  http.StatusInternalServerError,
				wantCode:    "INTERNAL",
			},
		}

		for _, tc := range tests {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				req := httptest.NewRequest(http.MethodGet, "/protected", nil)
				if tc.cookieToken != nil {
					req.AddCookie(tc.cookieToken)
				}
				if tc.headerToken != "" {
					req.Header.Set("Authorization", tc.headerToken)
				}
				recorder := httptest.NewRecorder()

				handler := RequireSession(tc.validator, logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					t.Fatal("next handler should not be called when authentication fails")
				}))
				handler.ServeHTTP(recorder, req)

				if recorder.Code != tc.wantStatus {
					t.Fatalf("expected status %d, got %d", tc.wantStatus, recorder.Code)
				}
				if body := decodeError(t, recorder); body.ErrorCode != tc.wantCode {
					t.Fatalf("expected error code %s, got %s", tc.wantCode, body.ErrorCode)
				}
			})
		}
	})

	t.Run("attaches authenticated principal to request context", func(t *testing.T) {
		t.Parallel()

		for _, attach := range []func(*http.Request){
			func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "session_token", Value: "valid-token"}) },
			func(r *http.Request) { r.Header.Set("Authorization", "Bearer valid-token") },
		} {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			attach(req)
			recorder := httptest.NewRecorder()

			var captured application.Principal
			handler := RequireSession(fakeSessionValidator{principal: application.Principal{UserID: "user-123"}}, logging.Discard())(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					p, ok := PrincipalFromContext(r.Context())
					if !ok {
						t.Fatal("expected principal in request context")
					}
					captured = p
					w.WriteHeader(http.StatusOK)
				}))
			handler.ServeHTTP(recorder, req)

			if recorder.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", recorder.Code)
			}
			if captured.UserID != "user-123" {
				t.Fatalf("unexpected principal %+v", captured)
			}
		}
	})
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	handler := RequestLogger(logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if logging.FromContext(r.Context()) == nil {
			t.Fatal("expected a request scoped logger")
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("reuses the caller's request id", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/games", nil)
		req.Header.Set(HeaderRequestID, "req-42")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		if got := recorder.Header().Get(HeaderRequestID); got != "req-42" {
			t.Fatalf("expected request id to be echoed, got %q", got)
		}
		if recorder.Code != http.StatusTeapot {
			t.Fatalf("expected the handler status to pass through, got %d", recorder.Code)
		}
	})

	t.Run("generates a request id", func(t *testing.T) {
		t.Parallel()
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/games", nil))
		if got := recorder.Header().Get(HeaderRequestID); len(got) != 36 {
			t.Fatalf("expected a generated uuid, got %q", got)
		}
	})
}

func TestRateLimiter(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(time.Hour, 2, logging.Discard())
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	call := func(userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/plans", nil)
		req = req.WithContext(ContextWithPrincipal(req.Context(), application.Principal{UserID: userID}))
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		return recorder
	}

	for i := 0; i < 2; i++ {
		if got := call("alice").Code; got != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i+1, got)
		}
	}
	limited := call("alice")
	if limited.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the burst is spent, got %d", limited.Code)
	}
	if limited.Header().Get("Retry-After") == "" {
		t.Fatalf("expected a Retry-After header")
	}
	if body := decodeError(t, limited); body.ErrorCode != "RATE_LIMITED" {
		t.Fatalf("unexpected error code %s", body.ErrorCode)
	}
	if got := call("bob").Code; got != http.StatusNoContent {
		t.Fatalf("expected a separate bucket per principal, got %d", got)
	}
}

func TestRateLimiterDropsRefilledBuckets(t *testing.T) {
	t.Parallel()

	clock := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(time.Minute, 2, logging.Discard())
	limiter.now = func() time.Time { return clock }
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	call := func(userID string) int {
		req := httptest.NewRequest(http.MethodPost, "/plans", nil)
		req = req.WithContext(ContextWithPrincipal(req.Context(), application.Principal{UserID: userID}))
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		return recorder.Code
	}

	call("alice")
	call("alice")
	if got := call("alice"); got != http.StatusTooManyRequests {
		t.Fatalf("expected alice to be limited, got %d", got)
	}
	call("bob")
	if got := limiter.tracked(); got != 2 {
		t.Fatalf("expected two buckets, got %d", got)
	}

	clock = clock.Add(90 * time.Second)
	call("carol")
	if got := limiter.tracked(); got != 2 {
		t.Fatalf("expected bob's refilled bucket to be dropped, got %d buckets", got)
	}
	if got := call("alice"); got != http.StatusNoContent {
		t.Fatalf("expected alice to have one token back, got %d", got)
	}
	if got := call("alice"); got != http.StatusTooManyRequests {
		t.Fatalf("expected alice's partial bucket to be kept, got %d", got)
	}
}

func TestHandleServiceError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &application.ValidationError{FieldErrors: map[string]string{"weeks": "bad"}}, http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{"credentials", application.ErrInvalidCredentials, http.StatusUnauthorized, "AUTH_INVALID_CREDENTIALS"},
		{"forbidden", application.ErrUnauthorized, http.StatusForbidden, "AUTH_FORBIDDEN"},
		{"not found", application.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"duplicate", application.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},
		{"conflict", application.ErrConflict, http.StatusConflict, "CONFLICT"},
		{"integrity", application.ErrIntegrity, http.StatusInternalServerError, "BACKLOG_INTEGRITY"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			recorder := httptest.NewRecorder()
			newResponder(logging.Discard()).handleServiceError(context.Background(), recorder, tc.err)
			if recorder.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, recorder.Code)
			}
			body := decodeError(t, recorder)
			if body.ErrorCode != tc.wantCode {
				t.Fatalf("expected code %s, got %s", tc.wantCode, body.ErrorCode)
			}
			if tc.wantCode == "VALIDATION_FAILED" && body.Errors["weeks"] == "" {
				t.Fatalf("expected field errors in the body, got %+v", body)
			}
		})
	}
}
