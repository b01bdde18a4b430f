package http

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/example/backlog-scheduler/internal/application"
	"github.com/example/backlog-scheduler/internal/logging"
)

// HeaderRequestID carries the request identifier in both directions.
const HeaderRequestID = "X-Request-ID"

type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (application.Principal, error)
}

// RequireSession rejects requests without a live session and stores the
// principal in the request context.
func RequireSession(validator SessionValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractTokenFromRequest(r)
			if token == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingSessionToken)
				return
			}

			principal, err := validator.ValidateSession(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, application.ErrUnauthorized),
					errors.Is(err, application.ErrNotFound),
					errors.Is(err, application.ErrSessionExpired),
					errors.Is(err, application.ErrSessionRevoked),
					errors.Is(err, application.ErrInvalidCredentials):
					responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
						ErrorCode: "AUTH_SESSION_INVALID",
						Message:   "the session is invalid or expired; log in again",
					})
				default:
					responder.loggerFor(r.Context()).ErrorContext(r.Context(), "session validation failed", "error", err)
					responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{
						ErrorCode: "INTERNAL",
						Message:   "the session could not be validated",
					})
				}
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// RequestLogger attaches a request scoped logger carrying a request id.
// An incoming X-Request-ID is reused.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := logging.ContextWithLogger(r.Context(), logger)
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(recorder, r.WithContext(ctx))

			level := slog.LevelInfo
			if recorder.status >= http.StatusInternalServerError {
				level = slog.LevelError
			} else if recorder.status >= http.StatusBadRequest {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "request completed", "status", recorder.status, "duration", time.Since(start))
		})
	}
}

// RateLimiter hands out one token bucket per principal.
//
// A bucket that has refilled completely is indistinguishable from a new one,
// so such buckets are dropped during a periodic sweep. The map therefore only
// holds principals that were limited within roughly burst*every.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	every     time.Duration
	burst     int
	now       func() time.Time
	lastSweep time.Time
	logger    *slog.Logger
}

// NewRateLimiter allows burst requests at once and one more every interval.
func NewRateLimiter(every time.Duration, burst int, logger *slog.Logger) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    every,
		burst:    burst,
		now:      time.Now,
		logger:   defaultLogger(logger),
	}
}

func (l *RateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastSweep) >= l.every {
		l.sweep(now)
	}
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(l.every), l.burst)
		l.limiters[key] = limiter
	}
	return limiter
}

// sweep drops full buckets. Callers hold l.mu.
func (l *RateLimiter) sweep(now time.Time) {
	for key, limiter := range l.limiters {
		if limiter.TokensAt(now) >= float64(l.burst) {
			delete(l.limiters, key)
		}
	}
	l.lastSweep = now
}

// tracked reports how many buckets are held.
func (l *RateLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// Middleware answers 429 with Retry-After once the caller's bucket is empty.
// Requests without a principal share one bucket.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	responder := newResponder(l.logger)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ := PrincipalFromContext(r.Context())
		now := l.now()
		reservation := l.limiter(principal.UserID, now).ReserveN(now, 1)
		if delay := reservation.DelayFrom(now); delay > 0 {
			reservation.CancelAt(now)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			handlerLogger(r.Context(), l.logger, "RateLimiter", "", "principal_id", principal.UserID).
				WarnContext(r.Context(), "rate limit exceeded", "retry_after", delay)
			responder.writeJSON(r.Context(), w, http.StatusTooManyRequests, errorResponse{
				ErrorCode: statusCode(http.StatusTooManyRequests),
				Message:   statusMessage(http.StatusTooManyRequests),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
