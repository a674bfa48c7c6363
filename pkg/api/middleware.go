package api

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/linkguard/pkg/clientip"
	"github.com/dmitrymomot/linkguard/pkg/logger"
	"github.com/dmitrymomot/linkguard/pkg/ratelimit"
)

// requestLogger writes one record per request. Only the path is logged,
// never the query, since it carries the token.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				logger.ClientIP(clientip.FromContext(r.Context())),
				logger.Duration(time.Since(start)),
			)
		})
	}
}

// bearerAuth guards routes with a static API key.
func bearerAuth(apiKey string) func(http.Handler) http.Handler {
	want := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), want) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="linkguard"`)
				_ = errorResponse(http.StatusUnauthorized, "unauthorized", "").Render(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *server) onLimitReached(w http.ResponseWriter, r *http.Request, result *ratelimit.Result) {
	s.metrics.ObserveRateLimited()
	s.log.LogAttrs(r.Context(), slog.LevelInfo, "rate limit exceeded",
		logger.ClientIP(clientip.FromContext(r.Context())),
		slog.Duration("retry_after", result.RetryAfter),
	)
	_ = errorResponse(http.StatusTooManyRequests, "rate_limited", "").Render(w, r)
}

// Limiter failures let the request through; the nonce claim still guards replay.
func (s *server) onLimiterError(r *http.Request, err error) {
	if errors.Is(err, ratelimit.ErrUnresolvedKey) {
		s.log.LogAttrs(r.Context(), slog.LevelWarn, "client address not resolved",
			logger.Component("ratelimit"),
			slog.String("remote_addr", r.RemoteAddr),
		)
		return
	}
	s.log.LogAttrs(r.Context(), slog.LevelWarn, "rate limiter unavailable",
		logger.Component("ratelimit"),
		logger.Error(err),
	)
}
