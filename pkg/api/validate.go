package api

import (
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/linkguard/pkg/clientip"
	"github.com/dmitrymomot/linkguard/pkg/logger"
	"github.com/dmitrymomot/linkguard/pkg/token"
)

// User facing messages. Format, payload and signature failures share one
// message so a caller cannot probe which check failed.
const (
	msgInvalid     = "This link is invalid."
	msgExpired     = "This link has expired. Please request a new one."
	msgAlreadyUsed = "This link has already been used."
)

type validBody struct {
	Valid       bool   `json:"valid"`
	SubjectID   string `json:"subject_id"`
	IssuedAtMs  int64  `json:"issued_at_ms"`
	ExpiresAtMs int64  `json:"expires_at_ms"`
}

type invalidBody struct {
	Valid   bool   `json:"valid"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (s *server) handleValidate(r *http.Request) Response {
	return s.validate(r, token.ModeConsume)
}

func (s *server) handleInspect(r *http.Request) Response {
	return s.validate(r, token.ModeInspect)
}

func (s *server) validate(r *http.Request, mode token.Mode) Response {
	ctx := r.Context()
	res, err := s.validator.Validate(ctx, r.URL.Query().Get("token"), mode)
	if err != nil {
		s.metrics.ObserveValidation(mode.String(), "error")
		s.log.LogAttrs(ctx, slog.LevelError, "link validation failed",
			logger.Mode(mode.String()),
			logger.Error(err),
		)
		return unavailable()
	}

	if res.Valid {
		s.metrics.ObserveValidation(mode.String(), "valid")
		s.log.LogAttrs(ctx, slog.LevelInfo, "link accepted",
			logger.Mode(mode.String()),
			logger.SubjectID(res.Claims.SubjectID),
		)
		return JSON(http.StatusOK, validBody{
			Valid:       true,
			SubjectID:   res.Claims.SubjectID,
			IssuedAtMs:  res.Claims.IssuedAtMs,
			ExpiresAtMs: res.Claims.ExpiresAtMs,
		})
	}

	reason := string(res.Reason)
	s.metrics.ObserveValidation(mode.String(), reason)

	level := slog.LevelInfo
	if res.Reason == token.ReasonInvalidSignature {
		// Valid framing with a bad MAC is a forgery attempt or a key mismatch.
		level = slog.LevelWarn
	}
	s.log.LogAttrs(ctx, level, "link rejected",
		logger.Mode(mode.String()),
		logger.Reason(reason),
		logger.ClientIP(clientip.FromContext(ctx)),
	)

	status, message := rejection(res.Reason)
	return JSON(status, invalidBody{Reason: reason, Message: message})
}

func rejection(reason token.Reason) (int, string) {
	switch reason {
	case token.ReasonExpired:
		return http.StatusGone, msgExpired
	case token.ReasonAlreadyUsed:
		return http.StatusConflict, msgAlreadyUsed
	default:
		return http.StatusBadRequest, msgInvalid
	}
}
