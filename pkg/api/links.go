package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	"github.com/dmitrymomot/linkguard/pkg/logger"
	"github.com/dmitrymomot/linkguard/pkg/token"
)

const maxIssueBody = 4 << 10

var errBadRequestBody = errors.New("invalid request body")

type issueRequest struct {
	SubjectID string `json:"subject_id"`
}

type issueResponse struct {
	Token       string `json:"token"`
	URL         string `json:"url"`
	ExpiresAtMs int64  `json:"expires_at_ms"`
}

func (s *server) handleIssue(r *http.Request) Response {
	ctx := r.Context()

	var req issueRequest
	if err := decodeJSON(r, &req); err != nil {
		return errorResponse(http.StatusBadRequest, "invalid_request", err.Error())
	}

	tok, err := s.issuer.Issue(req.SubjectID, s.clock())
	switch {
	case errors.Is(err, token.ErrEmptySubject):
		return errorResponse(http.StatusBadRequest, "invalid_request", "subject_id is required")
	case errors.Is(err, token.ErrSubjectTooLong):
		return errorResponse(http.StatusBadRequest, "invalid_request", "subject_id is too long")
	}
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "failed to issue link", logger.Error(err))
		return errorResponse(http.StatusInternalServerError, "internal", "")
	}

	claims, err := token.DecodePayload(tok.EncodedPayload)
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "issued token does not decode", logger.Error(err))
		return errorResponse(http.StatusInternalServerError, "internal", "")
	}

	s.metrics.ObserveIssued()
	s.log.LogAttrs(ctx, slog.LevelInfo, "link issued", logger.SubjectID(claims.SubjectID))

	raw := tok.String()
	return JSON(http.StatusCreated, issueResponse{
		Token:       raw,
		URL:         LinkURL(s.baseURL, raw),
		ExpiresAtMs: claims.ExpiresAtMs,
	})
}

// LinkURL appends raw as the token query parameter of base, keeping any
// existing query.
func LinkURL(base *url.URL, raw string) string {
	u := *base
	q := u.Query()
	q.Set("token", raw)
	u.RawQuery = q.Encode()
	return u.String()
}

// decodeJSON strictly decodes a single small JSON object from the body.
func decodeJSON(r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return fmt.Errorf("%w: expected application/json", errBadRequestBody)
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxIssueBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequestBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errBadRequestBody)
	}
	return nil
}
