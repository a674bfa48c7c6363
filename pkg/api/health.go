package api

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/dmitrymomot/linkguard/pkg/logger"
)

const checkTimeout = 2 * time.Second

type healthBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *server) handleHealth(*http.Request) Response {
	return JSON(http.StatusOK, healthBody{Status: "ok"})
}

// handleReady runs every readiness check. Failure details go to the log,
// the body only names the failing dependency.
func (s *server) handleReady(r *http.Request) Response {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	body := healthBody{Status: "ok", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := s.checks[name](ctx)
		cancel()

		if err != nil {
			s.log.LogAttrs(r.Context(), slog.LevelWarn, "readiness check failed",
				logger.Component(name),
				logger.Error(err),
			)
			body.Checks[name] = "fail"
			body.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		body.Checks[name] = "ok"
	}
	return JSON(status, body)
}
