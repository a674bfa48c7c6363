package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/linkguard/pkg/clientip"
	"github.com/dmitrymomot/linkguard/pkg/metrics"
	"github.com/dmitrymomot/linkguard/pkg/ratelimit"
	"github.com/dmitrymomot/linkguard/pkg/requestid"
	"github.com/dmitrymomot/linkguard/pkg/token"
)

// Validator checks presented tokens. *token.Validator satisfies it.
type Validator interface {
	Validate(ctx context.Context, raw string, mode token.Mode) (token.Result, error)
}

// Issuer mints new tokens. *token.Issuer satisfies it.
type Issuer interface {
	Issue(subjectID string, now time.Time) (token.SignedToken, error)
}

// Check reports whether a dependency is ready to serve traffic.
type Check func(ctx context.Context) error

// Deps are the collaborators the router is built from. Validator is
// required. A nil Limiter disables rate limiting, a nil Issuer or an empty
// APIKey leaves the internal routes unmounted.
type Deps struct {
	Validator  Validator
	Issuer     Issuer
	Limiter    ratelimit.Limiter
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	BaseURL    string
	APIKey     string
	TrustProxy bool
	Checks     map[string]Check
	Clock      func() time.Time
}

type server struct {
	validator Validator
	issuer    Issuer
	metrics   *metrics.Metrics
	log       *slog.Logger
	baseURL   *url.URL
	checks    map[string]Check
	clock     func() time.Time
}

// New builds the HTTP handler. It panics when Validator is nil or BaseURL
// cannot be parsed while issuance is enabled.
func New(d Deps) http.Handler {
	if d.Validator == nil {
		panic("api.New: validator is required")
	}

	s := &server{
		validator: d.Validator,
		issuer:    d.Issuer,
		metrics:   d.Metrics,
		log:       d.Logger,
		checks:    d.Checks,
		clock:     d.Clock,
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	if s.clock == nil {
		s.clock = time.Now
	}

	internal := d.APIKey != "" && d.Issuer != nil
	if internal {
		u, err := url.Parse(d.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			panic("api.New: base url must be absolute, got " + d.BaseURL)
		}
		s.baseURL = u
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(clientip.Middleware(d.TrustProxy))
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.NotFound(s.wrap(func(*http.Request) Response {
		return errorResponse(http.StatusNotFound, "not_found", "")
	}))
	r.MethodNotAllowed(s.wrap(func(*http.Request) Response {
		return errorResponse(http.StatusMethodNotAllowed, "method_not_allowed", "")
	}))

	r.Get("/healthz", s.wrap(s.handleHealth))
	r.Get("/readyz", s.wrap(s.handleReady))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if d.Limiter != nil {
			r.Use(ratelimit.Middleware(d.Limiter, ratelimit.ClientIP(d.TrustProxy),
				ratelimit.WithOnLimitReached(s.onLimitReached),
				ratelimit.WithOnError(s.onLimiterError),
			))
		}
		r.Get("/validate", s.wrap(s.handleValidate))
	})

	if internal {
		r.Route("/internal", func(r chi.Router) {
			r.Use(bearerAuth(d.APIKey))
			r.Post("/links", s.wrap(s.handleIssue))
			r.Get("/links/inspect", s.wrap(s.handleInspect))
		})
	}

	return r
}
