package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/linkguard/pkg/api"
	"github.com/dmitrymomot/linkguard/pkg/metrics"
	"github.com/dmitrymomot/linkguard/pkg/nonce"
	"github.com/dmitrymomot/linkguard/pkg/ratelimit"
	"github.com/dmitrymomot/linkguard/pkg/token"
)

const (
	testAPIKey  = "issuer-test-key"
	testBaseURL = "https://shop.example.com/checkout"
)

type fakeClock struct{ ms atomic.Int64 }

func (c *fakeClock) Now() time.Time           { return time.UnixMilli(c.ms.Load()) }
func (c *fakeClock) Advance(d time.Duration) { c.ms.Add(d.Milliseconds()) }

type harness struct {
	handler http.Handler
	issuer  *token.Issuer
	clock   *fakeClock
	metrics *metrics.Metrics
}

type harnessOption func(*api.Deps)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	key, err := token.DerivedKey(strings.Repeat("s", token.MinSecretLength), "linkguard/test")
	require.NoError(t, err)
	signer, err := token.NewSigner(key)
	require.NoError(t, err)

	clock := &fakeClock{}
	clock.ms.Store(1700000000000)

	store := nonce.NewMemoryStore(nonce.WithClock(clock.Now), nonce.WithCleanupInterval(0))
	t.Cleanup(func() { _ = store.Close() })

	m := metrics.New()
	issuer := token.NewIssuer(signer, token.WithLifetime(time.Hour))
	deps := api.Deps{
		Validator: token.NewValidator(signer,
			token.WithStore(m.InstrumentStore(store)),
			token.WithClock(clock.Now),
		),
		Issuer:  issuer,
		Metrics: m,
		BaseURL: testBaseURL,
		APIKey:  testAPIKey,
		Clock:   clock.Now,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &harness{handler: api.New(deps), issuer: issuer, clock: clock, metrics: m}
}

func (h *harness) issue(t *testing.T, subject string) string {
	t.Helper()
	tok, err := h.issuer.Issue(subject, h.clock.Now())
	require.NoError(t, err)
	return tok.String()
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func validateRequest(raw string) *http.Request {
	return httptest.NewRequest(http.MethodGet, "/validate?token="+url.QueryEscape(raw), nil)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

type stubValidator struct {
	calls atomic.Int32
	err   error
}

func (s *stubValidator) Validate(context.Context, string, token.Mode) (token.Result, error) {
	s.calls.Add(1)
	if s.err != nil {
		return token.Result{}, s.err
	}
	return token.Result{Valid: true, Claims: token.Claims{SubjectID: "stub"}}, nil
}

func TestValidate_ConsumesOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	raw := h.issue(t, "order-42")

	rec := h.do(validateRequest(raw))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	body := decode(t, rec)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "order-42", body["subject_id"])
	assert.EqualValues(t, 1700000000000, body["issued_at_ms"])
	assert.EqualValues(t, 1700000000000+time.Hour.Milliseconds(), body["expires_at_ms"])

	rec = h.do(validateRequest(raw))
	require.Equal(t, http.StatusConflict, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "already_used", body["reason"])
	assert.Equal(t, "This link has already been used.", body["message"])
}

func TestValidate_Expired(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	raw := h.issue(t, "order-1")
	h.clock.Advance(time.Hour + time.Millisecond)

	rec := h.do(validateRequest(raw))
	require.Equal(t, http.StatusGone, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "expired", body["reason"])
	assert.Equal(t, "This link has expired. Please request a new one.", body["message"])
}

func TestValidate_InvalidTokens(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	raw := h.issue(t, "order-1")
	payload, sig, _ := strings.Cut(raw, ".")
	flipped := []byte(sig)
	if flipped[0] == 'A' {
		flipped[0] = 'B'
	} else {
		flipped[0] = 'A'
	}

	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{"missing", "", "invalid_format"},
		{"no separator", "abc", "invalid_format"},
		{"bad signature", payload + "." + string(flipped), "invalid_signature"},
		{"oversized", strings.Repeat("a", token.MaxTokenLength+1), "invalid_format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(validateRequest(tt.raw))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.reason, body["reason"])
			assert.Equal(t, "This link is invalid.", body["message"])
		})
	}
}

func TestValidate_StoreFailure(t *testing.T) {
	t.Parallel()

	stub := &stubValidator{err: errors.Join(token.ErrStoreUnavailable, errors.New("connection refused"))}
	h := newHarness(t, func(d *api.Deps) { d.Validator = stub })

	rec := h.do(validateRequest("anything"))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "unavailable", decode(t, rec)["error"])
}

func TestValidate_RateLimited(t *testing.T) {
	t.Parallel()

	stub := &stubValidator{}
	var limiter *ratelimit.SlidingWindow
	h := newHarness(t, func(d *api.Deps) {
		store := ratelimit.NewMemoryStore(100, ratelimit.WithCleanupInterval(0))
		t.Cleanup(func() { _ = store.Close() })
		var err error
		limiter, err = ratelimit.NewSlidingWindow(store, 2, time.Minute, ratelimit.WithClock(d.Clock))
		require.NoError(t, err)
		d.Limiter = limiter
		d.Validator = stub
	})

	for i := range 2 {
		rec := h.do(validateRequest("x"))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, []string{"1", "0"}[i], rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := h.do(validateRequest("x"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decode(t, rec)["error"])
	assert.EqualValues(t, 2, stub.calls.Load(), "denied requests must not reach the validator")

	// Another client has its own window.
	req := validateRequest("x")
	req.RemoteAddr = "198.51.100.7:4242"
	assert.Equal(t, http.StatusOK, h.do(req).Code)
}

func TestInternal_Auth(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic " + testAPIKey},
		{"wrong key", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/internal/links", strings.NewReader(`{"subject_id":"a"}`))
			req.Header.Set("Content-Type", "application/json")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := h.do(req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestInternal_NotMountedWithoutKey(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(d *api.Deps) { d.APIKey = "" })

	req := httptest.NewRequest(http.MethodPost, "/internal/links", strings.NewReader(`{"subject_id":"a"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	assert.Equal(t, http.StatusNotFound, h.do(req).Code)
}

func issueRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/internal/links", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	return req
}

func TestInternal_IssueInspectConsume(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	rec := h.do(issueRequest(`{"subject_id":"cart-9"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var issued struct {
		Token       string `json:"token"`
		URL         string `json:"url"`
		ExpiresAtMs int64  `json:"expires_at_ms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	assert.Equal(t, h.clock.Now().Add(time.Hour).UnixMilli(), issued.ExpiresAtMs)

	u, err := url.Parse(issued.URL)
	require.NoError(t, err)
	assert.Equal(t, "shop.example.com", u.Host)
	assert.Equal(t, "/checkout", u.Path)
	assert.Equal(t, issued.Token, u.Query().Get("token"))

	inspect := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/internal/links/inspect?token="+url.QueryEscape(issued.Token), nil)
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
		return h.do(req)
	}

	for range 2 {
		rec = inspect()
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "cart-9", decode(t, rec)["subject_id"])
	}

	require.Equal(t, http.StatusOK, h.do(validateRequest(issued.Token)).Code)
	assert.Equal(t, http.StatusConflict, h.do(validateRequest(issued.Token)).Code)
}

func TestInternal_IssueBadRequests(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"empty subject", issueRequest(`{"subject_id":""}`)},
		{"unknown field", issueRequest(`{"subject_id":"a","admin":true}`)},
		{"subject too long", issueRequest(`{"subject_id":"` + strings.Repeat("s", 3000) + `"}`)},
		{"not json", issueRequest(`subject_id=a`)},
		{"wrong content type", func() *http.Request {
			r := issueRequest(`{"subject_id":"a"}`)
			r.Header.Set("Content-Type", "text/plain")
			return r
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid_request", decode(t, rec)["error"])
		})
	}
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()

	var failing atomic.Bool
	h := newHarness(t, func(d *api.Deps) {
		d.Checks = map[string]api.Check{
			"nonce_store": func(context.Context) error {
				if failing.Load() {
					return errors.New("down")
				}
				return nil
			},
		}
	})

	assert.Equal(t, http.StatusOK, h.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	failing.Store(true)
	rec = h.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "unavailable", body["status"])
	assert.Equal(t, map[string]any{"nonce_store": "fail"}, body["checks"])
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	req.Header.Set("X-Request-ID", "upstream-123")
	rec = h.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "upstream-123", rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.do(validateRequest(h.issue(t, "order-5")))
	h.do(validateRequest("garbage"))

	rec := h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `linkguard_validations_total{mode="consume",outcome="valid"} 1`)
	assert.Contains(t, string(body), `linkguard_validations_total{mode="consume",outcome="invalid_format"} 1`)
	assert.Contains(t, string(body), `linkguard_nonce_store_seconds_count{op="claim"} 1`)
}

func TestNew_RequiresValidator(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { api.New(api.Deps{}) })
}

func TestLinkURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		base string
		want string
	}{
		{"https://shop.example.com/checkout", "https://shop.example.com/checkout?token=a.b"},
		{"https://shop.example.com/checkout?utm=mail", "https://shop.example.com/checkout?token=a.b&utm=mail"},
	}
	for _, tt := range tests {
		base, err := url.Parse(tt.base)
		require.NoError(t, err)
		assert.Equal(t, tt.want, api.LinkURL(base, "a.b"))
		assert.Equal(t, tt.base, base.String(), "base must not be modified")
	}
}
