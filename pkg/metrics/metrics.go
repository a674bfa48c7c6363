package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/linkguard/pkg/nonce"
)

const namespace = "linkguard"

// Metrics owns a private registry so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg          *prometheus.Registry
	validations  *prometheus.CounterVec
	issued       prometheus.Counter
	rateLimited  prometheus.Counter
	evictions    prometheus.Counter
	storeSeconds *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		validations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Link validations by mode and outcome.",
		}, []string{"mode", "outcome"}),
		issued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issued_total",
			Help:      "Links issued.",
		}),
		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_rejections_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		evictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_evictions_total",
			Help:      "Client windows dropped because the tracked key limit was reached.",
		}),
		storeSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "nonce_store_seconds",
			Help:      "Nonce store round trip latency.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"op"}),
	}
}

// ObserveValidation counts one validation. outcome is "valid", a failure
// reason, or "error" for infrastructure failures.
func (m *Metrics) ObserveValidation(mode, outcome string) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) ObserveIssued() {
	if m == nil {
		return
	}
	m.issued.Inc()
}

func (m *Metrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// ObserveEviction counts a rate limit window forgotten for capacity. A steady
// rate means RATE_LIMIT_MAX_KEYS is too small for the traffic.
func (m *Metrics) ObserveEviction() {
	if m == nil {
		return
	}
	m.evictions.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// InstrumentStore times every Claim and IsClaimed call on s.
func (m *Metrics) InstrumentStore(s nonce.Store) nonce.Store {
	if m == nil {
		return s
	}
	return &instrumentedStore{next: s, hist: m.storeSeconds}
}

type instrumentedStore struct {
	next nonce.Store
	hist *prometheus.HistogramVec
}

func (s *instrumentedStore) Claim(ctx context.Context, n, subjectID string, now time.Time) (bool, error) {
	start := time.Now()
	ok, err := s.next.Claim(ctx, n, subjectID, now)
	s.hist.WithLabelValues(opLabel("claim", err)).Observe(time.Since(start).Seconds())
	return ok, err
}

func (s *instrumentedStore) IsClaimed(ctx context.Context, n string) (bool, error) {
	start := time.Now()
	ok, err := s.next.IsClaimed(ctx, n)
	s.hist.WithLabelValues(opLabel("is_claimed", err)).Observe(time.Since(start).Seconds())
	return ok, err
}

func opLabel(op string, err error) string {
	if err != nil && !errors.Is(err, nonce.ErrEmptyNonce) {
		return op + "_error"
	}
	return op
}
