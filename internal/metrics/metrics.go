package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "safejob"

var (
	// Session metrics (client side)

	SessionTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_transitions_total",
		Help:      "Session state transitions, by target state.",
	}, []string{"state"})

	SessionState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_state",
		Help:      "1 for the current session state, 0 otherwise.",
	}, []string{"state"})

	RefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_refresh_total",
		Help:      "Credential refresh exchanges, by outcome.",
	}, []string{"outcome"})

	RefreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "session_refresh_duration_seconds",
		Help:      "Duration of the refresh exchange with the auth service.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})

	CredentialCorruptTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credential_corrupt_total",
		Help:      "Stored credentials discarded because they failed validation.",
	})

	NavigationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "navigation_decisions_total",
		Help:      "Guard decisions, by kind and redirect target.",
	}, []string{"decision", "target"})

	// Auth service metrics (server side)

	MagicLinksRequestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "magic_links_requested_total",
		Help:      "Magic link requests handled, by outcome.",
	}, []string{"outcome"})

	RedemptionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "magic_link_redemptions_total",
		Help:      "Magic link redemptions, by outcome.",
	}, []string{"outcome"})

	TokensIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Access/refresh token pairs issued, by grant.",
	}, []string{"grant"})

	MagicTokensPurgedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "magic_tokens_purged_total",
		Help:      "Expired or used magic tokens deleted by the janitor.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route template.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "route"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route template, status and guard decision (allow, redirect, none).",
	}, []string{"method", "route", "status", "guard"})
)

// ObserveHTTP records one finished request.
func ObserveHTTP(method, route string, status int, guard string, took time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route).Observe(took.Seconds())
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status), guard).Inc()
}

// RegisterClient registers the session-side collectors.
func RegisterClient(reg prometheus.Registerer) {
	reg.MustRegister(
		SessionTransitionsTotal,
		SessionState,
		RefreshTotal,
		RefreshDuration,
		CredentialCorruptTotal,
		NavigationTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// RegisterServer registers the auth service collectors.
func RegisterServer(reg prometheus.Registerer) {
	reg.MustRegister(
		MagicLinksRequestedTotal,
		RedemptionsTotal,
		TokensIssuedTotal,
		MagicTokensPurgedTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer exposes /metrics plus liveness and readiness probes.
func NewServer(addr string, health http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if health != nil {
		mux.Handle("/healthz", health)
		mux.Handle("/readyz", health)
	}
	return &http.Server{Addr: addr, Handler: mux}
}
