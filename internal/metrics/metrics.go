// Package metrics holds the Prometheus collectors for oddsbot. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

// Outcome labels for collaborator calls.
const (
	OutcomeOK           = "ok"
	OutcomeTransport    = "transport"
	OutcomeAbsent       = "absent"
	OutcomeTimeout      = "timeout"
	OutcomeRateLimited  = "rate_limited"
	OutcomeUnauthorized = "unauthorized"
	OutcomeUnconfigured = "unconfigured"
	OutcomeUnclassified = "unclassified"
)

// Metrics contains all Prometheus metrics for the bot.
type Metrics struct {
	CollaboratorCalls   *prometheus.CounterVec
	CollaboratorLatency *prometheus.HistogramVec
	Turns               *prometheus.CounterVec
	TurnLatency         prometheus.Histogram
	ActiveSessions      prometheus.Gauge
	CacheLookups        *prometheus.CounterVec
	ArbFound            *prometheus.CounterVec
	ScanDuration        prometheus.Histogram
	AnalysisDegraded    *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CollaboratorCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oddsbot_collaborator_calls_total",
			Help: "External collaborator calls by collaborator and outcome",
		}, []string{"collaborator", "outcome"}),

		CollaboratorLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oddsbot_collaborator_latency_seconds",
			Help:    "External collaborator call latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"collaborator"}),

		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oddsbot_turns_total",
			Help: "Processed session turns by action and resulting state",
		}, []string{"action", "state"}),

		TurnLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "oddsbot_turn_latency_seconds",
			Help:    "End-to-end session turn latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 20},
		}),

		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "oddsbot_active_sessions",
			Help: "Sessions currently held in the session store",
		}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oddsbot_cache_lookups_total",
			Help: "Time-boxed cache lookups by key and result",
		}, []string{"key", "result"}),

		ArbFound: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oddsbot_arbitrage_opportunities_total",
			Help: "Arbitrage opportunities detected by sport",
		}, []string{"sport"}),

		ScanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "oddsbot_arbitrage_scan_seconds",
			Help:    "Duration of a multi-sport arbitrage sweep in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),

		AnalysisDegraded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oddsbot_analysis_degraded_total",
			Help: "Analysis stages that fell back to a default value",
		}, []string{"stage"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "oddsbot_http_requests_total",
			Help: "API requests by route pattern and status class",
		}, []string{"route", "code"}),
	}
}

// Classify maps a collaborator error to an outcome label.
func Classify(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(err, domain.ErrRateLimited):
		return OutcomeRateLimited
	case errors.Is(err, domain.ErrUnauthorized):
		return OutcomeUnauthorized
	case errors.Is(err, domain.ErrNotConfigured):
		return OutcomeUnconfigured
	case errors.Is(err, domain.ErrDataAbsent), errors.Is(err, domain.ErrNotFound):
		return OutcomeAbsent
	case errors.Is(err, domain.ErrTransport):
		return OutcomeTransport
	default:
		return OutcomeUnclassified
	}
}

// ObserveCall records one collaborator call.
func (m *Metrics) ObserveCall(collaborator string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.CollaboratorCalls.WithLabelValues(collaborator, Classify(err)).Inc()
	m.CollaboratorLatency.WithLabelValues(collaborator).Observe(took.Seconds())
}

// ObserveTurn records one processed turn.
func (m *Metrics) ObserveTurn(action, state string, took time.Duration) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(action, state).Inc()
	m.TurnLatency.Observe(took.Seconds())
}

// SetActiveSessions sets the session gauge.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// CacheLookup records a cache hit or miss.
func (m *Metrics) CacheLookup(key string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(key, result).Inc()
}

// ObserveScan records a finished sweep.
func (m *Metrics) ObserveScan(took time.Duration, opps []domain.ArbOpportunity) {
	if m == nil {
		return
	}
	m.ScanDuration.Observe(took.Seconds())
	for _, o := range opps {
		m.ArbFound.WithLabelValues(o.SportKey).Inc()
	}
}

// Degraded records analysis stages that fell back.
func (m *Metrics) Degraded(stages []string) {
	if m == nil {
		return
	}
	for _, s := range stages {
		m.AnalysisDegraded.WithLabelValues(s).Inc()
	}
}

// ObserveRequest records one API request. route is the matched mux pattern.
func (m *Metrics) ObserveRequest(route string, status int) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status/100)+"xx").Inc()
}
