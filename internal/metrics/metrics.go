package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Metrics groups the gateway's Prometheus collectors.
type Metrics struct {
	proxyRequests  *prometheus.CounterVec
	proxyLatency   *prometheus.HistogramVec
	signInAttempts *prometheus.CounterVec
	rateLimitHits  *prometheus.CounterVec
	upstreamUp     prometheus.Gauge
}

// New creates the collectors and registers them with reg. Collectors already
// registered by a previous call are reused.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		proxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Count of proxied requests by rewrite rule and upstream status",
		}, []string{"rule", "status"}),
		proxyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gateway",
			Subsystem: "proxy",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution of proxied requests",
			Buckets:   histogramBuckets,
		}, []string{"rule"}),
		signInAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "signin_attempts_total",
			Help:      "Credentials sign-in attempts by outcome",
		}, []string{"outcome"}),
		rateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "rate_limit_hits_total",
			Help:      "Number of rate-limited responses",
		}, []string{"route"}),
		upstreamUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gateway",
			Name:      "upstream_up",
			Help:      "1 when the last backend probe succeeded",
		}),
	}
	if reg == nil {
		return m
	}
	m.proxyRequests = register(reg, m.proxyRequests)
	m.proxyLatency = register(reg, m.proxyLatency)
	m.signInAttempts = register(reg, m.signInAttempts)
	m.rateLimitHits = register(reg, m.rateLimitHits)
	m.upstreamUp = register(reg, m.upstreamUp)
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

// ObserveProxy records one proxied request.
func (m *Metrics) ObserveProxy(rule string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.proxyRequests.WithLabelValues(rule, strconv.Itoa(status)).Inc()
	m.proxyLatency.WithLabelValues(rule).Observe(d.Seconds())
}

// SignInAttempt records the outcome of a sign-in ("success", "rejected", "rate_limited", ...).
func (m *Metrics) SignInAttempt(outcome string) {
	if m == nil {
		return
	}
	m.signInAttempts.WithLabelValues(outcome).Inc()
}

// RateLimitHit records a rejected request.
func (m *Metrics) RateLimitHit(route string) {
	if m == nil {
		return
	}
	m.rateLimitHits.WithLabelValues(route).Inc()
}

// SetUpstreamUp publishes the latest probe result.
func (m *Metrics) SetUpstreamUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.upstreamUp.Set(1)
		return
	}
	m.upstreamUp.Set(0)
}
