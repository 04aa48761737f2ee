package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveProxy("/api/users/:path*", 200, 20*time.Millisecond)
	m.ObserveProxy("/api/users/:path*", 200, 30*time.Millisecond)
	m.SignInAttempt("success")
	m.RateLimitHit("signin")
	m.SetUpstreamUp(true)

	if got := testutil.ToFloat64(m.proxyRequests.WithLabelValues("/api/users/:path*", "200")); got != 2 {
		t.Fatalf("expected 2 proxied requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.signInAttempts.WithLabelValues("success")); got != 1 {
		t.Fatalf("expected 1 sign-in, got %v", got)
	}
	if got := testutil.ToFloat64(m.upstreamUp); got != 1 {
		t.Fatalf("expected upstream up, got %v", got)
	}
}

func TestNewReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := New(reg)
	second := New(reg)

	first.SignInAttempt("rejected")
	second.SignInAttempt("rejected")

	if got := testutil.ToFloat64(first.signInAttempts.WithLabelValues("rejected")); got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveProxy("r", 502, time.Second)
	m.SignInAttempt("error")
	m.RateLimitHit("signin")
	m.SetUpstreamUp(false)
}
