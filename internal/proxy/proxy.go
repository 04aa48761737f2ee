package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/biometriscan/gateway/internal/metrics"
	"github.com/biometriscan/gateway/internal/rewrite"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type contextKey string

const targetKey = contextKey("proxyTarget")

// Proxy forwards requests whose path resolves through a rewrite table to the backend.
type Proxy struct {
	table   *rewrite.Table
	rp      *httputil.ReverseProxy
	metrics *metrics.Metrics
}

// Option customises a Proxy.
type Option func(*Proxy)

// WithTransport overrides the upstream transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(p *Proxy) {
		if rt != nil {
			p.rp.Transport = rt
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Proxy) {
		p.metrics = m
	}
}

// New creates a Proxy for the given table.
func New(table *rewrite.Table, opts ...Option) *Proxy {
	p := &Proxy{table: table}
	p.rp = &httputil.ReverseProxy{
		Rewrite:      p.rewrite,
		ErrorHandler: p.handleError,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	target, _ := pr.In.Context().Value(targetKey).(*url.URL)
	if target == nil {
		return
	}
	out := *target
	pr.Out.URL = &out
	pr.Out.Host = ""
	pr.SetXForwarded()
}

func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		// Client went away; nothing useful to send.
		w.WriteHeader(499)
		return
	}
	log.Error().Err(err).Str("path", r.URL.Path).Msg("Upstream request failed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	json.NewEncoder(w).Encode(map[string]string{"error": "upstream unavailable"})
}

// Match reports whether path is rewritten to the backend.
func (p *Proxy) Match(path string) bool {
	_, _, ok := p.table.Resolve(path)
	return ok
}

// ServeHTTP proxies a matched request and answers 404 for anything else.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.serve(w, r, nil)
}

// Middleware proxies matched requests and hands everything else to next.
func (p *Proxy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.serve(w, r, next)
	})
}

func (p *Proxy) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	target, rule, ok := p.table.Target(r.URL)
	if !ok {
		if next != nil {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
		return
	}

	log.Debug().Str("path", r.URL.Path).Str("target", target.String()).Msg("Proxying request")

	start := time.Now()
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	ctx := context.WithValue(r.Context(), targetKey, target)
	p.rp.ServeHTTP(ww, r.WithContext(ctx))

	status := ww.Status()
	if status == 0 {
		status = http.StatusOK
	}
	p.metrics.ObserveProxy(rule.Source, status, time.Since(start))
}
