package api

import (
	"net/http"

	"github.com/biometriscan/gateway/internal/api/handlers"
	"github.com/biometriscan/gateway/internal/auth"
	"github.com/biometriscan/gateway/internal/config"
	"github.com/biometriscan/gateway/internal/metrics"
	"github.com/biometriscan/gateway/internal/monitoring"
	"github.com/biometriscan/gateway/internal/proxy"
	"github.com/biometriscan/gateway/internal/ratelimit"
	"github.com/biometriscan/gateway/internal/services"
	"github.com/biometriscan/gateway/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	Tokens   *auth.Manager
	Auth     services.AuthServiceProvider
	Sessions services.SessionServiceProvider
	Events   services.EventServiceProvider
	Hub      *websocket.Hub
	Proxy    *proxy.Proxy
	Limiter  ratelimit.Limiter
	Metrics  *metrics.Metrics
	Upstream *monitoring.UpstreamMonitor
	Gatherer prometheus.Gatherer
}

// NewRouter creates and configures a new Chi router.
func NewRouter(cfg *config.Config, deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	// Rewrites run before any gateway route and keep the backend's own headers.
	if deps.Proxy != nil {
		r.Use(deps.Proxy.Middleware)
	}

	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.CSRFHeaderName},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: !allowsAnyOrigin(cfg.AllowedOrigins),
		MaxAge:           300,
	}))

	secure := cfg.IsProduction()
	issuer := handlers.NewSessionIssuer(deps.Auth, secure, deps.Metrics)
	throttle := handlers.NewThrottle(deps.Limiter, cfg.SignInRateLimit, cfg.SignInRateWindow, deps.Metrics)

	// Initialize handlers
	signInHandler := handlers.NewSignInHandler(issuer, throttle, deps.Tokens, deps.Sessions, cfg.DefaultCallbackURL)
	authHandler := handlers.NewAuthHandler(issuer, throttle, deps.Tokens, deps.Sessions, cfg.DefaultCallbackURL)
	pageHandler := handlers.NewPageHandler(secure)
	eventHandler := handlers.NewEventHandler(deps.Events)
	healthHandler := handlers.NewHealthHandler(deps.Upstream)

	requireSession := deps.Tokens.RequireSession(deps.Sessions, "/signin")
	requireToken := deps.Tokens.JWTMiddleware(deps.Sessions)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, cfg.DefaultCallbackURL, http.StatusFound)
	})
	r.Get("/signin", signInHandler.Show)
	r.Post("/signin", signInHandler.Submit)
	r.With(requireSession).Get("/capture", pageHandler.Capture)

	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/providers", authHandler.Providers)
		r.Get("/csrf", authHandler.CSRF)
		r.Post("/callback/credentials", authHandler.Callback)
		r.Get("/session", authHandler.Session)
		r.Post("/signout", authHandler.SignOut)
	})

	r.With(requireToken).Get("/api/gateway/events", eventHandler.GetRecent)

	if deps.Hub != nil {
		wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.Events, nil)
		r.With(requireToken).Get("/ws/events", wsHandler.Serve)
	}

	r.Get("/healthz", healthHandler.Get)
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
