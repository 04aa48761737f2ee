package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/biometriscan/gateway/internal/monitoring"
	"github.com/rs/zerolog/log"
)

// HealthHandler reports gateway liveness, the last backend probe and host load.
type HealthHandler struct {
	upstream  *monitoring.UpstreamMonitor
	started   time.Time
	hostStats func(ctx context.Context) (monitoring.HostStats, error)
}

// NewHealthHandler creates a new HealthHandler. upstream may be nil.
func NewHealthHandler(upstream *monitoring.UpstreamMonitor) *HealthHandler {
	return &HealthHandler{
		upstream:  upstream,
		started:   time.Now(),
		hostStats: monitoring.ReadHostStats,
	}
}

// Get answers 200 while the gateway can serve; upstream health is reported, not enforced.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	}
	if h.upstream != nil {
		resp["upstream"] = h.upstream.Status()
	}
	if stats, err := h.hostStats(r.Context()); err == nil {
		resp["host"] = stats
	} else {
		log.Debug().Err(err).Msg("Host stats unavailable")
	}
	writeJSON(w, http.StatusOK, resp)
}
