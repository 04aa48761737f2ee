package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/biometriscan/gateway/internal/metrics"
	"github.com/biometriscan/gateway/internal/models"
	"github.com/biometriscan/gateway/internal/services"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// UpstreamStatus is the result of the latest backend probe.
type UpstreamStatus struct {
	URL       string    `json:"url"`
	Healthy   bool      `json:"healthy"`
	CheckedAt time.Time `json:"checkedAt"`
	Error     string    `json:"error,omitempty"`
}

// UpstreamMonitor probes the backend and records state transitions as events.
type UpstreamMonitor struct {
	url      string
	client   *http.Client
	eventSvc services.EventServiceProvider
	metrics  *metrics.Metrics

	mu     sync.RWMutex
	status UpstreamStatus
	probed bool
}

// NewUpstreamMonitor creates a monitor for backendURL. eventSvc and m may be nil.
func NewUpstreamMonitor(backendURL string, eventSvc services.EventServiceProvider, m *metrics.Metrics) *UpstreamMonitor {
	return &UpstreamMonitor{
		url:      backendURL,
		client:   &http.Client{Timeout: 5 * time.Second},
		eventSvc: eventSvc,
		metrics:  m,
		status:   UpstreamStatus{URL: backendURL},
	}
}

// Check probes the backend root once. Any response below 500 counts as healthy.
func (m *UpstreamMonitor) Check(ctx context.Context) UpstreamStatus {
	status := UpstreamStatus{URL: m.url, CheckedAt: time.Now().UTC()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url+"/", nil)
	if err == nil {
		var resp *http.Response
		resp, err = m.client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode >= http.StatusInternalServerError {
				err = fmt.Errorf("status %d", resp.StatusCode)
			}
		}
	}
	status.Healthy = err == nil
	if err != nil {
		status.Error = err.Error()
	}

	m.mu.Lock()
	previous, probed := m.status, m.probed
	m.status, m.probed = status, true
	m.mu.Unlock()

	m.metrics.SetUpstreamUp(status.Healthy)
	m.recordTransition(ctx, previous, probed, status)
	return status
}

func (m *UpstreamMonitor) recordTransition(ctx context.Context, previous UpstreamStatus, probed bool, current UpstreamStatus) {
	if probed && previous.Healthy == current.Healthy {
		return
	}
	if !probed && current.Healthy {
		log.Info().Str("upstream", m.url).Msg("Backend reachable")
		return
	}

	eventType, level, msg := models.EventUpstreamUp, "info", fmt.Sprintf("Backend %s is reachable again.", m.url)
	if !current.Healthy {
		eventType, level, msg = models.EventUpstreamDown, "error", fmt.Sprintf("Backend %s is unreachable: %s", m.url, current.Error)
		log.Warn().Str("upstream", m.url).Str("error", current.Error).Msg("Backend unreachable")
	} else {
		log.Info().Str("upstream", m.url).Msg("Backend recovered")
	}
	if m.eventSvc == nil {
		return
	}
	subject := m.url
	if err := m.eventSvc.CreateEvent(ctx, eventType, level, msg, &subject); err != nil {
		log.Error().Err(err).Msg("Failed to record upstream event")
	}
}

// Status returns the latest probe result without probing.
func (m *UpstreamMonitor) Status() UpstreamStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// HostStats is a snapshot of the gateway host's load.
type HostStats struct {
	CPUPercent float64 `json:"cpuPercent"`
	MemPercent float64 `json:"memPercent"`
}

// ReadHostStats samples CPU and memory usage. CPU is measured since the previous call.
func ReadHostStats(ctx context.Context) (HostStats, error) {
	var stats HostStats
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return stats, fmt.Errorf("cpu percent: %w", err)
	}
	if len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return stats, fmt.Errorf("virtual memory: %w", err)
	}
	stats.MemPercent = vm.UsedPercent
	return stats, nil
}
