package api

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/nerrad567/ruuvi-bridge/internal/bridges/gateway"
	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/ruuvi-bridge/internal/publisher"
)

// healthCheckTimeout bounds all component checks of one /health request.
const healthCheckTimeout = 3 * time.Second

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Devices       int              `json:"devices"`
	Mappings      int              `json:"mappings"`
	Unknown       int              `json:"unknown_devices"`
	MQTT          *mqtt.Stats      `json:"mqtt,omitempty"`
	Gateway       *gateway.Stats   `json:"gateway,omitempty"`
	Publisher     *publisher.Stats `json:"publisher,omitempty"`
	WebSocket     *HubStats        `json:"websocket,omitempty"`
	Runtime       RuntimeMetrics   `json:"runtime"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// handleHealth runs every component check. Any failure turns the status to
// "degraded" with 503, so the endpoint can back a container health probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: s.version}

	if len(s.checks) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		names := make([]string, 0, len(s.checks))
		for name := range s.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		resp.Checks = make(map[string]string, len(names))
		for _, name := range names {
			if err := s.checks[name].HealthCheck(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleStats returns ingest, publish and runtime counters.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := StatsResponse{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Devices:       s.registry.Count(),
		Mappings:      s.registry.Names().Len(),
		Unknown:       len(s.registry.UnknownDevices()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	}
	if s.broker != nil {
		st := s.broker.Stats()
		resp.MQTT = &st
	}
	if s.ingest != nil {
		st := s.ingest.Stats()
		resp.Gateway = &st
	}
	if s.publish != nil {
		st := s.publish.Stats()
		resp.Publisher = &st
	}
	if s.hub != nil {
		st := s.hub.Stats()
		resp.WebSocket = &st
	}

	writeJSON(w, http.StatusOK, resp)
}
