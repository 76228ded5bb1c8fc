package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp   ComponentStatus = "up"
	ComponentStatusDown ComponentStatus = "down"
)

// Health represents the complete health check response
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
}

// checkStorage verifies the evidence root exists and is writable by
// creating and removing a probe file.
func checkStorage(es *EvidenceStore) ComponentHealth {
	start := time.Now()

	if err := es.EnsureRoot(); err != nil {
		return ComponentHealth{Status: ComponentStatusDown, Message: "storage root unavailable"}
	}

	probe := filepath.Join(es.Root(), ".healthcheck")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return ComponentHealth{Status: ComponentStatusDown, Message: "storage root not writable"}
	}
	_ = os.Remove(probe)

	return ComponentHealth{
		Status:    ComponentStatusUp,
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000.0,
	}
}

func checkArchive(ctx context.Context, arch *Archiver) ComponentHealth {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := arch.Ping(ctx); err != nil {
		return ComponentHealth{Status: ComponentStatusDown, Message: "archive unreachable"}
	}
	return ComponentHealth{
		Status:    ComponentStatusUp,
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000.0,
	}
}

// healthHandler reports component health: storage always, archive only
// when configured. Degraded when the archive mirror is down, unhealthy
// when local storage is.
func (cfg Config) healthHandler(es *EvidenceStore, arch *Archiver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := Health{
			Status:     HealthStatusHealthy,
			Timestamp:  time.Now().UTC(),
			Version:    cfg.Build.Version,
			Components: make(map[string]ComponentHealth),
		}

		storage := checkStorage(es)
		h.Components["storage"] = storage
		if storage.Status != ComponentStatusUp {
			h.Status = HealthStatusUnhealthy
		}

		if arch != nil {
			archive := checkArchive(r.Context(), arch)
			h.Components["archive"] = archive
			if archive.Status != ComponentStatusUp && h.Status == HealthStatusHealthy {
				h.Status = HealthStatusDegraded
			}
		}

		status := http.StatusOK
		if h.Status == HealthStatusUnhealthy {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(h)
	}
}
