package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-thermostat/internal/climate"
)

// SystemInfo is the GET /system response.
type SystemInfo struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	Thermostat    ThermostatInfo `json:"thermostat"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// ThermostatInfo summarises the controlled thermostat.
type ThermostatInfo struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Active     bool                   `json:"active"`
	HVACMode   climate.HVACMode       `json:"hvac_mode"`
	HVACAction climate.HVACAction     `json:"hvac_action"`
	Actuator   climate.ActuatorStatus `json:"actuator"`
}

// handleSystem returns runtime statistics and a thermostat summary.
func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	snap := s.thermostat.Snapshot()

	writeJSON(w, http.StatusOK, SystemInfo{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{ConnectedClients: s.hub.ClientCount()},
		Thermostat: ThermostatInfo{
			ID:         snap.ThermostatID,
			Name:       snap.Name,
			Active:     snap.Active,
			HVACMode:   snap.HVACMode,
			HVACAction: snap.HVACAction,
			Actuator:   snap.Actuator,
		},
	})
}
